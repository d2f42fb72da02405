package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rs/xid"
)

var ErrTransferNotFound = errors.New("transfer not found")

// Transfer statuses.
const (
	TransferStatusOK     = "ok"
	TransferStatusFailed = "failed"
)

// Transfer is one completed or failed packet transfer, including the
// delivery accounting reported by the transport (chunk count and
// retransmissions across all chunks).
type Transfer struct {
	ID          string    `json:"id"`
	ProfileID   int64     `json:"-"`
	Direction   string    `json:"direction"`
	SizeBytes   int       `json:"size_bytes"`
	ChunkCount  int       `json:"chunk_count"`
	Retransmits int       `json:"retransmits"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// TransferStore provides transfer log operations.
type TransferStore interface {
	Record(ctx context.Context, t *Transfer) error
	Get(ctx context.Context, id string) (*Transfer, error)
	List(ctx context.Context, profileID int64, limit int) ([]*Transfer, error)
}

// Transfers returns a TransferStore for this database.
func (db *DB) Transfers() TransferStore {
	return &transferStore{db: db}
}

type transferStore struct {
	db *DB
}

// Record inserts a transfer row, assigning an ID and timestamps where
// the caller did not.
func (s *transferStore) Record(ctx context.Context, t *Transfer) error {
	if t.ID == "" {
		t.ID = xid.New().String()
	}
	if t.FinishedAt.IsZero() {
		t.FinishedAt = time.Now().UTC()
	}
	if t.StartedAt.IsZero() {
		t.StartedAt = t.FinishedAt
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transfers (id, profile_id, direction, size_bytes, chunk_count, retransmits, status, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.ProfileID, t.Direction, t.SizeBytes, t.ChunkCount, t.Retransmits, t.Status, t.Error,
		t.StartedAt.UTC().Format(time.DateTime), t.FinishedAt.UTC().Format(time.DateTime))
	return err
}

func (s *transferStore) Get(ctx context.Context, id string) (*Transfer, error) {
	t := &Transfer{}
	var startedAt, finishedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, profile_id, direction, size_bytes, chunk_count, retransmits, status, error, started_at, finished_at
		FROM transfers WHERE id = ?
	`, id).Scan(&t.ID, &t.ProfileID, &t.Direction, &t.SizeBytes, &t.ChunkCount, &t.Retransmits, &t.Status, &t.Error, &startedAt, &finishedAt)
	if err == sql.ErrNoRows {
		return nil, ErrTransferNotFound
	}
	if err != nil {
		return nil, err
	}
	t.StartedAt, _ = time.Parse(time.DateTime, startedAt)
	t.FinishedAt, _ = time.Parse(time.DateTime, finishedAt)
	return t, nil
}

func (s *transferStore) List(ctx context.Context, profileID int64, limit int) ([]*Transfer, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, profile_id, direction, size_bytes, chunk_count, retransmits, status, error, started_at, finished_at
		FROM transfers WHERE profile_id = ?
		ORDER BY finished_at DESC, id DESC LIMIT ?
	`, profileID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var transfers []*Transfer
	for rows.Next() {
		t := &Transfer{}
		var startedAt, finishedAt string
		if err := rows.Scan(&t.ID, &t.ProfileID, &t.Direction, &t.SizeBytes, &t.ChunkCount, &t.Retransmits, &t.Status, &t.Error, &startedAt, &finishedAt); err != nil {
			return nil, err
		}
		t.StartedAt, _ = time.Parse(time.DateTime, startedAt)
		t.FinishedAt, _ = time.Parse(time.DateTime, finishedAt)
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}
