package link

import "errors"

var (
	// ErrBusy indicates a send was rejected because one is already in flight
	ErrBusy = errors.New("transport busy")

	// ErrNotConnected indicates no serial port is open
	ErrNotConnected = errors.New("link not connected")

	// ErrPortOpen indicates the port is already open
	ErrPortOpen = errors.New("port already open")

	// ErrWriteFailed indicates the underlying serial write failed
	ErrWriteFailed = errors.New("serial write failed")

	// ErrSendTimeout indicates retransmissions of a chunk were exhausted
	ErrSendTimeout = errors.New("send timed out")

	// ErrNotFound indicates a requested record was not found
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates a payload failed schema validation
	ErrValidation = errors.New("validation error")
)
