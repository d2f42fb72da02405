package schema

import (
	"encoding/json"
	"testing"

	"github.com/byhat/loracore/pkg/db"
)

func linkConfigSchema() json.RawMessage {
	return json.RawMessage(db.LinkConfigSchema)
}

func TestValidate_ValidConfig(t *testing.T) {
	v := NewValidator()

	err := v.Validate(linkConfigSchema(), map[string]any{
		"device": "/dev/ttyUSB0",
		"baud":   float64(9600),
		"listen": "0.0.0.0:8080",
	})
	if err != nil {
		t.Errorf("expected valid config, got: %v", err)
	}
}

func TestValidate_MinimalConfig(t *testing.T) {
	v := NewValidator()

	err := v.Validate(linkConfigSchema(), map[string]any{
		"device": "/dev/ttyAMA0",
		"baud":   float64(115200),
	})
	if err != nil {
		t.Errorf("expected valid config, got: %v", err)
	}
}

func TestValidate_InvalidBaud(t *testing.T) {
	v := NewValidator()

	err := v.Validate(linkConfigSchema(), map[string]any{
		"device": "/dev/ttyUSB0",
		"baud":   float64(9601),
	})
	if err == nil {
		t.Error("expected validation error for unsupported baud rate")
	}
}

func TestValidate_MissingDevice(t *testing.T) {
	v := NewValidator()

	err := v.Validate(linkConfigSchema(), map[string]any{
		"baud": float64(9600),
	})
	if err == nil {
		t.Error("expected validation error for missing device")
	}
}

func TestValidate_UnknownProperty(t *testing.T) {
	v := NewValidator()

	err := v.Validate(linkConfigSchema(), map[string]any{
		"device":  "/dev/ttyUSB0",
		"baud":    float64(9600),
		"channel": float64(23),
	})
	if err == nil {
		t.Error("expected validation error for unknown property")
	}
}

func TestValidate_BadListenAddress(t *testing.T) {
	v := NewValidator()

	err := v.Validate(linkConfigSchema(), map[string]any{
		"device": "/dev/ttyUSB0",
		"baud":   float64(9600),
		"listen": "no-port",
	})
	if err == nil {
		t.Error("expected validation error for malformed listen address")
	}
}

func TestValidate_EmptySchema(t *testing.T) {
	v := NewValidator()

	// Empty schema means no validation
	err := v.Validate(json.RawMessage(`{}`), map[string]any{
		"anything": "goes",
	})
	if err != nil {
		t.Errorf("empty schema should skip validation, got: %v", err)
	}
}

func TestValidate_NilSchema(t *testing.T) {
	v := NewValidator()

	err := v.Validate(nil, map[string]any{
		"anything": "goes",
	})
	if err != nil {
		t.Errorf("nil schema should skip validation, got: %v", err)
	}
}

func TestValidate_CachesSchema(t *testing.T) {
	v := NewValidator()
	schema := linkConfigSchema()

	// First call compiles
	err := v.Validate(schema, map[string]any{"device": "/dev/ttyUSB0", "baud": float64(9600)})
	if err != nil {
		t.Fatal(err)
	}

	// Second call should use cache
	err = v.Validate(schema, map[string]any{"device": "/dev/ttyUSB1", "baud": float64(19200)})
	if err != nil {
		t.Fatal(err)
	}

	v.mu.RLock()
	cacheSize := len(v.cache)
	v.mu.RUnlock()
	if cacheSize != 1 {
		t.Errorf("expected 1 cached schema, got %d", cacheSize)
	}
}
