package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeKVs(t *testing.T) {
	in := []interface{}{"patient_id", "P1", "api_key", "sk-123", "Authorization", "Bearer x", "dangling"}
	got := sanitizeKVs(in)
	assert.Equal(t, []interface{}{"patient_id", "P1", "api_key", "[REDACTED]", "Authorization", "[REDACTED]", "dangling"}, got)
}

func TestNewNopDoesNotPanic(t *testing.T) {
	l := NewNop().With("component", "test")
	l.Info("hello", "secret", "s")
	l.Sync()
}
