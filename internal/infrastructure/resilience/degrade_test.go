package resilience

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDegrade_Success(t *testing.T) {
	got := Degrade(discardLogger(), "op", []string{}, func() ([]string, error) {
		return []string{"a", "b"}, nil
	})
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestDegrade_Error(t *testing.T) {
	got := Degrade(discardLogger(), "op", []string{}, func() ([]string, error) {
		return nil, errors.New("edge unavailable")
	})
	assert.Equal(t, []string{}, got)
}

func TestDegrade_Panic(t *testing.T) {
	got := Degrade(discardLogger(), "op", 42, func() (int, error) {
		panic("sdk blew up")
	})
	assert.Equal(t, 42, got)
}

func TestDegrade_NilLogger(t *testing.T) {
	got := Degrade(nil, "op", "fallback", func() (string, error) {
		return "", errors.New("boom")
	})
	assert.Equal(t, "fallback", got)
}
