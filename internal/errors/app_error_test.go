package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorMessage(t *testing.T) {
	err := NewConfigError("bad config", fmt.Errorf("port out of range"))
	assert.Equal(t, "[CONFIG] bad config: port out of range", err.Error())

	bare := NewAppValidationError("site_id is required")
	assert.Equal(t, "[VALIDATION] site_id is required", bare.Error())
}

func TestAppErrorUnwrap(t *testing.T) {
	err := NewStorageError("open run store database", fs.ErrNotExist)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	var appErr *AppError
	require.True(t, errors.As(fmt.Errorf("startup: %w", err), &appErr))
	assert.Equal(t, ErrTypeStorage, appErr.Type)
}

func TestAppErrorWithContext(t *testing.T) {
	err := NewIntensityError("invalid intensity table entry", nil).
		WithContext("path", "factors.yml").
		WithContext("site_id", "ACME-001")

	assert.Equal(t, "factors.yml", err.Context["path"])
	assert.Equal(t, "ACME-001", err.Context["site_id"])
}
