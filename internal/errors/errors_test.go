package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapKeepsCauseAndCode(t *testing.T) {
	cause := stdErrors.New("dial tcp: refused")
	err := Wrap(CodeSourceFailure, cause, "redis lookup failed", WithMetadata("source", "redis"))

	assert.Equal(t, "[SOURCE_FAILURE] redis lookup failed: dial tcp: refused", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, New(CodeSourceFailure, ""))
	assert.NotErrorIs(t, err, New(CodeStorageFailure, ""))
	assert.Equal(t, map[string]string{"source": "redis"}, err.Metadata())
}

func TestFromWrappedChain(t *testing.T) {
	inner := New(CodePropertyUnresolved, "example.property not found")
	outer := fmt.Errorf("startup: %w", inner)

	got, ok := From(outer)
	require.True(t, ok)
	assert.Equal(t, CodePropertyUnresolved, got.Code())
	assert.Equal(t, CodePropertyUnresolved, CodeOf(outer))
	assert.Equal(t, CodeUnknown, CodeOf(stdErrors.New("plain")))
}

func TestDefaultsByCode(t *testing.T) {
	err := New(CodeSourceFailure, "")
	assert.Equal(t, "[SOURCE_FAILURE] property source failure", err.Error())
	assert.True(t, err.Retryable())
	assert.Equal(t, SeverityCritical, err.Severity())

	overridden := New(CodeSourceFailure, "", WithRetryable(false))
	assert.False(t, RetryableError(overridden))
	assert.Equal(t, SeverityCritical, SeverityOf(fmt.Errorf("wrapped: %w", overridden)))

	assert.Equal(t, SeverityWarning, SeverityOf(New(CodeInvalidPlaceholder, "")))
	assert.False(t, RetryableError(stdErrors.New("plain")))
	assert.Equal(t, SeverityCritical, SeverityOf(stdErrors.New("plain")))
}

func TestUnknownCodeFallsBack(t *testing.T) {
	err := New("NEVER_DEFINED", "")
	assert.Equal(t, "[NEVER_DEFINED] unknown error", err.Error())
	assert.False(t, err.Retryable())
	assert.Equal(t, SeverityCritical, err.Severity())
}

func TestNilErrorAccessors(t *testing.T) {
	var err *Error
	assert.Equal(t, "", err.Error())
	assert.Equal(t, CodeUnknown, err.Code())
	assert.False(t, err.Retryable())
	assert.Nil(t, err.Metadata())
}
