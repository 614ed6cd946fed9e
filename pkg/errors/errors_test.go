package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryPredicates(t *testing.T) {
	assert.True(t, IsValidation(NewValidation(CodeTargetXOR, "both targets set")))
	assert.True(t, IsNotFound(NewNotFound(CodeMatchNotFound, "no such match")))
	assert.True(t, IsInvalidState(NewInvalidState(CodeMatchNotProposed, "already confirmed")))
	assert.True(t, IsConflict(NewConflict(CodeTargetConsumed, "target consumed")))

	assert.False(t, IsValidation(stderrors.New("plain")))
	assert.False(t, IsNotFound(nil))
}

func TestPredicatesSeeThroughWrapping(t *testing.T) {
	inner := NewNotFound(CodeReceiptNotFound, "receipt missing")
	outer := fmt.Errorf("loading receipt: %w", inner)

	assert.True(t, IsNotFound(outer))
	assert.Equal(t, CodeReceiptNotFound, CodeOf(outer))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Wrap(cause, CategoryStorage, CodeQueryFailed, "saving match")

	require.NotNil(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "saving match")
	assert.Contains(t, err.Error(), "disk full")
}

func TestWrapNil(t *testing.T) {
	err := Wrap(nil, CategoryStorage, CodeQueryFailed, "noop")

	// The interface itself must be nil, not a nil *Error boxed into an
	// error. assert.Nil alone cannot tell the two apart.
	assert.True(t, err == nil)
	assert.NoError(t, err)
}

func TestWithContext(t *testing.T) {
	err := NewConflict(CodeStaleStatus, "stale").
		WithContext("match_id", "abc").
		WithContext("attempt", 2)

	assert.Equal(t, "abc", err.Context["match_id"])
	assert.Equal(t, 2, err.Context["attempt"])
}

func TestCodeOfForeignError(t *testing.T) {
	assert.Equal(t, CodeUnexpectedError, CodeOf(stderrors.New("nope")))
}
