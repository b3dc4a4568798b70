package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesKind(t *testing.T) {
	err := Validation("self-delegation")

	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrConflict))
	assert.Equal(t, "self-delegation", err.Error())
}

func TestError_IsThroughWrapping(t *testing.T) {
	err := fmt.Errorf("create delegation: %w", State("already revoked"))

	assert.True(t, errors.Is(err, ErrState))
	assert.Equal(t, KindState, KindOf(err))
}

func TestWrap_KeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(KindPartialFailure, cause, "audit write failed")

	assert.True(t, errors.Is(err, ErrPartialFailure))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "audit write failed: disk full", err.Error())
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestConflict_CarriesDetail(t *testing.T) {
	detail := struct{ ID int64 }{ID: 7}
	err := fmt.Errorf("wrapped: %w", Conflict(detail, "overlaps %d", 7))

	assert.True(t, errors.Is(err, ErrConflict))
	assert.Equal(t, detail, DetailOf(err))
	assert.Nil(t, DetailOf(errors.New("plain")))
}
