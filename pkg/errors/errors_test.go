package errors

import (
	stdErrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	wrapped := Wrap(stdErrors.New("boom"), ErrConflict.Code, ErrConflict.Status, "slot taken")
	got := FromError(wrapped)
	assert.Same(t, wrapped, got)
	assert.Equal(t, "slot taken: boom", got.Error())
}

func TestFromErrorFallsBackToInternal(t *testing.T) {
	got := FromError(stdErrors.New("db down"))
	assert.Equal(t, ErrInternal.Code, got.Code)
	assert.Equal(t, http.StatusInternalServerError, got.Status)
	assert.Nil(t, FromError(nil))
}

func TestCloneAndDetailsDoNotMutateSentinels(t *testing.T) {
	clone := Clone(ErrNotFound, "entry not found")
	detailed := WithDetails(clone, map[string]string{"id": "e1"})

	assert.Equal(t, "resource not found", ErrNotFound.Message)
	assert.Nil(t, ErrNotFound.Details)
	assert.Nil(t, clone.Details)
	assert.Equal(t, "entry not found", detailed.Message)
	assert.Equal(t, map[string]string{"id": "e1"}, detailed.Details)
}
