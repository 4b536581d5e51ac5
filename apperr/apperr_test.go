package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:   http.StatusBadRequest,
		KindUnauthorized: http.StatusUnauthorized,
		KindForbidden:    http.StatusForbidden,
		KindNotFound:     http.StatusNotFound,
		KindConflict:     http.StatusConflict,
		KindInternal:     http.StatusInternalServerError,
	}
	for kind, status := range cases {
		assert.Equal(t, status, New(kind, "x").HTTPStatus(), kind.String())
	}
}

func TestKindOfWrapped(t *testing.T) {
	base := Conflict("already answered")
	wrapped := fmt.Errorf("respond: %w", base)

	assert.Equal(t, KindConflict, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindConflict))
	assert.False(t, Is(nil, KindConflict))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestErrorMessageWithOp(t *testing.T) {
	err := NotFound("contact not found").WithOp("ExpertRespond")
	assert.Equal(t, "ExpertRespond: contact not found", err.Error())

	cause := errors.New("socket closed")
	assert.ErrorIs(t, Internal("database error", cause), cause)
}
