package errors

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneKeepsIdentity(t *testing.T) {
	err := Clone(ErrForbidden, "only the mentor may accept")
	assert.Equal(t, "only the mentor may accept", err.Message)
	assert.Equal(t, http.StatusForbidden, err.Status)
	assert.True(t, errors.Is(err, ErrForbidden))
	assert.False(t, errors.Is(err, ErrInvalidTransition))
	assert.Equal(t, "forbidden", ErrForbidden.Message)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	err := FromError(fmt.Errorf("boom: %w", sql.ErrConnDone))
	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.True(t, errors.Is(err, sql.ErrConnDone))

	typed := Wrap(sql.ErrNoRows, ErrNotFound.Code, ErrNotFound.Status, "session not found")
	assert.Same(t, typed, FromError(fmt.Errorf("lookup: %w", typed)))
	assert.True(t, errors.Is(typed, ErrNotFound))
}
