package chat

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError(t *testing.T) {
	cause := errors.New("connection refused")

	err := ErrOperationFailed(cause)
	assert.Equal(t, KindOperationFailed, err.Kind)
	assert.Equal(t, "operation failed: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)

	assert.Equal(t, "channel not found", ErrNotFound("channel").Error())
	assert.Equal(t, KindUnauthorized, ErrUnauthorized().Kind)
	assert.Equal(t, KindValidation, ErrValidation("bad").Kind)
	assert.Equal(t, KindConflict, ErrConflict("dup").Kind)
	assert.Equal(t, KindIntegrity, ErrIntegrity("hash mismatch").Kind)
}

func TestAsError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		kind    Kind
		message string
	}{
		{"chat error", ErrNotFound("message"), KindNotFound, "message not found"},
		{"wrapped chat error", fmt.Errorf("handler: %w", ErrConflict("busy")), KindConflict, "busy"},
		{"store error", errors.New("pq: relation does not exist"), KindOperationFailed, "operation failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := AsError(tt.err)
			assert.Equal(t, tt.kind, e.Kind)
			assert.Equal(t, tt.message, e.Message)
		})
	}

	assert.Nil(t, AsError(nil))
}
