package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAIError(t *testing.T) {
	cause := fmt.Errorf("database is locked")
	err := PersistenceFailed("failed to save reply", cause).WithContext("question_id", int32(7))

	assert.Equal(t, "[PERSISTENCE_FAILED] failed to save reply: database is locked", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, int32(7), err.Context["question_id"])
}

func TestIsCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{name: "direct", err: NotFound("comment", 3), code: ErrCodeNotFound, want: true},
		{name: "wrapped", err: fmt.Errorf("job: %w", GuardRejected("thread closed")), code: ErrCodeGuardRejected, want: true},
		{name: "other code", err: CompletionFailed("fallback"), code: ErrCodeNotFound, want: false},
		{name: "plain error", err: fmt.Errorf("boom"), code: ErrCodeNotFound, want: false},
		{name: "nil", err: nil, code: ErrCodeNotFound, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCode(tt.err, tt.code))
		})
	}

	assert.Equal(t, ErrCodeInvalidArgument, GetCodeFromError(fmt.Errorf("x"), ErrCodeInvalidArgument))
	assert.Equal(t, ErrCodeNotFound, GetCodeFromError(NotFound("question", 1), ErrCodeInvalidArgument))
}
