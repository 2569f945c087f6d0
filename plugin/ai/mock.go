package ai

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockCompletionService is a testify mock of CompletionService for use in other packages' tests.
type MockCompletionService struct {
	mock.Mock
}

func (m *MockCompletionService) Complete(ctx context.Context, req CompletionRequest) string {
	args := m.Called(ctx, req)
	return args.String(0)
}
