package mocks

import (
	"context"

	"github.com/dukex/operion-marketplace/pkg/describe"
	"github.com/dukex/operion-marketplace/pkg/models"
	"github.com/stretchr/testify/mock"
)

// MockDescriber is a mock implementation of services.Describer.
type MockDescriber struct {
	mock.Mock
}

func (m *MockDescriber) Describe(ctx context.Context, workflow *models.Workflow) string {
	args := m.Called(ctx, workflow)

	return args.String(0)
}

// MockGenerator is a mock implementation of describe.Generator.
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, summary describe.Summary) (string, error) {
	args := m.Called(ctx, summary)

	return args.String(0), args.Error(1)
}
