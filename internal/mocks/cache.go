package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/segyhp/pawn-engine/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockLoanLocker struct {
	mock.Mock
}

func (m *MockLoanLocker) Acquire(ctx context.Context, loanID uuid.UUID) (func(), error) {
	args := m.Called(ctx, loanID)
	if args.Error(1) != nil {
		return nil, args.Error(1)
	}
	if release, ok := args.Get(0).(func()); ok {
		return release, nil
	}
	return func() {}, nil
}

type MockLoanCache struct {
	mock.Mock
}

func (m *MockLoanCache) Get(ctx context.Context, loanID uuid.UUID) (*domain.Loan, bool) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).(*domain.Loan), args.Bool(1)
}

func (m *MockLoanCache) Set(ctx context.Context, loan *domain.Loan) {
	m.Called(ctx, loan)
}

func (m *MockLoanCache) Invalidate(ctx context.Context, loanID uuid.UUID) {
	m.Called(ctx, loanID)
}

func (m *MockLoanCache) MarkDeleted(ctx context.Context, loanID uuid.UUID, version int) {
	m.Called(ctx, loanID, version)
}
