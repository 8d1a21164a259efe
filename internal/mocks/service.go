package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/segyhp/pawn-engine/internal/domain"
	"github.com/segyhp/pawn-engine/internal/lifecycle"
	"github.com/stretchr/testify/mock"
)

type MockPawnService struct {
	mock.Mock
}

func (m *MockPawnService) result(args mock.Arguments) (*lifecycle.Result, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lifecycle.Result), args.Error(1)
}

func (m *MockPawnService) CreateLoan(ctx context.Context, request *domain.CreateLoanRequest, operator domain.Operator) (*domain.Loan, error) {
	args := m.Called(ctx, request, operator)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockPawnService) GetLoan(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockPawnService) ListLoans(ctx context.Context, filter domain.LoanFilter) ([]*domain.Loan, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Loan), args.Error(1)
}

func (m *MockPawnService) MakePayment(ctx context.Context, loanID uuid.UUID, request domain.PaymentRequest, operator domain.Operator) (*lifecycle.Result, error) {
	return m.result(m.Called(ctx, loanID, request, operator))
}

func (m *MockPawnService) AddMoney(ctx context.Context, loanID uuid.UUID, request domain.AddMoneyRequest, operator domain.Operator) (*lifecycle.Result, error) {
	return m.result(m.Called(ctx, loanID, request, operator))
}

func (m *MockPawnService) ApplyDiscount(ctx context.Context, loanID uuid.UUID, request domain.DiscountRequest, operator domain.Operator) (*lifecycle.Result, error) {
	return m.result(m.Called(ctx, loanID, request, operator))
}

func (m *MockPawnService) Extend(ctx context.Context, loanID uuid.UUID, request domain.ExtendRequest, operator domain.Operator) (*lifecycle.Result, error) {
	return m.result(m.Called(ctx, loanID, request, operator))
}

func (m *MockPawnService) EditLoan(ctx context.Context, loanID uuid.UUID, request domain.EditLoanRequest, operator domain.Operator) (*lifecycle.Result, error) {
	return m.result(m.Called(ctx, loanID, request, operator))
}

func (m *MockPawnService) Redeem(ctx context.Context, loanID uuid.UUID, request domain.RedeemRequest, operator domain.Operator) (*lifecycle.Result, error) {
	return m.result(m.Called(ctx, loanID, request, operator))
}

func (m *MockPawnService) Forfeit(ctx context.Context, loanID uuid.UUID, operator domain.Operator) (*lifecycle.Result, error) {
	return m.result(m.Called(ctx, loanID, operator))
}

func (m *MockPawnService) Reactivate(ctx context.Context, loanID uuid.UUID, operator domain.Operator) (*lifecycle.Result, error) {
	return m.result(m.Called(ctx, loanID, operator))
}

func (m *MockPawnService) Void(ctx context.Context, loanID uuid.UUID, request domain.VoidRequest, operator domain.Operator) (*lifecycle.Result, error) {
	return m.result(m.Called(ctx, loanID, request, operator))
}

func (m *MockPawnService) GetPaymentHistory(ctx context.Context, loanID uuid.UUID) ([]*domain.PaymentRecord, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.PaymentRecord), args.Error(1)
}

func (m *MockPawnService) GetAuditTrail(ctx context.Context, loanID uuid.UUID) ([]*domain.AuditEntry, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.AuditEntry), args.Error(1)
}

func (m *MockPawnService) GetForfeitureEligibility(ctx context.Context, loanID uuid.UUID) (*domain.EligibilityResponse, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EligibilityResponse), args.Error(1)
}

func (m *MockPawnService) GetCollections(ctx context.Context, from, to time.Time) (*domain.CollectionsResponse, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CollectionsResponse), args.Error(1)
}
