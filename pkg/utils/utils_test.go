package utils

import (
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentOf(t *testing.T) {
	tests := []struct {
		name     string
		amount   decimal.Decimal
		rate     decimal.Decimal
		expected decimal.Decimal
	}{
		{
			name:     "standard pawn interest",
			amount:   decimal.NewFromInt(1000),
			rate:     decimal.NewFromInt(10),
			expected: decimal.NewFromInt(100),
		},
		{
			name:     "rounds half up",
			amount:   decimal.RequireFromString("10.05"),
			rate:     decimal.NewFromInt(50),
			expected: decimal.RequireFromString("5.03"), // 5.025
		},
		{
			name:     "rounds down below half",
			amount:   decimal.RequireFromString("333.33"),
			rate:     decimal.RequireFromString("7.5"),
			expected: decimal.RequireFromString("25.00"), // 24.99975
		},
		{
			name:     "zero interest rate",
			amount:   decimal.NewFromInt(5000),
			rate:     decimal.Zero,
			expected: decimal.Zero,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := PercentOf(tt.amount, tt.rate)
			assert.True(t, result.Equal(tt.expected),
				"Expected %v, but got %v", tt.expected, result)
		})
	}
}

func TestCalculateDueDate(t *testing.T) {
	baseDate := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		termDays int
		expected time.Time
	}{
		{"thirty day term", 30, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)},
		{"crosses leap day", 60, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"one day", 1, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CalculateDueDate(baseDate, tt.termDays))
		})
	}
}

func TestIsDateOverdue(t *testing.T) {
	today := time.Date(2024, 5, 10, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		dueDate  time.Time
		expected bool
		days     int
	}{
		{"due yesterday", time.Date(2024, 5, 9, 0, 0, 0, 0, time.UTC), true, 1},
		{"due earlier today", time.Date(2024, 5, 10, 1, 0, 0, 0, time.UTC), false, 0},
		{"due later today", time.Date(2024, 5, 10, 23, 0, 0, 0, time.UTC), false, 0},
		{"due tomorrow", time.Date(2024, 5, 11, 0, 0, 0, 0, time.UTC), false, 0},
		{"due a week ago", time.Date(2024, 5, 3, 12, 0, 0, 0, time.UTC), true, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsDateOverdue(tt.dueDate, today))
			assert.Equal(t, tt.days, DaysOverdue(tt.dueDate, today))
		})
	}
}

func TestDaysOverdue_AcrossDaylightSaving(t *testing.T) {
	newYork, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	tests := []struct {
		name    string
		dueDate time.Time
		today   time.Time
		days    int
	}{
		// 2025-03-09 is 23 hours long in New York
		{"spring forward", time.Date(2025, 3, 9, 0, 0, 0, 0, newYork), time.Date(2025, 3, 10, 12, 0, 0, 0, newYork), 1},
		{"spring forward, early morning", time.Date(2025, 3, 9, 0, 0, 0, 0, newYork), time.Date(2025, 3, 10, 0, 30, 0, 0, newYork), 1},
		// 2025-11-02 is 25 hours long
		{"fall back", time.Date(2025, 11, 1, 0, 0, 0, 0, newYork), time.Date(2025, 11, 3, 0, 0, 0, 0, newYork), 2},
		{"spanning both changes", time.Date(2025, 3, 1, 0, 0, 0, 0, newYork), time.Date(2025, 11, 3, 9, 0, 0, 0, newYork), 247},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, IsDateOverdue(tt.dueDate, tt.today))
			assert.Equal(t, tt.days, DaysOverdue(tt.dueDate, tt.today))
		})
	}
}

func TestNewTransactionNumber(t *testing.T) {
	issued := time.Date(2024, 2, 29, 9, 0, 0, 0, time.UTC)

	first := NewTransactionNumber(issued)
	second := NewTransactionNumber(issued)

	assert.True(t, strings.HasPrefix(first, "PWN-20240229-"))
	assert.Len(t, first, len("PWN-20240229-")+8)
	assert.NotEqual(t, first, second)
}
