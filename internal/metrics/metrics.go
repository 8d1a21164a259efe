package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	customError "github.com/segyhp/pawn-engine/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pawn_loan_operations_total",
		Help: "Loan lifecycle operations, labeled by outcome code",
	}, []string{"operation", "outcome"})

	OverpaymentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pawn_overpayment_amount_total",
		Help: "Money received beyond the remaining balance, awaiting reconciliation",
	})

	RetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pawn_operation_retries_total",
		Help: "Operations retried after a concurrent modification",
	}, []string{"operation"})

	SweepLoansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pawn_due_sweep_loans_total",
		Help: "Overdue loans seen by the due sweep, labeled by action",
	}, []string{"action"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pawn_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pawn_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})
)

// RecordOperation counts op under "ok" or the error's code
func RecordOperation(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = customError.Code(err)
		if outcome == "" {
			outcome = "INTERNAL"
		}
	}
	OperationsTotal.WithLabelValues(op, outcome).Inc()
}

func RecordOverpayment(amount decimal.Decimal) {
	if amount.IsPositive() {
		OverpaymentTotal.Add(amount.InexactFloat64())
	}
}
