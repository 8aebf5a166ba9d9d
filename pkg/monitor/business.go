package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics 定义业务监控指标
type BusinessMetrics struct {
	DepositAttemptsTotal     *prometheus.CounterVec
	LifecycleTransitions     *prometheus.CounterVec
	ReconciliationGapTotal   prometheus.Counter
	BalanceRefreshErrors     *prometheus.CounterVec
	FeeFallbackTotal         prometheus.Counter
	SessionChangesTotal      prometheus.Counter
	DepositAmountSatsTotal   *prometheus.CounterVec
	StatusLookupDuration     *prometheus.HistogramVec
	OutboxRelayFailuresTotal prometheus.Counter
}

// Business 未 Init 时为 nil, 下面的 Record* 函数都做了判空
var Business *BusinessMetrics

// InitBusinessMetrics 初始化业务指标
func InitBusinessMetrics() {
	Business = &BusinessMetrics{
		DepositAttemptsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "deposit_attempts_total",
			Help: "Deposit confirmation attempts by wallet provider and final result",
		}, []string{"provider", "result"}),
		LifecycleTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "deposit_lifecycle_transitions_total",
			Help: "State transitions of the deposit lifecycle coordinator",
		}, []string{"from", "to"}),
		ReconciliationGapTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "deposit_reconciliation_gap_total",
			Help: "Broadcast transactions whose deposit record could not be updated",
		}),
		BalanceRefreshErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "deposit_balance_refresh_errors_total",
			Help: "Balance refresh failures per branch",
		}, []string{"branch"}),
		FeeFallbackTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "deposit_fee_fallback_total",
			Help: "Times the default fee table was used because estimates could not be fetched",
		}),
		SessionChangesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "deposit_session_changes_total",
			Help: "Wallet session changes observed by the tracker",
		}),
		DepositAmountSatsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "deposit_amount_sats_total",
			Help: "Total satoshis broadcast for deposits",
		}, []string{"provider"}),
		StatusLookupDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "deposit_status_lookup_duration_seconds",
			Help:    "Duration of deposit status lookups",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind", "result"}),
		OutboxRelayFailuresTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "deposit_outbox_relay_failures_total",
			Help: "Outbox messages that failed to publish",
		}),
	}
}

func RecordAttempt(provider, result string) {
	if Business != nil {
		Business.DepositAttemptsTotal.WithLabelValues(provider, result).Inc()
	}
}

func RecordTransition(from, to string) {
	if Business != nil {
		Business.LifecycleTransitions.WithLabelValues(from, to).Inc()
	}
}

func RecordReconciliationGap() {
	if Business != nil {
		Business.ReconciliationGapTotal.Inc()
	}
}

func RecordBalanceError(branch string) {
	if Business != nil {
		Business.BalanceRefreshErrors.WithLabelValues(branch).Inc()
	}
}

func RecordFeeFallback() {
	if Business != nil {
		Business.FeeFallbackTotal.Inc()
	}
}

func RecordSessionChange() {
	if Business != nil {
		Business.SessionChangesTotal.Inc()
	}
}

func RecordDepositAmount(provider string, sats int64) {
	if Business != nil {
		Business.DepositAmountSatsTotal.WithLabelValues(provider).Add(float64(sats))
	}
}

func ObserveStatusLookup(kind, result string, seconds float64) {
	if Business != nil {
		Business.StatusLookupDuration.WithLabelValues(kind, result).Observe(seconds)
	}
}

func RecordRelayFailure() {
	if Business != nil {
		Business.OutboxRelayFailuresTotal.Inc()
	}
}
