package breaker

import (
	"context"
	"time"

	"github.com/ceyewan/fuse/metrics"
)

// Metrics 指标常量定义
const (
	// MetricSuccessTotal 成功记录数 (Counter)
	MetricSuccessTotal = "breaker_success_total"

	// MetricFailuresTotal 失败记录数 (Counter)
	MetricFailuresTotal = "breaker_failures_total"

	// MetricTimeoutsTotal 超时记录数 (Counter)
	MetricTimeoutsTotal = "breaker_timeouts_total"

	// MetricRejectsTotal 被熔断拒绝的调用数 (Counter)
	MetricRejectsTotal = "breaker_rejects_total"

	// MetricStateChanges 状态变更次数 (Counter)
	MetricStateChanges = "breaker_state_changes_total"

	// MetricExecuteDuration 受保护操作耗时 (Histogram)
	MetricExecuteDuration = "breaker_execute_duration_seconds"

	// MetricOpenBreakers 当前处于 OPEN 状态的熔断器数量 (Gauge)
	MetricOpenBreakers = "breaker_open_breakers"

	// LabelName 熔断器名字标签
	LabelName = "name"

	// LabelFromState 源状态标签
	LabelFromState = "from_state"

	// LabelToState 目标状态标签
	LabelToState = "to_state"
)

// recorder 熔断指标记录器（内部使用）
// meter 为 nil 时所有方法都是空操作
type recorder struct {
	name  string
	meter metrics.Meter
}

func newRecorder(name string, meter metrics.Meter) *recorder {
	return &recorder{name: name, meter: meter}
}

func (r *recorder) success() {
	r.inc(MetricSuccessTotal, "Successes recorded by the circuit breaker")
}

func (r *recorder) failure() {
	r.inc(MetricFailuresTotal, "Failures recorded by the circuit breaker")
}

func (r *recorder) timeout() {
	r.inc(MetricTimeoutsTotal, "Timeouts recorded by the circuit breaker")
}

func (r *recorder) reject() {
	r.inc(MetricRejectsTotal, "Calls rejected while the circuit was open")
}

func (r *recorder) stateChange(from, to State) {
	if r == nil || r.meter == nil {
		return
	}
	// ForceOpen 在已打开时会产生 OPEN→OPEN，不算状态变化，
	// 否则 gauge 会被重复 Inc
	if from == to {
		return
	}
	ctx := context.Background()
	if counter, err := r.meter.Counter(MetricStateChanges, "Circuit breaker state changes"); err == nil && counter != nil {
		counter.Inc(ctx,
			metrics.L(LabelName, r.name),
			metrics.L(LabelFromState, from.String()),
			metrics.L(LabelToState, to.String()))
	}

	// 每个名字最多贡献 1，离开 OPEN 时扣回
	if gauge, err := r.meter.Gauge(MetricOpenBreakers, "Circuit breakers currently open"); err == nil && gauge != nil {
		if to == StateOpen {
			gauge.Inc(ctx)
		} else if from == StateOpen {
			gauge.Dec(ctx)
		}
	}
}

func (r *recorder) duration(d time.Duration) {
	if r == nil || r.meter == nil {
		return
	}
	if histogram, err := r.meter.Histogram(MetricExecuteDuration, "Guarded operation duration", metrics.WithUnit("seconds")); err == nil && histogram != nil {
		histogram.Record(context.Background(), d.Seconds(), metrics.L(LabelName, r.name))
	}
}

func (r *recorder) inc(metric, desc string) {
	if r == nil || r.meter == nil {
		return
	}
	if counter, err := r.meter.Counter(metric, desc); err == nil && counter != nil {
		counter.Inc(context.Background(), metrics.L(LabelName, r.name))
	}
}
