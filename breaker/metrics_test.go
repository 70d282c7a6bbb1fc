package breaker

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/fuse/metrics"
)

// ============================================================
// 测试用 Meter：按指标名累加数值，标签忽略
// ============================================================

type stubMeter struct {
	mu     sync.Mutex
	values map[string]float64
}

func newStubMeter() *stubMeter {
	return &stubMeter{values: make(map[string]float64)}
}

func (m *stubMeter) value(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[name]
}

func (m *stubMeter) add(name string, val float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[name] += val
}

func (m *stubMeter) Counter(name, desc string, opts ...metrics.MetricOption) (metrics.Counter, error) {
	return stubCounter{meter: m, name: name}, nil
}

func (m *stubMeter) Gauge(name, desc string, opts ...metrics.MetricOption) (metrics.Gauge, error) {
	return stubGauge{meter: m, name: name}, nil
}

func (m *stubMeter) Histogram(name, desc string, opts ...metrics.MetricOption) (metrics.Histogram, error) {
	return stubHistogram{meter: m, name: name}, nil
}

func (m *stubMeter) Shutdown(ctx context.Context) error { return nil }

type stubCounter struct {
	meter *stubMeter
	name  string
}

func (c stubCounter) Inc(ctx context.Context, labels ...metrics.Label) { c.meter.add(c.name, 1) }
func (c stubCounter) Add(ctx context.Context, val float64, labels ...metrics.Label) {
	c.meter.add(c.name, val)
}

type stubGauge struct {
	meter *stubMeter
	name  string
}

func (g stubGauge) Set(ctx context.Context, val float64, labels ...metrics.Label) {
	g.meter.mu.Lock()
	defer g.meter.mu.Unlock()
	g.meter.values[g.name] = val
}

func (g stubGauge) Inc(ctx context.Context, labels ...metrics.Label) { g.meter.add(g.name, 1) }
func (g stubGauge) Dec(ctx context.Context, labels ...metrics.Label) { g.meter.add(g.name, -1) }

type stubHistogram struct {
	meter *stubMeter
	name  string
}

func (h stubHistogram) Record(ctx context.Context, val float64, labels ...metrics.Label) {
	h.meter.add(h.name, val)
}

// ============================================================
// OPEN 熔断器数量 gauge
// ============================================================

func TestOpenBreakersGauge(t *testing.T) {
	meter := newStubMeter()
	cb, err := New("gauge-breaker", fastConfig(), WithMeter(meter))
	require.NoError(t, err)

	t.Run("打开时 gauge 计 1", func(t *testing.T) {
		cb.ForceOpen("manual")
		assert.Equal(t, float64(1), meter.value(MetricOpenBreakers))
		assert.Equal(t, float64(1), meter.value(MetricStateChanges))
	})

	t.Run("已打开时再次 ForceOpen 不重复累加", func(t *testing.T) {
		cb.ForceOpen("manual again")
		require.Equal(t, StateOpen, cb.State())

		// OPEN→OPEN 不是状态变化，每个名字最多贡献 1
		assert.Equal(t, float64(1), meter.value(MetricOpenBreakers))
		assert.Equal(t, float64(1), meter.value(MetricStateChanges))
	})

	t.Run("Reset 后扣回到 0", func(t *testing.T) {
		cb.Reset()
		assert.Equal(t, float64(0), meter.value(MetricOpenBreakers))
		assert.Equal(t, float64(2), meter.value(MetricStateChanges))
	})

	t.Run("完整恢复周期后归零", func(t *testing.T) {
		tripBreaker(t, cb)
		assert.Equal(t, float64(1), meter.value(MetricOpenBreakers))

		time.Sleep(60 * time.Millisecond)
		require.True(t, cb.CanExecute()) // OPEN → HALF_OPEN，离开 OPEN 即扣回
		assert.Equal(t, float64(0), meter.value(MetricOpenBreakers))

		cb.RecordSuccess()
		cb.RecordSuccess()
		require.Equal(t, StateClosed, cb.State())
		assert.Equal(t, float64(0), meter.value(MetricOpenBreakers))
	})
}

// ============================================================
// 拒绝计数：HTTP 与 gRPC 口径一致
// ============================================================

func TestGinMiddlewareRejectMetric(t *testing.T) {
	meter := newStubMeter()
	reg := NewRegistry(WithMeter(meter))
	r := newTestRouter(t, reg, fastConfig(), nil)

	for i := 0; i < 3; i++ {
		doRequest(r, "/fail")
	}

	w := doRequest(r, "/fail")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, float64(1), meter.value(MetricRejectsTotal))

	doRequest(r, "/fail")
	assert.Equal(t, float64(2), meter.value(MetricRejectsTotal))
}
