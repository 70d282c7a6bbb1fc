package breaker

import (
	"sync"
	"time"

	"github.com/ceyewan/fuse/clog"
)

// CircuitBreaker 单个被保护资源的熔断状态机
//
// 所有计数与状态变更都在同一把互斥锁下进行，可被多个并发调用方安全使用。
// 状态只在 CanExecute / RecordX / Reset / ForceOpen 被调用时推进，没有任何
// 后台定时器：冷却到期靠下一次 CanExecute 惰性触发。
type CircuitBreaker struct {
	name   string
	cfg    *Config
	logger clog.Logger
	rec    *recorder

	mu                   sync.Mutex
	state                State
	failureCount         int
	successCount         int
	consecutiveSuccesses int

	// 单调计数器，只增不减，Reset 也不清零
	totalFailures  uint64
	totalSuccesses uint64
	openCount      uint64

	lastFailureTime *time.Time
	lastSuccessTime *time.Time

	// openedAt 在 OPEN 期间设置，并保留到闭合时用于计算恢复耗时；
	// cooldownUntil 只在 OPEN 期间有值
	openedAt      *time.Time
	cooldownUntil *time.Time

	// recoveryTimes 每次从打开到重新闭合的墙钟耗时，只用于求平均值
	recoveryTimes []time.Duration

	listenersMu sync.RWMutex
	listeners   map[string]Listener
}

// newCircuitBreaker 创建熔断器实例（内部函数，参数已校验）
func newCircuitBreaker(name string, cfg *Config, logger clog.Logger, rec *recorder) *CircuitBreaker {
	return &CircuitBreaker{
		name:      name,
		cfg:       cfg,
		logger:    logger,
		rec:       rec,
		state:     StateClosed,
		listeners: make(map[string]Listener),
	}
}

// Name 返回熔断器名字
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Config 返回配置的副本
func (cb *CircuitBreaker) Config() *Config {
	return cb.cfg.Clone()
}

// CanExecute 判断当前是否允许发起调用
//
// 非幂等：OPEN 状态下冷却期满时，本方法会把熔断器切换到 HALF_OPEN 并返回
// true。CLOSED 和 HALF_OPEN 恒返回 true，未到冷却期的 OPEN 返回 false。
func (cb *CircuitBreaker) CanExecute() bool {
	now := time.Now()

	cb.mu.Lock()
	switch cb.state {
	case StateOpen:
		if cb.cooldownUntil != nil && !now.Before(*cb.cooldownUntil) {
			ev := cb.toHalfOpenLocked(now)
			cb.mu.Unlock()
			cb.emit(ev)
			return true
		}
		cb.mu.Unlock()
		return false
	default:
		// CLOSED 和 HALF_OPEN 总是放行
		cb.mu.Unlock()
		return true
	}
}

// RecordSuccess 记录一次成功
//
// HALF_OPEN 下累积连续成功数，先发出探测进度事件，达到阈值后闭合；
// CLOSED 且开启 AutoResetOnSuccess 时清零失败计数。
// 最后总会发出一条通用的 SUCCESS_RECORDED 事件（半开成功时共发两条）。
func (cb *CircuitBreaker) RecordSuccess() {
	now := time.Now()

	cb.mu.Lock()
	cb.successCount++
	cb.totalSuccesses++
	cb.lastSuccessTime = &now

	var events []Event
	switch cb.state {
	case StateHalfOpen:
		cb.consecutiveSuccesses++
		events = append(events, cb.eventLocked(EventHalfOpenAttempt, now, "", map[string]any{
			"consecutiveSuccesses": cb.consecutiveSuccesses,
			"halfOpenAttempts":     cb.cfg.HalfOpenAttempts,
		}))
		if cb.consecutiveSuccesses >= cb.cfg.HalfOpenAttempts {
			events = append(events, cb.closeLocked(now))
		}
	case StateClosed:
		if cb.cfg.AutoResetOnSuccess {
			cb.failureCount = 0
		}
	}
	events = append(events, cb.eventLocked(EventSuccessRecorded, now, "", nil))
	cb.mu.Unlock()

	cb.rec.success()
	cb.emit(events...)
}

// RecordFailure 记录一次失败，reason 会随事件携带
//
// CLOSED 下达到失败阈值触发打开；HALF_OPEN 下任意一次失败无条件回到 OPEN。
func (cb *CircuitBreaker) RecordFailure(reason string) {
	now := time.Now()

	cb.mu.Lock()
	cb.failureCount++
	cb.totalFailures++
	cb.lastFailureTime = &now

	events := []Event{cb.eventLocked(EventFailureRecorded, now, reason, map[string]any{
		"failureCount":     cb.failureCount,
		"failureThreshold": cb.cfg.FailureThreshold,
	})}

	switch cb.state {
	case StateClosed:
		if cb.failureCount >= cb.cfg.FailureThreshold {
			events = append(events, cb.tripLocked(now, "failure threshold reached"))
		}
	case StateHalfOpen:
		events = append(events, cb.tripLocked(now, "failure during half-open probe"))
	}
	cb.mu.Unlock()

	cb.rec.failure()
	cb.emit(events...)
}

// RecordTimeout 记录一次超时
// 先发出 TIMEOUT_OCCURRED 事件，然后委托给 RecordFailure：超时总是同时
// 计为一次失败。
func (cb *CircuitBreaker) RecordTimeout() {
	now := time.Now()

	cb.mu.Lock()
	ev := cb.eventLocked(EventTimeoutOccurred, now, "", map[string]any{
		"timeout": cb.cfg.Timeout.String(),
	})
	cb.mu.Unlock()

	cb.rec.timeout()
	cb.emit(ev)

	cb.RecordFailure("Timeout exceeded")
}

// Reset 手动把熔断器重置为 CLOSED
// 清零可变计数器并清空时间戳；只有状态确实发生变化时才发出 CIRCUIT_CLOSED。
// 单调计数器和恢复耗时序列不受影响。
func (cb *CircuitBreaker) Reset() {
	now := time.Now()

	cb.mu.Lock()
	changed := cb.state != StateClosed
	if changed {
		cb.rec.stateChange(cb.state, StateClosed)
	}

	cb.state = StateClosed
	cb.failureCount = 0
	cb.successCount = 0
	cb.consecutiveSuccesses = 0
	cb.lastFailureTime = nil
	cb.lastSuccessTime = nil
	cb.openedAt = nil
	cb.cooldownUntil = nil

	var events []Event
	if changed {
		events = append(events, cb.eventLocked(EventCircuitClosed, now, "manual reset", nil))
	}
	cb.mu.Unlock()

	cb.logger.Info("circuit breaker reset", clog.Bool("state_changed", changed))
	cb.emit(events...)
}

// ForceOpen 手动强制打开熔断器，message 为事件携带的原因
// 与达到失败阈值的打开具有相同的副作用（openCount 增加、冷却期重新计时）。
func (cb *CircuitBreaker) ForceOpen(reason string) {
	now := time.Now()

	cb.mu.Lock()
	ev := cb.tripLocked(now, reason)
	cb.mu.Unlock()

	cb.logger.Warn("circuit breaker forced open", clog.String("reason", reason))
	cb.emit(ev)
}

// State 返回当前状态（只读快照）
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// ========================================
// 状态转换（内部，调用方必须持有 cb.mu）
// ========================================

// tripLocked 切换到 OPEN 并返回对应事件
func (cb *CircuitBreaker) tripLocked(now time.Time, message string) Event {
	cb.rec.stateChange(cb.state, StateOpen)
	cb.state = StateOpen
	cb.openCount++
	cb.consecutiveSuccesses = 0

	openedAt := now
	until := now.Add(cb.cfg.Cooldown)
	cb.openedAt = &openedAt
	cb.cooldownUntil = &until

	cb.logger.Warn("circuit breaker opened",
		clog.String("reason", message),
		clog.Int("failure_count", cb.failureCount),
		clog.Time("cooldown_until", until))

	return cb.eventLocked(EventCircuitOpened, now, message, map[string]any{
		"openCount":     cb.openCount,
		"cooldownUntil": until.Format(time.RFC3339Nano),
	})
}

// toHalfOpenLocked 冷却期满后切换到 HALF_OPEN 并返回对应事件
// openedAt 保留到闭合时用于计算恢复耗时
func (cb *CircuitBreaker) toHalfOpenLocked(now time.Time) Event {
	cb.state = StateHalfOpen
	cb.consecutiveSuccesses = 0
	cb.cooldownUntil = nil

	cb.logger.Info("circuit breaker half-open, probing for recovery")
	cb.rec.stateChange(StateOpen, StateHalfOpen)

	return cb.eventLocked(EventCircuitHalfOpen, now, "cooldown elapsed", nil)
}

// closeLocked 探测成功后闭合并返回对应事件
func (cb *CircuitBreaker) closeLocked(now time.Time) Event {
	var metadata map[string]any
	if cb.openedAt != nil {
		recovery := now.Sub(*cb.openedAt)
		cb.recoveryTimes = append(cb.recoveryTimes, recovery)
		metadata = map[string]any{"recoveryTimeMs": float64(recovery) / float64(time.Millisecond)}
	}

	cb.state = StateClosed
	cb.failureCount = 0
	cb.consecutiveSuccesses = 0
	cb.openedAt = nil
	cb.cooldownUntil = nil

	cb.logger.Info("circuit breaker closed after successful probing")
	cb.rec.stateChange(StateHalfOpen, StateClosed)

	return cb.eventLocked(EventCircuitClosed, now, "recovery confirmed", metadata)
}

// eventLocked 构造一个携带当前状态的事件
func (cb *CircuitBreaker) eventLocked(typ EventType, now time.Time, message string, metadata map[string]any) Event {
	return Event{
		Type:      typ,
		Breaker:   cb.name,
		State:     cb.state,
		Timestamp: now,
		Message:   message,
		Metadata:  metadata,
	}
}
