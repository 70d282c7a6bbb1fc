package breaker

import (
	"time"

	"github.com/google/uuid"

	"github.com/ceyewan/fuse/clog"
)

// ========================================
// 事件定义 (Events)
// ========================================

// EventType 熔断器事件类型
type EventType string

const (
	// EventCircuitOpened 熔断器打开（达到失败阈值、半开探测失败或手动强制打开）
	EventCircuitOpened EventType = "CIRCUIT_OPENED"
	// EventCircuitClosed 熔断器闭合（探测成功或手动重置）
	EventCircuitClosed EventType = "CIRCUIT_CLOSED"
	// EventCircuitHalfOpen 冷却期满，进入半开探测
	EventCircuitHalfOpen EventType = "CIRCUIT_HALF_OPEN"
	// EventHalfOpenAttempt 半开探测进度（每次探测成功发出一次）
	EventHalfOpenAttempt EventType = "HALF_OPEN_ATTEMPT"
	// EventSuccessRecorded 记录了一次成功
	EventSuccessRecorded EventType = "SUCCESS_RECORDED"
	// EventFailureRecorded 记录了一次失败（metadata 携带当前计数和阈值）
	EventFailureRecorded EventType = "FAILURE_RECORDED"
	// EventTimeoutOccurred 发生超时（随后总会跟一次 FAILURE_RECORDED）
	EventTimeoutOccurred EventType = "TIMEOUT_OCCURRED"
)

// Event 熔断器事件
// 在引发状态变化的调用方线程上同步分发，监听器不应做耗时操作
type Event struct {
	Type      EventType      `json:"type"`
	Breaker   string         `json:"breaker"`
	State     State          `json:"state"`
	Timestamp time.Time      `json:"timestamp"`
	Message   string         `json:"message,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Listener 事件监听器
// 监听器内的 panic 会被逐个捕获并记录日志，不会中断状态机，
// 也不会影响其他监听器的执行
type Listener func(Event)

// OnEvent 注册一个事件监听器，返回对应的退订函数
// 每次注册生成独立的订阅 ID，同一个回调注册两次会得到两个独立订阅，
// 退订只移除自己那一个。
func (cb *CircuitBreaker) OnEvent(fn Listener) func() {
	id := uuid.New().String()

	cb.listenersMu.Lock()
	cb.listeners[id] = fn
	cb.listenersMu.Unlock()

	return func() {
		cb.listenersMu.Lock()
		delete(cb.listeners, id)
		cb.listenersMu.Unlock()
	}
}

// emit 同步分发事件到所有监听器（内部使用）
// 必须在不持有状态机互斥锁时调用，否则监听器回调回状态机会死锁
func (cb *CircuitBreaker) emit(events ...Event) {
	if len(events) == 0 {
		return
	}

	cb.listenersMu.RLock()
	listeners := make([]Listener, 0, len(cb.listeners))
	for _, fn := range cb.listeners {
		listeners = append(listeners, fn)
	}
	cb.listenersMu.RUnlock()

	for _, ev := range events {
		for _, fn := range listeners {
			cb.invoke(fn, ev)
		}
	}
}

// invoke 调用单个监听器并隔离其 panic（内部使用）
func (cb *CircuitBreaker) invoke(fn Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			cb.logger.Error("event listener panicked",
				clog.String("event", string(ev.Type)),
				clog.Any("panic", r))
		}
	}()
	fn(ev)
}
