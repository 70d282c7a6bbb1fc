package breaker

import (
	"sync"

	"github.com/ceyewan/fuse/clog"
	"github.com/ceyewan/fuse/metrics"
)

// Registry 按名字管理多个相互独立的熔断器
//
// 条目在第一次 Get 时惰性创建，进程存活期间一直保留，直到被显式
// Remove 或 Clear。聚合查询（GetAllStates / GetAllStats / CountByState）
// 只读取快照，不影响任何熔断器的行为。
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker

	logger clog.Logger
	meter  metrics.Meter
}

// NewRegistry 创建熔断器注册表
// 注入的 Logger 和 Meter 会传递给它创建的每个熔断器。
func NewRegistry(opts ...Option) *Registry {
	opt := options{}
	for _, o := range opts {
		o(&opt)
	}

	logger := opt.logger
	if logger == nil {
		logger = clog.Discard()
	}

	return &Registry{
		breakers: make(map[string]*CircuitBreaker),
		logger:   logger,
		meter:    opt.meter,
	}
}

// Get 返回 name 对应的熔断器，不存在时用 cfg 创建（cfg 为 nil 用 default 预设）
//
// 首次创建者的配置生效：同名的后续调用无论传什么配置都返回同一个实例。
func (r *Registry) Get(name string, cfg *Config) *CircuitBreaker {
	r.mu.RLock()
	cb, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// 双重检查：并发的 Get 可能已经创建
	if cb, ok = r.breakers[name]; ok {
		return cb
	}

	cb, err := New(name, cfg, WithLogger(r.logger), WithMeter(r.meter))
	if err != nil {
		// 配置非法时退回 default 预设，保证 Get 总能返回可用的熔断器
		r.logger.Warn("invalid breaker config, falling back to default preset",
			clog.String("name", name),
			clog.Error(err))
		cb, _ = New(name, DefaultConfig(), WithLogger(r.logger), WithMeter(r.meter))
	}

	r.breakers[name] = cb
	return cb
}

// Lookup 返回已存在的熔断器，不会创建
func (r *Registry) Lookup(name string) (*CircuitBreaker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cb, ok := r.breakers[name]
	return cb, ok
}

// GetAllStates 返回所有熔断器的当前状态
func (r *Registry) GetAllStates() map[string]State {
	r.mu.RLock()
	defer r.mu.RUnlock()

	states := make(map[string]State, len(r.breakers))
	for name, cb := range r.breakers {
		states[name] = cb.State()
	}
	return states
}

// GetAllStats 返回所有熔断器的统计快照
func (r *Registry) GetAllStats() map[string]Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make(map[string]Stats, len(r.breakers))
	for name, cb := range r.breakers {
		stats[name] = cb.Stats()
	}
	return stats
}

// CountByState 按状态统计熔断器数量
// 返回的映射总是包含全部三个状态键，即使计数为零。
func (r *Registry) CountByState() map[State]int {
	counts := map[State]int{
		StateClosed:   0,
		StateOpen:     0,
		StateHalfOpen: 0,
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, cb := range r.breakers {
		counts[cb.State()]++
	}
	return counts
}

// Names 返回所有熔断器的名字（无顺序保证）
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}
	return names
}

// Len 返回当前管理的熔断器数量
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.breakers)
}

// ResetAll 重置所有熔断器为 CLOSED
func (r *Registry) ResetAll() {
	r.mu.RLock()
	breakers := make([]*CircuitBreaker, 0, len(r.breakers))
	for _, cb := range r.breakers {
		breakers = append(breakers, cb)
	}
	r.mu.RUnlock()

	for _, cb := range breakers {
		cb.Reset()
	}
	r.logger.Info("all circuit breakers reset", clog.Int("count", len(breakers)))
}

// Remove 移除指定熔断器，返回是否确实存在
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.breakers[name]; !ok {
		return false
	}
	delete(r.breakers, name)
	return true
}

// Clear 移除所有熔断器
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.breakers = make(map[string]*CircuitBreaker)
}

// ========================================
// 进程级单例 (Process-wide Singleton)
// ========================================

var (
	defaultMu       sync.Mutex
	defaultRegistry *Registry
)

// Default 返回进程级共享的注册表单例，首次调用时创建
// 单例与进程同生命周期，没有显式的销毁流程。
func Default() *Registry {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultRegistry == nil {
		defaultRegistry = NewRegistry()
	}
	return defaultRegistry
}

// SetDefault 替换进程级单例，用于注入带 Logger/Meter 的注册表
func SetDefault(r *Registry) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultRegistry = r
}

// ResetDefault 丢弃进程级单例，用于测试隔离
func ResetDefault() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultRegistry = nil
}
