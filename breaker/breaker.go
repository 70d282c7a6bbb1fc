// Package breaker 提供了按名字隔离的熔断器组件，用于保护调用方不再反复
// 调用一个已知持续失败的操作。
//
// breaker 是 Fuse 治理层的核心组件，它提供了：
// - 完整的三态状态机（CLOSED / OPEN / HALF_OPEN），计数精确、无后台定时器
// - 冷却到期的惰性探测：状态只在 CanExecute 或 RecordX 被调用时推进
// - Execute 快速失败 + 超时竞争，超时同时计入失败
// - 事件监听（订阅/退订），监听器 panic 不影响状态机本身
// - Registry 按名字惰性管理多个独立熔断器，支持聚合查询
// - 开箱即用的 Gin 中间件和 gRPC 客户端拦截器
//
// ## 基本使用
//
//	reg := breaker.NewRegistry(breaker.WithLogger(logger))
//	brk := reg.Get("user-service", breaker.DefaultConfig())
//
//	result, err := brk.Execute(ctx, func(ctx context.Context) (any, error) {
//		return client.GetUser(ctx, id)
//	})
//	if xerrors.Is(err, breaker.ErrCircuitOpen) {
//		// 熔断中，返回降级响应
//	}
//
// ## 手动管理时机的调用方
//
//	if !brk.CanExecute() {
//		return cached, nil
//	}
//	if err := doCall(); err != nil {
//		brk.RecordFailure(err.Error())
//	} else {
//		brk.RecordSuccess()
//	}
//
// 注意：CanExecute 不是纯查询。OPEN 状态下冷却期满时，它会作为副作用把
// 熔断器切换到 HALF_OPEN 并返回 true，调用方必须把它当作非幂等操作。
package breaker

import (
	"github.com/ceyewan/fuse/clog"
)

// ========================================
// 状态定义 (States)
// ========================================

// State 熔断器状态
// 字符串值同时也是对外快照的线上契约，不可更改
type State string

const (
	// StateClosed 闭合状态（正常放行）
	StateClosed State = "CLOSED"
	// StateOpen 打开状态（快速失败）
	StateOpen State = "OPEN"
	// StateHalfOpen 半开状态（限量探测恢复）
	StateHalfOpen State = "HALF_OPEN"
)

// String 返回状态的字符串表示
func (s State) String() string {
	return string(s)
}

// ========================================
// 工厂函数 (Factory Functions)
// ========================================

// New 创建一个独立的熔断器实例
// 通常应通过 Registry.Get 获取熔断器；直接使用 New 适合只保护单一资源、
// 不需要聚合视图的场景。
//
// 参数:
//   - name: 熔断器名字（被保护资源的标识），不能为空
//   - cfg: 熔断配置，nil 时使用 default 预设
//   - opts: 可选参数 (Logger, Meter)
func New(name string, cfg *Config, opts ...Option) (*CircuitBreaker, error) {
	if name == "" {
		return nil, ErrNameEmpty
	}

	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// 应用选项
	opt := options{}
	for _, o := range opts {
		o(&opt)
	}

	// 派生 Logger（添加 component 与 name 字段）
	logger := opt.logger
	if logger == nil {
		logger = clog.Discard()
	}
	logger = logger.With(
		clog.String("component", "breaker"),
		clog.String("name", name),
	)

	cb := newCircuitBreaker(name, cfg.Clone(), logger, newRecorder(name, opt.meter))

	logger.Info("circuit breaker created",
		clog.Int("failure_threshold", cfg.FailureThreshold),
		clog.Duration("cooldown", cfg.Cooldown),
		clog.Int("half_open_attempts", cfg.HalfOpenAttempts),
		clog.Duration("timeout", cfg.Timeout),
		clog.Bool("auto_reset_on_success", cfg.AutoResetOnSuccess))

	return cb, nil
}
