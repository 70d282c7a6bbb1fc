package breaker

import "github.com/ceyewan/fuse/xerrors"

// 错误定义
var (
	// ErrNameEmpty 熔断器名字为空
	ErrNameEmpty = xerrors.New("breaker: name is empty")

	// ErrInvalidConfig 配置无效（阈值或时间参数非正）
	ErrInvalidConfig = xerrors.New("breaker: invalid config")

	// ErrUnknownPreset 预设名不存在
	ErrUnknownPreset = xerrors.New("breaker: unknown preset")

	// ErrCircuitOpen 熔断器处于打开状态，调用被拒绝
	// 完全预期的错误：被保护的操作不会被调用，调用方可稍后重试或降级
	ErrCircuitOpen = xerrors.New("breaker: circuit breaker is open")

	// ErrTimeoutExceeded 被保护的操作超过了配置的超时时间
	// 超时同时会被计为一次失败
	ErrTimeoutExceeded = xerrors.New("breaker: operation timeout exceeded")
)
