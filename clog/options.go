package clog

// Option 日志初始化选项函数
type Option func(*options)

// options 日志初始化选项配置（内部使用，小写）
type options struct {
	namespace []string
}

// applyOptions 应用选项（内部使用）
func applyOptions(opts ...Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithNamespace 设置初始命名空间
//
// 示例：
//
//	logger, _ := clog.New(cfg, clog.WithNamespace("my-service", "api"))
//	// 命名空间为 "my-service.api"
func WithNamespace(parts ...string) Option {
	return func(o *options) {
		o.namespace = append(o.namespace, parts...)
	}
}
