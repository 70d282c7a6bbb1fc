package clog

import "fmt"

// New 创建一个新的 Logger 实例
//
// config - 日志配置，nil 时使用开发默认配置
// opts   - 函数式选项，用于命名空间等配置
func New(config *Config, opts ...Option) (Logger, error) {
	if config == nil {
		config = NewDevDefaultConfig("fuse")
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	options := applyOptions(opts...)
	return newLogger(config, options)
}
