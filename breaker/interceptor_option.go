package breaker

// InterceptorOption 拦截器配置选项函数
type InterceptorOption func(*interceptorOptions)

// interceptorOptions 拦截器选项（内部使用，小写）
type interceptorOptions struct {
	keyFunc KeyFunc
}

// applyInterceptorOptions 应用选项并返回最终的 KeyFunc（内部使用）
// 默认使用服务级别键
func applyInterceptorOptions(opts ...InterceptorOption) KeyFunc {
	opt := interceptorOptions{keyFunc: ServiceLevelKey()}
	for _, o := range opts {
		o(&opt)
	}
	return opt.keyFunc
}

// WithKeyFunc 设置自定义的熔断键提取函数
func WithKeyFunc(keyFunc KeyFunc) InterceptorOption {
	return func(o *interceptorOptions) {
		if keyFunc != nil {
			o.keyFunc = keyFunc
		}
	}
}

// WithServiceLevelKey 按服务（连接目标）熔断
func WithServiceLevelKey() InterceptorOption {
	return WithKeyFunc(ServiceLevelKey())
}

// WithMethodLevelKey 按方法熔断
func WithMethodLevelKey() InterceptorOption {
	return WithKeyFunc(MethodLevelKey())
}

// WithCompositeKey 按服务 + 方法的组合键熔断
func WithCompositeKey() InterceptorOption {
	return WithKeyFunc(CompositeKey(ServiceLevelKey(), MethodLevelKey()))
}
