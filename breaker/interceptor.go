package breaker

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// UnaryClientInterceptor 返回 gRPC 一元调用客户端拦截器
// 按 KeyFunc 提取的键在注册表中独立熔断。gRPC 自带 deadline 管理，
// 这里走低层 RecordX 路径而不是 Execute：DeadlineExceeded 记为超时，
// 其他错误记为失败。
//
// 使用示例:
//
//	conn, _ := grpc.NewClient(
//		"localhost:9001",
//		grpc.WithUnaryInterceptor(breaker.UnaryClientInterceptor(reg, cfg)),
//	)
func UnaryClientInterceptor(reg *Registry, cfg *Config, opts ...InterceptorOption) grpc.UnaryClientInterceptor {
	keyFunc := applyInterceptorOptions(opts...)

	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, callOpts ...grpc.CallOption) error {
		cb := reg.Get(keyFunc(ctx, method, cc), cfg)

		if !cb.CanExecute() {
			cb.rec.reject()
			return ErrCircuitOpen
		}

		err := invoker(ctx, method, req, reply, cc, callOpts...)
		record(cb, err)
		return err
	}
}

// StreamClientInterceptor 返回 gRPC 流式调用客户端拦截器
// 只保护流的建立；流上的后续错误由调用方自行上报。
func StreamClientInterceptor(reg *Registry, cfg *Config, opts ...InterceptorOption) grpc.StreamClientInterceptor {
	keyFunc := applyInterceptorOptions(opts...)

	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, callOpts ...grpc.CallOption) (grpc.ClientStream, error) {
		cb := reg.Get(keyFunc(ctx, method, cc), cfg)

		if !cb.CanExecute() {
			cb.rec.reject()
			return nil, ErrCircuitOpen
		}

		stream, err := streamer(ctx, desc, cc, method, callOpts...)
		record(cb, err)
		return stream, err
	}
}

// record 按 gRPC 错误码上报调用结果
func record(cb *CircuitBreaker, err error) {
	switch status.Code(err) {
	case codes.OK:
		cb.RecordSuccess()
	case codes.DeadlineExceeded:
		cb.RecordTimeout()
	default:
		cb.RecordFailure(err.Error())
	}
}
