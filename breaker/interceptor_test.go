package breaker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const testMethod = "/fuse.test.Echo/Ping"

// ============================================================
// KeyFunc
// ============================================================

func TestKeyFuncVariations(t *testing.T) {
	ctx := context.Background()

	t.Run("MethodLevelKey 返回完整方法名", func(t *testing.T) {
		key := MethodLevelKey()(ctx, testMethod, nil)
		assert.Equal(t, testMethod, key)
	})

	t.Run("ServiceLevelKey 依赖 ClientConn", func(t *testing.T) {
		// cc.Target() 需要真实连接，这里只验证工厂返回非 nil
		assert.NotNil(t, ServiceLevelKey())
	})

	t.Run("CompositeKey 用 @ 拼接", func(t *testing.T) {
		custom := func(ctx context.Context, fullMethod string, cc *grpc.ClientConn) string {
			return "user-service"
		}
		key := CompositeKey(custom, MethodLevelKey())(ctx, testMethod, nil)
		assert.Equal(t, "user-service@"+testMethod, key)
	})
}

// ============================================================
// 一元拦截器
// ============================================================

func TestUnaryClientInterceptor(t *testing.T) {
	cfg := fastConfig()

	newInvoker := func(err error, called *int) grpc.UnaryInvoker {
		return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
			*called++
			return err
		}
	}

	t.Run("成功调用计成功", func(t *testing.T) {
		reg := newTestRegistry(t)
		interceptor := UnaryClientInterceptor(reg, cfg, WithMethodLevelKey())

		var called int
		err := interceptor(context.Background(), testMethod, nil, nil, nil, newInvoker(nil, &called))

		require.NoError(t, err)
		assert.Equal(t, 1, called)

		cb, ok := reg.Lookup(testMethod)
		require.True(t, ok, "应按方法名创建熔断器")
		assert.Equal(t, uint64(1), cb.Stats().TotalSuccesses)
	})

	t.Run("gRPC 错误计失败并原样传出", func(t *testing.T) {
		reg := newTestRegistry(t)
		interceptor := UnaryClientInterceptor(reg, cfg, WithMethodLevelKey())

		callErr := status.Error(codes.Unavailable, "backend down")
		var called int
		err := interceptor(context.Background(), testMethod, nil, nil, nil, newInvoker(callErr, &called))

		assert.Equal(t, callErr, err)
		cb, _ := reg.Lookup(testMethod)
		assert.Equal(t, 1, cb.Stats().FailureCount)
	})

	t.Run("DeadlineExceeded 计超时", func(t *testing.T) {
		reg := newTestRegistry(t)
		interceptor := UnaryClientInterceptor(reg, cfg, WithMethodLevelKey())

		callErr := status.Error(codes.DeadlineExceeded, "deadline exceeded")
		var called int
		_ = interceptor(context.Background(), testMethod, nil, nil, nil, newInvoker(callErr, &called))

		cb, _ := reg.Lookup(testMethod)
		assert.Equal(t, 1, cb.Stats().FailureCount, "超时同时计为失败")
	})

	t.Run("熔断后快速拒绝", func(t *testing.T) {
		reg := newTestRegistry(t)
		interceptor := UnaryClientInterceptor(reg, cfg, WithMethodLevelKey())

		callErr := status.Error(codes.Unavailable, "backend down")
		var called int
		for i := 0; i < cfg.FailureThreshold; i++ {
			_ = interceptor(context.Background(), testMethod, nil, nil, nil, newInvoker(callErr, &called))
		}
		require.Equal(t, cfg.FailureThreshold, called)

		err := interceptor(context.Background(), testMethod, nil, nil, nil, newInvoker(nil, &called))
		assert.ErrorIs(t, err, ErrCircuitOpen)
		assert.Equal(t, cfg.FailureThreshold, called, "熔断期间 invoker 不应被调用")
	})

	t.Run("自定义 KeyFunc", func(t *testing.T) {
		reg := newTestRegistry(t)
		custom := func(ctx context.Context, fullMethod string, cc *grpc.ClientConn) string {
			return "custom-key"
		}
		interceptor := UnaryClientInterceptor(reg, cfg, WithKeyFunc(custom))

		var called int
		_ = interceptor(context.Background(), testMethod, nil, nil, nil, newInvoker(nil, &called))

		_, ok := reg.Lookup("custom-key")
		assert.True(t, ok)
	})
}

// ============================================================
// 流式拦截器
// ============================================================

func TestStreamClientInterceptor(t *testing.T) {
	cfg := fastConfig()

	t.Run("建流失败计失败", func(t *testing.T) {
		reg := newTestRegistry(t)
		interceptor := StreamClientInterceptor(reg, cfg, WithMethodLevelKey())

		streamErr := errors.New("dial failed")
		streamer := func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, opts ...grpc.CallOption) (grpc.ClientStream, error) {
			return nil, streamErr
		}

		stream, err := interceptor(context.Background(), &grpc.StreamDesc{}, nil, testMethod, streamer)
		assert.Nil(t, stream)
		assert.Equal(t, streamErr, err)

		cb, _ := reg.Lookup(testMethod)
		assert.Equal(t, 1, cb.Stats().FailureCount)
	})

	t.Run("熔断后拒绝建流", func(t *testing.T) {
		reg := newTestRegistry(t)
		interceptor := StreamClientInterceptor(reg, cfg, WithMethodLevelKey())

		streamErr := errors.New("dial failed")
		streamer := func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, opts ...grpc.CallOption) (grpc.ClientStream, error) {
			return nil, streamErr
		}

		for i := 0; i < cfg.FailureThreshold; i++ {
			_, _ = interceptor(context.Background(), &grpc.StreamDesc{}, nil, testMethod, streamer)
		}

		_, err := interceptor(context.Background(), &grpc.StreamDesc{}, nil, testMethod, streamer)
		assert.ErrorIs(t, err, ErrCircuitOpen)
	})
}
