package breaker

import (
	"context"
	"time"

	"github.com/ceyewan/fuse/xerrors"
)

// Operation 被保护的操作
// ctx 带有熔断器配置的超时；超时后 ctx 会被取消，操作应尽量响应取消
type Operation func(ctx context.Context) (any, error)

// Execute 在熔断保护下执行操作
//
// 熔断器拒绝时立即返回 ErrCircuitOpen，操作不会被调用（快速失败）。
// 放行后操作与配置的超时竞争：超时先到则记录一次超时（同时计为失败）并
// 返回 ErrTimeoutExceeded，操作的结果被丢弃；操作先完成则按其结果记录
// 成功或失败，并把操作自身的返回值/错误原样传出。
// 每次调用恰好触发 RecordSuccess / RecordFailure / RecordTimeout 之一。
func (cb *CircuitBreaker) Execute(ctx context.Context, fn Operation) (any, error) {
	if !cb.CanExecute() {
		cb.rec.reject()
		cb.logger.Debug("call rejected, circuit breaker open")
		return nil, ErrCircuitOpen
	}

	execCtx, cancel := context.WithTimeout(ctx, cb.cfg.Timeout)
	defer cancel()

	type result struct {
		val any
		err error
	}
	done := make(chan result, 1)

	start := time.Now()
	go func() {
		val, err := fn(execCtx)
		done <- result{val: val, err: err}
	}()

	select {
	case res := <-done:
		cb.rec.duration(time.Since(start))
		if res.err != nil {
			cb.RecordFailure(res.err.Error())
			return nil, res.err
		}
		cb.RecordSuccess()
		return res.val, nil

	case <-execCtx.Done():
		cb.rec.duration(time.Since(start))
		if xerrors.Is(execCtx.Err(), context.DeadlineExceeded) {
			cb.RecordTimeout()
			return nil, xerrors.Wrapf(ErrTimeoutExceeded, "after %s", cb.cfg.Timeout)
		}
		// 父 context 被取消：不是超时，按普通失败处理
		cb.RecordFailure(execCtx.Err().Error())
		return nil, execCtx.Err()
	}
}
