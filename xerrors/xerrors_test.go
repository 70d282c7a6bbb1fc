package xerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	t.Run("保留错误链", func(t *testing.T) {
		base := New("connection refused")
		wrapped := Wrap(base, "dial backend")

		assert.ErrorIs(t, wrapped, base)
		assert.Equal(t, "dial backend: connection refused", wrapped.Error())
	})

	t.Run("nil 透传", func(t *testing.T) {
		assert.Nil(t, Wrap(nil, "ignored"))
		assert.Nil(t, Wrapf(nil, "ignored %d", 1))
	})
}

func TestWrapf(t *testing.T) {
	base := New("circuit breaker open")
	wrapped := Wrapf(base, "service %q", "user-service")

	assert.ErrorIs(t, wrapped, base, "哨兵错误在前，errors.Is 必须命中")
	assert.Equal(t, `circuit breaker open: service "user-service"`, wrapped.Error())
}

func TestWithCode(t *testing.T) {
	base := errors.New("boom")
	coded := WithCode(base, "BRK-001")

	t.Run("提取错误码", func(t *testing.T) {
		assert.Equal(t, "BRK-001", GetCode(coded))
	})

	t.Run("错误链保留", func(t *testing.T) {
		assert.ErrorIs(t, coded, base)
	})

	t.Run("多层包装后仍可提取", func(t *testing.T) {
		outer := fmt.Errorf("outer: %w", coded)
		assert.Equal(t, "BRK-001", GetCode(outer))
	})

	t.Run("无错误码返回空串", func(t *testing.T) {
		assert.Empty(t, GetCode(base))
		assert.Empty(t, GetCode(nil))
	})

	t.Run("nil 透传", func(t *testing.T) {
		assert.Nil(t, WithCode(nil, "X"))
	})
}

func TestCombine(t *testing.T) {
	errA := New("a")
	errB := New("b")

	t.Run("全 nil 返回 nil", func(t *testing.T) {
		assert.Nil(t, Combine())
		assert.Nil(t, Combine(nil, nil))
	})

	t.Run("单个错误原样返回", func(t *testing.T) {
		assert.Same(t, errA, Combine(nil, errA, nil))
	})

	t.Run("多个错误合并且都可匹配", func(t *testing.T) {
		combined := Combine(errA, errB)
		require.NotNil(t, combined)
		assert.ErrorIs(t, combined, errA)
		assert.ErrorIs(t, combined, errB)
	})
}

func TestSentinels(t *testing.T) {
	wrapped := Wrapf(ErrNotFound, "breaker %q", "user-service")
	assert.ErrorIs(t, wrapped, ErrNotFound)
	assert.NotErrorIs(t, wrapped, ErrInvalidInput)
}
