package breaker

import "time"

// Stats 熔断器统计快照
// 字段名与格式是监控端点序列化为 JSON 的线上契约：状态为
// CLOSED/OPEN/HALF_OPEN 字符串，时间戳为 RFC3339，未设置的时间戳省略
type Stats struct {
	Name                 string `json:"name"`
	State                State  `json:"state"`
	FailureCount         int    `json:"failureCount"`
	SuccessCount         int    `json:"successCount"`
	ConsecutiveSuccesses int    `json:"consecutiveSuccesses"`
	TotalFailures        uint64 `json:"totalFailures"`
	TotalSuccesses       uint64 `json:"totalSuccesses"`
	OpenCount            uint64 `json:"openCount"`

	LastFailureTime *time.Time `json:"lastFailureTime,omitempty"`
	LastSuccessTime *time.Time `json:"lastSuccessTime,omitempty"`
	OpenedAt        *time.Time `json:"openedAt,omitempty"`
	CooldownUntil   *time.Time `json:"cooldownUntil,omitempty"`

	// RecoveryCount 已记录的恢复次数
	RecoveryCount int `json:"recoveryCount"`
	// AverageRecoveryTimeMs 恢复耗时的算术平均值（毫秒）
	// 尚无恢复记录时为 nil
	AverageRecoveryTimeMs *float64 `json:"averageRecoveryTimeMs,omitempty"`
}

// Stats 返回当前统计的只读快照
func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	stats := Stats{
		Name:                 cb.name,
		State:                cb.state,
		FailureCount:         cb.failureCount,
		SuccessCount:         cb.successCount,
		ConsecutiveSuccesses: cb.consecutiveSuccesses,
		TotalFailures:        cb.totalFailures,
		TotalSuccesses:       cb.totalSuccesses,
		OpenCount:            cb.openCount,
		LastFailureTime:      copyTime(cb.lastFailureTime),
		LastSuccessTime:      copyTime(cb.lastSuccessTime),
		OpenedAt:             copyTime(cb.openedAt),
		CooldownUntil:        copyTime(cb.cooldownUntil),
		RecoveryCount:        len(cb.recoveryTimes),
	}

	if len(cb.recoveryTimes) > 0 {
		var total time.Duration
		for _, d := range cb.recoveryTimes {
			total += d
		}
		avg := float64(total) / float64(len(cb.recoveryTimes)) / float64(time.Millisecond)
		stats.AverageRecoveryTimeMs = &avg
	}

	return stats
}

// copyTime 复制可选时间戳，避免快照持有内部指针
func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	clone := *t
	return &clone
}
