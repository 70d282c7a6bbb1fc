package breaker

import (
	"time"

	"github.com/ceyewan/fuse/config"
	"github.com/ceyewan/fuse/xerrors"
)

// ========================================
// 配置定义 (Configuration)
// ========================================

// Config 熔断器配置
// 对单个熔断器实例不可变：构造后只能通过创建新熔断器替换
type Config struct {
	// FailureThreshold CLOSED 状态下触发熔断的累计失败次数（默认：5）
	FailureThreshold int `json:"failure_threshold" yaml:"failure_threshold" mapstructure:"failure_threshold"`

	// Cooldown OPEN 状态的冷却时间（默认：30s）
	// 冷却期满后，下一次 CanExecute 会把熔断器切换到 HALF_OPEN
	Cooldown time.Duration `json:"cooldown" yaml:"cooldown" mapstructure:"cooldown"`

	// HalfOpenAttempts HALF_OPEN 状态下闭合所需的连续成功次数（默认：2）
	HalfOpenAttempts int `json:"half_open_attempts" yaml:"half_open_attempts" mapstructure:"half_open_attempts"`

	// Timeout Execute 中被保护操作允许的最长执行时间（默认：10s）
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// AutoResetOnSuccess CLOSED 状态下任意一次成功是否清零失败计数（默认：true）
	AutoResetOnSuccess bool `json:"auto_reset_on_success" yaml:"auto_reset_on_success" mapstructure:"auto_reset_on_success"`
}

// Clone 返回配置的副本
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// Validate 验证配置的有效性
// 零值字段会先被填充为 default 预设的对应值
func (c *Config) Validate() error {
	c.setDefaults()

	if c.FailureThreshold <= 0 {
		return xerrors.Wrapf(ErrInvalidConfig, "failure_threshold must be positive, got %d", c.FailureThreshold)
	}
	if c.Cooldown <= 0 {
		return xerrors.Wrapf(ErrInvalidConfig, "cooldown must be positive, got %s", c.Cooldown)
	}
	if c.HalfOpenAttempts <= 0 {
		return xerrors.Wrapf(ErrInvalidConfig, "half_open_attempts must be positive, got %d", c.HalfOpenAttempts)
	}
	if c.Timeout <= 0 {
		return xerrors.Wrapf(ErrInvalidConfig, "timeout must be positive, got %s", c.Timeout)
	}
	return nil
}

// setDefaults 为零值字段填充 default 预设的对应值（内部使用）
func (c *Config) setDefaults() {
	def := DefaultConfig()
	if c.FailureThreshold == 0 {
		c.FailureThreshold = def.FailureThreshold
	}
	if c.Cooldown == 0 {
		c.Cooldown = def.Cooldown
	}
	if c.HalfOpenAttempts == 0 {
		c.HalfOpenAttempts = def.HalfOpenAttempts
	}
	if c.Timeout == 0 {
		c.Timeout = def.Timeout
	}
}

// ========================================
// 预设 (Presets)
// ========================================

// 预设名常量
const (
	PresetDefault    = "default"
	PresetStrict     = "strict"
	PresetLenient    = "lenient"
	PresetAggressive = "aggressive"
	PresetTesting    = "testing"
)

// DefaultConfig 返回 default 预设：通用场景的平衡配置
func DefaultConfig() *Config {
	return &Config{
		FailureThreshold:   5,
		Cooldown:           30 * time.Second,
		HalfOpenAttempts:   2,
		Timeout:            10 * time.Second,
		AutoResetOnSuccess: true,
	}
}

// presets 静态预设表
// testing 预设的冷却时间刻意很短，便于测试环境快速走完整个状态循环
var presets = map[string]func() *Config{
	PresetDefault: DefaultConfig,
	PresetStrict: func() *Config {
		return &Config{
			FailureThreshold:   3,
			Cooldown:           60 * time.Second,
			HalfOpenAttempts:   3,
			Timeout:            5 * time.Second,
			AutoResetOnSuccess: false,
		}
	},
	PresetLenient: func() *Config {
		return &Config{
			FailureThreshold:   10,
			Cooldown:           15 * time.Second,
			HalfOpenAttempts:   1,
			Timeout:            30 * time.Second,
			AutoResetOnSuccess: true,
		}
	},
	PresetAggressive: func() *Config {
		return &Config{
			FailureThreshold:   2,
			Cooldown:           120 * time.Second,
			HalfOpenAttempts:   5,
			Timeout:            3 * time.Second,
			AutoResetOnSuccess: false,
		}
	},
	PresetTesting: func() *Config {
		return &Config{
			FailureThreshold:   3,
			Cooldown:           time.Second,
			HalfOpenAttempts:   2,
			Timeout:            100 * time.Millisecond,
			AutoResetOnSuccess: true,
		}
	},
}

// Preset 按名字返回预设配置的副本
func Preset(name string) (*Config, error) {
	factory, ok := presets[name]
	if !ok {
		return nil, xerrors.Wrapf(ErrUnknownPreset, "%q", name)
	}
	return factory(), nil
}

// ========================================
// 覆盖合并 (Overrides Merge)
// ========================================

// Overrides 预设之上的显式覆盖
// 零值字段继承预设；AutoResetOnSuccess 用指针区分 "未设置" 和 "显式 false"
type Overrides struct {
	Preset             string        `json:"preset" yaml:"preset" mapstructure:"preset"`
	FailureThreshold   int           `json:"failure_threshold" yaml:"failure_threshold" mapstructure:"failure_threshold"`
	Cooldown           time.Duration `json:"cooldown" yaml:"cooldown" mapstructure:"cooldown"`
	HalfOpenAttempts   int           `json:"half_open_attempts" yaml:"half_open_attempts" mapstructure:"half_open_attempts"`
	Timeout            time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	AutoResetOnSuccess *bool         `json:"auto_reset_on_success" yaml:"auto_reset_on_success" mapstructure:"auto_reset_on_success"`
}

// MergeConfig 把显式覆盖逐字段叠加到预设之上（浅合并）
//
// 参数:
//   - custom: 覆盖项，nil 等价于不覆盖
//   - presetName: 预设名（default/strict/lenient/aggressive/testing）
func MergeConfig(custom *Overrides, presetName string) (*Config, error) {
	cfg, err := Preset(presetName)
	if err != nil {
		return nil, err
	}
	if custom == nil {
		return cfg, nil
	}

	if custom.FailureThreshold > 0 {
		cfg.FailureThreshold = custom.FailureThreshold
	}
	if custom.Cooldown > 0 {
		cfg.Cooldown = custom.Cooldown
	}
	if custom.HalfOpenAttempts > 0 {
		cfg.HalfOpenAttempts = custom.HalfOpenAttempts
	}
	if custom.Timeout > 0 {
		cfg.Timeout = custom.Timeout
	}
	if custom.AutoResetOnSuccess != nil {
		cfg.AutoResetOnSuccess = *custom.AutoResetOnSuccess
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ========================================
// 文件加载 (File-driven Configuration)
// ========================================

// LoadConfigs 从配置加载器中读取按名字组织的熔断策略
//
// 期望的配置结构（YAML 示例，key 为 "breakers"）：
//
//	breakers:
//	  user-service:
//	    preset: strict
//	    timeout: 2s
//	  search-service:
//	    preset: lenient
//	    failure_threshold: 20
//
// 每个条目在指定预设之上做浅合并，返回可直接交给 Registry.Get 的配置表。
func LoadConfigs(loader config.Loader, key string) (map[string]*Config, error) {
	raw := make(map[string]*Overrides)
	if err := loader.UnmarshalKey(key, &raw); err != nil {
		return nil, xerrors.Wrapf(err, "breaker: failed to unmarshal configs at %q", key)
	}

	configs := make(map[string]*Config, len(raw))
	for name, overrides := range raw {
		presetName := PresetDefault
		if overrides != nil && overrides.Preset != "" {
			presetName = overrides.Preset
		}

		cfg, err := MergeConfig(overrides, presetName)
		if err != nil {
			return nil, xerrors.Wrapf(err, "breaker: invalid config for %q", name)
		}
		configs[name] = cfg
	}

	return configs, nil
}
