package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述全局运行时行为，所有 Kind 共享同一份参数。
type GlobalConfig struct {
	ListenPort      int      `mapstructure:"ListenPort"`
	LogLevel        string   `mapstructure:"LogLevel"`
	LogFilePath     string   `mapstructure:"LogFilePath"`
	LogMaxSize      int      `mapstructure:"LogMaxSize"`
	LogMaxBackups   int      `mapstructure:"LogMaxBackups"`
	LogCompress     bool     `mapstructure:"LogCompress"`
	StoragePath     string   `mapstructure:"StoragePath"`
	UpstreamTimeout Duration `mapstructure:"UpstreamTimeout"`
	DefaultMaxAge   Duration `mapstructure:"DefaultMaxAge"`
	FlushTimeout    Duration `mapstructure:"FlushTimeout"`
}

// KindConfig 描述一种实体类型：磁盘目录、上游地址以及自动刷新阈值。
type KindConfig struct {
	Name       string   `mapstructure:"Name"`
	Upstream   string   `mapstructure:"Upstream"`
	MaxAge     Duration `mapstructure:"MaxAge"`
	BatchParam string   `mapstructure:"BatchParam"`
	Dir        string   `mapstructure:"Dir"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global GlobalConfig `mapstructure:",squash"`
	Kinds  []KindConfig `mapstructure:"Kind"`
}

// Directory 返回该 Kind 在 StoragePath 下使用的目录名，未配置时等于 Name。
func (k KindConfig) Directory() string {
	if dir := strings.TrimSpace(k.Dir); dir != "" {
		return dir
	}
	return k.Name
}

// KindNames 返回所有 Kind 名称及其刷新阈值摘要，例如 match:1h0m0s。
func KindNames(cfg *Config) []string {
	if cfg == nil || len(cfg.Kinds) == 0 {
		return nil
	}
	result := make([]string, len(cfg.Kinds))
	for i, kind := range cfg.Kinds {
		result[i] = fmt.Sprintf("%s:%s", kind.Name, cfg.EffectiveMaxAge(kind))
	}
	return result
}
