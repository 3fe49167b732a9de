package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if g.StoragePath == "" {
		return newFieldError("Global.StoragePath", "不能为空")
	}
	if g.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("Global.UpstreamTimeout", "必须大于 0")
	}
	if g.FlushTimeout.DurationValue() <= 0 {
		return newFieldError("Global.FlushTimeout", "必须大于 0")
	}

	if len(c.Kinds) == 0 {
		return errors.New("至少需要配置一个 Kind")
	}

	seenNames := map[string]struct{}{}
	seenDirs := map[string]struct{}{}
	for i := range c.Kinds {
		kind := &c.Kinds[i]
		if kind.Name == "" {
			return newFieldError("Kind[].Name", "不能为空")
		}
		if err := validateSegment(kind.Name); err != nil {
			return fmt.Errorf("%s: %w", kindField(kind.Name, "Name"), err)
		}
		if _, exists := seenNames[kind.Name]; exists {
			return newFieldError(kindField(kind.Name, "Name"), "重复")
		}
		seenNames[kind.Name] = struct{}{}

		dir := kind.Directory()
		if err := validateSegment(dir); err != nil {
			return fmt.Errorf("%s: %w", kindField(kind.Name, "Dir"), err)
		}
		if _, exists := seenDirs[dir]; exists {
			return newFieldError(kindField(kind.Name, "Dir"), "与其它 Kind 共用目录")
		}
		seenDirs[dir] = struct{}{}

		if err := validateUpstream(kind.Upstream); err != nil {
			return fmt.Errorf("%s: %w", kindField(kind.Name, "Upstream"), err)
		}
		if strings.ContainsAny(kind.BatchParam, "&=? ") {
			return newFieldError(kindField(kind.Name, "BatchParam"), "不允许包含 &=? 或空格")
		}
	}

	return nil
}

// validateSegment 确保名称可以直接作为目录名与 URL 路径段使用。
func validateSegment(name string) error {
	if name == "." || name == ".." {
		return errors.New("不允许使用 . 或 ..")
	}
	if strings.ContainsAny(name, `/\ `) {
		return errors.New("不允许包含路径分隔符或空格")
	}
	return nil
}

func validateUpstream(raw string) error {
	if raw == "" {
		return errors.New("缺少上游地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https，上游: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("上游缺少 Host: %s", raw)
	}
	return nil
}

// EffectiveMaxAge 返回特定 Kind 生效的刷新阈值，未覆盖时回退至全局值；0 表示仅按需刷新。
func (c *Config) EffectiveMaxAge(k KindConfig) time.Duration {
	if k.MaxAge.DurationValue() > 0 {
		return k.MaxAge.DurationValue()
	}
	return c.Global.DefaultMaxAge.DurationValue()
}
