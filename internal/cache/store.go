package cache

import (
	"context"
	"errors"
	"time"
)

// Store 负责管理单个对象文件的读写。磁盘布局遵循：
//
//	<StoragePath>/<Kind>/<escaped id>.json    # 序列化后的 Entry
//
// 每个对象仅由一个文件组成，文件的 ModTime/Size 由文件系统提供。
type Store interface {
	// EnsureKind 幂等地创建 kind 对应的目录，Manager 构造时调用。
	EnsureKind(kind string) error

	// Get 返回对象文件的完整内容。若不存在则返回 ErrNotFound。
	Get(ctx context.Context, locator Locator) ([]byte, error)

	// Put 覆盖写入对象文件。实现需通过临时文件 + rename 保证写入原子性，
	// 并在失败时清理临时文件。可选地根据 opts.ModTime 设置文件时间戳。
	Put(ctx context.Context, locator Locator, data []byte, opts PutOptions) (*Entry, error)

	// Remove 删除对象文件，文件不存在时不视为错误。
	Remove(ctx context.Context, locator Locator) error
}

// PutOptions 控制写入过程中的可选属性。
type PutOptions struct {
	ModTime time.Time
}

// Locator 唯一定位一个对象文件（Kind + 标识符的规范文本）。
type Locator struct {
	Kind string
	Key  string
}

// Entry 描述一次写入结果，包含绝对文件路径及文件信息。
type Entry struct {
	Locator   Locator `json:"locator"`
	FilePath  string  `json:"file_path"`
	SizeBytes int64   `json:"size_bytes"`
	ModTime   time.Time
}

// ErrNotFound 表示对象文件不存在。
var ErrNotFound = errors.New("cache entry not found")
