package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/localdata/internal/cache"
	"github.com/any-hub/localdata/internal/config"
	"github.com/any-hub/localdata/internal/localdata"
	"github.com/any-hub/localdata/internal/metrics"
	"github.com/any-hub/localdata/internal/upstream"
)

// Fetcher loads documents of one kind from its upstream.
type Fetcher interface {
	Fetch(ctx context.Context, id string) (upstream.Document, error)
	FetchAll(ctx context.Context, ids []string) ([]upstream.Document, error)
}

// DocumentManager is the local data manager type served over HTTP.
type DocumentManager = localdata.Manager[string, upstream.Document]

// KindRoute 将 Kind 配置与其 Manager、上游 Fetcher 聚合在一起，供路由层直接复用。
type KindRoute struct {
	// Config 是用户在 config.toml 中声明的 Kind 字段副本。
	Config config.KindConfig
	// MaxAge 是对当前 Kind 生效的刷新阈值，0 表示仅按需刷新。
	MaxAge  time.Duration
	Manager *DocumentManager
	Fetcher Fetcher
}

// RegistryOptions 汇总构建 Manager 所需的共享依赖。
type RegistryOptions struct {
	Store      cache.Store
	HTTPClient *http.Client
	Logger     *logrus.Logger
	Metrics    *metrics.Collectors
	Now        func() time.Time
}

// KindRegistry 提供 Kind 名称到 KindRoute 的查询能力。
type KindRegistry struct {
	routes  map[string]*KindRoute
	ordered []*KindRoute
}

// NewKindRegistry 为每个 Kind 构建独立的 Manager。调用方应在启动阶段创建一次并复用。
func NewKindRegistry(cfg *config.Config, opts RegistryOptions) (*KindRegistry, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if opts.Store == nil {
		return nil, errors.New("store is required")
	}

	registry := newKindRegistry()
	for _, kind := range cfg.Kinds {
		route, err := buildKindRoute(cfg, kind, opts)
		if err != nil {
			return nil, err
		}
		if err := registry.add(route); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func newKindRegistry() *KindRegistry {
	return &KindRegistry{routes: make(map[string]*KindRoute)}
}

func (r *KindRegistry) add(route *KindRoute) error {
	name := normalizeKind(route.Config.Name)
	if name == "" {
		return errors.New("kind name is required")
	}
	if _, exists := r.routes[name]; exists {
		return fmt.Errorf("duplicate kind %s", name)
	}
	r.routes[name] = route
	r.ordered = append(r.ordered, route)
	return nil
}

// Lookup 根据 Kind 名称（大小写不敏感）查找 KindRoute。
func (r *KindRegistry) Lookup(name string) (*KindRoute, bool) {
	if r == nil {
		return nil, false
	}
	route, ok := r.routes[normalizeKind(name)]
	return route, ok
}

// List 返回当前注册的 KindRoute 列表（按配置定义的顺序），用于诊断输出。
func (r *KindRegistry) List() []*KindRoute {
	if r == nil || len(r.ordered) == 0 {
		return nil
	}
	return append([]*KindRoute(nil), r.ordered...)
}

// Flush 等待所有 Manager 的 write-behind 落盘完成。
func (r *KindRegistry) Flush(ctx context.Context) error {
	var errs []error
	for _, route := range r.List() {
		if err := route.Manager.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush %s: %w", route.Config.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Close 停止所有 Manager 的落盘调度并等待已排队的写入完成，用于优雅退出。
func (r *KindRegistry) Close(ctx context.Context) error {
	var errs []error
	for _, route := range r.List() {
		if err := route.Manager.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", route.Config.Name, err))
		}
	}
	return errors.Join(errs...)
}

func buildKindRoute(cfg *config.Config, kind config.KindConfig, opts RegistryOptions) (*KindRoute, error) {
	maxAge := cfg.EffectiveMaxAge(kind)

	manager, err := localdata.New[string, upstream.Document](opts.Store, localdata.Options{
		Kind:    kind.Directory(),
		MaxAge:  maxAge,
		Now:     opts.Now,
		Logger:  opts.Logger,
		Metrics: opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("kind %s: %w", kind.Name, err)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = upstream.NewHTTPClient(cfg)
	}
	fetcher, err := upstream.NewClient(httpClient, kind)
	if err != nil {
		return nil, err
	}

	return &KindRoute{
		Config:  kind,
		MaxAge:  maxAge,
		Manager: manager,
		Fetcher: fetcher,
	}, nil
}

func normalizeKind(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
