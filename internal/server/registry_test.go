package server

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/any-hub/localdata/internal/cache"
	"github.com/any-hub/localdata/internal/config"
	"github.com/any-hub/localdata/internal/logging"
)

func TestKindRegistryBuildsRoutes(t *testing.T) {
	cfg := &config.Config{
		Global: config.GlobalConfig{
			DefaultMaxAge:   config.Duration(10 * time.Minute),
			UpstreamTimeout: config.Duration(5 * time.Second),
		},
		Kinds: []config.KindConfig{
			{Name: "user", Upstream: "https://api.example.com/users", MaxAge: config.Duration(time.Hour)},
			{Name: "match", Upstream: "https://api.example.com/matches", BatchParam: "matchIDs", Dir: "MatchDetails"},
		},
	}
	registry := newRegistryForTest(t, cfg)

	user, ok := registry.Lookup("User")
	if !ok {
		t.Fatalf("expected user kind to be registered")
	}
	if user.MaxAge != time.Hour {
		t.Fatalf("expected per-kind max age, got %s", user.MaxAge)
	}
	if user.Manager.Kind() != "user" {
		t.Fatalf("expected directory user, got %s", user.Manager.Kind())
	}

	match, ok := registry.Lookup(" match ")
	if !ok {
		t.Fatalf("expected match kind to be registered")
	}
	if match.MaxAge != 10*time.Minute {
		t.Fatalf("expected global default max age, got %s", match.MaxAge)
	}
	if match.Manager.Kind() != "MatchDetails" {
		t.Fatalf("expected custom directory, got %s", match.Manager.Kind())
	}
	if match.Fetcher == nil {
		t.Fatalf("expected upstream fetcher")
	}

	list := registry.List()
	if len(list) != 2 || list[0].Config.Name != "user" || list[1].Config.Name != "match" {
		t.Fatalf("expected routes in config order, got %d", len(list))
	}

	if _, ok := registry.Lookup("unknown"); ok {
		t.Fatalf("unknown kind should not resolve")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := registry.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := registry.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestKindRegistryRejectsDuplicateNames(t *testing.T) {
	store, err := cache.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	cfg := &config.Config{
		Kinds: []config.KindConfig{
			{Name: "user", Upstream: "https://api.example.com/users"},
			{Name: "USER", Upstream: "https://api.example.com/users", Dir: "users2"},
		},
	}
	_, err = NewKindRegistry(cfg, RegistryOptions{Store: store, HTTPClient: http.DefaultClient, Logger: logging.Discard()})
	if err == nil || !strings.Contains(err.Error(), "duplicate kind") {
		t.Fatalf("expected duplicate kind error, got %v", err)
	}
}

func TestKindRegistryRequiresInputs(t *testing.T) {
	if _, err := NewKindRegistry(nil, RegistryOptions{}); err == nil {
		t.Fatalf("expected error for nil config")
	}
	if _, err := NewKindRegistry(&config.Config{}, RegistryOptions{}); err == nil {
		t.Fatalf("expected error for missing store")
	}
}

func TestKindRegistryNilSafe(t *testing.T) {
	var registry *KindRegistry
	if _, ok := registry.Lookup("user"); ok {
		t.Fatalf("nil registry should not resolve kinds")
	}
	if registry.List() != nil {
		t.Fatalf("nil registry should list nothing")
	}
}

func newRegistryForTest(t *testing.T, cfg *config.Config) *KindRegistry {
	t.Helper()
	store, err := cache.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	registry, err := NewKindRegistry(cfg, RegistryOptions{
		Store:  store,
		Logger: logging.Discard(),
	})
	if err != nil {
		t.Fatalf("NewKindRegistry: %v", err)
	}
	t.Cleanup(func() {
		_ = registry.Close(context.Background())
	})
	return registry
}
