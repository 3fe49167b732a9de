package server

import (
	"context"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/any-hub/localdata/internal/cache"
	"github.com/any-hub/localdata/internal/config"
	"github.com/any-hub/localdata/internal/localdata"
	"github.com/any-hub/localdata/internal/logging"
	"github.com/any-hub/localdata/internal/upstream"
)

var testNow = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

// fakeFetcher 返回预置文档并记录调用次数。
type fakeFetcher struct {
	mu       sync.Mutex
	docs     map[string]upstream.Document
	err      error
	calls    int
	batchIDs [][]string
}

func newFakeFetcher(t *testing.T, raw ...string) *fakeFetcher {
	t.Helper()
	f := &fakeFetcher{docs: make(map[string]upstream.Document)}
	for _, r := range raw {
		doc, err := upstream.ParseDocument([]byte(r))
		if err != nil {
			t.Fatalf("ParseDocument(%s): %v", r, err)
		}
		f.docs[doc.ID] = doc
	}
	return f
}

func (f *fakeFetcher) Fetch(ctx context.Context, id string) (upstream.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return upstream.Document{}, f.err
	}
	doc, ok := f.docs[id]
	if !ok {
		return upstream.Document{}, &upstream.StatusError{URL: "http://upstream.local/" + id, StatusCode: http.StatusNotFound}
	}
	return doc, nil
}

func (f *fakeFetcher) FetchAll(ctx context.Context, ids []string) ([]upstream.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.batchIDs = append(f.batchIDs, append([]string(nil), ids...))
	if f.err != nil {
		return nil, f.err
	}
	var docs []upstream.Document
	for _, id := range ids {
		if doc, ok := f.docs[id]; ok {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type testServer struct {
	app      *fiber.App
	route    *KindRoute
	fetcher  *fakeFetcher
	registry *KindRegistry
}

func newTestServer(t *testing.T, fetcher *fakeFetcher, base context.Context) *testServer {
	t.Helper()

	store, err := cache.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	logger := logging.Discard()
	manager, err := localdata.New[string, upstream.Document](store, localdata.Options{
		Kind:   "user",
		Logger: logger,
		Now:    func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("localdata.New: %v", err)
	}
	t.Cleanup(func() {
		_ = manager.Close(context.Background())
	})

	route := &KindRoute{
		Config: config.KindConfig{
			Name:       "user",
			Upstream:   "http://upstream.local/users",
			BatchParam: "ids",
		},
		Manager: manager,
		Fetcher: fetcher,
	}
	registry := newKindRegistry()
	if err := registry.add(route); err != nil {
		t.Fatalf("registry.add: %v", err)
	}

	app, err := NewApp(AppOptions{
		Logger:      logger,
		Registry:    registry,
		BaseContext: base,
		Now:         func() time.Time { return testNow },
		Heartbeat:   time.Hour,
	})
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	return &testServer{app: app, route: route, fetcher: fetcher, registry: registry}
}

func (s *testServer) do(t *testing.T, req *http.Request) (*http.Response, string) {
	t.Helper()
	resp, err := s.app.Test(req, fiber.TestConfig{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	resp.Body.Close()
	return resp, string(body)
}
