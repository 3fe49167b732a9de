package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/any-hub/localdata/internal/config"
	"github.com/any-hub/localdata/internal/localdata"
)

const maxBodyBytes = 32 << 20

// Shared HTTP transport tunings，复用长连接并集中配置超时。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// NewHTTPClient 返回共享 http.Client，用于所有 Kind 的回源请求。
func NewHTTPClient(cfg *config.Config) *http.Client {
	timeout := 30 * time.Second
	if cfg != nil && cfg.Global.UpstreamTimeout.DurationValue() > 0 {
		timeout = cfg.Global.UpstreamTimeout.DurationValue()
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: defaultTransport.Clone(),
	}
}

// StatusError 表示上游返回了非 2xx 状态码，会原样传递给 Manager 的调用方。
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream %s returned %d", e.URL, e.StatusCode)
}

// Client 针对单个 Kind 构造单对象与批量回源请求。
type Client struct {
	http       *http.Client
	base       *url.URL
	batchParam string
}

// NewClient 根据 Kind 配置解析上游地址。
func NewClient(httpClient *http.Client, kind config.KindConfig) (*Client, error) {
	if httpClient == nil {
		return nil, errors.New("http client is required")
	}
	base, err := url.Parse(kind.Upstream)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream for kind %s: %w", kind.Name, err)
	}
	param := kind.BatchParam
	if param == "" {
		param = "ids"
	}
	return &Client{http: httpClient, base: base, batchParam: param}, nil
}

// Fetch 请求 <Upstream>/<id> 并解析为 Document。
func (c *Client) Fetch(ctx context.Context, id string) (Document, error) {
	target := c.base.JoinPath(url.PathEscape(id))

	var doc Document
	if err := c.getJSON(ctx, target, &doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// FetchAll 请求 <Upstream>?<BatchParam>=a,b 并解析 JSON 数组。
func (c *Client) FetchAll(ctx context.Context, ids []string) ([]Document, error) {
	target := *c.base
	query := target.Query()
	query.Set(c.batchParam, strings.Join(ids, ","))
	target.RawQuery = query.Encode()

	var docs []Document
	if err := c.getJSON(ctx, &target, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *Client) getJSON(ctx context.Context, target *url.URL, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", localdata.ErrOffline, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return &StatusError{URL: target.Redacted(), StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("decode upstream response from %s: %w", target.Redacted(), err)
	}
	return nil
}
