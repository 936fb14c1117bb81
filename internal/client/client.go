// Package client 库存服务的 HTTP 客户端。
// 所有请求经过 session.ScopedTransport 发出：选中共享库存时
// 自动携带 X-Inventory-Owner，调用方无需感知。
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"stocknest/internal/domain/collab"
	"stocknest/internal/domain/inventory/port"
	"stocknest/internal/session"
)

// Config 客户端配置。
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client 库存服务客户端。实现 session.DirectoryClient。
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New 创建客户端。出站请求统一走 injector 驱动的 ScopedTransport。
func New(cfg Config, injector *session.Injector) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		http: &http.Client{
			Timeout:   timeout,
			Transport: &session.ScopedTransport{Injector: injector},
		},
	}
}

// GetContext 拉取协作目录快照，并在边界做一次完整校验。
func (c *Client) GetContext(ctx context.Context, userID string) (*collab.DirectoryContext, error) {
	var dir collab.DirectoryContext
	if err := c.do(ctx, http.MethodGet, "/collaboration/context", nil, &dir); err != nil {
		return nil, err
	}
	if err := dir.Validate(); err != nil {
		return nil, fmt.Errorf("directory payload: %w", err)
	}
	return &dir, nil
}

// Me 返回认证用户本人资料。
func (c *Client) Me(ctx context.Context) (*port.User, error) {
	var user port.User
	if err := c.do(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListItems 列出当前作用域下的条目。
func (c *Client) ListItems(ctx context.Context, query string) (*port.ListItemsResult, error) {
	path := "/api/v1/items"
	if query != "" {
		path += "?q=" + url.QueryEscape(query)
	}
	var result port.ListItemsResult
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateItem 在当前作用域下新建条目。
func (c *Client) CreateItem(ctx context.Context, item *port.Item) (*port.Item, error) {
	var created port.Item
	if err := c.do(ctx, http.MethodPost, "/api/v1/items", item, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// DeleteItem 删除当前作用域下的条目。
func (c *Client) DeleteItem(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/items/"+id, nil, nil)
}

// do 发送请求并解包统一响应信封 {code, message, data}。
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}

	var envelope struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("%s %s: status %d, invalid response body", method, path, resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, envelope.Message)
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("%s %s: decode data: %w", method, path, err)
		}
	}
	return nil
}
