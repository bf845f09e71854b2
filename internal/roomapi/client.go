package roomapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/lk2023060901/chat-garden-go/internal/chat/packet"
	"github.com/lk2023060901/chat-garden-go/internal/json"
	"github.com/lk2023060901/chat-garden-go/pkg/util/merr"
)

const (
	defaultRequestTimeout = 5 * time.Second
	defaultMaxRetries     = 3
)

// Client 是房间服务的 HTTP 客户端。
//
// 网络错误与 5xx 应答会按指数退避自动重试；4xx 视为调用方错误，不重试。
type Client struct {
	base string
	hc   *http.Client

	maxRetries uint64
}

// ClientOption 配置 Client 行为。
type ClientOption func(*Client)

// WithHTTPClient 替换底层 http.Client。
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.hc = hc
	}
}

// WithMaxRetries 设置单次调用的最大重试次数。
func WithMaxRetries(n uint64) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// NewClient 创建房间服务客户端。base 形如 "http://127.0.0.1:8081"。
func NewClient(base string, opts ...ClientOption) *Client {
	c := &Client{
		base:       base,
		hc:         &http.Client{Timeout: defaultRequestTimeout},
		maxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateRoom 创建房间，owner 成为唯一初始成员。
// 返回 false 表示同名房间已存在。
func (c *Client) CreateRoom(ctx context.Context, name, owner string) (bool, error) {
	var resp CreateRoomResponse
	err := c.postJSON(ctx, "/api/v1/rooms", &CreateRoomRequest{Name: name, Owner: owner}, &resp)
	if err != nil {
		return false, err
	}
	if err := merr.Error(resp.Status); err != nil {
		return false, err
	}
	return resp.Created, nil
}

// ListRooms 返回当前全部房间名。
func (c *Client) ListRooms(ctx context.Context) ([]string, error) {
	var resp ListRoomsResponse
	if err := c.getJSON(ctx, "/api/v1/rooms", nil, &resp); err != nil {
		return nil, err
	}
	if err := merr.Error(resp.Status); err != nil {
		return nil, err
	}
	return resp.Rooms, nil
}

// JoinRoom 将用户加入房间并返回最近历史。房间不存在时历史为空。
func (c *Client) JoinRoom(ctx context.Context, room, user string) ([]*packet.ChatPacket, error) {
	var resp JoinRoomResponse
	path := fmt.Sprintf("/api/v1/rooms/%s/join", url.PathEscape(room))
	if err := c.postJSON(ctx, path, &JoinRoomRequest{User: user}, &resp); err != nil {
		return nil, err
	}
	if err := merr.Error(resp.Status); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// LoadOlderMessages 拉取 id < beforeID 的至多 limit 条历史，按 id 升序返回。
func (c *Client) LoadOlderMessages(ctx context.Context, room string, beforeID int64, limit int) ([]*packet.ChatPacket, error) {
	var resp MessagesResponse
	path := fmt.Sprintf("/api/v1/rooms/%s/messages", url.PathEscape(room))
	query := url.Values{
		"before": []string{strconv.FormatInt(beforeID, 10)},
		"limit":  []string{strconv.Itoa(limit)},
	}
	if err := c.getJSON(ctx, path, query, &resp); err != nil {
		return nil, err
	}
	if err := merr.Error(resp.Status); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

func (c *Client) postJSON(ctx context.Context, path string, req, resp any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, nil, body, resp)
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, resp any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, resp)
}

// do 执行一次带重试的 HTTP 调用，并将应答 JSON 解码到 resp。
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, resp any) error {
	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		if len(body) > 0 {
			req.Header.Set("Content-Type", "application/json")
		}

		httpResp, err := c.hc.Do(req)
		if err != nil {
			// 连接失败等网络错误，可重试。
			return err
		}
		defer httpResp.Body.Close()

		data, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return err
		}

		if httpResp.StatusCode >= http.StatusInternalServerError {
			return merr.WrapErrServiceInternal(httpResp.Status)
		}
		if httpResp.StatusCode >= http.StatusBadRequest {
			// 4xx 携带 status 明细时优先透传。
			var failure struct {
				Status *merr.Status `json:"status"`
			}
			if jerr := json.Unmarshal(data, &failure); jerr == nil && failure.Status != nil {
				return backoff.Permanent(merr.Error(failure.Status))
			}
			return backoff.Permanent(fmt.Errorf("roomapi: request rejected: %s", httpResp.Status))
		}

		if err := json.Unmarshal(data, resp); err != nil {
			return backoff.Permanent(fmt.Errorf("roomapi: decode response: %w", err))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = 0

	return backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(bo, c.maxRetries), ctx))
}
