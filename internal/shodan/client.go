package shodan

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"ShodanGT/internal/model"
	"ShodanGT/internal/utils"
)

const (
	DefaultBaseURL = "https://api.shodan.io"
	DefaultTimeout = 60 * time.Second

	// PageSize Shodan 每页固定返回 100 条
	PageSize = 100
	// DefaultRetries 游标翻页失败时的重试次数
	DefaultRetries = 5
	// DefaultRateLimit 每秒请求数，对应 Shodan API 的 1 req/s 限制
	DefaultRateLimit = 1.0
)

// Client Shodan REST API 客户端
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	retries    int
	retryDelay func(tries int) time.Duration
	logger     *utils.Logger
}

// Option 客户端可选配置
type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithTimeout 单次请求超时，<=0 时保持默认值
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithRateLimit 每秒请求数，<=0 表示不限速
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

func WithRetries(retries int) Option {
	return func(c *Client) {
		if retries >= 0 {
			c.retries = retries
		}
	}
}

// WithRetryDelay 替换重试等待时间（测试时使用）
func WithRetryDelay(delay func(tries int) time.Duration) Option {
	return func(c *Client) {
		if delay != nil {
			c.retryDelay = delay
		}
	}
}

// NewClient 创建客户端，apiKey 由调用方显式传入
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
		retries: DefaultRetries,
		retryDelay: func(tries int) time.Duration {
			return time.Duration(tries) * time.Second
		},
		logger: utils.NewLogger("shodan-client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SearchResult /shodan/host/search 的一页结果
type SearchResult struct {
	Matches []model.HostMatch `json:"matches"`
	Total   int               `json:"total"`
}

// APIError Shodan 明确拒绝或失败的请求
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// Search 查询指定页，页码从 1 开始
func (c *Client) Search(ctx context.Context, query string, page int) (*SearchResult, error) {
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("query", query)
	params.Set("page", strconv.Itoa(page))
	params.Set("minify", "true")

	var result SearchResult
	if err := c.get(ctx, "/shodan/host/search", params, &result); err != nil {
		return nil, err
	}

	c.logger.Debug("第%d页: %d 条结果，总数 %d", page, len(result.Matches), result.Total)
	return &result, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}

	reqURL := c.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("User-Agent", "ShodanGT/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// url.Error 会带上含 key 的完整 URL
		return fmt.Errorf("无法连接到 Shodan: %w", unwrapURLError(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %w", err)
	}

	if apiErr := decodeAPIError(resp.StatusCode, body); apiErr != nil {
		return apiErr
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("解析JSON响应失败: %w", err)
	}
	return nil
}

// decodeAPIError 把非 2xx 状态或带 error 字段的响应转换为 *APIError
func decodeAPIError(status int, body []byte) *APIError {
	var payload struct {
		Error string `json:"error"`
	}
	hasPayload := json.Unmarshal(body, &payload) == nil && payload.Error != ""

	switch {
	case status == http.StatusUnauthorized:
		msg := payload.Error
		if !hasPayload {
			msg = strings.TrimSpace(string(body))
			if msg == "" || strings.HasPrefix(msg, "<") {
				msg = "Invalid API key"
			}
		}
		return &APIError{StatusCode: status, Message: msg}
	case status == http.StatusForbidden:
		return &APIError{StatusCode: status, Message: "Access denied (403 Forbidden)"}
	case status == http.StatusBadGateway:
		return &APIError{StatusCode: status, Message: "Bad Gateway (502)"}
	case hasPayload:
		return &APIError{StatusCode: status, Message: payload.Error}
	case status < 200 || status > 299:
		return &APIError{StatusCode: status, Message: fmt.Sprintf("%d %s", status, http.StatusText(status))}
	}
	return nil
}

func unwrapURLError(err error) error {
	if ue, ok := err.(*url.Error); ok {
		return ue.Err
	}
	return err
}
