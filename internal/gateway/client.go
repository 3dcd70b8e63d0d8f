package gateway

import (
	"bytes"
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

	"paybridge/internal/config"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// 支付网关侧的支付状态，本服务只关心 succeeded，其余状态视为未完成
const (
	StatusPending           = "pending"
	StatusWaitingForCapture = "waiting_for_capture"
	StatusSucceeded         = "succeeded"
	StatusCanceled          = "canceled"
)

var (
	ErrGatewayTimeout  = errors.New("支付网关请求超时")
	ErrPaymentNotFound = errors.New("支付网关不存在该支付")
)

// APIError 支付网关返回的非 2xx 响应
type APIError struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("支付网关返回错误: status=%d, code=%s, description=%s", e.StatusCode, e.Code, e.Description)
}

// Amount 金额按网关要求以两位小数的字符串传输
type Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

func NewAmount(value decimal.Decimal, currency string) Amount {
	return Amount{Value: value.StringFixed(2), Currency: currency}
}

func (a Amount) Decimal() (decimal.Decimal, error) {
	return decimal.NewFromString(a.Value)
}

type Confirmation struct {
	Type            string `json:"type"`
	ReturnURL       string `json:"return_url,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

// Payment 网关侧支付对象
type Payment struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	Paid         bool              `json:"paid"`
	Amount       Amount            `json:"amount"`
	Description  string            `json:"description,omitempty"`
	Confirmation *Confirmation     `json:"confirmation,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

func (p *Payment) Succeeded() bool {
	return p.Status == StatusSucceeded
}

type CreatePaymentRequest struct {
	Amount       Amount            `json:"amount"`
	Capture      bool              `json:"capture"`
	Confirmation Confirmation      `json:"confirmation"`
	Description  string            `json:"description,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Client 支付网关客户端
type Client struct {
	baseURL    string
	shopID     string
	secretKey  string
	timeout    time.Duration
	httpClient *http.Client
}

func NewClient(cfg *config.GatewayConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		shopID:     cfg.ShopID,
		secretKey:  cfg.SecretKey,
		timeout:    timeout,
		httpClient: &http.Client{},
	}
}

// FindPayment 按 id 查询支付，超时返回 ErrGatewayTimeout
func (c *Client) FindPayment(ctx context.Context, paymentID string) (*Payment, error) {
	var payment Payment
	path := "/payments/" + url.PathEscape(paymentID)
	if err := c.do(ctx, http.MethodGet, path, "", nil, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// CreatePayment 创建支付，Idempotence-Key 保证网关侧不会重复创建
func (c *Client) CreatePayment(ctx context.Context, req *CreatePaymentRequest) (*Payment, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	var payment Payment
	if err := c.do(ctx, http.MethodPost, "/payments", uuid.NewString(), body, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

func (c *Client) do(ctx context.Context, method, path, idempotenceKey string, body []byte, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("构造请求失败: %w", err)
	}
	req.SetBasicAuth(c.shopID, c.secretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotenceKey != "" {
		req.Header.Set("Idempotence-Key", idempotenceKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return fmt.Errorf("%w: %s %s", ErrGatewayTimeout, method, path)
		}
		return fmt.Errorf("请求支付网关失败: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		if isTimeout(ctx, err) {
			return fmt.Errorf("%w: %s %s", ErrGatewayTimeout, method, path)
		}
		return fmt.Errorf("读取响应失败: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrPaymentNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		return apiErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	return nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
