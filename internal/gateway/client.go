package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// TransactionState 网关状态查询接口的返回
type TransactionState struct {
	StatusCode        string `json:"status_code"`
	StatusMessage     string `json:"status_message"`
	TransactionID     string `json:"transaction_id"`
	OrderID           string `json:"order_id"`
	GrossAmount       string `json:"gross_amount"`
	PaymentType       string `json:"payment_type"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	TransactionTime   string `json:"transaction_time"`
	SettlementTime    string `json:"settlement_time"`
}

// Client 网关 API 客户端，只用于人工复核时回查交易状态，不参与回调处理
type Client struct {
	http *resty.Client
}

func NewClient(baseURL, serverKey string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetBasicAuth(serverKey, "").
		SetHeader("Accept", "application/json").
		SetTimeout(timeout)
	return &Client{http: c}
}

// TransactionStatus GET /v2/{id}/status，id 可以是交易号或 order_id
func (c *Client) TransactionStatus(ctx context.Context, id string) (*TransactionState, error) {
	var state TransactionState
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&state).
		Get("/v2/{id}/status")
	if err != nil {
		return nil, fmt.Errorf("查询交易状态失败: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("查询交易状态失败: http %d", resp.StatusCode())
	}
	return &state, nil
}
