package handler_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"storefront/internal/config"
	"storefront/internal/gateway"
	"storefront/internal/handler"
	"storefront/internal/mocks"
	"storefront/internal/model"
	"storefront/internal/repository"
	"storefront/internal/service"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const jwtSecret = "test-secret"

type deps struct {
	reconciler *mocks.MockReconciler
	orders     *mocks.MockOrderService
	users      *mocks.MockUserService
	reviews    *mocks.MockReviewService
}

func newServer(t *testing.T, burst int) (http.Handler, deps) {
	t.Helper()
	ctrl := gomock.NewController(t)
	d := deps{
		reconciler: mocks.NewMockReconciler(ctrl),
		orders:     mocks.NewMockOrderService(ctrl),
		users:      mocks.NewMockUserService(ctrl),
		reviews:    mocks.NewMockReviewService(ctrl),
	}
	cfg := &config.Config{
		Server:    config.ServerConfig{Mode: "test"},
		Auth:      config.AuthConfig{JWTSecret: jwtSecret},
		RateLimit: config.RateLimitConfig{RPS: 1, Burst: burst},
	}
	h := handler.NewHandler(d.reconciler, d.orders, d.users, d.reviews, nil)
	return handler.SetupRouter(h, cfg, nil), d
}

func token(t *testing.T, userID int64, role string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"exp":     jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	s, err := tok.SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return s
}

func do(srv http.Handler, method, path, body, bearer string) *httptest.ResponseRecorder {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	if bearer != "" {
		r.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)
	return w
}

func TestHandler_Notification(t *testing.T) {
	tests := []struct {
		name   string
		result *service.NotificationResult
		err    error
		status int
	}{
		{
			name:   "applied",
			result: &service.NotificationResult{OrderStatus: model.OrderStatusProcessing, TransactionStatus: "settlement", Outcome: service.OutcomeApplied},
			status: http.StatusOK,
		},
		{
			name:   "held for review",
			result: &service.NotificationResult{OrderStatus: model.OrderStatusPendingPayment, TransactionStatus: "capture", Outcome: service.OutcomeHeld},
			status: http.StatusOK,
		},
		{name: "bad signature", err: gateway.ErrInvalidSignature, status: http.StatusForbidden},
		{name: "malformed order id", err: fmt.Errorf("%w: %q", gateway.ErrMalformedIdentifier, "x"), status: http.StatusBadRequest},
		{name: "invalid payload", err: gateway.ErrInvalidNotification, status: http.StatusBadRequest},
		{name: "unknown order", err: repository.ErrOrderNotFound, status: http.StatusNotFound},
		{name: "internal", err: errors.New("connection reset"), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, d := newServer(t, 100)
			body := `{"order_id":"ORD1-FULL"}`
			d.reconciler.EXPECT().
				HandleNotification(gomock.Any(), []byte(body)).
				Return(tt.result, tt.err).
				Times(1)

			w := do(srv, http.MethodPost, "/api/v1/payments/notification", body, "")
			assert.Equal(t, tt.status, w.Code)

			var got map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Equal(t, tt.err == nil, got["success"])
			if tt.result != nil {
				assert.Equal(t, tt.result.OrderStatus, got["orderStatus"])
				assert.Equal(t, tt.result.TransactionStatus, got["transactionStatus"])
			}
		})
	}
}

func TestHandler_NotificationRateLimited(t *testing.T) {
	srv, d := newServer(t, 1)
	d.reconciler.EXPECT().
		HandleNotification(gomock.Any(), gomock.Any()).
		Return(&service.NotificationResult{Outcome: service.OutcomeIgnored}, nil).
		Times(1)

	assert.Equal(t, http.StatusOK, do(srv, http.MethodPost, "/api/v1/payments/notification", `{}`, "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(srv, http.MethodPost, "/api/v1/payments/notification", `{}`, "").Code)
}

func TestHandler_Health(t *testing.T) {
	srv, _ := newServer(t, 1)
	assert.Equal(t, http.StatusOK, do(srv, http.MethodGet, "/health", "", "").Code)
	assert.Equal(t, http.StatusOK, do(srv, http.MethodGet, "/api/v1/payments/notification", "", "").Code)
}

func TestHandler_UserRoutes(t *testing.T) {
	srv, d := newServer(t, 1)

	w := do(srv, http.MethodGet, "/api/v1/users/me/statistics", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(srv, http.MethodGet, "/api/v1/users/me/statistics", "", "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	d.users.EXPECT().
		Statistics(gomock.Any(), int64(7)).
		Return(&model.Statistics{UserID: 7, TotalOrders: 3, TotalSpent: decimal.NewFromInt(1500)}, nil).
		Times(1)
	w = do(srv, http.MethodGet, "/api/v1/users/me/statistics", "", token(t, 7, "user"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_orders":3`)

	d.users.EXPECT().
		Referral(gomock.Any(), int64(7)).
		Return(nil, repository.ErrUserNotFound).
		Times(1)
	w = do(srv, http.MethodGet, "/api/v1/users/me/referral", "", token(t, 7, "user"))
	assert.Equal(t, http.StatusNotFound, w.Code)

	d.orders.EXPECT().
		GetUserOrder(gomock.Any(), int64(7), "ORD42").
		Return(nil, repository.ErrOrderNotFound).
		Times(1)
	w = do(srv, http.MethodGet, "/api/v1/orders/ORD42", "", token(t, 7, "user"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_AdminRoutes(t *testing.T) {
	srv, d := newServer(t, 1)
	admin := token(t, 1, "admin")

	w := do(srv, http.MethodGet, "/api/v1/admin/reviews", "", token(t, 7, "user"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "advanced", status: http.StatusOK},
		{name: "illegal transition", err: repository.ErrOrderStatusInvalid, status: http.StatusConflict},
		{name: "unknown order", err: repository.ErrOrderNotFound, status: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var order *model.Order
			if tt.err == nil {
				order = &model.Order{OrderNo: "ORD1", Status: model.OrderStatusReadyToShip}
			}
			d.orders.EXPECT().
				AdvanceStatus(gomock.Any(), "ORD1", model.OrderStatusReadyToShip).
				Return(order, tt.err).
				Times(1)

			w := do(srv, http.MethodPost, "/api/v1/admin/orders/ORD1/status", `{"status":"READY_TO_SHIP"}`, admin)
			assert.Equal(t, tt.status, w.Code)
		})
	}

	d.reviews.EXPECT().
		Resolve(gomock.Any(), int64(5), "1", "checked with bank").
		Return(&model.PaymentReview{ID: 5, Resolved: true}, nil).
		Times(1)
	w = do(srv, http.MethodPost, "/api/v1/admin/reviews/5/resolve", `{"note":"checked with bank"}`, admin)
	assert.Equal(t, http.StatusOK, w.Code)

	d.reviews.EXPECT().
		Recheck(gomock.Any(), int64(5)).
		Return(nil, service.ErrGatewayUnavailable).
		Times(1)
	w = do(srv, http.MethodPost, "/api/v1/admin/reviews/5/recheck", "", admin)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	d.users.EXPECT().
		Register(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ any, req *service.RegisterRequest) (*model.User, error) {
			assert.Equal(t, "REF-ABC123", req.ReferralCode)
			require.NotNil(t, req.ReferrerRate)
			assert.Equal(t, "5", req.ReferrerRate.String())
			return &model.User{ID: 9, ReferralCode: "REF-XYZ789"}, nil
		}).
		Times(1)
	w = do(srv, http.MethodPost, "/api/v1/admin/users", `{"referral_code":"REF-ABC123","referrer_rate":"5"}`, admin)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(srv, http.MethodPost, "/api/v1/admin/users", `{"referrer_rate":"-1"}`, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	d.orders.EXPECT().
		CreateOrder(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ any, req *service.CreateOrderRequest) (*model.Order, error) {
			require.Len(t, req.Lines, 1)
			assert.Equal(t, "19.90", req.Lines[0].UnitPrice.StringFixed(2))
			return &model.Order{OrderNo: "ORD77", Status: model.OrderStatusPendingPayment, Total: decimal.RequireFromString("39.80")}, nil
		}).
		Times(1)
	w = do(srv, http.MethodPost, "/api/v1/admin/orders",
		`{"user_id":7,"lines":[{"product_id":1,"name":"tea","quantity":2,"unit_price":"19.90"}]}`, admin)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(srv, http.MethodPost, "/api/v1/admin/orders", `{"user_id":7,"lines":[]}`, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
