package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"logipay/internal/config"
	"logipay/internal/infrastructure/database"
	"logipay/internal/rates"
	"logipay/internal/service"
	"logipay/pkg/idgen"
	"logipay/pkg/logging"
	"logipay/pkg/response"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	idgen.Init(2)
	os.Exit(m.Run())
}

type fixedRates struct{}

func (fixedRates) CalculateRate(context.Context, rates.Request) (*rates.Quote, error) {
	return &rates.Quote{NetAmount: decimal.NewFromInt(200)}, nil
}

func newTestRouter(t *testing.T) (http.Handler, *gorm.DB, *config.Config) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	cfg := &config.Config{
		Kafka: config.KafkaConfig{
			Topic: config.KafkaTopicConfig{
				ShipmentBooked: "shipment_booked",
				RechargeResult: "recharge_result",
			},
		},
		Webhook:  config.WebhookConfig{Secret: "test-secret"},
		Business: config.BusinessConfig{MaxRetryCount: 5},
	}

	logger := logging.NewLogger()
	logger.SetOutput(io.Discard)

	return SetupRouter(db, nil, cfg, fixedRates{}, logger), db, cfg
}

func postJSON(t *testing.T, router http.Handler, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	b, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestWebhookRejectsBadSecret(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := postJSON(t, router, "/api/v1/webhook/payment", map[string]string{
		"order_reference": "RCH-1",
		"status":          "SUCCESS",
	}, map[string]string{"X-Webhook-Secret": "wrong"})

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebhookRejectsMalformedPayload(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook/payment", bytes.NewReader([]byte("{not json")))
	req.Header.Set("X-Webhook-Secret", "test-secret")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookUnknownReferenceReturns500(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := postJSON(t, router, "/api/v1/webhook/payment", map[string]string{
		"order_reference": "RCH-MISSING",
		"status":          "SUCCESS",
	}, map[string]string{"X-Webhook-Secret": "test-secret"})

	require.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestWebhookSettlesRecharge(t *testing.T) {
	router, db, cfg := newTestRouter(t)

	logger := logging.NewLogger()
	logger.SetOutput(io.Discard)
	rechargeSvc := service.NewRechargeService(db, nil, cfg, logger)
	recharge, err := rechargeSvc.CreateIntent(context.Background(), service.CreateIntentRequest{
		FranchiseID: 1,
		CustomerID:  10,
		Amount:      decimal.NewFromInt(1000),
	})
	require.NoError(t, err)

	w := postJSON(t, router, "/api/v1/webhook/payment", map[string]interface{}{
		"order_reference": recharge.OrderReference,
		"payment_id":      "pay_h1",
		"status":          "SUCCESS",
		"amount":          1000,
	}, map[string]string{"X-Webhook-Secret": "test-secret"})

	require.Equal(t, http.StatusOK, w.Code)

	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, response.CodeSuccess, resp.Code)

	// Second delivery acknowledges without re-crediting.
	w = postJSON(t, router, "/api/v1/webhook/payment", map[string]interface{}{
		"order_reference": recharge.OrderReference,
		"payment_id":      "pay_h1",
		"status":          "SUCCESS",
		"amount":          1000,
	}, map[string]string{"X-Webhook-Secret": "test-secret"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "already_processed")
}

func TestWalletSummaryParamValidation(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/wallet/summary?franchise_id=abc", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, response.CodeParamError, resp.Code)
}

func TestHealthEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "ok")
}
