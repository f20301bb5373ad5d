package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"testing"

	"logipay/internal/config"
	"logipay/internal/infrastructure/database"
	"logipay/internal/rates"
	"logipay/pkg/idgen"
	"logipay/pkg/logging"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	idgen.Init(1)
	os.Exit(m.Run())
}

// newTestDB opens a per-test in-memory database so tests never share state.
// Shared cache keeps every connection in the pool on the same database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func newTestLogger() *logging.Logger {
	logger := logging.NewLogger()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestConfig() *config.Config {
	return &config.Config{
		Kafka: config.KafkaConfig{
			Topic: config.KafkaTopicConfig{
				ShipmentBooked: "shipment_booked",
				RechargeResult: "recharge_result",
			},
		},
		Business: config.BusinessConfig{MaxRetryCount: 5},
	}
}

// fakeRateCalculator returns a canned quote or error.
type fakeRateCalculator struct {
	quote *rates.Quote
	err   error
}

func (f *fakeRateCalculator) CalculateRate(_ context.Context, _ rates.Request) (*rates.Quote, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.quote, nil
}
