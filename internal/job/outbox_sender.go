package job

import (
	"context"
	"time"

	"logipay/internal/config"
	"logipay/internal/infrastructure/mq"
	"logipay/internal/model"
	"logipay/internal/repository"
	"logipay/pkg/logging"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// OutboxSender drains committed outbox rows to kafka. Domain transactions
// only ever write the row; publishing happens here so a broker outage never
// rolls back a booking or a settlement.
type OutboxSender struct {
	db         *gorm.DB
	outboxRepo *repository.OutboxRepository
	producer   *mq.Producer
	cfg        *config.Config
	logger     *logging.Logger
	interval   time.Duration
	batchSize  int
}

func NewOutboxSender(db *gorm.DB, producer *mq.Producer, cfg *config.Config, logger *logging.Logger) *OutboxSender {
	return &OutboxSender{
		db:         db,
		outboxRepo: repository.NewOutboxRepository(db),
		producer:   producer,
		cfg:        cfg,
		logger:     logger,
		interval:   100 * time.Millisecond,
		batchSize:  100,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	s.logger.Info("outbox sender started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("outbox sender stopped")
			return
		case <-ticker.C:
			s.processPendingMessages(ctx)
		}
	}
}

func (s *OutboxSender) processPendingMessages(ctx context.Context) {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		s.logger.WithError(err).Error("failed to query pending outbox messages")
		return
	}

	for _, msg := range messages {
		s.sendMessage(ctx, msg)
	}
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) {
	err := s.producer.SendMessage(msg.Topic, msg.MessageKey, msg.Payload)
	if err == nil {
		if updateErr := s.outboxRepo.UpdateStatus(ctx, msg.ID, model.OutboxStatusSent); updateErr != nil {
			s.logger.WithError(updateErr).WithField("id", msg.ID).Error("failed to mark outbox message sent")
		}
		return
	}

	s.logger.WithError(err).WithFields(logrus.Fields{
		"id":    msg.ID,
		"topic": msg.Topic,
	}).Error("failed to publish outbox message")

	if err := s.outboxRepo.IncrementRetryCount(ctx, msg.ID); err != nil {
		s.logger.WithError(err).WithField("id", msg.ID).Error("failed to bump outbox retry count")
	}

	if msg.RetryCount+1 >= s.cfg.Business.MaxRetryCount {
		if err := s.outboxRepo.MarkAsFailed(ctx, msg.ID); err != nil {
			s.logger.WithError(err).WithField("id", msg.ID).Error("failed to mark outbox message failed")
		}
	}
}
