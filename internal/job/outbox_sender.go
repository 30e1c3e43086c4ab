package job

import (
	"context"
	"time"

	"petmaster/internal/config"
	"petmaster/internal/infrastructure/mq"
	"petmaster/internal/model"
	"petmaster/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OutboxSender 扫描事务发件箱，把结算事件投递到 Kafka。
// 事件写库与结算在同一事务提交，发送失败只会重试，不会丢失。
type OutboxSender struct {
	db         *gorm.DB
	outboxRepo *repository.OutboxRepository
	cfg        *config.Config
	logger     *zap.Logger
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
}

func NewOutboxSender(db *gorm.DB, cfg *config.Config, logger *zap.Logger) *OutboxSender {
	return &OutboxSender{
		db:         db,
		outboxRepo: repository.NewOutboxRepository(db),
		cfg:        cfg,
		logger:     logger,
		stopCh:     make(chan struct{}),
		interval:   100 * time.Millisecond,
		batchSize:  100,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	s.logger.Info("[OutboxSender] 消息发送任务启动")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("[OutboxSender] 收到停止信号，任务退出")
			return
		case <-s.stopCh:
			s.logger.Info("[OutboxSender] 任务停止")
			return
		case <-ticker.C:
			s.processPendingMessages(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

func (s *OutboxSender) processPendingMessages(ctx context.Context) {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		s.logger.Error("[OutboxSender] 查询消息失败", zap.Error(err))
		return
	}

	if len(messages) == 0 {
		return
	}

	for _, msg := range messages {
		s.sendMessage(ctx, msg)
	}
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) {
	err := mq.SendMessage(msg.Topic, msg.MessageKey, msg.Payload)

	if err == nil {
		if updateErr := s.outboxRepo.UpdateStatus(ctx, msg.ID, model.OutboxStatusSent); updateErr != nil {
			s.logger.Error("[OutboxSender] 更新消息状态失败",
				zap.Int64("id", msg.ID), zap.Error(updateErr))
		} else {
			s.logger.Info("[OutboxSender] 消息发送成功",
				zap.Int64("id", msg.ID),
				zap.String("topic", msg.Topic),
				zap.String("key", msg.MessageKey),
			)
		}
		return
	}

	s.logger.Warn("[OutboxSender] 消息发送失败", zap.Int64("id", msg.ID), zap.Error(err))

	if err := s.outboxRepo.IncrementRetryCount(ctx, msg.ID); err != nil {
		s.logger.Error("[OutboxSender] 增加重试次数失败", zap.Int64("id", msg.ID), zap.Error(err))
	}

	if msg.RetryCount+1 >= s.cfg.Business.MaxRetryCount {
		if err := s.outboxRepo.MarkAsFailed(ctx, msg.ID); err != nil {
			s.logger.Error("[OutboxSender] 标记消息失败状态失败", zap.Int64("id", msg.ID), zap.Error(err))
		} else {
			s.logger.Warn("[OutboxSender] 消息超过最大重试次数，标记为失败", zap.Int64("id", msg.ID))
		}
	}
}
