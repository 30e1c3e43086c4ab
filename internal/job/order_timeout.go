package job

import (
	"context"
	"time"

	"petmaster/internal/config"
	"petmaster/internal/model"
	"petmaster/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OrderTimeoutJob 定期扫描超过有效期仍未支付的订单并关闭。
// 关闭后网关侧仍可能送达迟到的成功通知，由结算引擎按异常流程处理。
type OrderTimeoutJob struct {
	db        *gorm.DB
	orderRepo *repository.OrderRepository
	cfg       *config.Config
	logger    *zap.Logger
	stopCh    chan struct{}
	interval  time.Duration
	batchSize int
}

func NewOrderTimeoutJob(db *gorm.DB, cfg *config.Config, logger *zap.Logger) *OrderTimeoutJob {
	return &OrderTimeoutJob{
		db:        db,
		orderRepo: repository.NewOrderRepository(db),
		cfg:       cfg,
		logger:    logger,
		stopCh:    make(chan struct{}),
		interval:  10 * time.Second,
		batchSize: 100,
	}
}

func (j *OrderTimeoutJob) Start(ctx context.Context) {
	j.logger.Info("[OrderTimeoutJob] 订单超时任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("[OrderTimeoutJob] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			j.logger.Info("[OrderTimeoutJob] 任务停止")
			return
		case <-ticker.C:
			j.closeExpiredOrders(ctx)
		}
	}
}

func (j *OrderTimeoutJob) Stop() {
	close(j.stopCh)
}

func (j *OrderTimeoutJob) closeExpiredOrders(ctx context.Context) {
	orders, err := j.orderRepo.GetExpiredOrders(ctx, j.batchSize)
	if err != nil {
		j.logger.Error("[OrderTimeoutJob] 查询超时订单失败", zap.Error(err))
		return
	}

	if len(orders) == 0 {
		return
	}

	j.logger.Info("[OrderTimeoutJob] 发现超时订单", zap.Int("count", len(orders)))

	closedCount := 0
	for _, order := range orders {
		// CAS 关闭：并发结算成功的订单状态已变，这里会失败并跳过
		err := j.orderRepo.UpdateStatus(ctx, nil, order.OrderNo, order.Status, model.OrderStatusClosed)
		if err != nil {
			j.logger.Warn("[OrderTimeoutJob] 关闭订单失败",
				zap.String("order_no", order.OrderNo), zap.Error(err))
			continue
		}
		closedCount++
		j.logger.Info("[OrderTimeoutJob] 订单已超时关闭",
			zap.String("order_no", order.OrderNo),
			zap.Int64("user_id", order.UserID),
			zap.Int64("amount", order.Amount),
		)
	}

	j.logger.Info("[OrderTimeoutJob] 本次关闭超时订单", zap.Int("closed", closedCount))
}
