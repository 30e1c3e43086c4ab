package handler

import (
	"petmaster/internal/config"
	"petmaster/internal/gateway"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config, gw gateway.TradeGateway, verifier *gateway.NotifyVerifier, logger *zap.Logger) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware(logger))
	r.Use(LoggerMiddleware(logger))
	r.Use(CORSMiddleware())

	// 创建处理器
	h := NewHandler(db, rdb, cfg, gw, verifier, logger)

	// API 路由组
	api := r.Group("/api/v1")
	{
		// 支付相关
		payment := api.Group("/payment")
		{
			payment.POST("/create", h.CreatePayment)
			payment.GET("/detail", h.GetPayment)
			payment.GET("/status", h.PollPaymentStatus)
			payment.GET("/list", h.ListPayments)
			payment.POST("/alipay/notify", h.AlipayNotify)
		}

		// 会员卡相关
		card := api.Group("/card")
		{
			card.POST("/open", h.OpenCard)
			card.GET("/detail", h.GetCard)
			card.GET("/recharge_records", h.ListRechargeRecords)
			card.POST("/debit", h.DebitCard)
			card.POST("/retire", h.RetireCard)
		}

		// 积分相关
		points := api.Group("/points")
		{
			points.GET("/records", h.ListPointRecords)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
