package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Alipay   AlipayConfig   `mapstructure:"alipay"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	PaymentSettled string `mapstructure:"payment_settled"`
	PaymentAnomaly string `mapstructure:"payment_anomaly"`
}

// AlipayConfig 支付宝网关配置
// AppPrivateKey 为应用私钥，AlipayPublicKey 为支付宝公钥（验签用）
type AlipayConfig struct {
	AppID           string `mapstructure:"app_id"`
	AppPrivateKey   string `mapstructure:"app_private_key"`
	AlipayPublicKey string `mapstructure:"alipay_public_key"`
	UseSandbox      bool   `mapstructure:"use_sandbox"`
	NotifyURL       string `mapstructure:"notify_url"`
	ReturnURL       string `mapstructure:"return_url"`
}

type BusinessConfig struct {
	OrderTimeoutMinutes int  `mapstructure:"order_timeout_minutes"`
	MaxRetryCount       int  `mapstructure:"max_retry_count"`
	PointsPerYuan       int  `mapstructure:"points_per_yuan"`    // 消费积分比例，默认 1元=1分
	AllowLateSuccess    bool `mapstructure:"allow_late_success"` // 超时关单后到达的成功通知是否仍然入账
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if config.Business.OrderTimeoutMinutes <= 0 {
		config.Business.OrderTimeoutMinutes = 30
	}
	if config.Business.MaxRetryCount <= 0 {
		config.Business.MaxRetryCount = 5
	}
	if config.Business.PointsPerYuan <= 0 {
		config.Business.PointsPerYuan = 1
	}

	return config, nil
}
