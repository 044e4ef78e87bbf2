package config

import (
	"errors"
	"fmt"
)

type RiskMonitor struct {
	HealthServerAddr    string   `toml:"health_server_addr"`
	EvaluateSchedule    string   `toml:"evaluate_schedule"`
	AlertMonitorEnabled bool     `toml:"alert_monitor_enabled"`
	DefaultFrequency    int64    `toml:"default_frequency"`
	PriceWSURL          string   `toml:"price_ws_url"`
	PriceAssets         []string `toml:"price_assets"`
	PriceFeedEnabled    bool     `toml:"price_feed_enabled"`
}

type RiskLevels struct {
	Low    float64 `toml:"low"`
	Medium float64 `toml:"medium"`
	High   float64 `toml:"high"`
}

type MySQL struct {
	DSN                string   `toml:"dsn"`
	SlaveAddr          []string `toml:"slave_addr"`
	MaxIdleConnections int      `toml:"max_idle_connections"`
	MaxOpenConnections int      `toml:"max_open_connections"`
	SetConnMaxLifetime int      `toml:"set_conn_max_lifetime"`
	SetConnMaxIdleTime int      `toml:"set_conn_max_idle_time"`
	ProxyEnabled       bool     `toml:"proxy_enabled"`
	ProxyAddr          string   `toml:"proxy_addr"`
}

type NATS struct {
	Endpoint       string `toml:"endpoint"`
	AlertSubject   string `toml:"alert_subject"`
	MetricsSubject string `toml:"metrics_subject"`
}

type Logger struct {
	Level      string `toml:"level"`
	MaxSize    int    `toml:"max_size"`
	MaxBackups int    `toml:"max_backups"`
	MaxAge     int    `toml:"max_age"`
	Compress   bool   `toml:"compress"`
	Console    bool   `toml:"console"`
}

type Config struct {
	RiskMonitor RiskMonitor `toml:"risk_monitor"`
	RiskLevels  RiskLevels  `toml:"risk_levels"`
	MySQL       MySQL       `toml:"mysql"`
	NATS        NATS        `toml:"nats"`
	Logger      Logger      `toml:"log"`
}

func Default() *Config {
	return &Config{
		RiskMonitor: RiskMonitor{
			HealthServerAddr:    "0.0.0.0:16810",
			EvaluateSchedule:    "@every 60s",
			AlertMonitorEnabled: true,
			DefaultFrequency:    900, // 15 分钟冷却
			PriceWSURL:          "wss://api.hyperliquid.xyz/ws",
			PriceAssets:         []string{"BTC", "ETH", "SOL"},
			PriceFeedEnabled:    true,
		},
		RiskLevels: RiskLevels{
			Low:    -25,
			Medium: -50,
			High:   -75,
		},
		MySQL: MySQL{
			DSN:                "root:password@tcp(localhost:3306)/utrading?charset=utf8mb4&parseTime=True&loc=Local",
			SlaveAddr:          []string{},
			MaxIdleConnections: 16,
			MaxOpenConnections: 64,
			SetConnMaxLifetime: 7200,
			SetConnMaxIdleTime: 3600,
			ProxyEnabled:       false,
			ProxyAddr:          "127.0.0.1:7890",
		},
		NATS: NATS{
			Endpoint:       "nats://localhost:4222",
			AlertSubject:   "risk.alert.fired",
			MetricsSubject: "risk.pass.summary",
		},
		Logger: Logger{
			Level:      "info",
			MaxSize:    10,
			MaxBackups: 60,
			MaxAge:     7,
			Compress:   false,
			Console:    false,
		},
	}
}

// Validate 校验运行必需的配置项
func (c *Config) Validate() error {
	var errs []error
	if c.RiskMonitor.EvaluateSchedule == "" {
		errs = append(errs, errors.New("risk_monitor.evaluate_schedule is empty"))
	}
	if c.RiskMonitor.DefaultFrequency < 0 {
		errs = append(errs, fmt.Errorf("risk_monitor.default_frequency %d is negative", c.RiskMonitor.DefaultFrequency))
	}
	if c.RiskMonitor.PriceFeedEnabled && c.RiskMonitor.PriceWSURL == "" {
		errs = append(errs, errors.New("risk_monitor.price_ws_url is required when price feed is enabled"))
	}
	if c.MySQL.ProxyEnabled && c.MySQL.ProxyAddr == "" {
		errs = append(errs, errors.New("mysql.proxy_addr is required when proxy is enabled"))
	}
	return errors.Join(errs...)
}
