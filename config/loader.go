package config

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/utrading/utrading-risk-monitor/pkg/logger"
)

// 环境变量覆盖项（可放在 .env 中）
const (
	EnvMySQLDSN     = "RISK_MYSQL_DSN"
	EnvNATSEndpoint = "RISK_NATS_ENDPOINT"
)

var (
	current atomic.Pointer[Config]

	mu        sync.Mutex
	path      string
	modTime   time.Time
	listeners []func(*Config)
	stopCh    chan struct{}
)

// Get 返回当前配置快照，调用方不应修改
func Get() *Config {
	return current.Load()
}

// Load 读取配置文件：默认值 <- 文件 <- 环境变量，校验失败时不替换当前配置
func Load(file string) error {
	info, err := os.Stat(file)
	if err != nil {
		return err
	}

	c := Default()
	if _, err = toml.DecodeFile(file, c); err != nil {
		return fmt.Errorf("decode %s: %w", file, err)
	}
	applyEnv(c)
	if err = c.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", file, err)
	}

	mu.Lock()
	path = file
	modTime = info.ModTime()
	fns := append([]func(*Config){}, listeners...)
	mu.Unlock()

	current.Store(c)
	for _, fn := range fns {
		fn(c)
	}
	return nil
}

// OnReload 注册配置变更回调（每次 Load 成功后调用）
func OnReload(fn func(*Config)) {
	mu.Lock()
	defer mu.Unlock()
	listeners = append(listeners, fn)
}

// LoadEnv 读取 .env 文件到进程环境，文件不存在时忽略
// 已存在的环境变量不会被覆盖
func LoadEnv(files ...string) error {
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// applyEnv 敏感配置以环境变量为准
func applyEnv(c *Config) {
	if v := os.Getenv(EnvMySQLDSN); v != "" {
		c.MySQL.DSN = v
	}
	if v := os.Getenv(EnvNATSEndpoint); v != "" {
		c.NATS.Endpoint = v
	}
}

// Init 加载配置并每 10 秒检查文件变更
func Init(file string) error {
	return InitWithInterval(file, 10*time.Second)
}

func InitWithInterval(file string, interval time.Duration) error {
	if err := Load(file); err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	if stopCh != nil {
		return nil
	}
	stopCh = make(chan struct{})
	go watch(interval, stopCh)
	return nil
}

// Stop 停止配置重载
func Stop() {
	mu.Lock()
	defer mu.Unlock()
	if stopCh != nil {
		close(stopCh)
		stopCh = nil
	}
}

func watch(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			reloadIfNeeded()
		case <-stop:
			return
		}
	}
}

// reloadIfNeeded 仅在文件 mtime 变化时重载
func reloadIfNeeded() {
	mu.Lock()
	file, last := path, modTime
	mu.Unlock()

	if file == "" {
		return
	}

	info, err := os.Stat(file)
	if err != nil {
		logger.Error().Err(err).Msg("config stat failed")
		return
	}
	if !info.ModTime().After(last) {
		return
	}

	if err = Load(file); err != nil {
		logger.Error().Err(err).Msg("config reload failed")
		return
	}
	logger.Info().Str("path", file).Msg("config reloaded")
}
