package config

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// Config 聚合执行层运行所需的全部配置项。
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Exchange  ExchangeConfig  `mapstructure:"exchange"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// ExchangeConfig 描述交易所连接信息。凭证通常来自环境变量
// BINANCE_API_KEY / BINANCE_API_SECRET，缺失时网关自动降级为模拟模式。
type ExchangeConfig struct {
	Name       string      `mapstructure:"name"`
	APIKey     string      `mapstructure:"api_key"`
	APISecret  string      `mapstructure:"api_secret"`
	UseSandbox bool        `mapstructure:"use_sandbox"`
	Retry      RetryConfig `mapstructure:"retry"`
}

// Credentialed 判断是否配置了完整的 API 凭证。
func (c ExchangeConfig) Credentialed() bool {
	return c.APIKey != "" && c.APISecret != ""
}

// RetryConfig 统一控制网关调用的重试机制。
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	MinDelay    time.Duration `mapstructure:"min_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// ExecutionConfig 控制策略执行行为。
type ExecutionConfig struct {
	PollInterval       time.Duration `mapstructure:"poll_interval"`
	MaxPollFailures    int           `mapstructure:"max_poll_failures"`
	GridPricePrecision int           `mapstructure:"grid_price_precision"`
	TimeInForce        string        `mapstructure:"time_in_force"`
}

// DatabaseConfig 管理事件日志使用的 SQLite 连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// LoggingConfig 控制日志输出。文件通道固定记录 Debug 级全量日志并按大小滚动，
// Level 仅作用于控制台通道。
type LoggingConfig struct {
	Level          string `mapstructure:"level"`
	FilePath       string `mapstructure:"file_path"`
	FileMaxSizeMB  int    `mapstructure:"file_max_size_mb"`
	FileMaxBackups int    `mapstructure:"file_max_backups"`
	Development    bool   `mapstructure:"development"`
}

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}
	if c.Exchange.Name == "" {
		err = multierr.Append(err, errors.New("exchange.name 不能为空"))
	}
	if c.Exchange.Retry.MaxAttempts <= 0 {
		err = multierr.Append(err, errors.New("exchange.retry.max_attempts 必须大于0"))
	}
	if c.Exchange.Retry.MinDelay <= 0 || c.Exchange.Retry.MaxDelay <= 0 {
		err = multierr.Append(err, errors.New("exchange.retry.delay 必须为正"))
	}
	if c.Exchange.Retry.MinDelay > c.Exchange.Retry.MaxDelay {
		err = multierr.Append(err, errors.New("exchange.retry.min_delay 不能大于 max_delay"))
	}
	if c.Execution.PollInterval <= 0 {
		err = multierr.Append(err, errors.New("execution.poll_interval 必须大于0"))
	}
	if c.Execution.MaxPollFailures <= 0 {
		err = multierr.Append(err, errors.New("execution.max_poll_failures 必须大于0"))
	}
	if c.Execution.GridPricePrecision < 0 || c.Execution.GridPricePrecision > 8 {
		err = multierr.Append(err, errors.New("execution.grid_price_precision 必须位于[0,8]"))
	}
	if c.Database.Path == "" && !c.Database.InMemory {
		err = multierr.Append(err, errors.New("database.path 不能为空"))
	}
	if c.Database.MaxOpenConns <= 0 {
		err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
	}
	if c.Database.MaxIdleConns < 0 {
		err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
	}
	if c.Database.ConnMaxLifetime < 0 {
		err = multierr.Append(err, errors.New("database.conn_max_lifetime 不能为负"))
	}
	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.FilePath == "" {
		err = multierr.Append(err, errors.New("logging.file_path 不能为空"))
	}
	if c.Logging.FileMaxSizeMB <= 0 {
		err = multierr.Append(err, errors.New("logging.file_max_size_mb 必须大于0"))
	}
	if c.Logging.FileMaxBackups < 0 {
		err = multierr.Append(err, errors.New("logging.file_max_backups 不能为负"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}
