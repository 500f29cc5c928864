package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Address string `mapstructure:"address"`
	Port    int    `mapstructure:"port"`
	Mode    string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Path    string `mapstructure:"path"`
	LogMode bool   `mapstructure:"log_mode"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	Issuer      string `mapstructure:"issuer"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// LedgerConfig holds the transfer adjustment pipeline and the legacy
// money adapter rate.
type LedgerConfig struct {
	TaxPercent         int64 `mapstructure:"tax_percent"`
	BonusPercent       int64 `mapstructure:"bonus_percent"`
	MoneyToMinutesRate int64 `mapstructure:"money_to_minutes_rate"`
}

type LoanConfig struct {
	ApproveLimitHours       int64 `mapstructure:"approve_limit_hours"`
	BlockLimitHours         int64 `mapstructure:"block_limit_hours"`
	Installments            int   `mapstructure:"installments"`
	InstallmentIntervalDays int   `mapstructure:"installment_interval_days"`
	FixedDueDays            int   `mapstructure:"fixed_due_days"`
	RepaymentDueDays        int   `mapstructure:"repayment_due_days"`
}

type AlertConfig struct {
	Interval                  time.Duration `mapstructure:"interval"`
	LowBalanceMinutes         int64         `mapstructure:"low_balance_minutes"`
	SuspiciousTransferMinutes int64         `mapstructure:"suspicious_transfer_minutes"`
	TelegramToken             string        `mapstructure:"telegram_token"`
	TelegramChatID            int64         `mapstructure:"telegram_chat_id"`
}

type ExportConfig struct {
	Dir string `mapstructure:"dir"`
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Log      LogConfig      `mapstructure:"log"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Loan     LoanConfig     `mapstructure:"loan"`
	Alert    AlertConfig    `mapstructure:"alert"`
	Export   ExportConfig   `mapstructure:"export"`
}

var (
	appConfig *Config
	once      sync.Once
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")

	v.SetDefault("database.path", "data/chronobank.db")
	v.SetDefault("database.log_mode", false)

	v.SetDefault("jwt.secret", "change-me")
	v.SetDefault("jwt.issuer", "chronobank")
	v.SetDefault("jwt.expire_hours", 24)

	v.SetDefault("log.level", "info")

	v.SetDefault("ledger.tax_percent", 5)
	v.SetDefault("ledger.bonus_percent", 2)
	v.SetDefault("ledger.money_to_minutes_rate", 2)

	v.SetDefault("loan.approve_limit_hours", 500)
	v.SetDefault("loan.block_limit_hours", 1000)
	v.SetDefault("loan.installments", 4)
	v.SetDefault("loan.installment_interval_days", 7)
	v.SetDefault("loan.fixed_due_days", 28)
	v.SetDefault("loan.repayment_due_days", 5)

	v.SetDefault("alert.interval", time.Minute)
	v.SetDefault("alert.low_balance_minutes", 20*60)
	v.SetDefault("alert.suspicious_transfer_minutes", 90*60)
	v.SetDefault("alert.telegram_token", "")
	v.SetDefault("alert.telegram_chat_id", 0)

	v.SetDefault("export.dir", "data/exports")
}

// Load loads configuration from given file path (e.g. "config.yaml").
// A missing file is not an error: defaults and CHRONO_* environment
// variables still apply.
func Load(path string) (*Config, error) {
	var err error
	once.Do(func() {
		v := viper.New()
		setDefaults(v)

		if path == "" {
			v.SetConfigName("config")
			v.SetConfigType("yaml")
			v.AddConfigPath(".")
		} else {
			v.SetConfigFile(path)
		}

		// environment overrides, e.g. CHRONO_SERVER_PORT=9000
		v.SetEnvPrefix("CHRONO")
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()

		if rerr := v.ReadInConfig(); rerr != nil && !isNotFound(rerr) {
			err = fmt.Errorf("read config: %w", rerr)
			return
		}

		var c Config
		if err = v.Unmarshal(&c); err != nil {
			err = fmt.Errorf("unmarshal config: %w", err)
			return
		}
		if err = c.Validate(); err != nil {
			err = fmt.Errorf("invalid config: %w", err)
			return
		}

		appConfig = &c
	})

	if err != nil {
		return nil, err
	}
	return appConfig, nil
}

// Validate rejects settings the ledger and loan code cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Ledger.TaxPercent < 0 {
		errs = append(errs, fmt.Errorf("ledger.tax_percent must not be negative, got %d", c.Ledger.TaxPercent))
	}
	if c.Ledger.BonusPercent < 0 {
		errs = append(errs, fmt.Errorf("ledger.bonus_percent must not be negative, got %d", c.Ledger.BonusPercent))
	}
	if c.Ledger.MoneyToMinutesRate <= 0 {
		errs = append(errs, fmt.Errorf("ledger.money_to_minutes_rate must be positive, got %d", c.Ledger.MoneyToMinutesRate))
	}
	if c.Loan.Installments < 1 {
		errs = append(errs, fmt.Errorf("loan.installments must be at least 1, got %d", c.Loan.Installments))
	}
	if c.Loan.ApproveLimitHours <= 0 || c.Loan.ApproveLimitHours > c.Loan.BlockLimitHours {
		errs = append(errs, fmt.Errorf("loan limits need 0 < approve_limit_hours <= block_limit_hours, got %d and %d",
			c.Loan.ApproveLimitHours, c.Loan.BlockLimitHours))
	}
	if c.Loan.InstallmentIntervalDays < 0 || c.Loan.FixedDueDays < 0 || c.Loan.RepaymentDueDays < 0 {
		errs = append(errs, errors.New("loan day counts must not be negative"))
	}
	if c.Alert.Interval <= 0 {
		errs = append(errs, fmt.Errorf("alert.interval must be positive, got %s", c.Alert.Interval))
	}
	if c.JWT.ExpireHours <= 0 {
		errs = append(errs, fmt.Errorf("jwt.expire_hours must be positive, got %d", c.JWT.ExpireHours))
	}
	return errors.Join(errs...)
}

// isNotFound reports whether a read error only means the file is absent.
// SetConfigFile surfaces a plain fs error instead of ConfigFileNotFoundError.
func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

// Default returns the built-in configuration without touching disk or env.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var c Config
	_ = v.Unmarshal(&c)
	return &c
}

// Get returns the loaded global configuration.
// Call Load() once at application startup.
func Get() *Config {
	return appConfig
}
