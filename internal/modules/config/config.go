package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	configFilePathENV = "CONFIG_FILE"
	configDir         = "configs"
	defaultConfigFile = "values_local.yaml"
)

// Config ...
type Config struct {
	Service   ServiceConfig   `mapstructure:"service"`
	Broker    BrokerConfig    `mapstructure:"broker"`
	Trading   TradingConfig   `mapstructure:"trading"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Log       LogConfig       `mapstructure:"log"`
	DB        string          `mapstructure:"db_dsn"`
}

type ServiceConfig struct {
	Name       string `mapstructure:"name"`
	Host       string `mapstructure:"host"`
	PublicPort int    `mapstructure:"public_port"` // control API
	AdminPort  int    `mapstructure:"admin_port"`  // health + metrics
}

type BrokerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ClientID        int           `mapstructure:"client_id"`
	Account         string        `mapstructure:"account"`
	GatewayURL      string        `mapstructure:"gateway_url"`
	ConnectAttempts int           `mapstructure:"connect_attempts"`
	ConnectDelay    time.Duration `mapstructure:"connect_delay"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	RatePerSec      float64       `mapstructure:"rate_per_sec"`
}

type TradingConfig struct {
	Symbols  []string `mapstructure:"symbols"` // доступные для включения
	OrderQty float64  `mapstructure:"order_qty"`
	Strategy string   `mapstructure:"strategy"` // ma4 | sma | donchian

	// смещения в пипсах от фактической цены входа
	TargetPips float64 `mapstructure:"target_pips"`
	StopPips   float64 `mapstructure:"stop_pips"`

	FillTimeout     time.Duration `mapstructure:"fill_timeout"`
	WatchdogTimeout time.Duration `mapstructure:"watchdog_timeout"`
	FallbackTimeout time.Duration `mapstructure:"fallback_timeout"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`

	CycleInterval time.Duration `mapstructure:"cycle_interval"`
	Workers       int           `mapstructure:"workers"`
	HistoryWindow string        `mapstructure:"history_window"`
	UpdateWindow  string        `mapstructure:"update_window"`
	BarSize       string        `mapstructure:"bar_size"`
	SeriesTail    int           `mapstructure:"series_tail"`

	ConfirmRequired bool          `mapstructure:"confirm_required"`
	ConfirmTimeout  time.Duration `mapstructure:"confirm_timeout"`
}

type ReconcileConfig struct {
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

type StorageConfig struct {
	DataDir       string `mapstructure:"data_dir"`
	ControlFile   string `mapstructure:"control_file"`
	OrderLog      string `mapstructure:"order_log"`
	PositionsFile string `mapstructure:"positions_file"`
	SignalsFile   string `mapstructure:"signals_file"`
}

type TelegramConfig struct {
	Token  string `mapstructure:"token"`
	ChatID int64  `mapstructure:"chat_id"`
}

type TracingConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	Dir   string `mapstructure:"dir"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.name", "bracket_bot")
	v.SetDefault("service.host", "0.0.0.0")
	v.SetDefault("service.public_port", 5000)
	v.SetDefault("service.admin_port", 8080)

	v.SetDefault("broker.host", "127.0.0.1")
	v.SetDefault("broker.port", 7497)
	v.SetDefault("broker.client_id", 2)
	v.SetDefault("broker.account", "")
	v.SetDefault("broker.gateway_url", "ws://127.0.0.1:8765/ws")
	v.SetDefault("broker.connect_attempts", 5)
	v.SetDefault("broker.connect_delay", "3s")
	v.SetDefault("broker.request_timeout", "10s")
	v.SetDefault("broker.rate_per_sec", 40)

	v.SetDefault("trading.symbols", []string{"EURUSD", "GBPUSD", "USDJPY"})
	v.SetDefault("trading.order_qty", 20000)
	v.SetDefault("trading.strategy", "ma4")
	v.SetDefault("trading.target_pips", 5)
	v.SetDefault("trading.stop_pips", 5)
	v.SetDefault("trading.fill_timeout", "10s")
	v.SetDefault("trading.watchdog_timeout", "30s")
	v.SetDefault("trading.fallback_timeout", "5m")
	v.SetDefault("trading.poll_interval", "1s")
	v.SetDefault("trading.cycle_interval", "30s")
	v.SetDefault("trading.workers", 1)
	v.SetDefault("trading.history_window", "1 D")
	v.SetDefault("trading.update_window", "30 S")
	v.SetDefault("trading.bar_size", "30 secs")
	v.SetDefault("trading.series_tail", 300)
	v.SetDefault("trading.confirm_required", false)
	v.SetDefault("trading.confirm_timeout", "30s")

	v.SetDefault("reconcile.max_retries", 5)
	v.SetDefault("reconcile.retry_delay", "3s")

	v.SetDefault("storage.data_dir", "data")
	v.SetDefault("storage.control_file", "config/symbols.yaml")
	v.SetDefault("storage.order_log", "logs/option_order_log.csv")
	v.SetDefault("storage.positions_file", "data/positions.json")
	v.SetDefault("storage.signals_file", "data/signals.json")

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.chat_id", 0)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.host", "127.0.0.1")
	v.SetDefault("tracing.port", 6831)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.dir", "logs")

	v.SetDefault("db_dsn", "")
}

func configPath() string {
	name := os.Getenv(configFilePathENV)
	if name == "" {
		name = defaultConfigFile
	}
	if strings.ContainsRune(name, os.PathSeparator) {
		return name
	}
	return filepath.Join(configDir, name)
}

// NewConfig: дефолты -> yaml-файл -> переменные окружения (BROKER_PORT, DB_DSN, ...).
func NewConfig() (*Config, error) {
	// .env не обязателен
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath())
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("db_dsn", "DB_DSN", "DATABASE_DSN")
	_ = v.BindEnv("telegram.token", "TELEGRAM_TOKEN")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "read config %s", configPath())
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Trading.OrderQty <= 0:
		return errors.New("trading.order_qty must be positive")
	case c.Trading.PollInterval <= 0:
		return errors.New("trading.poll_interval must be positive")
	case c.Trading.FillTimeout < c.Trading.PollInterval:
		return errors.New("trading.fill_timeout must be >= poll_interval")
	case c.Broker.ConnectAttempts <= 0:
		return errors.New("broker.connect_attempts must be positive")
	}
	if c.Trading.Workers <= 0 {
		c.Trading.Workers = 1
	}
	return nil
}
