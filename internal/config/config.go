// Package config предоставляет структуры и функции для загрузки конфигурации
// из YAML-файла (путь в CONFIG_PATH) с переопределением через переменные окружения.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек.
type Config struct {
	Env                     string          `yaml:"env" env:"APP_ENV" env-default:"local"`
	StorageConnectionString string          `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING" env-required:"true"`
	MigrationsPath          string          `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	HTTPServer              HTTPServer      `yaml:"http_server"`
	RedisConnection         RedisConnection `yaml:"redis_connection"`
	Session                 Session         `yaml:"session"`
	Razorpay                Razorpay        `yaml:"razorpay"`
	Content                 Content         `yaml:"content"`
	RabbitMQ                RabbitMQ        `yaml:"rabbitmq"`
	Scheduler               Scheduler       `yaml:"scheduler"`
	SMTP                    SMTP            `yaml:"smtp"`
	Notifier                Notifier        `yaml:"notifier"`
}

// HTTPServer структура для настройки сервера.
type HTTPServer struct {
	Address           string        `yaml:"address" env:"HTTP_ADDRESS" env-default:":8080"`
	Timeout           time.Duration `yaml:"timeout" env-default:"30s"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env-default:"10s"`
	IdleTimeout       time.Duration `yaml:"idle_timeout" env-default:"60s"`
	MaxUploadBytes    int64         `yaml:"max_upload_bytes" env-default:"536870912"`
	// StreamTimeout заменяет Timeout для загрузки и отдачи видеофайлов.
	StreamTimeout time.Duration `yaml:"stream_timeout" env-default:"2h"`
}

// RedisConnection структура для настройки подключения к redis.
type RedisConnection struct {
	Address     string        `yaml:"address" env:"REDIS_ADDRESS" env-default:"localhost:6379"`
	Password    string        `yaml:"password" env:"REDIS_PASSWORD"`
	User        string        `yaml:"user" env:"REDIS_USER"`
	DB          int           `yaml:"db"`
	MaxRetries  int           `yaml:"max_retries" env-default:"3"`
	DialTimeout time.Duration `yaml:"dial_timeout" env-default:"5s"`
	Timeout     time.Duration `yaml:"timeout" env-default:"3s"`
}

// Session настройки cookie сессии и подписи токена.
type Session struct {
	SecretKey    string        `yaml:"secret_key" env:"SESSION_SECRET_KEY" env-required:"true"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"24h"`
	CookieName   string        `yaml:"cookie_name" env-default:"session"`
	SecureCookie bool          `yaml:"secure_cookie" env:"SESSION_SECURE_COOKIE"`
}

// Razorpay настройки платёжного провайдера.
// KeySecret никогда не отдаётся в браузер и не пишется в лог.
type Razorpay struct {
	KeyID      string        `yaml:"key_id" env:"RAZORPAY_KEY_ID" env-required:"true"`
	KeySecret  string        `yaml:"key_secret" env:"RAZORPAY_KEY_SECRET" env-required:"true"`
	APIURL     string        `yaml:"api_url" env:"RAZORPAY_API_URL" env-default:"https://api.razorpay.com/v1"`
	Timeout    time.Duration `yaml:"timeout" env-default:"10s"`
	OrderTTL   time.Duration `yaml:"order_ttl" env-default:"30m"`
	SeedPlanID string        `yaml:"seed_plan_id" env:"RAZORPAY_SEED_PLAN_ID" env-default:"CREATE_YOUR_OWN_RAZORPAY_PLAN_ID"`
}

// Content настройки хранилища загруженных файлов.
type Content struct {
	Root string `yaml:"root" env:"CONTENT_ROOT" env-default:"./static/videos"`
}

// RabbitMQ настройки брокера событий. Пустой URL отключает публикацию.
type RabbitMQ struct {
	URL        string        `yaml:"url" env:"RABBITMQ_URL"`
	MaxRetries int           `yaml:"max_retries" env-default:"5"`
	RetryDelay time.Duration `yaml:"retry_delay" env-default:"2s"`
}

// Scheduler настройки фоновых задач.
type Scheduler struct {
	LapsedSweepSchedule string `yaml:"lapsed_sweep_schedule" env-default:"@every 1h"`
}

// SMTP настройки почтового сервера для уведомлений.
type SMTP struct {
	Host     string        `yaml:"host" env:"SMTP_HOST"`
	Port     string        `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	User     string        `yaml:"user" env:"SMTP_USER"`
	Password string        `yaml:"password" env:"SMTP_PASSWORD"`
	From     string        `yaml:"from" env:"SMTP_FROM"`
	Timeout  time.Duration `yaml:"timeout" env-default:"10s"`
}

// Notifier настройки воркера почтовых уведомлений.
type Notifier struct {
	Queue   string `yaml:"queue" env-default:"streamvault.notifications"`
	Workers int    `yaml:"workers" env-default:"10"`
	SiteURL string `yaml:"site_url" env:"SITE_URL" env-default:"http://localhost:8080"`
}

// NotifierConfig настройки воркера уведомлений. Читается из того же файла,
// что и Config, но не требует ключей платёжного провайдера и сессий.
type NotifierConfig struct {
	Env                     string   `yaml:"env" env:"APP_ENV" env-default:"local"`
	StorageConnectionString string   `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING" env-required:"true"`
	RabbitMQ                RabbitMQ `yaml:"rabbitmq"`
	SMTP                    SMTP     `yaml:"smtp"`
	Notifier                Notifier `yaml:"notifier"`
}

// Load читает конфиг из файла path и переменных окружения.
func Load(path string) (*Config, error) {
	const op = "config.Load"
	var cfg Config
	if err := read(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

// LoadNotifier читает настройки воркера уведомлений.
func LoadNotifier(path string) (*NotifierConfig, error) {
	const op = "config.LoadNotifier"
	var cfg NotifierConfig
	if err := read(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if cfg.RabbitMQ.URL == "" {
		return nil, fmt.Errorf("%s: rabbitmq url is required", op)
	}
	if cfg.SMTP.Host == "" {
		return nil, fmt.Errorf("%s: smtp host is required", op)
	}
	return &cfg, nil
}

func read(path string, cfg any) error {
	if path == "" {
		return errors.New("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("file %s does not exist", path)
	}
	return cleanenv.ReadConfig(path, cfg)
}

// MustLoad загружает конфиг по пути из CONFIG_PATH и завершает процесс при ошибке.
func MustLoad() *Config {
	cfg, err := Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

// MustLoadNotifier загружает настройки воркера уведомлений или завершает процесс.
func MustLoadNotifier() *NotifierConfig {
	cfg, err := LoadNotifier(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

// String печатает конфиг без секретов.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"StorageConnectionString: %s\n"+
			"MigrationsPath: %s\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"Redis:\n"+
			"  Address: %s\n"+
			"  DB: %d\n"+
			"Session:\n"+
			"  TokenTTL: %s\n"+
			"  SecureCookie: %t\n"+
			"Razorpay:\n"+
			"  KeyID: %s\n"+
			"  APIURL: %s\n"+
			"Content:\n"+
			"  Root: %s\n",
		c.Env,
		redact(c.StorageConnectionString),
		c.MigrationsPath,
		c.HTTPServer.Address,
		c.HTTPServer.Timeout,
		c.HTTPServer.IdleTimeout,
		c.RedisConnection.Address,
		c.RedisConnection.DB,
		c.Session.TokenTTL,
		c.Session.SecureCookie,
		c.Razorpay.KeyID,
		c.Razorpay.APIURL,
		c.Content.Root,
	)
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}
