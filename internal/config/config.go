package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	commoncfg "owl-common/config"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	LockBackendRedis = "redis"
	LockBackendLocal = "local"

	AuditSinkDB   = "db"
	AuditSinkHTTP = "http"
	AuditSinkLog  = "log"
)

// Config wisefido-schedule 配置
// 优先级：环境变量 > SCHEDULE_CONFIG_FILE（YAML）> 默认值
type Config struct {
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`
	DBEnabled    bool                     `yaml:"db_enabled"`
	Database     commoncfg.DatabaseConfig `yaml:"database"`
	RedisEnabled bool                     `yaml:"redis_enabled"`
	Redis        commoncfg.RedisConfig    `yaml:"redis"`
	Log          struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Lock   LockConfig   `yaml:"lock"`
	Audit  AuditConfig  `yaml:"audit"`
	Series SeriesConfig `yaml:"series"`
}

// LockConfig 护理员排班锁配置
type LockConfig struct {
	Backend string        `yaml:"backend"` // redis | local
	TTL     time.Duration `yaml:"ttl"`
	Wait    time.Duration `yaml:"wait"`
}

// AuditConfig 排班历史记录去向
type AuditConfig struct {
	Sink        string `yaml:"sink"`         // db | http | log
	HttpAddress string `yaml:"http_address"` // 审计服务地址（sink=http）
}

// SeriesConfig 系列变更通知
type SeriesConfig struct {
	EventStream string `yaml:"event_stream"` // Redis Stream 名称
}

// Load 加载配置：.env（可选）→ 默认值 → YAML 文件（可选）→ 环境变量
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if path := os.Getenv("SCHEDULE_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = ":8080"

	cfg.DBEnabled = true
	cfg.Database = commoncfg.DatabaseConfig{
		Host:            "localhost",
		Port:            5432,
		User:            "postgres",
		Password:        "postgres",
		Database:        "owlrd",
		SSLMode:         "disable",
		MaxConns:        20,
		MaxIdle:         5,
		ConnMaxLifetime: 30 * time.Minute,
	}

	cfg.RedisEnabled = true
	cfg.Redis = commoncfg.RedisConfig{Addr: "localhost:6379"}

	cfg.Log.Level = "info"
	cfg.Log.Format = "json"

	cfg.Lock = LockConfig{Backend: LockBackendRedis, TTL: 30 * time.Second, Wait: 10 * time.Second}
	cfg.Audit = AuditConfig{Sink: AuditSinkDB}
	cfg.Series = SeriesConfig{EventStream: "schedule:series-events"}
	return cfg
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.HTTP.Addr = getEnv("HTTP_ADDR", c.HTTP.Addr)

	c.DBEnabled = parseBool(os.Getenv("DB_ENABLED"), c.DBEnabled)
	c.Database.LoadFromEnv("DB")

	c.RedisEnabled = parseBool(os.Getenv("REDIS_ENABLED"), c.RedisEnabled)
	c.Redis.LoadFromEnv("REDIS")

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)

	c.Lock.Backend = getEnv("LOCK_BACKEND", c.Lock.Backend)
	if ttl := parseInt(os.Getenv("LOCK_TTL_SECONDS"), 0); ttl > 0 {
		c.Lock.TTL = time.Duration(ttl) * time.Second
	}
	if wait := parseInt(os.Getenv("LOCK_WAIT_SECONDS"), 0); wait > 0 {
		c.Lock.Wait = time.Duration(wait) * time.Second
	}

	c.Audit.Sink = getEnv("AUDIT_SINK", c.Audit.Sink)
	c.Audit.HttpAddress = getEnv("AUDIT_HTTP_ADDRESS", c.Audit.HttpAddress)

	c.Series.EventStream = getEnv("SERIES_EVENT_STREAM", c.Series.EventStream)

	// 未启用 Redis 时只能使用进程内锁
	if !c.RedisEnabled {
		c.Lock.Backend = LockBackendLocal
	}
	// 未启用数据库时历史记录写日志
	if !c.DBEnabled && c.Audit.Sink == AuditSinkDB {
		c.Audit.Sink = AuditSinkLog
	}
}

// Validate 检查枚举值与依赖项
func (c *Config) Validate() error {
	switch c.Lock.Backend {
	case LockBackendRedis, LockBackendLocal:
	default:
		return fmt.Errorf("invalid LOCK_BACKEND %q: expected redis or local", c.Lock.Backend)
	}
	switch c.Audit.Sink {
	case AuditSinkDB, AuditSinkLog:
	case AuditSinkHTTP:
		if c.Audit.HttpAddress == "" {
			return fmt.Errorf("AUDIT_HTTP_ADDRESS is required when AUDIT_SINK=http")
		}
	default:
		return fmt.Errorf("invalid AUDIT_SINK %q: expected db, http or log", c.Audit.Sink)
	}
	if c.HTTP.Addr == "" {
		return fmt.Errorf("HTTP_ADDR is required")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseBool(s string, def bool) bool {
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return b
}
