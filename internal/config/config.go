package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type LogConfig struct {
	Level   string `env:"LOG_LEVEL" envDefault:"info"`
	Format  string `env:"LOG_FORMAT" envDefault:"legacy"`
	Console bool   `env:"LOG_TO_CONSOLE" envDefault:"true"`
	ToFile  bool   `env:"LOG_TO_FILE" envDefault:"false"`
	File    string `env:"LOG_FILE" envDefault:"logs/arena.log"`
	Caller  bool   `env:"LOG_CALLER" envDefault:"false"`
}

type OracleConfig struct {
	StockfishPath string        `env:"STOCKFISH_PATH"`
	Depth         int           `env:"ORACLE_DEPTH" envDefault:"14"`
	MoveTimeMs    int           `env:"ORACLE_MOVETIME_MS" envDefault:"0"`
	Timeout       time.Duration `env:"ORACLE_TIMEOUT" envDefault:"5s"`
	MinInterval   time.Duration `env:"ORACLE_MIN_INTERVAL" envDefault:"50ms"`
	Concurrency   int           `env:"ORACLE_CONCURRENCY" envDefault:"2"`
	Threads       int           `env:"ORACLE_THREADS" envDefault:"1"`
	HashMB        int           `env:"ORACLE_HASH_MB" envDefault:"64"`
}

type AnalysisConfig struct {
	Workers   int `env:"ANALYSIS_WORKERS" envDefault:"2"`
	QueueSize int `env:"ANALYSIS_QUEUE" envDefault:"256"`
}

type SessionConfig struct {
	ReconnectGrace time.Duration `env:"RECONNECT_GRACE" envDefault:"30s"`
	JoinTimeout    time.Duration `env:"JOIN_TIMEOUT" envDefault:"2m"`
	TickInterval   time.Duration `env:"CLOCK_TICK" envDefault:"1s"`
	SnapshotTTL    time.Duration `env:"SNAPSHOT_TTL" envDefault:"24h"`
}

type MatchConfig struct {
	RatingRange  int           `env:"RATING_RANGE" envDefault:"1000"`
	ChallengeTTL time.Duration `env:"CHALLENGE_TTL" envDefault:"60s"`
}

type RewardConfig struct {
	Amount string `env:"REWARD_AMOUNT" envDefault:"10"`
	Queue  string `env:"REWARD_QUEUE" envDefault:"arena:rewards"`
}

type AppConfig struct {
	HTTPAddr       string   `env:"HTTP_ADDR" envDefault:":8080"`
	RedisURL       string   `env:"REDIS_URL"`
	DatabaseURL    string   `env:"DATABASE_URL"`
	UserServiceURL string   `env:"USER_SERVICE_URL"`
	MessageDir     string   `env:"MESSAGE_DIR"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	Log      LogConfig
	Oracle   OracleConfig
	Analysis AnalysisConfig
	Session  SessionConfig
	Match    MatchConfig
	Reward   RewardConfig
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.RedisURL = strings.TrimSpace(cfg.RedisURL)
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	cfg.UserServiceURL = strings.TrimSpace(cfg.UserServiceURL)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	if c.Oracle.Depth <= 0 && c.Oracle.MoveTimeMs <= 0 {
		return errors.New("ORACLE_DEPTH or ORACLE_MOVETIME_MS must be positive")
	}
	if c.Oracle.Timeout <= 0 {
		return errors.New("ORACLE_TIMEOUT must be positive")
	}
	if c.Oracle.Concurrency <= 0 {
		return errors.New("ORACLE_CONCURRENCY must be positive")
	}
	if c.Analysis.Workers <= 0 || c.Analysis.QueueSize <= 0 {
		return errors.New("ANALYSIS_WORKERS and ANALYSIS_QUEUE must be positive")
	}
	if c.Session.ReconnectGrace <= 0 {
		return errors.New("RECONNECT_GRACE must be positive")
	}
	if c.Session.TickInterval <= 0 {
		return errors.New("CLOCK_TICK must be positive")
	}
	if c.Match.RatingRange < 0 {
		return errors.New("RATING_RANGE must not be negative")
	}
	if c.Match.ChallengeTTL <= 0 {
		return errors.New("CHALLENGE_TTL must be positive")
	}
	return nil
}
