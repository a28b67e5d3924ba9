package config

import (
	"encoding/json"
	"fmt"
	"os"
)

type LogConfig struct {
	File      string `json:"file"`
	Level     string `json:"level"`
	FileCount int    `json:"file_count"`
	FileSize  int    `json:"file_size"`
	KeepDays  int    `json:"keep_days"`
	Console   bool   `json:"console"`
}

type AIConfig struct {
	Provider      string      `json:"provider"`
	Data          interface{} `json:"data"`
	EmbedProvider string      `json:"embed_provider"`
	EmbedData     interface{} `json:"embed_data"`
}

type RagConfig struct {
	ChunkSize          int `json:"chunk_size"`
	Overlap            int `json:"overlap"`
	ReservedCompletion int `json:"reserved_completion"`
	DefaultMaxTokens   int `json:"default_max_tokens"`
	MaxAttempts        int `json:"max_attempts"`
	BackoffMs          int `json:"backoff_ms"`
	CallTimeoutSeconds int `json:"call_timeout_seconds"`
	DefaultMaxSources  int `json:"default_max_sources"`
	RetrievalFan       int `json:"retrieval_fan"`
}

type VectorConfig struct {
	EmbedRatePerSec      float64 `json:"embed_rate_per_sec"`
	QueryCacheSize       int     `json:"query_cache_size"`
	QueryCacheTTLMinutes int     `json:"query_cache_ttl_minutes"`
	EmbedCacheSize       int     `json:"embed_cache_size"`
	EmbedCacheTTLMinutes int     `json:"embed_cache_ttl_minutes"`
}

type JobsConfig struct {
	ReconcileSpec            string `json:"reconcile_spec"`
	GeneratingTimeoutSeconds int64  `json:"generating_timeout_seconds"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type Config struct {
	DBDsn         string          `json:"db_dsn"`
	Port          int             `json:"port"`
	MigrationsDir string          `json:"migrations_dir"`
	CORSOrigins   []string        `json:"cors_origins"`
	RateLimitMs   int             `json:"rate_limit_ms"`
	LogConfig     LogConfig       `json:"log_config"`
	AI            AIConfig        `json:"ai"`
	Rag           RagConfig       `json:"rag"`
	Vector        VectorConfig    `json:"vector"`
	Jobs          JobsConfig      `json:"jobs"`
	FileStore     FileStoreConfig `json:"file_store"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.DBDsn == "" {
		return nil, fmt.Errorf("db_dsn is required")
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.MigrationsDir == "" {
		cfg.MigrationsDir = "migrations"
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.AI.Provider == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	if cfg.AI.EmbedProvider == "" {
		cfg.AI.EmbedProvider = cfg.AI.Provider
		if cfg.AI.EmbedData == nil {
			cfg.AI.EmbedData = cfg.AI.Data
		}
	}
	if cfg.Jobs.ReconcileSpec == "" {
		cfg.Jobs.ReconcileSpec = "*/5 * * * *"
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
		cfg.FileStore.Data = map[string]interface{}{"dir": "data/files"}
	}
	return &cfg, nil
}
