package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port            int              `json:"port"`
	JWTSecret       string           `json:"jwt_secret"`
	JWTTTLHours     int              `json:"jwt_ttl_hours"`
	UploadMaxBytes  int64            `json:"upload_max_bytes"`
	PresignTTLMins  int              `json:"presign_ttl_mins"`
	CORSAllowlist   []string         `json:"cors_allowlist"`
	LogConfig       logger.LogConfig `json:"log_config"`
	Database        DatabaseConfig   `json:"database"`
	FileStore       FileStoreConfig  `json:"file_store"`
	AI              AIConfig         `json:"ai"`
	EmbeddingCron   string           `json:"embedding_cron"`
	UploadCleanCron string           `json:"upload_clean_cron"`
}

type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type AIConfig struct {
	Enabled   bool   `json:"enabled"`
	APIKey    string `json:"api_key"`
	Model     string `json:"model"`
	Dimension int    `json:"dimension"`
	CacheSize int    `json:"cache_size"`
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
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required")
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.JWTTTLHours == 0 {
		cfg.JWTTTLHours = 72
	}
	if cfg.UploadMaxBytes == 0 {
		cfg.UploadMaxBytes = 100 * 1024 * 1024
	}
	if cfg.PresignTTLMins == 0 {
		cfg.PresignTTLMins = 15
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.host is required")
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
	}
	if cfg.AI.Enabled {
		if cfg.AI.APIKey == "" {
			return nil, fmt.Errorf("ai.api_key is required when ai is enabled")
		}
		if cfg.AI.Model == "" {
			cfg.AI.Model = "gemini-embedding-001"
		}
		if cfg.AI.Dimension == 0 {
			cfg.AI.Dimension = 768
		}
		if cfg.AI.CacheSize == 0 {
			cfg.AI.CacheSize = 4096
		}
	}
	if cfg.EmbeddingCron == "" {
		cfg.EmbeddingCron = "* * * * *"
	}
	if cfg.UploadCleanCron == "" {
		cfg.UploadCleanCron = "*/10 * * * *"
	}
	return &cfg, nil
}
