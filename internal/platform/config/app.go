package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// AppConfig 全局配置。启动时统一加载，再按模块提取使用。
// server 与 invctl CLI 共用同一套加载逻辑。
type AppConfig struct {
	LogLevel  string         `json:"log_level"`
	LogFormat string         `json:"log_format"`
	Server    ServerConfig   `json:"server"`
	Database  DatabaseConfig `json:"database"`
	Redis     RedisConfig    `json:"redis"`
	Auth      AuthConfig     `json:"auth"`
	Client    ClientConfig   `json:"client"`
}

type ServerConfig struct {
	Host                string `json:"host"`
	Port                int    `json:"port"`
	ReadTimeoutSeconds  int    `json:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `json:"write_timeout_seconds"`
}

type DatabaseConfig struct {
	URL                    string `json:"url"`
	MaxOpenConns           int    `json:"max_open_conns"`
	MaxIdleConns           int    `json:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `json:"conn_max_lifetime_seconds"`
}

type RedisConfig struct {
	URL string `json:"url"`
}

type AuthConfig struct {
	JWTSecret string `json:"jwt_secret"`
	JWTIssuer string `json:"jwt_issuer"`
}

// ClientConfig invctl 客户端配置。
// SelectionStore 选择持久化后端：sqlite（默认，本机文件）或 redis（共用终端部署）。
type ClientConfig struct {
	APIBaseURL     string `json:"api_base_url"`
	Token          string `json:"token"`
	SelectionStore string `json:"selection_store"`
	SQLitePath     string `json:"sqlite_path"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// Default 返回默认配置。
func Default() *AppConfig {
	return &AppConfig{
		LogLevel:  "info",
		LogFormat: "text",
		Server: ServerConfig{
			Host:                "0.0.0.0",
			Port:                8080,
			ReadTimeoutSeconds:  30,
			WriteTimeoutSeconds: 60,
		},
		Database: DatabaseConfig{
			MaxOpenConns:           25,
			MaxIdleConns:           5,
			ConnMaxLifetimeSeconds: 300,
		},
		Client: ClientConfig{
			APIBaseURL:     "http://localhost:8080",
			SelectionStore: "sqlite",
			TimeoutSeconds: 15,
		},
	}
}

// Load 加载全局配置：默认值 -> 配置文件 -> 环境变量。
// 配置文件路径通过 APP_CONFIG_FILE 指定（JSON）。
func Load() (*AppConfig, error) {
	// .env 非必需，加载失败直接忽略
	_ = godotenv.Load()

	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("APP_CONFIG_FILE")); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	cfg.normalize()
	return cfg, nil
}

// ValidateServer 校验 server 启动所需配置。
func (c *AppConfig) ValidateServer() error {
	if strings.TrimSpace(c.Database.URL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	return nil
}

// ValidateClient 校验 invctl 所需配置。
func (c *AppConfig) ValidateClient() error {
	if strings.TrimSpace(c.Client.APIBaseURL) == "" {
		return fmt.Errorf("API_BASE_URL is required")
	}
	switch c.Client.SelectionStore {
	case "sqlite", "redis":
	default:
		return fmt.Errorf("SELECTION_STORE must be sqlite or redis, got %q", c.Client.SelectionStore)
	}
	if c.Client.SelectionStore == "redis" && strings.TrimSpace(c.Redis.URL) == "" {
		return fmt.Errorf("REDIS_URL is required when SELECTION_STORE=redis")
	}
	return nil
}

func (c *AppConfig) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read APP_CONFIG_FILE %q failed: %w", path, err)
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse APP_CONFIG_FILE %q failed: %w", path, err)
	}
	return nil
}

func (c *AppConfig) applyEnv() {
	applyString("LOG_LEVEL", &c.LogLevel)
	applyString("LOG_FORMAT", &c.LogFormat)

	applyString("HOST", &c.Server.Host)
	applyInt("PORT", &c.Server.Port)
	applyInt("SERVER_READ_TIMEOUT", &c.Server.ReadTimeoutSeconds)
	applyInt("SERVER_WRITE_TIMEOUT", &c.Server.WriteTimeoutSeconds)

	applyString("DATABASE_URL", &c.Database.URL)
	applyInt("DATABASE_MAX_OPEN_CONNS", &c.Database.MaxOpenConns)
	applyInt("DATABASE_MAX_IDLE_CONNS", &c.Database.MaxIdleConns)
	applyInt("DATABASE_CONN_MAX_LIFETIME", &c.Database.ConnMaxLifetimeSeconds)

	applyString("REDIS_URL", &c.Redis.URL)

	applyString("JWT_SECRET", &c.Auth.JWTSecret)
	applyString("JWT_ISSUER", &c.Auth.JWTIssuer)

	applyString("API_BASE_URL", &c.Client.APIBaseURL)
	applyString("API_TOKEN", &c.Client.Token)
	applyString("SELECTION_STORE", &c.Client.SelectionStore)
	applyString("SELECTION_SQLITE_PATH", &c.Client.SQLitePath)
	applyInt("CLIENT_TIMEOUT", &c.Client.TimeoutSeconds)
}

func (c *AppConfig) normalize() {
	c.Client.APIBaseURL = strings.TrimRight(c.Client.APIBaseURL, "/")
	if c.Client.SelectionStore == "" {
		c.Client.SelectionStore = "sqlite"
	}
	if c.Client.SQLitePath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.Client.SQLitePath = home + "/.stocknest/selection.db"
		} else {
			c.Client.SQLitePath = "selection.db"
		}
	}
}

func applyString(key string, target *string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func applyInt(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}
