package config

import (
	"fmt"
	"os"
	"time"

	"robot-coach/server/internal/evaluation"
	"robot-coach/server/internal/phase"

	"gopkg.in/yaml.v3"
)

// Config 全局配置
type Config struct {
	Server     ServerConfig       `yaml:"server"`
	Storage    StorageConfig      `yaml:"storage"`
	Machine    MachineConfig      `yaml:"machine"`
	Classifier evaluation.Weights `yaml:"classifier"`
	Logging    LoggingConfig      `yaml:"logging"`
	Paths      PathsConfig        `yaml:"paths"`
}

type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// AllowedOrigins 是允许跨域访问的前端地址。
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Addr 返回监听地址。
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StorageConfig 决定会话快照与交互记录存在哪里：memory | sqlite
type StorageConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// MachineConfig 阶段状态机阈值
type MachineConfig struct {
	MaxSuccessSteps int `yaml:"max_success_steps"`
	MaxEscalations  int `yaml:"max_escalations"`
}

type LoggingConfig struct {
	// GinMode 对应 gin 的 debug | release | test
	GinMode string `yaml:"gin_mode"`
}

// PathsConfig 规则与场景文件路径，留空使用内置目录。
type PathsConfig struct {
	Rules     string `yaml:"rules"`
	Scenarios string `yaml:"scenarios"`
}

// Default 返回不依赖配置文件即可运行的默认配置。
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Storage.Driver == "sqlite" && c.Storage.Path == "" {
		c.Storage.Path = "robot_coach.db"
	}
	if c.Machine.MaxSuccessSteps == 0 {
		c.Machine.MaxSuccessSteps = phase.DefaultMaxSuccessSteps
	}
	if c.Machine.MaxEscalations == 0 {
		c.Machine.MaxEscalations = phase.DefaultMaxEscalations
	}
	d := evaluation.DefaultWeights()
	if c.Classifier == (evaluation.Weights{}) {
		c.Classifier = d
	}
	if c.Logging.GinMode == "" {
		c.Logging.GinMode = "release"
	}
}

// Load 从文件加载配置
func Load(path string) (*Config, error) {
	fmt.Printf("📋 Loading config from: %s\n", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.ApplyEnv()
	cfg.applyDefaults()

	fmt.Printf("\n📊 Configuration Summary:\n")
	fmt.Printf("   Server: %s\n", cfg.Server.Addr())
	fmt.Printf("   Storage: %s %s\n", cfg.Storage.Driver, cfg.Storage.Path)
	fmt.Printf("   Machine: max_success_steps=%d max_escalations=%d\n", cfg.Machine.MaxSuccessSteps, cfg.Machine.MaxEscalations)
	if cfg.Paths.Rules != "" {
		fmt.Printf("   Rules: %s\n", cfg.Paths.Rules)
	}
	if cfg.Paths.Scenarios != "" {
		fmt.Printf("   Scenarios: %s\n", cfg.Paths.Scenarios)
	}
	fmt.Printf("\n")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// ApplyEnv 用环境变量覆盖部署相关的配置。
func (c *Config) ApplyEnv() {
	if p := os.Getenv("ROBOTCOACH_DB"); p != "" {
		c.Storage.Driver = "sqlite"
		c.Storage.Path = p
	}
	if mode := os.Getenv("GIN_MODE"); mode != "" {
		c.Logging.GinMode = mode
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	switch c.Storage.Driver {
	case "memory":
	case "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("sqlite storage requires a path")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Machine.MaxSuccessSteps < 0 || c.Machine.MaxEscalations < 0 {
		return fmt.Errorf("machine thresholds must not be negative")
	}
	return nil
}
