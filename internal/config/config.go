// Package config loads station configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the ground-station simulator.
type Config struct {
	Server     ServerConfig     `json:"server"`
	GRPC       GRPCConfig       `json:"grpc"`
	Redis      RedisConfig      `json:"redis"`
	Simulation SimulationConfig `json:"simulation"`
}

// ServerConfig holds the HTTP form-POST listener configuration.
type ServerConfig struct {
	Port        int    `json:"port"`
	Environment string `json:"environment"`
	Host        string `json:"host"`
}

// GRPCConfig holds the gRPC health-check listener configuration.
type GRPCConfig struct {
	Port int    `json:"port"`
	Host string `json:"host"`
}

// RedisConfig holds the optional Redis connection used for view fan-out.
type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Enabled  bool   `json:"enabled"`
}

// SimulationConfig holds engine-level configuration.
type SimulationConfig struct {
	UDPPort      int           `json:"udp_port"`
	TickInterval time.Duration `json:"tick_interval"`
	DustInterval time.Duration `json:"dust_interval"`
	ConfigRoot   string        `json:"config_root"`
	DataRoot     string        `json:"data_root"`
	ScenarioFile string        `json:"scenario_file"`
}

// Load loads configuration from environment variables with defaults.
func Load() (*Config, error) {
	redisHost := getEnv("REDIS_ADDR", "")
	host, port := splitHostPort(redisHost)

	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnvAsInt("SERVER_PORT", 8090),
			Environment: getEnv("ENVIRONMENT", "development"),
			Host:        getEnv("SERVER_HOST", "0.0.0.0"),
		},
		GRPC: GRPCConfig{
			Port: getEnvAsInt("GRPC_PORT", 14142),
			Host: getEnv("GRPC_HOST", "0.0.0.0"),
		},
		Redis: RedisConfig{
			Host:     host,
			Port:     port,
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  redisHost != "",
		},
		Simulation: SimulationConfig{
			UDPPort:      getEnvAsInt("UDP_PORT", 14141),
			TickInterval: getEnvAsDuration("TICK_INTERVAL", time.Second),
			DustInterval: getEnvAsDuration("DUST_INTERVAL", 200*time.Millisecond),
			ConfigRoot:   getEnv("CONFIG_ROOT", "config"),
			DataRoot:     getEnv("DATA_ROOT", "./data"),
			ScenarioFile: getEnv("SCENARIO_FILE", ""),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}
	if cfg.GRPC.Port <= 0 || cfg.GRPC.Port > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", cfg.GRPC.Port)
	}
	if cfg.Simulation.UDPPort <= 0 || cfg.Simulation.UDPPort > 65535 {
		return fmt.Errorf("invalid UDP port: %d", cfg.Simulation.UDPPort)
	}
	if cfg.Simulation.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive")
	}
	if cfg.Simulation.DustInterval <= 0 {
		return fmt.Errorf("dust interval must be positive")
	}
	if cfg.Simulation.ConfigRoot == "" {
		return fmt.Errorf("config root must not be empty")
	}
	if cfg.Simulation.DataRoot == "" {
		return fmt.Errorf("data root must not be empty")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// splitHostPort splits "host:port" into components, defaulting the port to
// 6379 when absent. An empty addr yields an empty host and port 0.
func splitHostPort(addr string) (string, int) {
	if addr == "" {
		return "", 0
	}
	host := addr
	port := 6379
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			host = addr[:i]
			if p, err := strconv.Atoi(addr[i+1:]); err == nil {
				port = p
			}
			break
		}
	}
	return host, port
}

// GetRedisAddr returns the Redis connection address.
func (r *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// GetServerAddr returns the HTTP form listener address.
func (s *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// GetGRPCAddr returns the gRPC health-check listener address.
func (g *GRPCConfig) GetGRPCAddr() string {
	return fmt.Sprintf("%s:%d", g.Host, g.Port)
}
