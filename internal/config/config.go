package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server ServerConfig
	Relay  RelayConfig
	Client ClientConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	relay, err := loadRelayConfig()
	if err != nil {
		return nil, err
	}

	client, err := loadClientConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Relay: relay, Client: client}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// RelayConfig 描述中继服务配置。
type RelayConfig struct {
	Welcome        string
	BroadcastRate  float64
	BroadcastBurst int
	SendBuffer     int
	WriteTimeout   time.Duration
}

// ClientConfig 描述通知客户端配置。
type ClientConfig struct {
	Host             string
	Secure           bool
	HandshakeTimeout time.Duration
}

func loadRelayConfig() (RelayConfig, error) {
	broadcastRate := 5.0
	if v, err := parseOptionalFloatEnv("RELAY_BROADCAST_RATE"); err != nil {
		return RelayConfig{}, err
	} else if v != nil {
		if *v < 0 {
			return RelayConfig{}, fmt.Errorf("invalid RELAY_BROADCAST_RATE value %v: must not be negative", *v)
		}
		broadcastRate = *v
	}

	burst := 10
	if v, err := parseOptionalIntEnv("RELAY_BROADCAST_BURST"); err != nil {
		return RelayConfig{}, err
	} else if v != nil {
		if *v < 1 {
			burst = 1
		} else {
			burst = *v
		}
	}

	sendBuffer := 32
	if v, err := parseOptionalIntEnv("RELAY_SEND_BUFFER"); err != nil {
		return RelayConfig{}, err
	} else if v != nil {
		if *v < 1 {
			sendBuffer = 1
		} else {
			sendBuffer = *v
		}
	}

	writeTimeout, err := parseDurationEnv("RELAY_WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return RelayConfig{}, err
	}

	return RelayConfig{
		Welcome:        getEnvOrDefault("RELAY_WELCOME", "Welcome to the notification relay"),
		BroadcastRate:  broadcastRate,
		BroadcastBurst: burst,
		SendBuffer:     sendBuffer,
		WriteTimeout:   writeTimeout,
	}, nil
}

func loadClientConfig() (ClientConfig, error) {
	secure, err := parseBoolEnv("NOTIFY_SECURE", false)
	if err != nil {
		return ClientConfig{}, err
	}

	handshake, err := parseDurationEnv("NOTIFY_HANDSHAKE_TIMEOUT", 45*time.Second)
	if err != nil {
		return ClientConfig{}, err
	}

	return ClientConfig{
		Host:             getEnvOrDefault("NOTIFY_HOST", "localhost:8080"),
		Secure:           secure,
		HandshakeTimeout: handshake,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val <= 0 {
		return 0, fmt.Errorf("invalid %s value %q: must be positive", key, raw)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
