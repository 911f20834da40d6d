package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	databaseDSNENV    = "DATABASE_DSN"
	brokerTokenENV    = "BROKER_API_TOKEN"
	jwtSecretENV      = "JWT_SECRET"
	telegramTokenENV  = "TELEGRAM_TOKEN"
)

// Config ...
type Config struct {
	DB      string `yaml:"db_dsn"`
	Service struct {
		Host       string `yaml:"host"`
		PublicPort int    `yaml:"public_port"`
		AdminPort  int    `yaml:"admin_port"`
	} `yaml:"service"`

	Broker struct {
		// REST bases per environment; practice and live accounts never share
		// a host.
		PracticeURL string `yaml:"practice_url"`
		LiveURL     string `yaml:"live_url"`
		StreamURL   string `yaml:"stream_url"`
		Token       string `yaml:"token"`
	} `yaml:"broker"`

	API struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"api"`

	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`

	Evaluator struct {
		// External strategy-runner endpoint; empty means builtin engines only.
		RunnerURL string `yaml:"runner_url"`
	} `yaml:"evaluator"`

	Tracing struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"tracing"`

	// Orchestration defaults
	DefaultCadence time.Duration // polling interval between evaluation cycles
	LookbackBars   int           // candle window for indicator warmup
	MinConfidence  float64       // 0 => caller decides, execute on any entry

	// Background sweeper
	SweepInterval time.Duration

	// Broker retry policy
	MaxRetries     int
	RetryBaseDelay time.Duration

	// Diagnostics
	DiagWindows int // cadence windows considered "recent"
}

func NewConfig() (*Config, error) {

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	file, err := os.Open("configs/" + configFileName)
	if err != nil {
		log.Fatalf("Failed to open config file: %v", err)
	}

	defer func() {
		_ = file.Close()
	}()

	decoder := yaml.NewDecoder(file)
	config := Config{
		DefaultCadence: durationFromEnv("DEFAULT_CADENCE", "60s"),
		LookbackBars:   intFromEnv("LOOKBACK_BARS", 200),
		MinConfidence:  floatFromEnv("MIN_CONFIDENCE", 0),

		SweepInterval: durationFromEnv("SWEEP_INTERVAL", "60s"),

		MaxRetries:     intFromEnv("BROKER_MAX_RETRIES", 3),
		RetryBaseDelay: durationFromEnv("BROKER_RETRY_BASE_DELAY", "500ms"),

		DiagWindows: intFromEnv("DIAG_WINDOWS", 5),
	}
	err = decoder.Decode(&config)
	if err != nil {
		log.Fatalf("Failed to decode config file: %v", err)
	}

	if dsn := os.Getenv(databaseDSNENV); dsn != "" {
		config.DB = dsn
	}
	if token := os.Getenv(brokerTokenENV); token != "" {
		config.Broker.Token = token
	}
	if secret := os.Getenv(jwtSecretENV); secret != "" {
		config.API.JWTSecret = secret
	}
	if token := os.Getenv(telegramTokenENV); token != "" {
		config.Telegram.Token = token
	}

	return &config, nil
}

// BrokerBaseURL picks the REST base for an environment.
func (c *Config) BrokerBaseURL(env string) string {
	if env == "live" {
		return c.Broker.LiveURL
	}
	return c.Broker.PracticeURL
}

func getenvRequired(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("env %s is required", key))
	}
	return v
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func floatFromEnv(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationFromEnv(key, def string) time.Duration {
	val := getenvDefault(key, def)
	d, err := time.ParseDuration(val)
	if err != nil {
		d, _ = time.ParseDuration(def)
	}
	return d
}
