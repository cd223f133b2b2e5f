package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port           int           `yaml:"port"`
		ReadTimeout    time.Duration `yaml:"readTimeout"`
		WriteTimeout   time.Duration `yaml:"writeTimeout"`
		AllowedOrigins []string      `yaml:"allowedOrigins"`
		RateLimit      struct {
			Capacity        int `yaml:"capacity"`
			RefillPerSecond int `yaml:"refillPerSecond"`
		} `yaml:"rateLimit"`
	} `yaml:"server"`

	AI struct {
		Model       string  `yaml:"model"`
		BaseURL     string  `yaml:"baseURL"`
		Temperature float32 `yaml:"temperature"`
		MaxTokens   int     `yaml:"maxTokens"`
		Moderation  struct {
			Enabled       bool    `yaml:"enabled"`
			Provider      string  `yaml:"provider"` // openai | rekognition
			Model         string  `yaml:"model"`
			MinConfidence float32 `yaml:"minConfidence"`
		} `yaml:"moderation"`
	} `yaml:"ai"`

	AWS struct {
		Region string `yaml:"region"`
	} `yaml:"aws"`

	// APIKey is the provider secret. Environment only, never read from YAML.
	APIKey string `yaml:"-"`
}

const (
	ModerationOpenAI      = "openai"
	ModerationRekognition = "rekognition"
)

// Default config used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.Server.Port = 8080
	cfg.Server.ReadTimeout = 15 * time.Second
	cfg.Server.WriteTimeout = 90 * time.Second
	cfg.Server.AllowedOrigins = []string{"http://localhost:3000"}
	cfg.Server.RateLimit.Capacity = 10
	cfg.Server.RateLimit.RefillPerSecond = 1
	cfg.AI.Model = "gpt-4.1-mini"
	cfg.AI.Temperature = 0.7
	cfg.AI.MaxTokens = 2048
	cfg.AI.Moderation.Enabled = true
	cfg.AI.Moderation.Provider = ModerationOpenAI
	cfg.AI.Moderation.Model = "omni-moderation-latest"
	cfg.AI.Moderation.MinConfidence = 75
	return &cfg
}

// Load reads the YAML file at path on top of Default, then applies the
// environment. A missing file is not an error. A .env file in the working
// directory is loaded first if present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, err
	}

	cfg.applyEnv()
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() {
	c.APIKey = os.Getenv("OPENAI_API_KEY")
	c.Server.Port = getEnvAsInt("PORT", c.Server.Port)
	c.AI.Model = getEnv("OPENAI_MODEL", c.AI.Model)
	c.AI.BaseURL = getEnv("OPENAI_BASE_URL", c.AI.BaseURL)
	c.AI.Moderation.Provider = getEnv("MODERATION_PROVIDER", c.AI.Moderation.Provider)
	c.AWS.Region = getEnv("AWS_REGION", c.AWS.Region)
}

// Validate checks values that would otherwise fail late at request time.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("server.port out of range")
	}
	if c.AI.Moderation.Enabled {
		switch c.AI.Moderation.Provider {
		case ModerationOpenAI:
		case ModerationRekognition:
			if c.AWS.Region == "" {
				return errors.New("aws.region is required for rekognition moderation")
			}
		default:
			return errors.New("ai.moderation.provider must be openai or rekognition")
		}
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
