package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port string
	}
	Search struct {
		URL          string
		APIKey       string
		Index        string
		UsageIndex   string
		TemplatePath string
	}
	Inference struct {
		URL    string
		APIKey string
		Model  string
	}
	Redis struct {
		URL string
	}
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")
	viper.AutomaticEnv()

	var config Config

	// Set defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("search.index", "policy-docs")
	viper.SetDefault("search.usage_index", "search-usage")
	viper.SetDefault("search.template_path", "configs/query_template.json")
	viper.SetDefault("inference.model", "gpt-4o-mini")
	viper.SetDefault("redis.url", "redis://localhost:6379")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	config.Server.Port = viper.GetString("server.port")
	config.Search.Index = viper.GetString("search.index")
	config.Search.UsageIndex = viper.GetString("search.usage_index")
	config.Search.TemplatePath = viper.GetString("search.template_path")
	config.Inference.Model = viper.GetString("inference.model")
	config.Redis.URL = viper.GetString("redis.url")

	// Secrets and endpoints come from the environment only
	config.Search.URL = os.Getenv("SEARCH_URL")
	config.Search.APIKey = os.Getenv("SEARCH_API_KEY")
	config.Inference.URL = os.Getenv("INFERENCE_URL")
	config.Inference.APIKey = os.Getenv("INFERENCE_API_KEY")

	return &config, nil
}

func (c *Config) ValidateSearch() error {
	if c.Search.URL == "" {
		return fmt.Errorf("SEARCH_URL is required")
	}
	if c.Search.Index == "" {
		return fmt.Errorf("search.index is required")
	}
	return nil
}

func (c *Config) ValidateInference() error {
	if c.Inference.URL == "" {
		return fmt.Errorf("INFERENCE_URL is required")
	}
	if c.Inference.APIKey == "" {
		return fmt.Errorf("INFERENCE_API_KEY is required")
	}
	return nil
}
