package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds the configuration for the application.
type Config struct {
	Server struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"server"`
	DB struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"db"`
	OptiLLM struct {
		URL          string `mapstructure:"url"`
		APIKey       string `mapstructure:"api_key"`
		DefaultModel string `mapstructure:"default_model"`
		TimeoutSecs  int    `mapstructure:"timeout_secs"`
	} `mapstructure:"optillm"`
	GPTZero struct {
		URL    string `mapstructure:"url"`
		APIKey string `mapstructure:"api_key"`
	} `mapstructure:"gptzero"`
	Humanizer struct {
		URL         string `mapstructure:"url"`
		APIKey      string `mapstructure:"api_key"`
		TimeoutSecs int    `mapstructure:"timeout_secs"`
	} `mapstructure:"humanizer"`
	TLS struct {
		Enable    bool     `mapstructure:"enable"`
		CertFile  string   `mapstructure:"cert_file"`
		KeyFile   string   `mapstructure:"key_file"`
		Hostnames []string `mapstructure:"hostnames"`
	} `mapstructure:"tls"`
}

// LoadConfig loads the configuration from a file and the environment.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", 5432)
	viper.SetDefault("db.sslmode", "disable")
	viper.SetDefault("optillm.default_model", "gpt-4o")
	viper.SetDefault("optillm.timeout_secs", 120)
	viper.SetDefault("gptzero.url", "https://api.gptzero.me")
	// External humanization runs can take minutes; keep this generous.
	viper.SetDefault("humanizer.timeout_secs", 300)

	if err := viper.ReadInConfig(); err != nil {
		// Missing file is fine; env vars and defaults still apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.OptiLLM.URL = strings.TrimRight(strings.TrimSpace(config.OptiLLM.URL), "/")
	config.GPTZero.URL = strings.TrimRight(strings.TrimSpace(config.GPTZero.URL), "/")
	config.Humanizer.URL = strings.TrimRight(strings.TrimSpace(config.Humanizer.URL), "/")

	return &config, nil
}
