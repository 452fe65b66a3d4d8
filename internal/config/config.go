package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"StockSim/internal/model"
)

// Data source kinds for the simulation server.
const (
	SourceYahoo = "yahoo"
	SourceREST  = "rest"
	SourceMock  = "mock"
)

// Config holds all application configuration.
type Config struct {
	Simulation struct {
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
		Retries int           `yaml:"retries"`
	} `yaml:"simulation"`
	Dashboard struct {
		Listen      string   `yaml:"listen"`
		Watch       []string `yaml:"watch"`
		RefreshCron string   `yaml:"refresh_cron"`
	} `yaml:"dashboard"`
	Server struct {
		Listen      string  `yaml:"listen"`
		StartDate   string  `yaml:"start_date"`
		InitialCash float64 `yaml:"initial_cash"`
		DataSource  struct {
			Kind    string `yaml:"kind"`
			BaseURL string `yaml:"base_url"`
			APIKey  string `yaml:"api_key"`
		} `yaml:"data_source"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"metrics"`
	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// Path returns the config file location, honouring CONFIG_PATH.
func Path() string {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return "configs/config.yaml"
}

// Load reads config from a YAML file, then applies .env and environment
// variable overrides, then defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	_ = godotenv.Load()

	if v := os.Getenv("SIM_API_URL"); v != "" {
		cfg.Simulation.BaseURL = v
	}
	if v := os.Getenv("DASHBOARD_LISTEN"); v != "" {
		cfg.Dashboard.Listen = v
	}
	if v := os.Getenv("REFRESH_CRON"); v != "" {
		cfg.Dashboard.RefreshCron = v
	}
	if v := os.Getenv("SERVER_LISTEN"); v != "" {
		cfg.Server.Listen = v
	}
	if v := os.Getenv("DATA_SOURCE"); v != "" {
		cfg.Server.DataSource.Kind = v
	}
	if v := os.Getenv("DATA_SOURCE_URL"); v != "" {
		cfg.Server.DataSource.BaseURL = v
	}
	if v := os.Getenv("DATA_SOURCE_API_KEY"); v != "" {
		cfg.Server.DataSource.APIKey = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("INITIAL_CASH"); v != "" {
		var cash float64
		if _, err := fmt.Sscanf(v, "%f", &cash); err == nil {
			cfg.Server.InitialCash = cash
		}
	}

	// Defaults
	if cfg.Simulation.BaseURL == "" {
		cfg.Simulation.BaseURL = "http://localhost:5000/api"
	}
	cfg.Simulation.BaseURL = strings.TrimRight(cfg.Simulation.BaseURL, "/")
	if cfg.Simulation.Timeout == 0 {
		cfg.Simulation.Timeout = 3 * time.Second
	}
	if cfg.Simulation.Retries == 0 {
		cfg.Simulation.Retries = 3
	}
	if cfg.Dashboard.Listen == "" {
		cfg.Dashboard.Listen = ":8080"
	}
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":5000"
	}
	if cfg.Server.StartDate == "" {
		cfg.Server.StartDate = "2021-03-01 10:00:00"
	}
	if cfg.Server.InitialCash == 0 {
		cfg.Server.InitialCash = 100000
	}
	if cfg.Server.DataSource.Kind == "" {
		cfg.Server.DataSource.Kind = SourceYahoo
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	return cfg, nil
}

// Validate checks the fields every client command needs.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Simulation.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("simulation.base_url must be an absolute URL")
	}
	if c.Simulation.Timeout < 0 {
		return fmt.Errorf("simulation.timeout must not be negative")
	}
	if c.Simulation.Retries < 0 {
		return fmt.Errorf("simulation.retries must not be negative")
	}
	return nil
}

// ValidateServer checks the fields the simulation server needs.
func (c *Config) ValidateServer() error {
	if _, err := time.Parse(model.DateLayout, c.Server.StartDate); err != nil {
		return fmt.Errorf("server.start_date: %w", err)
	}
	if c.Server.InitialCash <= 0 {
		return fmt.Errorf("server.initial_cash must be positive")
	}
	switch c.Server.DataSource.Kind {
	case SourceYahoo, SourceMock:
	case SourceREST:
		if c.Server.DataSource.BaseURL == "" {
			return fmt.Errorf("server.data_source.base_url is required for kind %q", SourceREST)
		}
	default:
		return fmt.Errorf("server.data_source.kind %q is not supported", c.Server.DataSource.Kind)
	}
	return nil
}
