package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Providers   map[string]ProviderConfig `json:"providers"`
	Redis       RedisConfig               `json:"redis"`
	Databases   map[string]DatabaseConfig `json:"databases"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

type BasicConfig struct {
	ServerAddress string `json:"server_address"`
	TempDir       string `json:"temp_dir"`
	// Minutes between scratch directory sweeps; <=0 uses the default.
	TempSweepInterval int `json:"temp_sweep_interval"`
	// Driver name into Databases for the catalog cache; empty disables caching.
	CacheDriver string `json:"cache_driver"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

const (
	defaultDashScopeBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	defaultDashScopeModel   = "qwen-long"
)

// Load reads configuration from the provided path (defaults to config.json).
// A missing file is not an error: the service can run entirely from
// environment variables, so defaults are returned instead.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Providers: make(map[string]ProviderConfig),
		Databases: make(map[string]DatabaseConfig),
	}

	if path == "" {
		path = "config.json"
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err == nil {
		defer file.Close()
		if err := json.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}

	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	prov := cfg.Providers["dashscope"]
	if prov.BaseURL == "" {
		prov.BaseURL = defaultDashScopeBaseURL
	}
	if prov.Model == "" {
		prov.Model = defaultDashScopeModel
	}
	if key := os.Getenv("DASHSCOPE_API_KEY"); key != "" {
		prov.APIKey = key
	}
	cfg.Providers["dashscope"] = prov

	if cfg.BasicConfig.TempDir == "" {
		cfg.BasicConfig.TempDir = "./temp"
	}
}
