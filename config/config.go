package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Token describes a ledger token registered at startup.
type Token struct {
	Symbol   string `toml:"Symbol"`
	Name     string `toml:"Name"`
	Decimals uint8  `toml:"Decimals"`
}

type Config struct {
	DataDir        string  `toml:"DataDir"`
	MetricsAddress string  `toml:"MetricsAddress"`
	NetworkName    string  `toml:"NetworkName"`
	Environment    string  `toml:"Environment"`
	Tokens         []Token `toml:"Tokens"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "paystream-local"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./paystream-data"
	}
	if len(cfg.Tokens) == 0 {
		cfg.Tokens = defaultTokens()
	}
	for i, token := range cfg.Tokens {
		if strings.TrimSpace(token.Symbol) == "" {
			return nil, fmt.Errorf("config: token %d has no symbol", i)
		}
	}

	return cfg, nil
}

func defaultTokens() []Token {
	return []Token{{Symbol: "USD", Name: "Stream Dollar", Decimals: 6}}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		DataDir:        "./paystream-data",
		MetricsAddress: ":9090",
		NetworkName:    "paystream-local",
		Environment:    "local",
		Tokens:         defaultTokens(),
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return toml.NewEncoder(file).Encode(cfg)
}
