package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config holds the daemon configuration. Areas, Denom and the two fee levels
// seed the shipping fee schedule on first start; the schedule is read-only
// afterwards.
type Config struct {
	RPCAddress string   `toml:"RPCAddress"`
	DataDir    string   `toml:"DataDir"`
	Denom      string   `toml:"Denom"`
	Areas      []string `toml:"Areas"`
	LocalFee   int64    `toml:"LocalFee"`
	RemoteFee  int64    `toml:"RemoteFee"`
	Env        string   `toml:"Env"`
}

func defaultConfig() *Config {
	return &Config{
		RPCAddress: "127.0.0.1:8645",
		DataDir:    "./data",
		Denom:      "LUNA",
		Areas:      []string{"Montreal", "Toronto", "Vancouver"},
		LocalFee:   5,
		RemoteFee:  20,
		Env:        "dev",
	}
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
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

func createDefault(path string) (*Config, error) {
	cfg := defaultConfig()
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the daemon cannot honour.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("RPCAddress must not be empty")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("DataDir must not be empty")
	}
	if strings.TrimSpace(c.Denom) == "" {
		return fmt.Errorf("Denom must not be empty")
	}
	if len(c.Areas) == 0 {
		return fmt.Errorf("at least one area is required")
	}
	for _, area := range c.Areas {
		if strings.TrimSpace(area) == "" {
			return fmt.Errorf("areas must not be empty strings")
		}
	}
	if c.LocalFee <= 0 || c.RemoteFee <= 0 {
		return fmt.Errorf("fees must be positive")
	}
	if c.RemoteFee < c.LocalFee {
		return fmt.Errorf("RemoteFee must not be below LocalFee")
	}
	return nil
}

// LocalFeeAmount returns the same-area fee as a big integer.
func (c *Config) LocalFeeAmount() *big.Int { return big.NewInt(c.LocalFee) }

// RemoteFeeAmount returns the cross-area fee as a big integer.
func (c *Config) RemoteFeeAmount() *big.Int { return big.NewInt(c.RemoteFee) }
