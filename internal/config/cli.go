package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/pelletier/go-toml/v2"
)

// Registry is one configured publish target
type Registry struct {
	URL      string `toml:"url"`
	Username string `toml:"username,omitempty"`
	JWTToken string `toml:"jwt_token,omitempty"` // JWT issued by this registry's login endpoint
}

// CLIConfig is the per-user tool configuration stored at ~/.pmt/config.toml
type CLIConfig struct {
	// DataDir overrides the machine-wide data directory.
	DataDir string `toml:"data_dir,omitempty"`
	// Sources are the repository URLs indexes are fetched from, merged in
	// order with later sources winning on collision.
	Sources []string `toml:"sources"`
	// Current names the registry publish commands talk to.
	Current    string              `toml:"current,omitempty"`
	Registries map[string]Registry `toml:"registries"`
}

// ConfigDir returns the CLI config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".pmt"), nil
}

// ConfigPath returns the full path to config.toml
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// DefaultDataDir is the machine-wide data directory used when the config
// carries no override.
func DefaultDataDir() string {
	if runtime.GOOS == "windows" {
		base := os.Getenv("PROGRAMDATA")
		if base == "" {
			base = `C:\ProgramData`
		}
		return filepath.Join(base, "pmt")
	}
	return "/var/lib/pmt"
}

// LoadCLI loads CLI configuration from ~/.pmt/config.toml. A missing file
// yields the zero config, not an error.
func LoadCLI() (CLIConfig, error) {
	configPath, err := ConfigPath()
	if err != nil {
		return CLIConfig{}, err
	}

	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return CLIConfig{
			Registries: make(map[string]Registry),
		}, nil
	}
	if err != nil {
		return CLIConfig{}, err
	}

	var config CLIConfig
	if err := toml.Unmarshal(data, &config); err != nil {
		return CLIConfig{}, err
	}

	if config.Registries == nil {
		config.Registries = make(map[string]Registry)
	}

	return config, nil
}

// SaveCLI saves CLI configuration to ~/.pmt/config.toml
func SaveCLI(config CLIConfig) error {
	configPath, err := ConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return err
	}

	data, err := toml.Marshal(config)
	if err != nil {
		return err
	}

	// Tokens live in here, keep it private to the user.
	return os.WriteFile(configPath, data, 0o600)
}
