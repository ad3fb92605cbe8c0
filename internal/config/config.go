package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Credentials is one Jira instance's connection settings. The source and
// target pairs are configured per direction and never mixed.
type Credentials struct {
	URL   string `yaml:"url"   mapstructure:"url"`
	Email string `yaml:"email" mapstructure:"email"`
	Token string `yaml:"token" mapstructure:"token"`
}

// Config holds the bridge settings.
type Config struct {
	Source    Credentials `yaml:"source" mapstructure:"source"`
	Target    Credentials `yaml:"target" mapstructure:"target"`
	StorePath string      `yaml:"store_path" mapstructure:"store_path"`
}

// DefaultPath returns the default config file path (~/.jira-bridge.yaml).
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".jira-bridge.yaml"
	}
	return filepath.Join(home, ".jira-bridge.yaml")
}

// DefaultStorePath returns the default relation-store location
// (~/.jira-bridge.db).
func DefaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".jira-bridge.db"
	}
	return filepath.Join(home, ".jira-bridge.db")
}

// Load reads config from the YAML file and applies env var overrides.
// configPath may be empty to use the default path.
func Load(configPath string) (Config, error) {
	v := viper.New()

	if configPath == "" {
		configPath = DefaultPath()
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// Env var overrides, one set per direction.
	v.BindEnv("source.url", "SOURCE_JIRA_URL")
	v.BindEnv("source.email", "SOURCE_JIRA_EMAIL")
	v.BindEnv("source.token", "SOURCE_JIRA_TOKEN")
	v.BindEnv("target.url", "TARGET_JIRA_URL")
	v.BindEnv("target.email", "TARGET_JIRA_EMAIL")
	v.BindEnv("target.token", "TARGET_JIRA_TOKEN")
	v.BindEnv("store_path", "JIRA_BRIDGE_STORE")

	// Read the config file (ignore "not found" errors so env vars still work)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if cfg.StorePath == "" {
		cfg.StorePath = DefaultStorePath()
	}

	return cfg, nil
}

// Validate checks that both credential pairs are complete.
func (c Config) Validate() error {
	if err := c.Source.validate("source", "SOURCE_JIRA"); err != nil {
		return err
	}
	return c.Target.validate("target", "TARGET_JIRA")
}

func (c Credentials) validate(name, envPrefix string) error {
	if c.URL == "" {
		return fmt.Errorf("%s Jira URL is required (set in config file or %s_URL env var)", name, envPrefix)
	}
	if c.Email == "" {
		return fmt.Errorf("%s Jira email is required (set in config file or %s_EMAIL env var)", name, envPrefix)
	}
	if c.Token == "" {
		return fmt.Errorf("%s Jira token is required (set in config file or %s_TOKEN env var)", name, envPrefix)
	}
	return nil
}

// Save writes the config to the given path (or default path if empty).
func Save(cfg Config, configPath string) error {
	if configPath == "" {
		configPath = DefaultPath()
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
