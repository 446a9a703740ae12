// Package config loads the application configuration from defaults, a TOML
// file and STACKREVIEW_-prefixed environment variables.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the application configuration
type Config struct {
	Phabricator struct {
		URL   string `koanf:"url"`
		Token string `koanf:"token"`
	} `koanf:"phabricator"`

	Repository struct {
		Path  string `koanf:"path"`
		Trunk string `koanf:"trunk"`
	} `koanf:"repository"`

	Analysis struct {
		NativeExtensions []string `koanf:"native_extensions"`
	} `koanf:"analysis"`

	Artifacts struct {
		Dir          string `koanf:"dir"`
		PublishURL   string `koanf:"publish_url"`
		PublishToken string `koanf:"publish_token"`
		TTLDays      int    `koanf:"ttl_days"`
	} `koanf:"artifacts"`

	Log struct {
		Level  string `koanf:"level"`
		Pretty bool   `koanf:"pretty"`
	} `koanf:"log"`
}

// Load loads the configuration from a file
func Load(configPath string) (*Config, error) {
	var k = koanf.New(".")

	// Set up default configuration
	k.Load(confmap.Provider(map[string]interface{}{
		"repository.trunk":           "central",
		"analysis.native_extensions": []string{".c", ".cc", ".cpp", ".cxx", ".h", ".hh", ".hpp", ".hxx", ".m", ".mm"},
		"artifacts.dir":              "results",
		"artifacts.ttl_days":         30,
		"log.level":                  "info",
	}, "."), nil)

	// Load from TOML file if it exists
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		defaultPaths := []string{"./stackreview.toml", "$HOME/.stackreview.toml"}
		for _, path := range defaultPaths {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err == nil {
					break
				}
			}
		}
	}

	// Load from environment variables with prefix STACKREVIEW_
	k.Load(env.Provider("STACKREVIEW_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "STACKREVIEW_")), "_", ".", -1)
	}), nil)

	// Unmarshal into Config struct
	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	return &config, nil
}

// Init initializes a new configuration file
func Init(configPath string) error {
	// Check if file already exists
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	sampleConfig := `# stackreview configuration

[phabricator]
url = "https://phabricator.example.com"
token = "api-your-conduit-token"

[repository]
path = "/path/to/working-copy"
trunk = "central"

[artifacts]
dir = "results"
# publish_url = "https://artifacts.example.com/blobs"
# publish_token = "your-artifact-token"
ttl_days = 30

[log]
level = "info"
pretty = true
`

	return os.WriteFile(configPath, []byte(sampleConfig), 0644)
}

// Validate validates the configuration
func Validate(config *Config) error {
	if config.Phabricator.URL == "" {
		return fmt.Errorf("phabricator url is required")
	}

	if config.Phabricator.Token == "" {
		return fmt.Errorf("phabricator token is required")
	}

	if config.Repository.Path == "" {
		return fmt.Errorf("repository path is required")
	}

	if config.Repository.Trunk == "" {
		return fmt.Errorf("repository trunk is required")
	}

	return nil
}
