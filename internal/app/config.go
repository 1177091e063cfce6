package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the process configuration, loadable from environment
// variables (BASKET_ prefix) or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"Health endpoint listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (BASKET_DATABASE_URL or DATABASE_URL)"`
	MaxConns    int32  `default:"8" usage:"Maximum PostgreSQL connections"`
	Sweeper     SweeperConfig
	Catalog     CatalogConfig
	Graceful    GracefulConfig
}

// SweeperConfig controls removal of abandoned baskets.
type SweeperConfig struct {
	Interval  time.Duration `default:"10m"  usage:"Time between sweeps"`
	MaxAge    time.Duration `default:"336h" usage:"Baskets untouched for longer are deleted"`
	BatchSize int           `default:"500"  usage:"Baskets deleted per statement"`
}

// CatalogConfig controls the product metadata cache.
type CatalogConfig struct {
	CacheTTL time.Duration `default:"1m" usage:"Product metadata cache TTL"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration"`
}

// LoadConfig loads configuration from environment variables and YAML config
// files, then applies platform defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "BASKET",
		SkipFlags: true,
		Files:     []string{"config.yaml", "/etc/basket/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("database URL is required: set BASKET_DATABASE_URL or DATABASE_URL")
	case c.Sweeper.Interval <= 0:
		return errors.Errorf("sweeper interval must be positive, got %s", c.Sweeper.Interval)
	case c.Sweeper.MaxAge <= 0:
		return errors.Errorf("sweeper max age must be positive, got %s", c.Sweeper.MaxAge)
	}
	return nil
}

// applyPlatformDefaults maps platform-provided DATABASE_URL and PORT onto
// the BASKET_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
