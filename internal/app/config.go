package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/cart-keeper/internal/domain/cart"
)

const defaultAddr = "0.0.0.0:8080"

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Config holds the complete application configuration, loadable from
// environment variables (CART_ prefix), flags, or YAML config files.
type Config struct {
	Addr      string `default:"0.0.0.0:8080" usage:"HTTP listen address"`
	Inventory InventoryConfig
	Store     StoreConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// InventoryConfig locates the remote stock service.
type InventoryConfig struct {
	URL     string        `usage:"Inventory service base URL (CART_INVENTORY_URL or INVENTORY_URL)" flag:"inventory-url"`
	Timeout time.Duration `default:"0s" usage:"Per-request inventory timeout, 0 disables it" flag:"inventory-timeout"`
}

// StoreConfig selects and configures the durable cart store.
type StoreConfig struct {
	Driver      string `default:"file" usage:"Store driver: memory, file, redis, postgres or mysql" flag:"store-driver"`
	Key         string `default:"@RocketShoes:cart" usage:"Key holding the serialized cart" flag:"store-key"`
	Dir         string `default:".cart" usage:"Directory for the file driver" flag:"store-dir"`
	RedisAddr   string `default:"localhost:6379" usage:"Redis address for the redis driver" flag:"redis-addr"`
	DatabaseURL string `usage:"PostgreSQL URL for the postgres driver (or DATABASE_URL)" flag:"database-url"`
	MySQLDSN    string `usage:"MySQL DSN for the mysql driver" flag:"mysql-dsn"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files and flags, then validates it.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix: "CART",
		Files:     []string{"config.yaml", "/etc/cart-keeper/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps unprefixed platform variables (PORT,
// INVENTORY_URL, DATABASE_URL) onto the configuration and restores the
// cart key when a file or variable blanked it.
func (c *Config) applyPlatformDefaults() {
	if c.Store.Key == "" {
		c.Store.Key = cart.DefaultKey
	}
	if c.Inventory.URL == "" {
		c.Inventory.URL = os.Getenv("INVENTORY_URL")
	}
	if c.Store.DatabaseURL == "" {
		c.Store.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

// Validate reports the first configuration problem.
func (c *Config) Validate() error {
	if c.Inventory.URL == "" {
		return errors.New("inventory URL is required: set CART_INVENTORY_URL or INVENTORY_URL")
	}
	if c.Inventory.Timeout < 0 {
		return errors.Errorf("inventory timeout %s is negative", c.Inventory.Timeout)
	}
	if c.Store.Key == "" {
		return errors.New("store key is required")
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverFile:
		if c.Store.Dir == "" {
			return errors.New("store dir is required for the file driver")
		}
	case DriverRedis:
		if c.Store.RedisAddr == "" {
			return errors.New("redis address is required for the redis driver")
		}
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			return errors.New("database URL is required for the postgres driver: set CART_STORE_DATABASE_URL or DATABASE_URL")
		}
	case DriverMySQL:
		if c.Store.MySQLDSN == "" {
			return errors.New("mysql DSN is required for the mysql driver")
		}
	default:
		return errors.Errorf("unknown store driver %q", c.Store.Driver)
	}
	return nil
}
