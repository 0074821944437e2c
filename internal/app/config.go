package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete proxy configuration, loadable from environment
// variables (STOREFRONT_ prefix), flags, or YAML config files.
type Config struct {
	Addr      string `default:"0.0.0.0:8080" usage:"API server listen address"`
	ERP       ERPConfig
	Rates     RatesConfig
	Catalog   CatalogConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// ERPConfig points at the ERP product API the catalog is pulled from.
type ERPConfig struct {
	BaseURL string        `usage:"ERP product API base URL (STOREFRONT_ERP_BASE_URL)" flag:"erp-base-url"`
	Token   string        `usage:"ERP API bearer token (STOREFRONT_ERP_TOKEN)" flag:"erp-token"`
	Timeout time.Duration `default:"20s" usage:"ERP request timeout" flag:"erp-timeout"`
}

// RatesConfig configures the shipping-rate providers.
type RatesConfig struct {
	OriginCEP        string        `usage:"Shipment origin postal code (STOREFRONT_RATES_ORIGIN_CEP)" flag:"origin-cep"`
	MelhorEnvioToken string        `usage:"Melhor Envio API token" flag:"melhorenvio-token"`
	MelhorEnvioEnv   string        `default:"sandbox" usage:"Melhor Envio environment: sandbox or production" flag:"melhorenvio-env"`
	CorreiosURL      string        `usage:"Override for the Correios calculator URL" flag:"correios-url"`
	Timeout          time.Duration `default:"30s" usage:"Rate provider request timeout" flag:"rates-timeout"`
}

// CatalogConfig controls the in-memory product cache.
type CatalogConfig struct {
	TTL time.Duration `default:"15m" usage:"Product cache time-to-live" flag:"catalog-ttl"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins []string `default:"*" usage:"Allowed CORS origins"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "STOREFRONT",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.ERP.BaseURL == "" {
		return nil, errors.New("ERP base URL is required: set STOREFRONT_ERP_BASE_URL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables
// (Railway, Render, etc.) that use standard names like PORT onto the
// STOREFRONT_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
