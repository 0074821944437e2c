package main

import (
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/go-faster/errors"
)

// Config holds the terminal storefront configuration, loadable from
// environment variables (STOREFRONT_ prefix) or flags.
type Config struct {
	ProxyURL string        `default:"http://localhost:8080" usage:"Quote proxy base URL" flag:"proxy-url"`
	Provider string        `default:"melhorenvio" usage:"Default shipping rate provider" flag:"provider"`
	Timeout  time.Duration `default:"30s" usage:"Request timeout"`
}

func loadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "STOREFRONT",
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	return &cfg, nil
}
