package httpapi

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config drives Serve's listen address and shutdown grace period.
type Config struct {
	ServerPort      string        `envconfig:"SERVER_PORT" default:"8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
}

// GetConfig loads Config from the environment, panicking on malformed input
// the way every other GetConfig() in this module does.
func GetConfig() Config {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		panic(fmt.Errorf("httpapi: error processing env config: %w", err))
	}
	return cfg
}
