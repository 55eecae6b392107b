package auth

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config drives Service construction at startup.
type Config struct {
	SigningKey string        `envconfig:"JWT_SIGNING_KEY" required:"true"`
	TokenTTL   time.Duration `envconfig:"JWT_TOKEN_TTL" default:"24h"`
}

// GetConfig loads Config from the environment, panicking on malformed input
// the way every other GetConfig() in this module does.
func GetConfig() Config {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		panic(fmt.Errorf("auth: error processing env config: %w", err))
	}
	return cfg
}
