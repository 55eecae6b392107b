package adapters

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config drives how the registry wires one Adapter per (platform, firm)
// pair at startup (cmd/copierd, cmd/copierctl). UseRealAdapters false swaps every platform for a
// MockAdapter, matching the ENABLE_DB-style boolean toggle seen elsewhere between
// a real backend and an in-memory stand-in.
type Config struct {
	UseRealAdapters   bool          `envconfig:"USE_REAL_ADAPTERS" default:"false"`
	EnableAPIDiscovery bool         `envconfig:"ENABLE_API_DISCOVERY" default:"true"`
	HTTPTimeout       time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s"`
	PollInterval      time.Duration `envconfig:"POLL_INTERVAL" default:"5s"`
	ReconnectCap      time.Duration `envconfig:"RECONNECT_CAP" default:"30s"`
	HeartbeatInterval time.Duration `envconfig:"HEARTBEAT_INTERVAL" default:"30s"`

	ProjectXBaseURL    string `envconfig:"PROJECTX_BASE_URL" default:"https://api.projectx.com"`
	RithmicBaseURL     string `envconfig:"RITHMIC_BASE_URL" default:"https://api.rithmic.com"`
	RithmicWSURL       string `envconfig:"RITHMIC_WS_URL" default:"wss://ws.rithmic.com"`
	TradovateBaseURL   string `envconfig:"TRADOVATE_BASE_URL" default:"https://live.tradovateapi.com/v1"`
	TradovateWSURL     string `envconfig:"TRADOVATE_WS_URL" default:"wss://live.tradovateapi.com/v1/websocket"`
	NinjaTraderBaseURL string `envconfig:"NINJATRADER_BASE_URL" default:"http://localhost:36973"`
}

// GetConfig loads Config from the environment, panicking on malformed input
// the way every other GetConfig() in this module does.
func GetConfig() Config {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		panic(fmt.Errorf("adapters: error processing env config: %w", err))
	}
	return cfg
}
