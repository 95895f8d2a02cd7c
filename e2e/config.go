package e2e

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// E2E_RECENT_LIMIT bounds the snapshot a fresh connection receives
	RecentLimit int `envconfig:"E2E_RECENT_LIMIT" default:"50"`
	// E2E_BUFFER_SIZE is the per-connection outbound buffer
	BufferSize int `envconfig:"E2E_BUFFER_SIZE" default:"32"`
	// E2E_READ_TIMEOUT caps how long a scenario waits on a single frame
	ReadTimeout time.Duration `envconfig:"E2E_READ_TIMEOUT" default:"3s"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
