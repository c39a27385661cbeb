package config

import (
	"fmt"
	"os"
	"strings"
)

// Template returns an example configuration. Kind "full" documents every key;
// "minimal" carries only the connection addresses.
func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "full":
		return fullTemplate, nil
	case "minimal":
		return minimalTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const fullTemplate = `[log]
level = "info"
timestamp = true
no_color = false
# file = "grailctl.log"
max_size_mb = 50
max_backups = 3
max_age_days = 14
compress = false

[transport]
connect_timeout = "5s"
read_timeout = "0s"
write_timeout = "10s"
connect_attempts = 3
backoff_initial = "250ms"
backoff_max = "5s"
backoff_multiplier = 2.0
backoff_jitter = true

[aggregator]
addr = "localhost:7008"
max_queued = 1024
keepalive = "30s"

[[aggregator.rules]]
phy = 1
interval_ms = 1000
filters = [
  { id = "0x2a", mask = "0xFFFFFFFF" },
  { id = "44" },
]

[[aggregator.rules]]
phy = 3
interval_ms = 500

[world_model]
addr = "localhost:7009"
origin = "grailctl"
keepalive = "30s"

[status]
listen = "127.0.0.1:7080"
cors_origins = ["http://localhost:3000"]
`

const minimalTemplate = `[aggregator]
addr = "localhost:7008"

[world_model]
addr = "localhost:7009"
origin = "grailctl"
`
