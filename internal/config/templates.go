package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "client":
		return clientTemplate, nil
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

const clientTemplate = `name = "sockctl"
endpoint = "ws://localhost:9000/socket"
outbound_capacity = 2
inbound_capacity = 5

[session]
handshake_timeout = "5s"
write_timeout = "15s"
ping_interval = "5s"
send_retry_limit = 15
send_retry_delay = "20ms"
redial_initial_delay = "250ms"
redial_multiplier = 2.0
redial_max_delay = "5s"
redial_jitter = true

[session.tls]
# ca_file = "/etc/sockctl/ca.crt"
# server_name = "gateway.local"
# mutual = false
# cert_file = "/etc/sockctl/client.crt"
# key_file = "/etc/sockctl/client.key"
`
