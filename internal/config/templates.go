package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "host", "":
		return hostTemplate, nil
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

const hostTemplate = `name = "weedhost"
version = "1.0.0"
verbosity = 1
log_level = "info"
admin_addr = ":9300"
cors_origins = ["http://localhost:3000"]
admin_token = ""
supports_linear_gamma = false
supports_premult_alpha = false

[abi]
min = 100
max = 201

[api]
min = 100
max = 200

[memory]
max_bytes = 67108864

[instances]
max_per_filter = 16

[[plugins]]
name = "blend"
enabled = true

[[plugins]]
name = "audiovol"
enabled = true
max_bytes = 1048576
`

const minimalTemplate = `name = "weedhost"
admin_addr = ":9300"
`
