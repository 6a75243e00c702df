// Package config defines the filekv CLI configuration.
//
// Values are resolved in increasing priority from built-in defaults, the
// YAML config file (~/.filekv/config.yaml unless --config is given),
// FILEKV_* environment variables and command-line flags:
//
//	store:
//	  path: ./data/app.json
//	  codec: yaml
//	  flush_interval: 100ms
//	  file_mode: "0600"
//	log:
//	  level: info
//	security:
//	  passphrase: ""
package config
