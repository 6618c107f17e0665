// Package config loads the gatehouse server configuration.
//
// Values come from built-in defaults, then the YAML file, then a short
// list of GATEHOUSE_* environment variables (database path, MQTT host and
// credentials, API host, InfluxDB token, JWT secret, token TTL). Secrets
// belong in the environment; Load fails when the JWT secret is missing
// or shorter than 32 characters.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	dir, err := auth.LoadDirectory(cfg.DirectorySource(os.Environ()), opts)
package config
