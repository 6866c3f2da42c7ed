// Package config provides application configuration management.
//
// The config package handles loading and validation of the application's
// configuration from YAML files. It covers server binding (including
// free-port discovery over a configured range), sandbox execution bounds,
// storage, and logging, and persists running-instance metadata to
// .docsport.json so repeated launches can find an existing instance.
//
// Usage:
//
//	cfg, err := config.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	port, err := cfg.ResolvePort()
package config
