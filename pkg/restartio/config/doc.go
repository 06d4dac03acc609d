/*
Package config provides type-safe configuration extraction from map[string]any.

# Overview

config wraps a map[string]any and provides typed accessor methods that handle
missing keys and type mismatches gracefully by returning default values.
It is used to describe a checkpoint file session in YAML or JSON:

	path: restart.db
	mode: append
	backend: sqlite
	packer: json
	rank: 0
	size: 4
	root: 0
	metrics: true

# Basic Usage

	cfg, err := config.FromFile("restart.yaml")
	if err != nil {
	    log.Fatal(err)
	}

	path := cfg.String("path", "")       // "restart.db"
	size := cfg.Int("size", 1)            // 4
	metrics := cfg.Bool("metrics", false) // true

Load reads a YAML file and overlays environment variables, so a job script
can override one setting per rank without editing the file:

	// RESTARTIO_RANK=3 RESTARTIO_MODE=append
	cfg, err := config.Load("restart.yaml", config.DefaultEnvPrefix)

Nested blocks are reached with Section:

	restart := cfg.Section("restart")

All methods return the default value if the key is missing, the value cannot
be converted to the requested type, or the conversion would lose precision
(e.g., float to int with a fraction).

# Thread Safety

Config is safe for concurrent read access. The underlying map is not
modified after creation.
*/
package config
