// Package config loads process-lifetime startup configuration from an HCL
// file: page size, buffer pool capacity, lock timeout bounds, the data
// directory, and the WAL path. Grounded on leftmike-maho.v1's config/load.go,
// which decodes the same way via github.com/hashicorp/hcl.
//
// Page size is deliberately read once here and never exposed as a setter
// elsewhere in the module — the design notes' "page size mutability" open
// question is resolved in favor of a process-lifetime constant.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl"

	"github.com/rennervale/pagestore/pkg/storage"
)

// StorageFaultPolicy names a StorageFault handling policy. The value is
// decoded into Config but no component reads it: every StorageFault is
// returned to the caller whichever policy is set, and neither process exit
// nor a read-only mode is implemented.
type StorageFaultPolicy string

const (
	// PolicyExit names process exit on StorageFault (the default value).
	PolicyExit StorageFaultPolicy = "exit"
	// PolicyReadOnly names surfacing the error and marking the database
	// read-only.
	PolicyReadOnly StorageFaultPolicy = "readonly"
)

// Config is the full set of startup parameters for the page store.
type Config struct {
	PageSize           int    `hcl:"page_size"`
	BufferPoolCapacity int    `hcl:"buffer_pool_capacity"`
	DataDir            string `hcl:"data_dir"`
	WALPath            string `hcl:"wal_path"`

	LockTimeoutMinMS   int `hcl:"lock_timeout_min_ms"`
	LockTimeoutRangeMS int `hcl:"lock_timeout_range_ms"`
	LockPollIntervalMS int `hcl:"lock_poll_interval_ms"`

	StorageFaultPolicy StorageFaultPolicy `hcl:"storage_fault_policy"`

	LogLevel  string `hcl:"log_level"`
	LogFormat string `hcl:"log_format"`
	LogPath   string `hcl:"log_path"`
}

// Default returns the configuration the spec's component designs quote as
// defaults: 4096-byte pages, T_min=50ms, T_range=400ms, 100ms poll interval.
func Default() *Config {
	return &Config{
		PageSize:           4096,
		BufferPoolCapacity: 64,
		DataDir:            "./data",
		WALPath:            "./data/wal.log",
		LockTimeoutMinMS:   50,
		LockTimeoutRangeMS: 400,
		LockPollIntervalMS: 100,
		StorageFaultPolicy: PolicyExit,
		LogLevel:           "INFO",
		LogFormat:          "text",
	}
}

// Load reads an HCL config file and overlays it onto Default(). A missing
// field in the file keeps the default value.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := Default()
	if err := hcl.Decode(cfg, string(b)); err != nil {
		return nil, fmt.Errorf("decoding config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that would violate an invariant elsewhere
// in the store (e.g. a zero-capacity buffer pool can never satisfy getPage).
func (c *Config) Validate() error {
	if c.PageSize != storage.PageSize {
		return fmt.Errorf("page_size must equal the compiled-in page size %d, got %d", storage.PageSize, c.PageSize)
	}
	if c.BufferPoolCapacity <= 0 {
		return fmt.Errorf("buffer_pool_capacity must be positive, got %d", c.BufferPoolCapacity)
	}
	if c.LockTimeoutMinMS < 0 || c.LockTimeoutRangeMS < 0 {
		return fmt.Errorf("lock timeout bounds must be non-negative")
	}
	return nil
}

// LockTimeoutMin is T_min from the page lock's deadlock handling design.
func (c *Config) LockTimeoutMin() time.Duration {
	return time.Duration(c.LockTimeoutMinMS) * time.Millisecond
}

// LockTimeoutRange is T_range from the page lock's deadlock handling design.
func (c *Config) LockTimeoutRange() time.Duration {
	return time.Duration(c.LockTimeoutRangeMS) * time.Millisecond
}

// LockPollInterval is the short-sleep interval the waiter rechecks the grant
// condition at while blocked.
func (c *Config) LockPollInterval() time.Duration {
	return time.Duration(c.LockPollIntervalMS) * time.Millisecond
}
