// Package config parses and validates the scheduler's configuration, one
// field per key documented in spec.md §6. Modeled on the teacher's
// manager.Config / yaml-driven cluster config: a plain struct, a loader,
// and defaults applied at load time rather than scattered through callers.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// PreemptParams tunes the Preemption Engine (spec.md §6).
type PreemptParams struct {
	YoungestFirst     bool   `yaml:"youngest_first"`
	MinExemptPriority uint32 `yaml:"min_exempt_priority"`
	ReclaimLicenses   bool   `yaml:"reclaim_licenses"`
}

// Config holds every scheduling parameter read from configuration
// (spec.md §6). Durations are stored as time.Duration after Load parses
// the YAML seconds/microseconds fields.
type Config struct {
	DefaultQueueDepth     int           `yaml:"default_queue_depth"`
	PartitionJobDepth     int           `yaml:"partition_job_depth"`
	MaxRPCCount           int           `yaml:"max_rpc_cnt"`
	MaxSchedTime          time.Duration `yaml:"-"`
	MaxSchedTimeSec       int           `yaml:"max_sched_time"`
	RPCTimeout            time.Duration `yaml:"-"`
	RPCTimeoutSec         int           `yaml:"rpc_timeout"`
	SchedInterval         time.Duration `yaml:"-"`
	SchedIntervalSec      int           `yaml:"sched_interval"`
	SchedMaxJobStart      int           `yaml:"sched_max_job_start"`
	BFMinAgeReserve       time.Duration `yaml:"-"`
	BFMinAgeReserveSec    int           `yaml:"bf_min_age_reserve"`
	BuildQueueTimeout     time.Duration `yaml:"-"`
	BuildQueueTimeoutUsec int           `yaml:"build_queue_timeout"`
	BatchSchedDelay       time.Duration `yaml:"-"`
	BatchSchedDelaySec    int           `yaml:"batch_sched_delay"`
	MaxDependDepth        int           `yaml:"max_depend_depth"`
	PreemptParams         PreemptParams `yaml:"preempt_params"`
	SchedTimeSlice        time.Duration `yaml:"-"`
	SchedTimeSliceSec     int           `yaml:"sched_time_slice"`
	WikiCompat            bool          `yaml:"wiki_compat"`
}

// Default returns the configuration defaults documented in spec.md §6.
func Default() *Config {
	return &Config{
		DefaultQueueDepth:     100,
		PartitionJobDepth:     0, // 0 = unlimited
		MaxRPCCount:           0, // 0 = never defer
		MaxSchedTimeSec:       2,
		RPCTimeoutSec:         10,
		SchedIntervalSec:      60,
		SchedMaxJobStart:      0, // 0 = unlimited
		BFMinAgeReserveSec:    0,
		BuildQueueTimeoutUsec: 2_000_000,
		BatchSchedDelaySec:    1,
		MaxDependDepth:        10,
		PreemptParams: PreemptParams{
			YoungestFirst:     false,
			MinExemptPriority: 0,
			ReclaimLicenses:   false,
		},
		SchedTimeSliceSec: 30,
	}
}

// Load reads and parses a YAML configuration file, applying defaults for
// any field the file omits. A field the file sets explicitly, even to zero,
// keeps the file's value.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	loaded := Default()
	if err := yaml.Unmarshal(data, loaded); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg = loaded
	cfg.resolveDurations()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) resolveDurations() {
	c.MaxSchedTime = time.Duration(c.MaxSchedTimeSec) * time.Second
	c.RPCTimeout = time.Duration(c.RPCTimeoutSec) * time.Second
	c.SchedInterval = time.Duration(c.SchedIntervalSec) * time.Second
	c.BFMinAgeReserve = time.Duration(c.BFMinAgeReserveSec) * time.Second
	c.BuildQueueTimeout = time.Duration(c.BuildQueueTimeoutUsec) * time.Microsecond
	c.BatchSchedDelay = time.Duration(c.BatchSchedDelaySec) * time.Second
	c.SchedTimeSlice = time.Duration(c.SchedTimeSliceSec) * time.Second
}

// Validate clamps MaxSchedTime into the documented [1s, ½ RPC timeout] band
// (spec.md §6) and rejects other structurally invalid values.
func (c *Config) Validate() error {
	if c.DefaultQueueDepth <= 0 {
		return fmt.Errorf("default_queue_depth must be positive, got %d", c.DefaultQueueDepth)
	}
	if c.MaxDependDepth <= 0 {
		return fmt.Errorf("max_depend_depth must be positive, got %d", c.MaxDependDepth)
	}
	min := time.Second
	max := c.RPCTimeout / 2
	if max <= 0 {
		max = min
	}
	if c.MaxSchedTime < min {
		c.MaxSchedTime = min
	}
	if c.MaxSchedTime > max {
		c.MaxSchedTime = max
	}
	return nil
}

// Reload re-reads the file at path, applying the same defaulting and
// validation as Load (spec.md §6, "re-parsed on reconfig").
func (c *Config) Reload(path string) (*Config, error) {
	return Load(path)
}
