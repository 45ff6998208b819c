// stereoingest - state and scheduling core for unattended media audio ingestion
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"time"
)

// Validate checks that required configuration is present and within the
// ranges named in SPEC_FULL.md §5.10. Invalid configuration is rejected at
// load time rather than discovered mid-run.
func (c *Config) Validate() error {
	if err := c.validatePlanner(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateDiscovery(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePlanner() error {
	p := c.Planner
	if p.StableWait < time.Second {
		return fmt.Errorf("planner.stable_wait must be >= 1s")
	}
	if p.BackoffStep <= 0 {
		return fmt.Errorf("planner.backoff_step must be > 0")
	}
	if p.BackoffMax < p.BackoffStep {
		return fmt.Errorf("planner.backoff_max must be >= planner.backoff_step")
	}
	if p.QuarantineThreshold < 2 {
		return fmt.Errorf("planner.quarantine_threshold must be >= 2")
	}
	if p.BatchSize < 1 {
		return fmt.Errorf("planner.batch_size must be >= 1")
	}
	if p.WorkerCount < 1 {
		return fmt.Errorf("planner.worker_count must be >= 1")
	}
	if p.LoopInterval <= 0 {
		return fmt.Errorf("planner.loop_interval must be > 0")
	}
	return nil
}

func (c *Config) validateStore() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store.path must not be empty")
	}
	if c.Store.MaxEntries < 100 {
		return fmt.Errorf("store.max_entries must be >= 100")
	}
	return nil
}

func (c *Config) validateDiscovery() error {
	if len(c.Discovery.Extensions) == 0 {
		return fmt.Errorf("discovery.extensions must not be empty")
	}
	if c.Discovery.MaxDepth < 0 {
		return fmt.Errorf("discovery.max_depth must be >= 0")
	}
	if c.Discovery.FanOut < 1 {
		return fmt.Errorf("discovery.fan_out must be >= 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "":
		return nil
	default:
		return fmt.Errorf("logging.level %q is not a recognized level", c.Logging.Level)
	}
}
