// Package vm implements the process-wide Environment (spec §3
// "Environment"): the global/shadow objects, call stack, try-handler
// chain, closures, and call convention that sit above the value/shape/
// object/prop/gc/coroutine/iterator packages and wire them into a
// working runtime.
package vm

import (
	"time"

	"github.com/caarlos0/env/v6"
)

// Config holds the tunables spec §4.5/§4.3.4 names as constants, exposed
// here as environment-overridable knobs the way the teacher's own
// runtime leaves GOGC and friends overridable. Populated via
// github.com/caarlos0/env/v6, the same library mna-nenuphar uses for its
// runtime knobs (see SPEC_FULL.md "DOMAIN STACK").
type Config struct {
	GCThreshold    int           `env:"JSRT_GC_THRESHOLD" envDefault:"4096"`
	GCPollInterval time.Duration `env:"JSRT_GC_POLL_INTERVAL" envDefault:"200us"`

	// StackBlockSize is how many stack links are pre-allocated per growth
	// block (spec §3 "Links are pre-allocated in blocks").
	StackBlockSize int `env:"JSRT_STACK_BLOCK_SIZE" envDefault:"256"`

	// ArrayGrowMin/Max carry the bounds of a one-past-end growth
	// envelope. Nothing in this module reads them: prop.ArraySet grows an
	// array's element storage to exactly the written index plus one.
	ArrayGrowMin int `env:"JSRT_ARRAY_GROW_MIN" envDefault:"4"`
	ArrayGrowMax int `env:"JSRT_ARRAY_GROW_MAX" envDefault:"256"`

	// EventWaitPoll carries a poll interval for the synchronous
	// collect(full=true) path. Nothing in this module reads it:
	// gc.Collector.CollectSync polls at a fixed 55 ms.
	EventWaitPoll time.Duration `env:"JSRT_EVENT_WAIT_POLL" envDefault:"55ms"`
}

// DefaultConfig returns Config's zero-input values without touching the
// environment, for tests and embedders that construct one programmatically.
func DefaultConfig() Config {
	return Config{
		GCThreshold:    4096,
		GCPollInterval: 200 * time.Microsecond,
		StackBlockSize: 256,
		ArrayGrowMin:   4,
		ArrayGrowMax:   256,
		EventWaitPoll:  55 * time.Millisecond,
	}
}

// LoadConfig starts from DefaultConfig and overlays any JSRT_* variables
// present in the process environment.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
