// Package config loads the tunables of a plumcast Service/Node from
// JSON, so an embedder can externalize tick_interval, the three
// HyParView maintenance intervals, and both engines' option bags
// without recompiling.
package config

import (
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/aistore-labs/plumcast/hyparview"
	"github.com/aistore-labs/plumcast/plumtree"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Duration wraps time.Duration so it can be read from JSON as a plain
// string ("100ms", "5s") instead of a raw integer nanosecond count.
type Duration struct{ time.Duration }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.Wrap(err, "config: duration")
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return errors.Wrap(err, "config: duration")
	}
	d.Duration = parsed
	return nil
}

// HyParView carries the JSON-visible subset of hyparview.Options. Rand
// is omitted: randomness is seeded per-process, never config-driven.
type HyParView struct {
	ActiveViewSize  int  `json:"active_view_size"`
	PassiveViewSize int  `json:"passive_view_size"`
	ARWL            byte `json:"arwl"`
	PRWL            byte `json:"prwl"`
	ShuffleTTL      byte `json:"shuffle_ttl"`
	ShuffleActive   int  `json:"shuffle_active"`
	ShufflePassive  int  `json:"shuffle_passive"`
}

// ToOptions overlays the configured fields onto hyparview.DefaultOptions,
// preserving Rand from the defaults.
func (c HyParView) ToOptions() hyparview.Options {
	opts := hyparview.DefaultOptions()
	if c.ActiveViewSize != 0 {
		opts.ActiveViewSize = c.ActiveViewSize
	}
	if c.PassiveViewSize != 0 {
		opts.PassiveViewSize = c.PassiveViewSize
	}
	if c.ARWL != 0 {
		opts.ARWL = c.ARWL
	}
	if c.PRWL != 0 {
		opts.PRWL = c.PRWL
	}
	if c.ShuffleTTL != 0 {
		opts.ShuffleTTL = c.ShuffleTTL
	}
	if c.ShuffleActive != 0 {
		opts.ShuffleActive = c.ShuffleActive
	}
	if c.ShufflePassive != 0 {
		opts.ShufflePassive = c.ShufflePassive
	}
	return opts
}

// Plumtree carries the JSON-visible subset of plumtree.Options.
type Plumtree struct {
	IhaveGraceTicks uint64 `json:"ihave_grace_ticks"`
}

func (c Plumtree) ToOptions() plumtree.Options {
	opts := plumtree.DefaultOptions()
	if c.IhaveGraceTicks != 0 {
		opts.IhaveGraceTicks = c.IhaveGraceTicks
	}
	return opts
}

// Config is the externalizable tunable set for one Node/Service pair.
// Zero-valued fields fall back to the builders' own defaults.
type Config struct {
	// BindAddr is the UDP address the Service listens on, e.g.
	// "0.0.0.0:6001".
	BindAddr string `json:"bind_addr"`

	// TickInterval is the Node's maintenance tick period; defaults to
	// 100ms.
	TickInterval Duration `json:"tick_interval"`

	// The three HyParView maintenance intervals, expressed as tick
	// counts, each randomized by up to ±10% per node at construction
	// time rather than applied as a literal modulus.
	HyParViewShuffleIntervalTicks uint64 `json:"hyparview_shuffle_interval_ticks"`
	HyParViewSyncIntervalTicks    uint64 `json:"hyparview_sync_active_view_interval_ticks"`
	HyParViewFillIntervalTicks    uint64 `json:"hyparview_fill_active_view_interval_ticks"`

	HyParView HyParView `json:"hyparview_options"`
	Plumtree  Plumtree  `json:"plumtree_options"`
}

const (
	defaultTickInterval    = 100 * time.Millisecond
	defaultShuffleInterval = 59
	defaultSyncInterval    = 31
	defaultFillInterval    = 20
)

// Default returns a Config with every tunable at its pinned default: a
// 100ms tick and the 59/31/20 tick maintenance moduli.
func Default() Config {
	return Config{
		TickInterval:                  Duration{defaultTickInterval},
		HyParViewShuffleIntervalTicks: defaultShuffleInterval,
		HyParViewSyncIntervalTicks:    defaultSyncInterval,
		HyParViewFillIntervalTicks:    defaultFillInterval,
	}
}

// Load reads a Config from a JSON file at path, overlaying any fields
// present onto Default().
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "config: reading %s", path)
	}
	return Parse(b)
}

// Parse decodes JSON bytes into a Config overlaid onto Default().
func Parse(b []byte) (Config, error) {
	cfg := Default()
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "config: decoding")
	}
	if cfg.TickInterval.Duration == 0 {
		cfg.TickInterval = Duration{defaultTickInterval}
	}
	if cfg.HyParViewShuffleIntervalTicks == 0 {
		cfg.HyParViewShuffleIntervalTicks = defaultShuffleInterval
	}
	if cfg.HyParViewSyncIntervalTicks == 0 {
		cfg.HyParViewSyncIntervalTicks = defaultSyncInterval
	}
	if cfg.HyParViewFillIntervalTicks == 0 {
		cfg.HyParViewFillIntervalTicks = defaultFillInterval
	}
	return cfg, nil
}
