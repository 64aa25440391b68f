package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jgrahamc/ambibus/schedule"
	"gopkg.in/yaml.v3"
)

// Config is everything the daemon needs to know, read once at startup.
type Config struct {
	Stop        string   `yaml:"stop"`
	Routes      []string `yaml:"routes"`
	WalkMinutes int      `yaml:"walk_minutes"`

	FetchEvery  duration `yaml:"fetch_every"`
	NoInfoEvery duration `yaml:"no_info_every"`
	RenderEvery duration `yaml:"render_every"`
	Tick        duration `yaml:"tick"`
	IdleTick    duration `yaml:"idle_tick"`

	Window schedule.Window `yaml:"window"`
}

// duration lets yaml carry values like "90s" or "3m".
type duration time.Duration

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", value.Value, err)
	}
	*d = duration(parsed)
	return nil
}

func defaultConfig() Config {
	return Config{
		FetchEvery:  duration(3 * time.Minute),
		NoInfoEvery: duration(30 * time.Second),
		RenderEvery: duration(30 * time.Second),
		Tick:        duration(5 * time.Second),
		IdleTick:    duration(5 * time.Minute),
		Window:      schedule.Window{Start: 700, End: 1000},
	}
}

func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.Stop == "" {
		return cfg, fmt.Errorf("config %q has no stop", path)
	}
	if len(cfg.Routes) == 0 {
		return cfg, fmt.Errorf("config %q has no routes", path)
	}
	if err := checkHHMM(cfg.Window.Start); err != nil {
		return cfg, fmt.Errorf("window start: %w", err)
	}
	if err := checkHHMM(cfg.Window.End); err != nil {
		return cfg, fmt.Errorf("window end: %w", err)
	}
	if cfg.Window.End < cfg.Window.Start {
		return cfg, fmt.Errorf("window ends (%04d) before it starts (%04d)", cfg.Window.End, cfg.Window.Start)
	}
	return cfg, nil
}

func checkHHMM(hhmm int) error {
	if hhmm < 0 || hhmm > 2359 || hhmm%100 > 59 {
		return fmt.Errorf("%04d is not a 24-hour HHMM time", hhmm)
	}
	return nil
}

// schedule converts to the control loop's config.
func (c Config) schedule() schedule.Config {
	return schedule.Config{
		FetchEvery:  time.Duration(c.FetchEvery),
		NoInfoEvery: time.Duration(c.NoInfoEvery),
		RenderEvery: time.Duration(c.RenderEvery),
		Tick:        time.Duration(c.Tick),
		IdleTick:    time.Duration(c.IdleTick),
		Window:      c.Window,
	}
}
