package util

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Options represents memory manager configuration options
type Options struct {
	// FramePoolSize is the number of physical frames in the user pool.
	FramePoolSize int `yaml:"frame_pool_size"`
	// SwapSectors is the size of the swap device in sectors.
	SwapSectors uint32 `yaml:"swap_sectors"`
	// SwapPath backs the swap device with a file. Empty keeps swap in memory.
	SwapPath string `yaml:"swap_path"`
	// MaxStackSize bounds stack growth below UserStack, in bytes.
	MaxStackSize uint64 `yaml:"max_stack_size"`
	// ClockMaxLoop bounds how many full sweeps the clock hand makes before
	// eviction gives up.
	ClockMaxLoop int    `yaml:"clock_max_loop"`
	LogLevel     string `yaml:"log_level"`
}

// DefaultOptions returns default memory manager options
func DefaultOptions() Options {
	return Options{
		FramePoolSize: 256,  // 1MB of user frames
		SwapSectors:   8192, // 4MB of swap, 1024 slots
		MaxStackSize:  DefaultMaxStackSize,
		ClockMaxLoop:  3,
		LogLevel:      "info",
	}
}

// Validate checks the options for values the manager cannot run with.
func (o Options) Validate() error {
	if o.FramePoolSize <= 0 {
		return fmt.Errorf("frame_pool_size %d: %w", o.FramePoolSize, ErrInvalidPoolSize)
	}
	if o.SwapSectors%SectorsPerPage != 0 {
		return fmt.Errorf("swap_sectors %d is not a multiple of %d: %w", o.SwapSectors, SectorsPerPage, ErrInvalidOptions)
	}
	if o.MaxStackSize == 0 || o.MaxStackSize%PageSize != 0 || Addr(o.MaxStackSize) > UserStack {
		return fmt.Errorf("max_stack_size %d: %w", o.MaxStackSize, ErrInvalidOptions)
	}
	// Two sweeps are needed for second chance to terminate when every
	// accessed bit starts set.
	if o.ClockMaxLoop < 2 {
		return fmt.Errorf("clock_max_loop %d must be at least 2: %w", o.ClockMaxLoop, ErrInvalidOptions)
	}
	return nil
}

// LoadOptions overlays the YAML file at path on DefaultOptions.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

// Marshal renders the options as YAML.
func (o Options) Marshal() ([]byte, error) {
	return yaml.Marshal(o)
}
