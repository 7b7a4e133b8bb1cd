package scene

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrUnknownMode is returned when a mode name does not match any preset.
var ErrUnknownMode = errors.New("unknown scene mode")

// Preset is a named set of scene bounds.
type Preset struct {
	Name            string
	Bounds          Bounds
	BackgroundImage string
}

// Config holds the available presets and the active one. It is safe for
// concurrent use; mode switches replace every bound at once.
type Config struct {
	mu      sync.RWMutex
	presets map[string]Preset
	order   []string
	active  Preset
}

// NewConfig validates presets and activates mode.
func NewConfig(presets []Preset, mode string) (*Config, error) {
	c := &Config{}
	if _, err := c.install(presets, mode); err != nil {
		return nil, err
	}
	return c, nil
}

// Active returns a copy of the active preset.
func (c *Config) Active() Preset {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// Mode returns the active preset name.
func (c *Config) Mode() string {
	return c.Active().Name
}

// Modes lists preset names in configuration order.
func (c *Config) Modes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.order...)
}

// Presets returns every preset in configuration order.
func (c *Config) Presets() []Preset {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Preset, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.presets[name])
	}
	return out
}

// SetMode activates the named preset. Names must match exactly; unknown
// names leave the config unchanged.
func (c *Config) SetMode(name string) (Preset, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	preset, ok := c.presets[name]
	if !ok {
		return c.active, fmt.Errorf("%w: %q", ErrUnknownMode, name)
	}
	c.active = preset
	return preset, nil
}

// ReplacePresets swaps the preset table. The active mode is kept when the new
// table still defines it, otherwise fallback is activated. The choice and the
// swap happen under one lock so a concurrent SetMode is never reverted.
func (c *Config) ReplacePresets(presets []Preset, fallback string) (Preset, error) {
	table, order, err := buildTable(presets)
	if err != nil {
		return Preset{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	active, ok := table[c.active.Name]
	if !ok {
		if active, ok = table[fallback]; !ok {
			return Preset{}, fmt.Errorf("%w: %q", ErrUnknownMode, fallback)
		}
	}
	c.presets = table
	c.order = order
	c.active = active
	return active, nil
}

func (c *Config) install(presets []Preset, mode string) (Preset, error) {
	table, order, err := buildTable(presets)
	if err != nil {
		return Preset{}, err
	}
	active, ok := table[mode]
	if !ok {
		return Preset{}, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	c.mu.Lock()
	c.presets = table
	c.order = order
	c.active = active
	c.mu.Unlock()
	return active, nil
}

func buildTable(presets []Preset) (map[string]Preset, []string, error) {
	if len(presets) == 0 {
		return nil, nil, errors.New("scene config requires at least one preset")
	}
	table := make(map[string]Preset, len(presets))
	order := make([]string, 0, len(presets))
	for _, p := range presets {
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			return nil, nil, errors.New("scene preset name must be set")
		}
		if _, dup := table[p.Name]; dup {
			return nil, nil, fmt.Errorf("duplicate scene preset %q", p.Name)
		}
		if err := p.Bounds.Validate(); err != nil {
			return nil, nil, fmt.Errorf("preset %q: %w", p.Name, err)
		}
		table[p.Name] = p
		order = append(order, p.Name)
	}
	return table, order, nil
}
