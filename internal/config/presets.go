package config

import "sort"

// Presets are named variations of DefaultConfig. Each entry only states what
// differs from the reference drop.
var Presets = map[string]func(*Config){
	"reference": func(c *Config) {},
	"silk": func(c *Config) {
		c.Cloth.Width, c.Cloth.Height = 16, 16
		c.Cloth.Spacing = 0.6
		c.Cloth.Mass = 1
		c.Physics.Structural = CoefficientConfig{Stiffness: 3, Damping: 0.05}
		c.Physics.Shear = CoefficientConfig{Stiffness: 2, Damping: 0.05}
		c.Physics.Bend = CoefficientConfig{Stiffness: 0.5}
		c.Physics.Restitution = 1
	},
	"canvas": func(c *Config) {
		c.Cloth.Mass = 8
		c.Physics.Structural = CoefficientConfig{Stiffness: 40, Damping: 0.5}
		c.Physics.Shear = CoefficientConfig{Stiffness: 30, Damping: 0.5}
		c.Physics.Bend = CoefficientConfig{Stiffness: 20, Damping: 0.2}
		c.Physics.Damping = 0.1
		c.Physics.Rebound = "reflect"
		c.Physics.Restitution = 0.3
	},
	"stiff": func(c *Config) {
		c.Physics.Structural = CoefficientConfig{Stiffness: 400, Damping: 1}
		c.Physics.Shear = CoefficientConfig{Stiffness: 300, Damping: 1}
		c.Physics.Bend = CoefficientConfig{Stiffness: 200, Damping: 0.5}
		c.Run.Validate = true
	},
	"freefall": func(c *Config) {
		c.Physics.Sphere.Radius = 0
		c.Run.Frames = 120
	},
}

// GetPreset returns a fresh config for name, or nil if there is none.
func GetPreset(name string) *Config {
	apply, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	cfg.Name = name
	apply(cfg)
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
