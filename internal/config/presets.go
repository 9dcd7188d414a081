package config

import "sort"

var Presets = map[string]*Scenario{
	"Antipodal Circle - 9": {
		Scenario: "AntipodalCircle", AgentsCount: 9, Radius: 6,
	},
	"Antipodal Circle - 5": {
		Scenario: "AntipodalCircle", AgentsCount: 5, Radius: 6.5,
	},
	"Antipodal Circle - 24": {
		Scenario: "AntipodalCircle", AgentsCount: 24, Radius: 10,
	},
	"Corridor - 2": {
		Scenario: "Corridor", AgentsPerSideCount: 1, Length: 15, Width: 1.5,
	},
	"Corridor - 6": {
		Scenario: "Corridor", AgentsPerSideCount: 3, Length: 15, Width: 3,
	},
	"Empty": {
		Scenario: "Empty",
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Scenario {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	s := *p
	return &s
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
