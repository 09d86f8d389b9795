// Package tokens holds the per-user design tokens and component class
// overrides, and the stores that persist them.
package tokens

import (
	"maps"
)

// DesignTokens maps a token name, such as "primary", to its CSS value.
// Colors are HSL triples like "240 5.9% 10%"; radius is a length.
type DesignTokens map[string]string

var keys = []string{
	"background",
	"foreground",
	"muted",
	"muted-foreground",
	"popover",
	"popover-foreground",
	"card",
	"card-foreground",
	"border",
	"input",
	"primary",
	"primary-foreground",
	"secondary",
	"secondary-foreground",
	"accent",
	"accent-foreground",
	"destructive",
	"destructive-foreground",
	"ring",
	"radius",
}

var defaults = DesignTokens{
	"background":             "0 0% 100%",
	"foreground":             "240 10% 3.9%",
	"muted":                  "240 4.8% 95.9%",
	"muted-foreground":       "240 3.8% 46.1%",
	"popover":                "0 0% 100%",
	"popover-foreground":     "240 10% 3.9%",
	"card":                   "0 0% 100%",
	"card-foreground":        "240 10% 3.9%",
	"border":                 "240 5.9% 90%",
	"input":                  "240 5.9% 90%",
	"primary":                "240 5.9% 10%",
	"primary-foreground":     "0 0% 98%",
	"secondary":              "240 4.8% 95.9%",
	"secondary-foreground":   "240 5.9% 10%",
	"accent":                 "240 4.8% 95.9%",
	"accent-foreground":      "240 5.9% 10%",
	"destructive":            "0 84.2% 60.2%",
	"destructive-foreground": "0 0% 98%",
	"ring":                   "240 5% 64.9%",
	"radius":                 "0.5rem",
}

// Keys returns the known token names in their canonical order.
func Keys() []string {
	out := make([]string, len(keys))
	copy(out, keys)
	return out
}

// Defaults returns a fresh copy of the built-in tokens.
func Defaults() DesignTokens {
	return maps.Clone(defaults)
}

func IsKnown(name string) bool {
	_, ok := defaults[name]
	return ok
}

// Filter keeps the known token names whose values are strings. Anything
// else a model proposes is dropped.
func Filter(updates map[string]any) DesignTokens {
	out := make(DesignTokens)
	for k, v := range updates {
		s, ok := v.(string)
		if !ok || !IsKnown(k) {
			continue
		}
		out[k] = s
	}
	return out
}

// Merge returns base overlaid with updates. Neither argument is modified.
func Merge(base, updates DesignTokens) DesignTokens {
	out := make(DesignTokens, len(base)+len(updates))
	maps.Copy(out, base)
	maps.Copy(out, updates)
	return out
}

func (t DesignTokens) Clone() DesignTokens {
	if t == nil {
		return nil
	}
	return maps.Clone(t)
}
