package errors

// MarkerSet is the configuration for one failure kind: HTTP statuses plus
// case-insensitive substrings and regular expressions matched against the
// upstream error text.
type MarkerSet struct {
	Statuses []int    `yaml:"statuses"`
	Markers  []string `yaml:"markers"`
	Patterns []string `yaml:"patterns"`
}

// ProviderMarkers extends the common marker sets for a single provider.
type ProviderMarkers struct {
	Capacity MarkerSet `yaml:"capacity"`
	Auth     MarkerSet `yaml:"auth"`
}

type ClassifierConfig struct {
	Capacity  MarkerSet                  `yaml:"capacity"`
	Auth      MarkerSet                  `yaml:"auth"`
	Providers map[string]ProviderMarkers `yaml:"providers"`
}

// DefaultClassifierConfig returns the marker lists observed from the three
// supported providers. Upstream wording may change; the lists are data so a
// deployment can extend them without a rebuild.
func DefaultClassifierConfig() *ClassifierConfig {
	return &ClassifierConfig{
		Capacity: MarkerSet{
			Statuses: []int{429},
			Markers: []string{
				"429",
				"RESOURCE_EXHAUSTED",
				"rate limit",
				"rate_limit",
				"quota",
				"too many requests",
				"overloaded",
			},
		},
		Auth: MarkerSet{
			Statuses: []int{401, 403},
			Markers: []string{
				"invalid api key",
				"incorrect api key",
				"invalid x-api-key",
				"API_KEY_INVALID",
				"missing api key",
				"authentication_error",
			},
		},
		Providers: map[string]ProviderMarkers{
			"openai": {
				Capacity: MarkerSet{Markers: []string{"insufficient_quota", "rate_limit_exceeded"}},
				Auth:     MarkerSet{Markers: []string{"invalid_api_key"}},
			},
			"gemini": {
				Capacity: MarkerSet{Markers: []string{"RESOURCE_EXHAUSTED"}},
				Auth:     MarkerSet{Markers: []string{"PERMISSION_DENIED", "UNAUTHENTICATED"}},
			},
			"claude": {
				Capacity: MarkerSet{
					Statuses: []int{529},
					Markers:  []string{"rate_limit_error", "overloaded_error"},
				},
				Auth: MarkerSet{Markers: []string{"permission_error"}},
			},
		},
	}
}
