package errors

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
)

type compiledSet struct {
	statuses map[int]struct{}
	markers  []string
	patterns []*regexp.Regexp
}

type ErrorClassifier struct {
	mu        sync.RWMutex
	capacity  compiledSet
	auth      compiledSet
	providers map[string]providerSets
}

type providerSets struct {
	capacity compiledSet
	auth     compiledSet
}

func NewErrorClassifier() *ErrorClassifier {
	c, err := NewErrorClassifierFromConfig(DefaultClassifierConfig())
	if err != nil {
		// The default configuration holds no regular expressions.
		panic(err)
	}
	return c
}

func NewErrorClassifierFromConfig(cfg *ClassifierConfig) (*ErrorClassifier, error) {
	if cfg == nil {
		cfg = DefaultClassifierConfig()
	}

	c := &ErrorClassifier{providers: make(map[string]providerSets, len(cfg.Providers))}

	var err error
	if c.capacity, err = compileSet(cfg.Capacity); err != nil {
		return nil, Wrap(KindUnknown, "", err)
	}
	if c.auth, err = compileSet(cfg.Auth); err != nil {
		return nil, Wrap(KindUnknown, "", err)
	}
	for name, pm := range cfg.Providers {
		capSet, err := compileSet(pm.Capacity)
		if err != nil {
			return nil, Wrap(KindUnknown, name, err)
		}
		authSet, err := compileSet(pm.Auth)
		if err != nil {
			return nil, Wrap(KindUnknown, name, err)
		}
		c.providers[name] = providerSets{capacity: capSet, auth: authSet}
	}
	return c, nil
}

func compileSet(ms MarkerSet) (compiledSet, error) {
	set := compiledSet{
		statuses: intSliceToSet(ms.Statuses),
		markers:  make([]string, 0, len(ms.Markers)),
		patterns: make([]*regexp.Regexp, 0, len(ms.Patterns)),
	}
	for _, m := range ms.Markers {
		if m = strings.TrimSpace(m); m != "" {
			set.markers = append(set.markers, strings.ToLower(m))
		}
	}
	for _, p := range ms.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return compiledSet{}, err
		}
		set.patterns = append(set.patterns, re)
	}
	return set, nil
}

func intSliceToSet(codes []int) map[int]struct{} {
	set := make(map[int]struct{}, len(codes))
	for _, code := range codes {
		set[code] = struct{}{}
	}
	return set
}

// Classify maps a provider error onto a Kind. Status codes are consulted
// before message markers, and capacity markers before credential markers.
func (c *ErrorClassifier) Classify(provider string, err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindUnknown
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	ps := c.providers[provider]

	if code, ok := StatusOf(err); ok {
		if hasStatus(code, c.capacity, ps.capacity) {
			return KindCapacityExhausted
		}
		if hasStatus(code, c.auth, ps.auth) {
			return KindAuthInvalid
		}
	}

	msg := err.Error()
	if matches(msg, c.capacity, ps.capacity) {
		return KindCapacityExhausted
	}
	if matches(msg, c.auth, ps.auth) {
		return KindAuthInvalid
	}
	return KindUnknown
}

func hasStatus(code int, sets ...compiledSet) bool {
	for _, s := range sets {
		if _, ok := s.statuses[code]; ok {
			return true
		}
	}
	return false
}

func matches(msg string, sets ...compiledSet) bool {
	lower := strings.ToLower(msg)
	for _, s := range sets {
		for _, m := range s.markers {
			if strings.Contains(lower, m) {
				return true
			}
		}
		for _, p := range s.patterns {
			if p.MatchString(msg) {
				return true
			}
		}
	}
	return false
}

// AddCapacityMarker registers an extra capacity marker for provider, or for
// every provider when provider is empty.
func (c *ErrorClassifier) AddCapacityMarker(provider, marker string) {
	c.addMarker(provider, marker, true)
}

// AddAuthMarker registers an extra credential marker.
func (c *ErrorClassifier) AddAuthMarker(provider, marker string) {
	c.addMarker(provider, marker, false)
}

func (c *ErrorClassifier) addMarker(provider, marker string, capacity bool) {
	marker = strings.ToLower(strings.TrimSpace(marker))
	if marker == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if provider == "" {
		if capacity {
			c.capacity.markers = append(c.capacity.markers, marker)
		} else {
			c.auth.markers = append(c.auth.markers, marker)
		}
		return
	}

	ps := c.providers[provider]
	if capacity {
		ps.capacity.markers = append(ps.capacity.markers, marker)
	} else {
		ps.auth.markers = append(ps.auth.markers, marker)
	}
	c.providers[provider] = ps
}
