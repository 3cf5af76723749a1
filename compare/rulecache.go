package compare

import (
	"sync"
	"time"
)

// RuleCache caches the active custom-rule list so a comparison does not
// hit the database per request. Invalidate on every rule mutation.
type RuleCache interface {
	// Get retrieves cached rules, nil on miss or expiry
	Get() []*CustomRule

	// Set stores rules in cache
	Set(rules []*CustomRule)

	// Invalidate clears the cache, forcing a refresh on next Get
	Invalidate()

	// IsValid returns true if cache has valid data
	IsValid() bool
}

// RuleCacheConfig holds cache behavior settings.
type RuleCacheConfig struct {
	// TTL is the time-to-live for cached entries.
	// 0 means no expiration (manual invalidation only).
	TTL time.Duration
}

// DefaultRuleCacheConfig invalidates on mutation only; custom rules change
// rarely relative to how often comparisons run.
func DefaultRuleCacheConfig() RuleCacheConfig {
	return RuleCacheConfig{TTL: 0}
}

// InMemoryRuleCache is a thread-safe in-memory RuleCache.
type InMemoryRuleCache struct {
	rules    []*CustomRule
	cachedAt time.Time
	config   RuleCacheConfig
	mu       sync.RWMutex
	valid    bool
}

// NewInMemoryRuleCache creates an empty cache.
func NewInMemoryRuleCache(config RuleCacheConfig) *InMemoryRuleCache {
	return &InMemoryRuleCache{config: config}
}

// Get returns the cached rules, or nil when invalid or expired.
func (c *InMemoryRuleCache) Get() []*CustomRule {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.valid {
		return nil
	}
	if c.config.TTL > 0 && time.Since(c.cachedAt) > c.config.TTL {
		return nil
	}

	// Copy so callers cannot mutate the cached slice.
	rulesCopy := make([]*CustomRule, len(c.rules))
	copy(rulesCopy, c.rules)
	return rulesCopy
}

// Set stores a copy of the rules.
func (c *InMemoryRuleCache) Set(rules []*CustomRule) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rules = make([]*CustomRule, len(rules))
	copy(c.rules, rules)
	c.cachedAt = time.Now()
	c.valid = true
}

// Invalidate clears the cache.
func (c *InMemoryRuleCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.valid = false
	c.rules = nil
}

// IsValid reports whether the cache holds usable data.
func (c *InMemoryRuleCache) IsValid() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.valid {
		return false
	}
	if c.config.TTL > 0 {
		return time.Since(c.cachedAt) <= c.config.TTL
	}
	return true
}
