package messaging

import "sync"

type subscription struct {
	pattern string
	handler Handler
}

// SubscriptionRegistry keeps handlers by topic pattern
type SubscriptionRegistry struct {
	mu   sync.RWMutex
	subs []subscription
}

// NewSubscriptionRegistry creates an empty registry
func NewSubscriptionRegistry() *SubscriptionRegistry {
	return &SubscriptionRegistry{}
}

// Register adds a handler for a pattern
func (r *SubscriptionRegistry) Register(pattern string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = append(r.subs, subscription{pattern: pattern, handler: handler})
}

// Match returns the handlers whose pattern matches topic
func (r *SubscriptionRegistry) Match(topic string) []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Handler, 0, len(r.subs))
	for _, s := range r.subs {
		if MatchTopic(s.pattern, topic) {
			result = append(result, s.handler)
		}
	}
	return result
}

// Patterns returns every registered pattern with its handler, in registration order
func (r *SubscriptionRegistry) Patterns() map[string][]Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string][]Handler, len(r.subs))
	for _, s := range r.subs {
		result[s.pattern] = append(result[s.pattern], s.handler)
	}
	return result
}

// ForPattern returns the handlers registered under exactly pattern
func (r *SubscriptionRegistry) ForPattern(pattern string) []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Handler
	for _, s := range r.subs {
		if s.pattern == pattern {
			result = append(result, s.handler)
		}
	}
	return result
}

// Len returns the number of subscriptions
func (r *SubscriptionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}
