package monitor

import (
	"sort"
	"sync"

	"github.com/telhawk-systems/mailtap/internal/rules"
)

// State is the notification channel provisioned for one recipient. Fields are
// filled in provisioning order; an empty field means that step failed.
type State struct {
	Mailbox         *rules.Mailbox
	QueueName       string
	QueueURL        string
	QueueARN        string
	PolicyAttached  bool
	SubscriptionARN string
}

// Established reports whether the queue, its ARN, the access policy and the
// topic subscription were all provisioned. A queue without the policy never
// receives notifications.
func (s *State) Established() bool {
	return s.QueueURL != "" && s.QueueARN != "" && s.PolicyAttached && s.SubscriptionARN != ""
}

// Registry maps recipients to their active monitor state.
type Registry struct {
	mu     sync.RWMutex
	states map[string]*State
}

func NewRegistry() *Registry {
	return &Registry{states: make(map[string]*State)}
}

func (r *Registry) Exists(recipient string) bool {
	_, ok := r.Lookup(recipient)
	return ok
}

// Insert adds state for recipient. It returns false and leaves the registry
// unchanged when the recipient is already present.
func (r *Registry) Insert(recipient string, state *State) bool {
	key := rules.Normalize(recipient)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.states[key]; ok {
		return false
	}
	r.states[key] = state
	return true
}

func (r *Registry) Lookup(recipient string) (*State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st, ok := r.states[rules.Normalize(recipient)]
	return st, ok
}

// Erase removes and returns the state for recipient.
func (r *Registry) Erase(recipient string) (*State, bool) {
	key := rules.Normalize(recipient)

	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.states[key]
	delete(r.states, key)
	return st, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.states)
}

// Recipients returns the monitored recipients in sorted order.
func (r *Registry) Recipients() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.states))
	for k := range r.states {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
