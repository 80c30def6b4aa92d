package agent

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownCrew is returned when a name matches no crew member
var ErrUnknownCrew = errors.New("unknown crew member")

// Roster is the crew: every agent by key, in definition order. It is built
// once and never changes, so it can be shared by every member.
type Roster struct {
	order   []string
	members map[string]*Agent
}

// NewRoster builds one agent per config, sharing options such as the
// model, registry and memory, then hands each agent the finished roster.
func NewRoster(configs CrewConfigs, options ...Option) (*Roster, error) {
	if err := configs.Validate(); err != nil {
		return nil, err
	}

	agents := make([]*Agent, 0, len(configs))
	for _, cfg := range configs {
		opts := append(append([]Option(nil), options...), WithCrewConfig(cfg))
		a, err := NewAgent(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create crew member %s: %w", cfg.Key, err)
		}
		agents = append(agents, a)
	}

	return NewRosterFromAgents(agents...)
}

// NewRosterFromAgents assembles a roster from agents that were built
// individually. Keys must be unique.
func NewRosterFromAgents(agents ...*Agent) (*Roster, error) {
	r := &Roster{members: make(map[string]*Agent, len(agents))}
	for _, a := range agents {
		if _, dup := r.members[a.key]; dup {
			return nil, fmt.Errorf("crew %s is defined twice", a.key)
		}
		r.members[a.key] = a
		r.order = append(r.order, a.key)
	}
	for _, a := range agents {
		a.roster = r
	}
	return r, nil
}

// Keys returns the crew keys in definition order
func (r *Roster) Keys() []string {
	return append([]string(nil), r.order...)
}

// SortedKeys returns the crew keys alphabetically
func (r *Roster) SortedKeys() []string {
	keys := r.Keys()
	sort.Strings(keys)
	return keys
}

// Len returns the number of crew members
func (r *Roster) Len() int {
	return len(r.order)
}

// Default returns the first crew member
func (r *Roster) Default() *Agent {
	if len(r.order) == 0 {
		return nil
	}
	return r.members[r.order[0]]
}

// Get returns the crew member with exactly this key
func (r *Roster) Get(key string) (*Agent, bool) {
	a, ok := r.members[key]
	return a, ok
}

// Lookup resolves a name typed by a user or a model. The alias "crew",
// in any case, means the tool crew.
func (r *Roster) Lookup(name string) (*Agent, error) {
	key := ResolveAlias(name)
	if a, ok := r.members[key]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("%w '%s' (available: %s)", ErrUnknownCrew, name, strings.Join(r.SortedKeys(), ", "))
}

// ResolveAlias maps the "crew" alias to the tool crew's key
func ResolveAlias(name string) string {
	name = strings.TrimSpace(name)
	if strings.EqualFold(name, CrewAlias) {
		return DefaultDelegate
	}
	return name
}

// ResetAll resets every crew member
func (r *Roster) ResetAll() {
	for _, key := range r.order {
		r.members[key].Reset()
	}
}
