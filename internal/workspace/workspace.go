// Package workspace keeps the variable sets applied to a model before it
// starts.
package workspace

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/san-kum/cmctl/internal/channel"
)

// Store records variable sets by name. When Sender is set, every Apply is
// also mirrored to the remote as environment variables followed by a
// setworkspacevars command.
type Store struct {
	Sender channel.Sender

	mu     sync.Mutex
	sets   map[string]map[string]string
	active string
}

func New(sender channel.Sender) *Store {
	return &Store{Sender: sender}
}

// Apply replaces the variables of set and makes it the active set.
func (s *Store) Apply(ctx context.Context, set string, vars map[string]string) error {
	copied := make(map[string]string, len(vars))
	for k, v := range vars {
		copied[k] = v
	}

	s.mu.Lock()
	if s.sets == nil {
		s.sets = make(map[string]map[string]string)
	}
	s.sets[set] = copied
	s.active = set
	s.mu.Unlock()

	if s.Sender == nil {
		return nil
	}
	for _, k := range sortedKeys(copied) {
		res := s.Sender.Send(ctx, channel.SetEnv{Var: k, Value: copied[k]}, channel.WaitForever)
		if err := res.Err(); err != nil {
			return fmt.Errorf("workspace %s: setenv %s: %w", set, k, err)
		}
	}
	if err := s.Sender.Send(ctx, channel.SetWorkspaceVars{}, channel.WaitForever).Err(); err != nil {
		return fmt.Errorf("workspace %s: %w", set, err)
	}
	return nil
}

func (s *Store) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Vars returns a copy of the named set.
func (s *Store) Vars(set string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.sets[set]))
	for k, v := range s.sets[set] {
		out[k] = v
	}
	return out
}

// Env renders the active set as KEY=VALUE pairs in key order.
func (s *Store) Env() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	vars := s.sets[s.active]
	env := make([]string, 0, len(vars))
	for _, k := range sortedKeys(vars) {
		env = append(env, k+"="+vars[k])
	}
	return env
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
