package skills

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/skaldhq/skald/pkg/playbook"
)

// ErrSkillNotFound is returned by Dispatch for an unregistered name.
var ErrSkillNotFound = errors.New("skill not found")

// Registry maps annotation names to skills. Lookup is exact and
// case-sensitive.
type Registry struct {
	mu     sync.RWMutex
	skills map[string]Skill
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{skills: make(map[string]Skill)}
}

// Builtins returns a registry pre-populated with the built-in skills.
func Builtins() *Registry {
	r := NewRegistry()
	r.Register("task", &TaskSkill{})
	r.Register("context", &ContextSkill{})
	r.Register("model", &ModelSkill{})
	r.Register("run", &RunSkill{})
	r.Register("file", &FileSkill{})
	r.Register("set", &SetSkill{})
	return r
}

// Register binds a skill to a name, replacing any previous binding.
func (r *Registry) Register(name string, s Skill) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skills[name] = s
}

// Lookup finds a skill by exact name.
func (r *Registry) Lookup(name string) (Skill, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.skills[name]
	return s, ok
}

// Names returns the registered skill names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.skills))
	for name := range r.skills {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch resolves a block's annotation name and executes the skill.
func (r *Registry) Dispatch(ctx context.Context, api API, block *playbook.Block) (*Result, error) {
	s, ok := r.Lookup(block.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSkillNotFound, block.Name)
	}
	return s.Execute(ctx, api, block)
}

// Validate runs the skill-specific validation for a block, if its skill
// is registered. Unknown names are reported as a validation error rather
// than a dispatch failure, so a document can be checked before running.
func (r *Registry) Validate(block *playbook.Block) ValidationResult {
	s, ok := r.Lookup(block.Name)
	if !ok {
		return invalid(fmt.Sprintf("unknown skill %q", block.Name))
	}
	return s.Validate(block)
}
