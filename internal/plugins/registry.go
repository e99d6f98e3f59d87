package plugins

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrPluginExists = errors.New("plugin already registered")
	ErrNoSetup      = errors.New("plugin has no setup")
	ErrInvalidName  = errors.New("invalid plugin name")
)

// Registry stores plugins by name.
type Registry struct {
	mu    sync.RWMutex
	items map[string]Plugin
}

func NewRegistry() *Registry {
	return &Registry{items: make(map[string]Plugin)}
}

// Default is the process-wide registry used by Register, All and Get.
var Default = NewRegistry()

func Register(p Plugin) error { return Default.Register(p) }

func All() []Plugin { return Default.All() }

func Get(name string) (Plugin, bool) { return Default.Get(name) }

// Register adds p. Names are lowercase letters, digits and single
// separators.
func (r *Registry) Register(p Plugin) error {
	if p.Setup == nil {
		return fmt.Errorf("%w: %q", ErrNoSetup, p.Name)
	}
	name := strings.TrimSpace(p.Name)
	if !isValidName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, p.Name)
	}
	p.Name = name

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[name]; ok {
		return fmt.Errorf("%w: %q", ErrPluginExists, name)
	}
	r.items[name] = p
	return nil
}

// All returns the plugins ordered by name.
func (r *Registry) All() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]Plugin, 0, len(r.items))
	for _, p := range r.items {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})
	return list
}

func (r *Registry) Get(name string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.items[name]
	return p, ok
}

func isValidName(name string) bool {
	if name == "" {
		return false
	}
	lastSep := false
	for i := 0; i < len(name); i++ {
		c := name[i]
		isLower := c >= 'a' && c <= 'z'
		isDigit := c >= '0' && c <= '9'
		isSep := c == '.' || c == '-' || c == '_'
		if !(isLower || isDigit || isSep) {
			return false
		}
		if (i == 0 || i == len(name)-1) && isSep {
			return false
		}
		if isSep && lastSep {
			return false
		}
		lastSep = isSep
	}
	return true
}
