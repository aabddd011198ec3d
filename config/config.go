/*
Package config implements ppp.ConfigStore on top of a TOML document:
https://github.com/toml-lang/toml.

Configuration is organised as named tables, one per section, containing
flat key:value pairs. The core negotiation package only looks at the
"ppp" section:

	[ppp]

	# mppe sets the local MPPE policy: "allow" (default), "prefer",
	# "require" or "deny".
	mppe = "prefer"

	# mppe-128/mppe-40 enable or disable the two supported key lengths.
	# "1" enables, any other value disables. When absent, mppe-128 is
	# disabled and mppe-40 is enabled.
	mppe-128 = "1"
	mppe-40 = "1"

	# accm controls whether this host honors a peer-proposed Async
	# Control Character Map: "allow" or "deny" (default).
	accm = "deny"

Other sections are reserved for an application's own configuration and
are exposed unparsed via Store.Section.
*/
package config

import (
	"fmt"
	"sync"

	"github.com/pelletier/go-toml"

	"github.com/katalix/go-pppd/ppp"
)

// Store is a reloadable, TOML-backed ppp.ConfigStore. Section lookups
// take a read lock against the currently loaded tree, so a reload
// racing with a Get can never observe a half-updated value - it sees
// either the old tree or the new one, in its entirety.
type Store struct {
	mu   sync.RWMutex
	tree map[string]map[string]string
}

// NewStore returns an empty Store; call LoadFile or LoadString to
// populate it before use.
func NewStore() *Store {
	return &Store{tree: make(map[string]map[string]string)}
}

// Get implements ppp.ConfigStore.
func (s *Store) Get(section, key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sec, ok := s.tree[section]
	if !ok {
		return "", false
	}
	v, ok := sec[key]
	return v, ok
}

// Section returns a copy of every key:value pair in the named section,
// for application code that needs more than the single-key
// ppp.ConfigStore lookup.
func (s *Store) Section(name string) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sec, ok := s.tree[name]
	if !ok {
		return nil
	}
	out := make(map[string]string, len(sec))
	for k, v := range sec {
		out[k] = v
	}
	return out
}

// LoadFile replaces the Store's contents with the document at path.
func (s *Store) LoadFile(path string) error {
	t, err := toml.LoadFile(path)
	if err != nil {
		return fmt.Errorf("config: failed to load %s: %w", path, err)
	}
	return s.load(t)
}

// LoadString replaces the Store's contents with content, parsed as TOML.
func (s *Store) LoadString(content string) error {
	t, err := toml.Load(content)
	if err != nil {
		return fmt.Errorf("config: failed to parse config: %w", err)
	}
	return s.load(t)
}

func (s *Store) load(t *toml.Tree) error {
	flat, err := flatten(t.ToMap())
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.tree = flat
	s.mu.Unlock()
	return nil
}

// flatten converts go-toml's generic map[string]interface{} tree into
// section -> key -> string, matching the one shape this package's
// consumers (the ppp core's ConfigStore, and application code walking
// Store.Section) ever ask for. A top-level key is either a table
// ('[section]', flattened to "section") or an array of tables
// ('[[section]]', flattened to "section.0", "section.1", ...); anything
// else is rejected rather than silently dropped, the same "unrecognised
// parameter" stance the original config loader takes.
func flatten(m map[string]interface{}) (map[string]map[string]string, error) {
	out := make(map[string]map[string]string, len(m))
	for section, v := range m {
		switch t := v.(type) {
		case map[string]interface{}:
			sec, err := flattenTable(section, t)
			if err != nil {
				return nil, err
			}
			out[section] = sec
		case []map[string]interface{}:
			for i, table := range t {
				name := fmt.Sprintf("%s.%d", section, i)
				sec, err := flattenTable(name, table)
				if err != nil {
					return nil, err
				}
				out[name] = sec
			}
		case []interface{}:
			for i, elem := range t {
				table, ok := elem.(map[string]interface{})
				if !ok {
					return nil, fmt.Errorf("config: top-level key %q must be a table, e.g. '[%s]'", section, section)
				}
				name := fmt.Sprintf("%s.%d", section, i)
				sec, err := flattenTable(name, table)
				if err != nil {
					return nil, err
				}
				out[name] = sec
			}
		default:
			return nil, fmt.Errorf("config: top-level key %q must be a table, e.g. '[%s]'", section, section)
		}
	}
	return out, nil
}

func flattenTable(name string, table map[string]interface{}) (map[string]string, error) {
	sec := make(map[string]string, len(table))
	for k, raw := range table {
		s, err := toScalarString(raw)
		if err != nil {
			return nil, fmt.Errorf("config: [%s] %s: %w", name, k, err)
		}
		sec[k] = s
	}
	return sec, nil
}

func toScalarString(v interface{}) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case bool:
		if t {
			return "1", nil
		}
		return "0", nil
	case int64:
		return fmt.Sprintf("%d", t), nil
	case uint64:
		return fmt.Sprintf("%d", t), nil
	case float64:
		return fmt.Sprintf("%v", t), nil
	default:
		return "", fmt.Errorf("unexpected %T value %v", v, v)
	}
}

// Watcher re-reads a Store from disk on demand and publishes
// ppp.EventConfigReload to a Bus, mirroring accel-pppd's
// triton_event_register_handler(EV_CONFIG_RELOAD, ...) pattern: every
// subscriber (each option's Init callback) re-reads its own section
// rather than being handed new values directly.
type Watcher struct {
	store *Store
	bus   ppp.Bus
	path  string
}

// NewWatcher returns a Watcher that reloads path into store and
// publishes EventConfigReload on bus each time Reload is called.
func NewWatcher(store *Store, bus ppp.Bus, path string) *Watcher {
	return &Watcher{store: store, bus: bus, path: path}
}

// Reload re-reads the watcher's file and publishes EventConfigReload.
// It is intended to be called from a SIGHUP handler or equivalent
// administrative trigger - this package does not watch the filesystem
// on its own.
func (w *Watcher) Reload() error {
	if err := w.store.LoadFile(w.path); err != nil {
		return err
	}
	return w.bus.Publish(ppp.Event{Kind: ppp.EventConfigReload})
}
