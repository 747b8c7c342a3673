// Package plugin reads the plugin manifest and exposes the host-held plugin
// data the sandbox may query: entrypoint names, the inline-view entrypoint,
// keyboard shortcuts and the bundled asset allowlist.
package plugin

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pelletier/go-toml/v2"

	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/shared/id"
)

var (
	ErrManifest          = errors.New("invalid plugin manifest")
	ErrUnknownEntrypoint = errors.New("unknown entrypoint")
)

// EntrypointType classifies an entrypoint.
type EntrypointType string

const (
	EntrypointView       EntrypointType = "view"
	EntrypointCommand    EntrypointType = "command"
	EntrypointInlineView EntrypointType = "inline-view"
)

// Shortcut binds a key chord to an action inside an entrypoint.
type Shortcut struct {
	Key     string `toml:"key"`
	Shift   bool   `toml:"shift"`
	Control bool   `toml:"control"`
	Alt     bool   `toml:"alt"`
	Meta    bool   `toml:"meta"`
}

// Action is a named action with an optional shortcut.
type Action struct {
	ID       string    `toml:"id"`
	Shortcut *Shortcut `toml:"shortcut"`
}

// Entrypoint is one declared view or command.
type Entrypoint struct {
	ID      id.EntrypointID `toml:"id"`
	Name    string          `toml:"name"`
	Type    EntrypointType  `toml:"type"`
	Actions []Action        `toml:"action"`
}

// Manifest is the decoded plugin.toml.
type Manifest struct {
	Plugin struct {
		ID          string `toml:"id"`
		Name        string `toml:"name"`
		Description string `toml:"description"`
		Script      string `toml:"script"`
	} `toml:"plugin"`
	Entrypoints []Entrypoint `toml:"entrypoint"`
	Assets      struct {
		Include []string `toml:"include"`
	} `toml:"assets"`
}

// Load reads and validates a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates manifest bytes.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifest, err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	if m.Plugin.ID == "" {
		return fmt.Errorf("%w: plugin.id is required", ErrManifest)
	}
	seen := make(map[id.EntrypointID]struct{}, len(m.Entrypoints))
	inline := 0
	for _, e := range m.Entrypoints {
		if e.ID == "" {
			return fmt.Errorf("%w: entrypoint without id", ErrManifest)
		}
		if _, dup := seen[e.ID]; dup {
			return fmt.Errorf("%w: entrypoint %s declared twice", ErrManifest, e.ID)
		}
		seen[e.ID] = struct{}{}

		switch e.Type {
		case EntrypointView, EntrypointCommand:
		case EntrypointInlineView:
			inline++
		default:
			return fmt.Errorf("%w: entrypoint %s has unknown type %q", ErrManifest, e.ID, e.Type)
		}
	}
	if inline > 1 {
		return fmt.Errorf("%w: at most one inline-view entrypoint", ErrManifest)
	}
	for _, pattern := range m.Assets.Include {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("%w: bad asset pattern %q", ErrManifest, pattern)
		}
	}
	return nil
}

// Data is the read-only view of a manifest used by capability ops.
type Data struct {
	pluginID  string
	names     map[string]string
	inline    *id.EntrypointID
	shortcuts map[id.EntrypointID][]Action
	include   []string
}

// NewData indexes a manifest.
func NewData(m *Manifest) *Data {
	d := &Data{
		pluginID:  m.Plugin.ID,
		names:     make(map[string]string, len(m.Entrypoints)),
		shortcuts: make(map[id.EntrypointID][]Action),
		include:   append([]string(nil), m.Assets.Include...),
	}
	for _, e := range m.Entrypoints {
		d.names[string(e.ID)] = e.Name
		d.shortcuts[e.ID] = e.Actions
		if e.Type == EntrypointInlineView {
			eid := e.ID
			d.inline = &eid
		}
	}
	return d
}

// PluginID returns the plugin identifier.
func (d *Data) PluginID() string { return d.pluginID }

// InlineViewEntrypointID returns the inline-view entrypoint, if declared.
func (d *Data) InlineViewEntrypointID() (id.EntrypointID, bool) {
	if d.inline == nil {
		return "", false
	}
	return *d.inline, true
}

// EntrypointNames returns a copy of id -> display name.
func (d *Data) EntrypointNames() map[string]string {
	out := make(map[string]string, len(d.names))
	for k, v := range d.names {
		out[k] = v
	}
	return out
}

// Entrypoint checks that eid is declared and returns its display name.
func (d *Data) Entrypoint(eid id.EntrypointID) (string, error) {
	name, ok := d.names[string(eid)]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownEntrypoint, eid)
	}
	return name, nil
}

// ActionForShortcut resolves a key chord to an action id. The key is
// compared case-insensitively; modifiers must match exactly.
func (d *Data) ActionForShortcut(eid id.EntrypointID, chord Shortcut) (string, bool, error) {
	if _, err := d.Entrypoint(eid); err != nil {
		return "", false, err
	}
	for _, a := range d.shortcuts[eid] {
		s := a.Shortcut
		if s == nil {
			continue
		}
		if strings.EqualFold(s.Key, chord.Key) &&
			s.Shift == chord.Shift && s.Control == chord.Control &&
			s.Alt == chord.Alt && s.Meta == chord.Meta {
			return a.ID, true, nil
		}
	}
	return "", false, nil
}

// AssetAllowed reports whether a bundled asset name matches the allowlist.
// An empty allowlist admits every asset.
func (d *Data) AssetAllowed(name string) bool {
	if len(d.include) == 0 {
		return true
	}
	for _, pattern := range d.include {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
	}
	return false
}
