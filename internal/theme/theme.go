// Package theme describes the form skins as go-theme manifests and resolves
// a theme/variant pair into renderer configuration.
package theme

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	gotheme "github.com/goliatone/go-theme"
)

// PartialLayout names the page layout template in a manifest.
const PartialLayout = "form.layout"

const (
	Card    = "card"
	Minimal = "minimal"
)

// Builtins returns fresh copies of the bundled skins.
func Builtins() []*gotheme.Manifest {
	return []*gotheme.Manifest{cardManifest(), minimalManifest()}
}

func cardManifest() *gotheme.Manifest {
	return &gotheme.Manifest{
		Name:    Card,
		Version: "1.0.0",
		Tokens: map[string]string{
			"bg":            "#f9fafb",
			"surface":       "#ffffff",
			"text":          "#111827",
			"muted":         "#6b7280",
			"border":        "#d1d5db",
			"chip":          "#f3f4f6",
			"accent":        "#111827",
			"accent-text":   "#ffffff",
			"error":         "#dc2626",
			"error-bg":      "#fef2f2",
			"radius":        "0.75rem",
			"shadow":        "0 10px 15px -3px rgba(0,0,0,0.1), 0 4px 6px -4px rgba(0,0,0,0.1)",
			"source-icon":   "#3b82f6",
			"template-icon": "#22c55e",
		},
		Templates: map[string]string{
			PartialLayout: "card/layout.html",
		},
		Variants: map[string]gotheme.Variant{
			"light": {},
			"dark": {
				Tokens: map[string]string{
					"bg":          "#111827",
					"surface":     "#1f2937",
					"text":        "#f9fafb",
					"muted":       "#9ca3af",
					"border":      "#374151",
					"chip":        "#374151",
					"accent":      "#f9fafb",
					"accent-text": "#111827",
					"error-bg":    "#450a0a",
				},
			},
		},
	}
}

func minimalManifest() *gotheme.Manifest {
	return &gotheme.Manifest{
		Name:    Minimal,
		Version: "1.0.0",
		Tokens: map[string]string{
			"bg":            "#ffffff",
			"surface":       "#ffffff",
			"text":          "#1a2332",
			"muted":         "#6b7a8d",
			"border":        "#e8ecf0",
			"chip":          "#eff6ff",
			"accent":        "#3b82f6",
			"accent-text":   "#ffffff",
			"error":         "#ef4444",
			"error-bg":      "#ffffff",
			"radius":        "0.5rem",
			"shadow":        "none",
			"source-icon":   "#3b82f6",
			"template-icon": "#10b981",
		},
		Templates: map[string]string{
			PartialLayout: "minimal/layout.html",
		},
		Variants: map[string]gotheme.Variant{
			"light": {},
			"dark": {
				Tokens: map[string]string{
					"bg":      "#0b1220",
					"surface": "#0b1220",
					"text":    "#e5e7eb",
					"muted":   "#94a3b8",
					"border":  "#1e293b",
					"chip":    "#1e293b",
				},
			},
		},
	}
}

// Selector resolves theme and variant names against a set of manifests.
// Unknown names fall back to the defaults instead of failing the page.
type Selector struct {
	mu             sync.RWMutex
	manifests      map[string]*gotheme.Manifest
	defaultTheme   string
	defaultVariant string
}

var _ gotheme.ThemeSelector = (*Selector)(nil)

func NewSelector(defaultTheme, defaultVariant string, manifests ...*gotheme.Manifest) (*Selector, error) {
	s := &Selector{
		manifests:      make(map[string]*gotheme.Manifest),
		defaultTheme:   defaultTheme,
		defaultVariant: defaultVariant,
	}
	for _, m := range Builtins() {
		s.manifests[m.Name] = m
	}
	for _, m := range manifests {
		if err := s.Register(m); err != nil {
			return nil, err
		}
	}
	if _, ok := s.manifests[defaultTheme]; !ok {
		return nil, fmt.Errorf("theme: unknown default theme %q", defaultTheme)
	}
	return s, nil
}

// Register adds a manifest, merging it over an existing one of the same name.
func (s *Selector) Register(m *gotheme.Manifest) error {
	if m == nil || strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("theme: manifest name required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.manifests[m.Name]; ok {
		s.manifests[m.Name] = mergeManifest(existing, m)
		return nil
	}
	if m.Templates[PartialLayout] == "" {
		return fmt.Errorf("theme: manifest %q has no %s template", m.Name, PartialLayout)
	}
	s.manifests[m.Name] = m
	return nil
}

func (s *Selector) Select(name, variant string, _ ...gotheme.QueryOption) (*gotheme.Selection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.manifests[name]
	if !ok {
		name = s.defaultTheme
		m, ok = s.manifests[name]
		if !ok {
			return nil, fmt.Errorf("theme: unknown theme %q", name)
		}
	}
	if variant == "" {
		variant = s.defaultVariant
	}
	if _, ok := m.Variants[variant]; !ok {
		variant = ""
	}

	return &gotheme.Selection{
		Theme:    name,
		Variant:  variant,
		Manifest: m,
	}, nil
}

func (s *Selector) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.manifests))
	for name := range s.manifests {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RendererConfig flattens a selection: variant tokens and templates win over
// the base manifest, and every token is mirrored as a --name CSS variable.
func RendererConfig(sel *gotheme.Selection) *gotheme.RendererConfig {
	if sel == nil || sel.Manifest == nil {
		return nil
	}
	m := sel.Manifest

	tokens := copyMap(m.Tokens)
	partials := copyMap(m.Templates)
	if v, ok := m.Variants[sel.Variant]; ok {
		for k, val := range v.Tokens {
			tokens[k] = val
		}
		for k, val := range v.Templates {
			partials[k] = val
		}
	}

	cssVars := make(map[string]string, len(tokens))
	for k, v := range tokens {
		cssVars["--"+k] = v
	}

	return &gotheme.RendererConfig{
		Theme:    sel.Theme,
		Variant:  sel.Variant,
		Partials: partials,
		Tokens:   tokens,
		CSSVars:  cssVars,
	}
}

// CSSVarsStyle renders the variables as a :root rule, keys sorted.
func CSSVarsStyle(vars map[string]string) string {
	if len(vars) == 0 {
		return ""
	}
	keys := make([]string, 0, len(vars))
	for key := range vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(":root {\n")
	for _, key := range keys {
		b.WriteString("  ")
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(vars[key])
		b.WriteString(";\n")
	}
	b.WriteString("}")
	return b.String()
}

func mergeManifest(base, over *gotheme.Manifest) *gotheme.Manifest {
	merged := &gotheme.Manifest{
		Name:      base.Name,
		Version:   base.Version,
		Tokens:    copyMap(base.Tokens),
		Templates: copyMap(base.Templates),
		Variants:  make(map[string]gotheme.Variant, len(base.Variants)),
	}
	if over.Version != "" {
		merged.Version = over.Version
	}
	for k, v := range over.Tokens {
		merged.Tokens[k] = v
	}
	for k, v := range over.Templates {
		merged.Templates[k] = v
	}
	for name, v := range base.Variants {
		merged.Variants[name] = gotheme.Variant{
			Tokens:    copyMap(v.Tokens),
			Templates: copyMap(v.Templates),
		}
	}
	for name, v := range over.Variants {
		cur := merged.Variants[name]
		if cur.Tokens == nil {
			cur.Tokens = map[string]string{}
		}
		if cur.Templates == nil {
			cur.Templates = map[string]string{}
		}
		for k, val := range v.Tokens {
			cur.Tokens[k] = val
		}
		for k, val := range v.Templates {
			cur.Templates[k] = val
		}
		merged.Variants[name] = cur
	}
	return merged
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
