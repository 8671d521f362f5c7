// Package view renders the presentation form with pongo2 templates embedded
// in the binary. The layout template comes from the selected theme.
package view

import (
	"embed"
	"fmt"
	"io"
	"io/fs"
	"sync"

	"deckgen-web/internal/form"
	"deckgen-web/internal/theme"

	"github.com/flosch/pongo2/v6"
)

//go:embed templates
var templateFS embed.FS

type Renderer struct {
	set      *pongo2.TemplateSet
	selector *theme.Selector

	mu        sync.RWMutex
	templates map[string]*pongo2.Template
}

func NewRenderer(selector *theme.Selector) (*Renderer, error) {
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("view: templates: %w", err)
	}
	return &Renderer{
		set:       pongo2.NewSet("deckgen", pongo2.NewFSLoader(sub)),
		selector:  selector,
		templates: make(map[string]*pongo2.Template),
	}, nil
}

// Render writes the full page for the snapshot using the requested theme,
// falling back to the configured default for unknown names.
func (r *Renderer) Render(w io.Writer, s form.State, themeName, variant string) error {
	sel, err := r.selector.Select(themeName, variant)
	if err != nil {
		return fmt.Errorf("view: select theme: %w", err)
	}
	cfg := theme.RendererConfig(sel)

	layout := cfg.Partials[theme.PartialLayout]
	tmpl, err := r.template(layout)
	if err != nil {
		return err
	}

	page := NewPage(s, cfg, r.selector.Names())
	if err := tmpl.ExecuteWriter(pongo2.Context{"page": page}, w); err != nil {
		return fmt.Errorf("view: execute %q: %w", layout, err)
	}
	return nil
}

func (r *Renderer) template(name string) (*pongo2.Template, error) {
	r.mu.RLock()
	tmpl, ok := r.templates[name]
	r.mu.RUnlock()
	if ok {
		return tmpl, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if tmpl, ok := r.templates[name]; ok {
		return tmpl, nil
	}
	tmpl, err := r.set.FromFile(name)
	if err != nil {
		return nil, fmt.Errorf("view: load template %q: %w", name, err)
	}
	r.templates[name] = tmpl
	return tmpl, nil
}
