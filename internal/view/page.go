package view

import (
	"fmt"
	"strings"
	"sync"

	"deckgen-web/internal/form"
	"deckgen-web/internal/theme"

	gotheme "github.com/goliatone/go-theme"
	"github.com/microcosm-cc/bluemonday"
)

const (
	Title       = "AI Presentation Generator"
	Description = "Provide source text and an optional template to create a professional presentation."

	SubmitLabel     = "Generate Presentation"
	SubmittingLabel = "Generating..."

	// DownloadPath prefixes the per-artifact download route.
	DownloadPath = "/form/download/"
)

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy
)

func sanitizer() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.StrictPolicy()
	})
	return policy
}

// sanitize strips markup. The result is already HTML-escaped.
func sanitize(raw string) string {
	return strings.TrimSpace(sanitizer().Sanitize(raw))
}

type FileChip struct {
	Name string
	Size int64
}

type Download struct {
	URL      string
	FileName string
	Size     int64
}

// Page is everything the form templates read.
type Page struct {
	Title       string
	Description string

	SourceText      string
	HasSourceFile   bool
	SourceFile      FileChip
	SourceInputID   string
	HasTemplateFile bool
	TemplateFile    FileChip
	TemplateInputID string

	Error        string
	IsSubmitting bool
	CanSubmit    bool
	SubmitLabel  string

	HasDownload bool
	Download    Download

	Theme      string
	Variant    string
	Themes     []string
	ThemeStyle string
}

// NewPage builds the view model for one form snapshot.
func NewPage(s form.State, cfg *gotheme.RendererConfig, themes []string) Page {
	p := Page{
		Title:           Title,
		Description:     Description,
		SourceText:      s.SourceText,
		SourceInputID:   fmt.Sprintf("source-file-%d", s.SourceInputGen),
		TemplateInputID: fmt.Sprintf("template-file-%d", s.TemplateInputGen),
		Error:           sanitize(s.Error),
		IsSubmitting:    s.IsSubmitting,
		CanSubmit:       s.CanSubmit(),
		SubmitLabel:     SubmitLabel,
		Themes:          themes,
	}
	if s.IsSubmitting {
		p.SubmitLabel = SubmittingLabel
	}
	if s.SourceFile != nil {
		p.HasSourceFile = true
		p.SourceFile = FileChip{Name: sanitize(s.SourceFile.Name), Size: s.SourceFile.Size()}
	}
	if s.TemplateFile != nil {
		p.HasTemplateFile = true
		p.TemplateFile = FileChip{Name: sanitize(s.TemplateFile.Name), Size: s.TemplateFile.Size()}
	}
	if s.Result != nil {
		p.HasDownload = true
		p.Download = Download{
			URL:      DownloadPath + s.Result.ID,
			FileName: s.Result.Name,
			Size:     s.Result.Size,
		}
	}
	if cfg != nil {
		p.Theme = cfg.Theme
		p.Variant = cfg.Variant
		p.ThemeStyle = theme.CSSVarsStyle(cfg.CSSVars)
	}
	return p
}
