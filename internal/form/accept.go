package form

import (
	"mime"
	"strings"

	"deckgen-web/internal/model"

	"github.com/gabriel-vasile/mimetype"
)

const pptxType = "application/vnd.openxmlformats-officedocument.presentationml.presentation"

// AcceptsSource reports whether f belongs to the plain-text class: a .txt
// name, a declared text/plain type, or, when the browser sent no useful
// type, content that sniffs as text.
func AcceptsSource(f *model.FileRef) bool {
	if f == nil {
		return false
	}
	if f.Ext() == ".txt" {
		return true
	}

	declared := mediaType(f.ContentType)
	switch declared {
	case "text/plain":
		return true
	case "", "application/octet-stream":
		return sniffsAsText(f.Data)
	}
	return false
}

// AcceptsTemplate mirrors a file picker filtered to .pptx.
func AcceptsTemplate(f *model.FileRef) bool {
	if f == nil {
		return false
	}
	return f.Ext() == ".pptx" || mediaType(f.ContentType) == pptxType
}

func mediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}

func sniffsAsText(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}
