package model

import (
	"path/filepath"
	"strings"
)

// FileRef is an uploaded file held in memory.
type FileRef struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
}

func (f *FileRef) Size() int64 {
	if f == nil {
		return 0
	}
	return int64(len(f.Data))
}

// Ext returns the lower-cased extension including the dot.
func (f *FileRef) Ext() string {
	if f == nil {
		return ""
	}
	return strings.ToLower(filepath.Ext(f.Name))
}

// GenerationRequest is the multipart payload sent to the generation backend.
type GenerationRequest struct {
	TextFile     FileRef
	TemplateFile *FileRef
}

// TextRequest binds the inline text form field.
type TextRequest struct {
	Text string `form:"text" json:"text"`
}
