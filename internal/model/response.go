package model

import "time"

// GenerationResult is the raw backend response. It is never inspected.
type GenerationResult struct {
	ContentType string
	Data        []byte
}

type FileInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

type DownloadInfo struct {
	URL       string    `json:"url"`
	FileName  string    `json:"file_name"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// FormStateResponse is the JSON view of one visitor's form.
type FormStateResponse struct {
	SessionID        string        `json:"session_id"`
	SourceText       string        `json:"source_text"`
	SourceFile       *FileInfo     `json:"source_file,omitempty"`
	TemplateFile     *FileInfo     `json:"template_file,omitempty"`
	IsSubmitting     bool          `json:"is_submitting"`
	CanSubmit        bool          `json:"can_submit"`
	Error            string        `json:"error,omitempty"`
	Download         *DownloadInfo `json:"download,omitempty"`
	SourceInputGen   uint64        `json:"source_input_gen"`
	TemplateInputGen uint64        `json:"template_input_gen"`
}
