package form

import "errors"

const (
	MsgMissingSource       = "Please provide source text by typing or uploading a .txt file."
	MsgGenerationFailed    = "Failed to generate presentation. Check the backend server and try again."
	MsgUnsupportedSource   = "Unsupported source file: please upload a plain text (.txt) file."
	MsgUnsupportedTemplate = "Unsupported template file: please upload a .pptx presentation."
)

var (
	ErrSubmitInProgress = errors.New("a generation request is already in flight")
	ErrUnsupportedFile  = errors.New("unsupported file type")
	ErrClosed           = errors.New("form is closed")
)

// ValidationError is shown inline; no request was sent.
type ValidationError struct {
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// GenerationError wraps any failure of the backend call. Users only ever see
// MsgGenerationFailed; Err is for logs.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return "generation failed: " + e.Err.Error()
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
