// Package form holds the submission form state machine: source text or a
// text file, an optional template, and one generation request at a time.
package form

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"deckgen-web/internal/artifact"
	"deckgen-web/internal/generator"
	"deckgen-web/internal/model"
	"deckgen-web/pkg/logger"
)

type RejectPolicy string

const (
	// RejectWithError surfaces a validation message for unsupported files.
	RejectWithError RejectPolicy = "error"
	// RejectSilently leaves the form untouched.
	RejectSilently RejectPolicy = "ignore"
)

type Generator interface {
	Generate(ctx context.Context, req model.GenerationRequest) (*model.GenerationResult, error)
}

type ArtifactStore interface {
	Put(name, contentType string, data []byte) (*artifact.Handle, error)
	Release(id string) bool
}

type Options struct {
	Generator    Generator
	Artifacts    ArtifactStore
	RejectPolicy RejectPolicy
	// FileName is the download name of generated presentations.
	FileName string
	// Label identifies the controller in logs, usually the session id.
	Label string
}

// State is a point-in-time copy of the form.
type State struct {
	SourceText   string
	SourceFile   *model.FileRef
	TemplateFile *model.FileRef
	IsSubmitting bool
	Error        string
	Result       *artifact.Handle

	// Input generations change whenever the matching file reference is
	// replaced or cleared, so a view can render a fresh picker.
	SourceInputGen   uint64
	TemplateInputGen uint64
}

// HasSource reports whether a submission would pass validation.
func (s State) HasSource() bool {
	return s.SourceFile != nil || strings.TrimSpace(s.SourceText) != ""
}

// CanSubmit is the submit button's enabled state.
func (s State) CanSubmit() bool {
	return s.HasSource() && !s.IsSubmitting
}

type Controller struct {
	mu    sync.Mutex
	state State
	// detached parks the previous result while a submission is in flight.
	detached *artifact.Handle
	closed   bool

	gen      Generator
	store    ArtifactStore
	policy   RejectPolicy
	fileName string
	label    string

	subs    map[int]chan State
	nextSub int
}

func NewController(opts Options) *Controller {
	policy := opts.RejectPolicy
	if policy == "" {
		policy = RejectWithError
	}
	fileName := opts.FileName
	if fileName == "" {
		fileName = "presentation.pptx"
	}
	return &Controller{
		gen:      opts.Generator,
		store:    opts.Artifacts,
		policy:   policy,
		fileName: fileName,
		label:    opts.Label,
		subs:     make(map[int]chan State),
	}
}

func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// SetInlineText replaces the typed source and drops any selected source file.
func (c *Controller) SetInlineText(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.SourceText = text
	if c.state.SourceFile != nil {
		c.state.SourceFile = nil
		c.state.SourceInputGen++
	}
	c.state.Error = ""
	c.notifyLocked()
}

// SelectSourceFile replaces the source with an uploaded plain-text file and
// clears the typed text.
func (c *Controller) SelectSourceFile(f *model.FileRef) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !AcceptsSource(f) {
		return c.rejectLocked(f, MsgUnsupportedSource)
	}

	c.state.SourceFile = cloneFile(f)
	c.state.SourceText = ""
	c.state.SourceInputGen++
	c.state.Error = ""
	c.notifyLocked()
	return nil
}

func (c *Controller) SelectTemplateFile(f *model.FileRef) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !AcceptsTemplate(f) {
		return c.rejectLocked(f, MsgUnsupportedTemplate)
	}

	c.state.TemplateFile = cloneFile(f)
	c.state.TemplateInputGen++
	if c.state.Error == MsgUnsupportedTemplate {
		c.state.Error = ""
	}
	c.notifyLocked()
	return nil
}

func (c *Controller) ClearSourceFile() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.SourceFile = nil
	c.state.SourceInputGen++
	c.notifyLocked()
}

func (c *Controller) ClearTemplateFile() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.TemplateFile = nil
	c.state.TemplateInputGen++
	c.notifyLocked()
}

// Submit sends the current form to the generator. It blocks until the
// backend answers; other operations stay available meanwhile and do not
// affect the request already built.
func (c *Controller) Submit(ctx context.Context) (*artifact.Handle, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.state.IsSubmitting {
		c.mu.Unlock()
		return nil, ErrSubmitInProgress
	}
	if !c.state.HasSource() {
		c.state.Error = MsgMissingSource
		c.notifyLocked()
		c.mu.Unlock()
		return nil, &ValidationError{Message: MsgMissingSource}
	}

	req := c.buildRequestLocked()
	c.state.IsSubmitting = true
	c.state.Error = ""
	c.detached = c.state.Result
	c.state.Result = nil
	c.notifyLocked()
	c.mu.Unlock()

	handle, err := c.generate(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.IsSubmitting = false

	if err != nil {
		logger.WithFields(logger.Fields{
			"form":  c.label,
			"error": err.Error(),
		}).Error("presentation generation failed")

		c.state.Error = MsgGenerationFailed
		c.state.Result = c.detached
		c.detached = nil
		c.notifyLocked()
		return nil, &GenerationError{Err: err}
	}

	if c.closed {
		c.store.Release(handle.ID)
		return nil, ErrClosed
	}

	if c.detached != nil {
		c.store.Release(c.detached.ID)
		c.detached = nil
	}
	c.state.Result = handle
	c.notifyLocked()

	h := *handle
	return &h, nil
}

func (c *Controller) generate(ctx context.Context, req model.GenerationRequest) (*artifact.Handle, error) {
	if c.gen == nil {
		return nil, fmt.Errorf("no generator configured")
	}
	res, err := c.gen.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	handle, err := c.store.Put(c.fileName, contentTypeOrDefault(res.ContentType), res.Data)
	if err != nil {
		return nil, fmt.Errorf("store generated presentation: %w", err)
	}
	return handle, nil
}

// Subscribe streams a snapshot after every state change, starting with the
// current one. Slow readers only ever miss intermediate states.
func (c *Controller) Subscribe() (<-chan State, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan State, 1)
	if c.closed {
		close(ch)
		return ch, func() {}
	}

	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	ch <- c.snapshotLocked()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(sub)
			}
		})
	}
}

// Close releases every artifact the form still holds and ends all
// subscriptions. A submission in flight discards its result.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true

	if c.state.Result != nil {
		c.store.Release(c.state.Result.ID)
		c.state.Result = nil
	}
	if c.detached != nil {
		c.store.Release(c.detached.ID)
		c.detached = nil
	}
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
}

func (c *Controller) rejectLocked(f *model.FileRef, message string) error {
	name := ""
	if f != nil {
		name = f.Name
	}
	err := fmt.Errorf("%w: %q", ErrUnsupportedFile, name)
	if c.policy == RejectSilently {
		return err
	}
	c.state.Error = message
	c.notifyLocked()
	return &ValidationError{Message: message, Err: err}
}

func (c *Controller) buildRequestLocked() model.GenerationRequest {
	var req model.GenerationRequest
	if c.state.SourceFile != nil {
		req.TextFile = *c.state.SourceFile
	} else {
		req.TextFile = generator.InlineTextFile(c.state.SourceText)
	}
	if c.state.TemplateFile != nil {
		req.TemplateFile = cloneFile(c.state.TemplateFile)
	}
	return req
}

func (c *Controller) snapshotLocked() State {
	s := c.state
	s.SourceFile = cloneFile(c.state.SourceFile)
	s.TemplateFile = cloneFile(c.state.TemplateFile)
	if c.state.Result != nil {
		r := *c.state.Result
		s.Result = &r
	}
	return s
}

func (c *Controller) notifyLocked() {
	if len(c.subs) == 0 {
		return
	}
	snap := c.snapshotLocked()
	for _, ch := range c.subs {
		select {
		case ch <- snap:
		default:
			// replace the stale pending snapshot
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// cloneFile copies the reference; file contents are never mutated.
func cloneFile(f *model.FileRef) *model.FileRef {
	if f == nil {
		return nil
	}
	cp := *f
	return &cp
}

func contentTypeOrDefault(ct string) string {
	if ct == "" || strings.HasPrefix(ct, "application/octet-stream") {
		return pptxType
	}
	return ct
}
