package form

import (
	"context"
	"errors"
	"sync"
	"testing"

	"deckgen-web/internal/artifact"
	"deckgen-web/internal/model"

	"github.com/google/go-cmp/cmp"
)

func TestController_SubmitWithoutSource(t *testing.T) {
	gen := &stubGenerator{}
	c, _ := newTestController(gen, RejectWithError)

	for _, text := range []string{"", "   \n\t"} {
		c.SetInlineText(text)
		_, err := c.Submit(context.Background())

		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("text %q: expected ValidationError, got %v", text, err)
		}
		s := c.Snapshot()
		if s.Error != MsgMissingSource {
			t.Fatalf("text %q: unexpected error message %q", text, s.Error)
		}
		if s.IsSubmitting {
			t.Fatalf("text %q: validation failure must not enter submitting", text)
		}
	}
	if gen.callCount() != 0 {
		t.Fatalf("expected no network call, got %d", gen.callCount())
	}
}

func TestController_InlineTextRequest(t *testing.T) {
	gen := &stubGenerator{result: []byte("deck")}
	c, _ := newTestController(gen, RejectWithError)

	c.SetInlineText("Quarterly Results")
	if _, err := c.Submit(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	req := gen.lastRequest()
	want := model.GenerationRequest{
		TextFile: model.FileRef{Name: "input.txt", ContentType: "text/plain; charset=utf-8", Data: []byte("Quarterly Results")},
	}
	if diff := cmp.Diff(want, req); diff != "" {
		t.Fatalf("request mismatch (-want +got):\n%s", diff)
	}
}

func TestController_FileAndTemplateRequest(t *testing.T) {
	gen := &stubGenerator{result: []byte("deck")}
	c, _ := newTestController(gen, RejectWithError)

	notes := &model.FileRef{Name: "notes.txt", ContentType: "text/plain", Data: []byte("agenda\nnumbers")}
	brand := &model.FileRef{Name: "brand.pptx", ContentType: pptxType, Data: []byte{0x50, 0x4b, 0x03, 0x04, 0x00}}

	if err := c.SelectSourceFile(notes); err != nil {
		t.Fatalf("select source: %v", err)
	}
	if err := c.SelectTemplateFile(brand); err != nil {
		t.Fatalf("select template: %v", err)
	}
	if _, err := c.Submit(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	want := model.GenerationRequest{TextFile: *notes, TemplateFile: brand}
	if diff := cmp.Diff(want, gen.lastRequest()); diff != "" {
		t.Fatalf("request mismatch (-want +got):\n%s", diff)
	}
}

func TestController_SuccessReplacesArtifact(t *testing.T) {
	gen := &stubGenerator{result: []byte("first")}
	c, store := newTestController(gen, RejectWithError)
	c.SetInlineText("slides")

	first, err := c.Submit(context.Background())
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if first.Name != "presentation.pptx" {
		t.Fatalf("unexpected artifact name %s", first.Name)
	}

	gen.setResult([]byte("second"))
	second, err := c.Submit(context.Background())
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}

	if _, err := store.Open(first.ID); !errors.Is(err, artifact.ErrNotFound) {
		t.Fatalf("expected superseded artifact released, got %v", err)
	}
	a, err := store.Open(second.ID)
	if err != nil {
		t.Fatalf("open second: %v", err)
	}
	if string(a.Data) != "second" {
		t.Fatalf("unexpected data %q", a.Data)
	}
	if store.Len() != 1 {
		t.Fatalf("expected exactly one live artifact, got %d", store.Len())
	}
	if got := c.Snapshot().Result; got == nil || got.ID != second.ID {
		t.Fatalf("state does not point at newest artifact: %+v", got)
	}
}

func TestController_FailureKeepsPriorResult(t *testing.T) {
	gen := &stubGenerator{result: []byte("ok")}
	c, store := newTestController(gen, RejectWithError)
	c.SetInlineText("slides")

	prior, err := c.Submit(context.Background())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	gen.setErr(errors.New("status 500"))
	_, err = c.Submit(context.Background())

	var gerr *GenerationError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	s := c.Snapshot()
	if s.IsSubmitting {
		t.Fatalf("failure left the form submitting")
	}
	if s.Error != MsgGenerationFailed {
		t.Fatalf("unexpected error %q", s.Error)
	}
	if s.Result == nil || s.Result.ID != prior.ID {
		t.Fatalf("prior result lost: %+v", s.Result)
	}
	if _, err := store.Open(prior.ID); err != nil {
		t.Fatalf("prior artifact released on failure: %v", err)
	}
}

func TestController_FailureWithoutPriorResult(t *testing.T) {
	gen := &stubGenerator{err: errors.New("connection refused")}
	c, store := newTestController(gen, RejectWithError)
	c.SetInlineText("slides")

	if _, err := c.Submit(context.Background()); err == nil {
		t.Fatal("expected failure")
	}
	s := c.Snapshot()
	if s.Result != nil || s.IsSubmitting || s.Error != MsgGenerationFailed {
		t.Fatalf("unexpected state %+v", s)
	}
	if store.Len() != 0 {
		t.Fatalf("expected no artifacts, got %d", store.Len())
	}
	if gen.callCount() != 1 {
		t.Fatalf("expected a single attempt, got %d", gen.callCount())
	}
}

func TestController_StoreFailureIsGenerationError(t *testing.T) {
	gen := &stubGenerator{result: make([]byte, 32)}
	store := artifact.NewStore(8)
	c := NewController(Options{Generator: gen, Artifacts: store})
	c.SetInlineText("slides")

	_, err := c.Submit(context.Background())
	if !errors.Is(err, artifact.ErrCapacity) {
		t.Fatalf("expected wrapped ErrCapacity, got %v", err)
	}
	if c.Snapshot().Error != MsgGenerationFailed {
		t.Fatalf("expected generic failure message")
	}
}

func TestController_SubmitWhileSubmitting(t *testing.T) {
	gen := newBlockingGenerator()
	c, _ := newTestController(gen, RejectWithError)
	c.SetInlineText("slides")

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background())
		done <- err
	}()
	<-gen.started

	if !c.Snapshot().IsSubmitting {
		t.Fatalf("expected submitting state")
	}
	if c.Snapshot().CanSubmit() {
		t.Fatalf("submit must be disabled while submitting")
	}
	if _, err := c.Submit(context.Background()); !errors.Is(err, ErrSubmitInProgress) {
		t.Fatalf("expected ErrSubmitInProgress, got %v", err)
	}

	// edits during the request do not alter it
	c.SetInlineText("changed")

	close(gen.release)
	if err := <-done; err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got := string(gen.lastRequest().TextFile.Data); got != "slides" {
		t.Fatalf("in-flight request changed to %q", got)
	}
	if c.Snapshot().IsSubmitting {
		t.Fatalf("still submitting after completion")
	}
}

func TestController_ClearResetsAffordance(t *testing.T) {
	c, _ := newTestController(&stubGenerator{}, RejectWithError)
	notes := &model.FileRef{Name: "notes.txt", Data: []byte("hi")}
	brand := &model.FileRef{Name: "brand.pptx", Data: []byte("PK")}

	if err := c.SelectSourceFile(notes); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := c.SelectTemplateFile(brand); err != nil {
		t.Fatalf("select template: %v", err)
	}
	before := c.Snapshot()

	c.ClearSourceFile()
	afterClear := c.Snapshot()
	if afterClear.SourceFile != nil {
		t.Fatalf("source file not cleared")
	}
	if afterClear.SourceInputGen == before.SourceInputGen {
		t.Fatalf("source picker not reset")
	}
	if afterClear.TemplateFile == nil || afterClear.TemplateInputGen != before.TemplateInputGen {
		t.Fatalf("clearing source touched the template")
	}

	// same file again, immediately
	if err := c.SelectSourceFile(notes); err != nil {
		t.Fatalf("reselect: %v", err)
	}
	if c.Snapshot().SourceFile == nil {
		t.Fatalf("reselected file not held")
	}

	c.ClearTemplateFile()
	s := c.Snapshot()
	if s.TemplateFile != nil || s.TemplateInputGen == afterClear.TemplateInputGen {
		t.Fatalf("template not cleared/reset: %+v", s)
	}
	if s.SourceFile == nil {
		t.Fatalf("clearing template touched the source")
	}
}

func TestController_RejectPolicies(t *testing.T) {
	pdf := &model.FileRef{Name: "notes.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4")}
	doc := &model.FileRef{Name: "brand.key", ContentType: "application/zip", Data: []byte("PK")}

	t.Run("error", func(t *testing.T) {
		c, _ := newTestController(&stubGenerator{}, RejectWithError)
		c.SetInlineText("keep me")

		err := c.SelectSourceFile(pdf)
		var verr *ValidationError
		if !errors.As(err, &verr) || !errors.Is(err, ErrUnsupportedFile) {
			t.Fatalf("expected validation error wrapping ErrUnsupportedFile, got %v", err)
		}
		s := c.Snapshot()
		if s.Error != MsgUnsupportedSource || s.SourceText != "keep me" || s.SourceFile != nil {
			t.Fatalf("unexpected state %+v", s)
		}

		if err := c.SelectTemplateFile(doc); !errors.Is(err, ErrUnsupportedFile) {
			t.Fatalf("expected template rejection, got %v", err)
		}
		if c.Snapshot().Error != MsgUnsupportedTemplate {
			t.Fatalf("unexpected message %q", c.Snapshot().Error)
		}
	})

	t.Run("ignore", func(t *testing.T) {
		c, _ := newTestController(&stubGenerator{}, RejectSilently)
		c.SetInlineText("keep me")
		before := c.Snapshot()

		err := c.SelectSourceFile(pdf)
		if !errors.Is(err, ErrUnsupportedFile) {
			t.Fatalf("expected ErrUnsupportedFile, got %v", err)
		}
		var verr *ValidationError
		if errors.As(err, &verr) {
			t.Fatalf("ignore policy must not produce a validation error")
		}
		if diff := cmp.Diff(before, c.Snapshot()); diff != "" {
			t.Fatalf("state changed (-before +after):\n%s", diff)
		}
	})
}

func TestController_SelectClearsError(t *testing.T) {
	c, _ := newTestController(&stubGenerator{}, RejectWithError)
	c.Submit(context.Background())
	if c.Snapshot().Error == "" {
		t.Fatal("expected validation error")
	}

	if err := c.SelectSourceFile(&model.FileRef{Name: "a.txt", Data: []byte("x")}); err != nil {
		t.Fatalf("select: %v", err)
	}
	if c.Snapshot().Error != "" {
		t.Fatalf("selecting a source file should clear the error")
	}

	c.Submit(context.Background())
	c.ClearSourceFile()
	c.Submit(context.Background())
	c.SetInlineText("x")
	if c.Snapshot().Error != "" {
		t.Fatalf("typing should clear the error")
	}
}

func TestController_ValidTemplateClearsTemplateRejection(t *testing.T) {
	c, _ := newTestController(&stubGenerator{}, RejectWithError)
	brand := &model.FileRef{Name: "brand.pptx", ContentType: pptxType, Data: []byte("PK")}

	c.SelectTemplateFile(&model.FileRef{Name: "brand.key", Data: []byte("PK")})
	if c.Snapshot().Error != MsgUnsupportedTemplate {
		t.Fatalf("expected template rejection message, got %q", c.Snapshot().Error)
	}
	if err := c.SelectTemplateFile(brand); err != nil {
		t.Fatalf("select template: %v", err)
	}
	if s := c.Snapshot(); s.Error != "" || s.TemplateFile == nil {
		t.Fatalf("accepted template should clear its rejection, got %+v", s)
	}

	// other messages stay until their own cause is addressed
	c.Submit(context.Background())
	if err := c.SelectTemplateFile(brand); err != nil {
		t.Fatalf("select template: %v", err)
	}
	if got := c.Snapshot().Error; got != MsgMissingSource {
		t.Fatalf("missing source message should remain, got %q", got)
	}
}

func TestController_CloseReleasesArtifacts(t *testing.T) {
	gen := &stubGenerator{result: []byte("deck")}
	c, store := newTestController(gen, RejectWithError)
	c.SetInlineText("slides")

	updates, cancel := c.Subscribe()
	defer cancel()

	if _, err := c.Submit(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("expected one artifact")
	}

	c.Close()
	if store.Len() != 0 {
		t.Fatalf("close did not release artifacts")
	}
	if _, err := c.Submit(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}

	// channel is drained then closed
	for range updates {
	}
}

func TestController_SubscribeSeesSubmission(t *testing.T) {
	gen := newBlockingGenerator()
	c, _ := newTestController(gen, RejectWithError)
	c.SetInlineText("slides")

	updates, cancel := c.Subscribe()
	defer cancel()
	if s := <-updates; s.IsSubmitting {
		t.Fatalf("initial snapshot should be idle")
	}

	go c.Submit(context.Background())
	<-gen.started
	if s := <-updates; !s.IsSubmitting {
		t.Fatalf("expected submitting snapshot, got %+v", s)
	}
	close(gen.release)
	s := <-updates
	if s.IsSubmitting || s.Result == nil {
		t.Fatalf("expected finished snapshot with result, got %+v", s)
	}
}

func newTestController(gen Generator, policy RejectPolicy) (*Controller, *artifact.Store) {
	store := artifact.NewStore(0)
	return NewController(Options{
		Generator:    gen,
		Artifacts:    store,
		RejectPolicy: policy,
		Label:        "test",
	}), store
}

type stubGenerator struct {
	mu       sync.Mutex
	result   []byte
	err      error
	requests []model.GenerationRequest
}

func (g *stubGenerator) Generate(_ context.Context, req model.GenerationRequest) (*model.GenerationResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	return &model.GenerationResult{Data: g.result}, nil
}

func (g *stubGenerator) setResult(data []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.result, g.err = data, nil
}

func (g *stubGenerator) setErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.err = err
}

func (g *stubGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

func (g *stubGenerator) lastRequest() model.GenerationRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requests[len(g.requests)-1]
}

type blockingGenerator struct {
	stubGenerator
	started chan struct{}
	release chan struct{}
}

func newBlockingGenerator() *blockingGenerator {
	return &blockingGenerator{
		stubGenerator: stubGenerator{result: []byte("deck")},
		started:       make(chan struct{}),
		release:       make(chan struct{}),
	}
}

func (g *blockingGenerator) Generate(ctx context.Context, req model.GenerationRequest) (*model.GenerationResult, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	g.mu.Unlock()

	close(g.started)
	<-g.release
	return &model.GenerationResult{Data: g.result}, nil
}
