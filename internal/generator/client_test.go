package generator

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"deckgen-web/internal/model"

	"github.com/google/go-cmp/cmp"
)

type capturedPart struct {
	Field       string
	FileName    string
	ContentType string
	Content     string
}

// captureParts reads every part of a multipart request in order.
func captureParts(t *testing.T, r *http.Request) []capturedPart {
	t.Helper()
	reader, err := r.MultipartReader()
	if err != nil {
		t.Errorf("multipart reader: %v", err)
		return nil
	}
	var parts []capturedPart
	for {
		p, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Errorf("next part: %v", err)
			return nil
		}
		data, _ := io.ReadAll(p)
		parts = append(parts, capturedPart{
			Field:       p.FormName(),
			FileName:    p.FileName(),
			ContentType: p.Header.Get("Content-Type"),
			Content:     string(data),
		})
	}
	return parts
}

func TestClient_Generate_InlineText(t *testing.T) {
	var got []capturedPart
	var method string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		got = captureParts(t, r)
		w.Header().Set("Content-Type", PPTXType)
		w.Write([]byte("PK-deck"))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	res, err := client.Generate(context.Background(), model.GenerationRequest{
		TextFile: InlineTextFile("Quarterly Results"),
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if method != http.MethodPost {
		t.Fatalf("expected POST, got %s", method)
	}
	want := []capturedPart{{
		Field:       TextFileField,
		FileName:    "input.txt",
		ContentType: PlainTextType,
		Content:     "Quarterly Results",
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("parts mismatch (-want +got):\n%s", diff)
	}
	if string(res.Data) != "PK-deck" || res.ContentType != PPTXType {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestClient_Generate_FileAndTemplate(t *testing.T) {
	var got []capturedPart
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = captureParts(t, r)
		w.Write([]byte{0x50, 0x4b, 0x03, 0x04})
	}))
	defer server.Close()

	template := &model.FileRef{Name: "brand.pptx", ContentType: PPTXType, Data: []byte{0x50, 0x4b, 0x00, 0xff}}
	client := NewClient(server.URL, 5*time.Second)
	_, err := client.Generate(context.Background(), model.GenerationRequest{
		TextFile:     model.FileRef{Name: "notes.txt", ContentType: "text/plain", Data: []byte("line one\nline two")},
		TemplateFile: template,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	want := []capturedPart{
		{Field: TextFileField, FileName: "notes.txt", ContentType: "text/plain", Content: "line one\nline two"},
		{Field: TemplateFileField, FileName: "brand.pptx", ContentType: PPTXType, Content: string(template.Data)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("parts mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_Generate_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "template unreadable", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	_, err := client.Generate(context.Background(), model.GenerationRequest{TextFile: InlineTextFile("x")})

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("unexpected status %d", statusErr.StatusCode)
	}
	if statusErr.Body != "template unreadable" {
		t.Fatalf("unexpected body %q", statusErr.Body)
	}
}

func TestClient_Generate_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(url, time.Second)
	if _, err := client.Generate(context.Background(), model.GenerationRequest{TextFile: InlineTextFile("x")}); err == nil {
		t.Fatal("expected transport error")
	}
}

func TestClient_Generate_ResponseCap(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 64))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, WithMaxResponseBytes(16))
	if _, err := client.Generate(context.Background(), model.GenerationRequest{TextFile: InlineTextFile("x")}); err == nil {
		t.Fatal("expected oversized response to fail")
	}
}
