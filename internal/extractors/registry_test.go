package extractors

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/scopeworks/kbcore/internal/core/domain"
)

func TestRegistry_SelectsFirstSupporting(t *testing.T) {
	r := NewRegistry()
	r.Register(NewPlainText())

	if got := r.Get("notes.md"); got == nil || got.Name() != "plaintext" {
		t.Errorf("expected plaintext extractor for notes.md, got %v", got)
	}
	if got := r.Get("deck.pptx"); got != nil {
		t.Errorf("expected no extractor for deck.pptx, got %s", got.Name())
	}
}

func TestRegistry_UnsupportedFormat(t *testing.T) {
	r := DefaultRegistry()

	_, err := r.Extract(context.Background(), []byte("binary"), "image.png")
	if err == nil {
		t.Fatal("expected error for unsupported format")
	}

	var ee *domain.ExtractionError
	if !errors.As(err, &ee) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
	if ee.Kind != domain.ExtractionUnsupported {
		t.Errorf("expected kind %s, got %s", domain.ExtractionUnsupported, ee.Kind)
	}
}

func TestPlainText_NormalisesLineEndings(t *testing.T) {
	p := NewPlainText()

	text, err := p.Extract(context.Background(), []byte("line one\r\nline two\rline three\n"), "notes.txt")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if text != "line one\nline two\nline three" {
		t.Errorf("unexpected text: %q", text)
	}
}

func TestPlainText_RejectsInvalidUTF8(t *testing.T) {
	p := NewPlainText()

	_, err := p.Extract(context.Background(), []byte{0xff, 0xfe, 0x00}, "notes.txt")
	var ee *domain.ExtractionError
	if !errors.As(err, &ee) || ee.Kind != domain.ExtractionCorrupt {
		t.Errorf("expected corrupt extraction error, got %v", err)
	}
}

func TestRemote_Extract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/tika" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/pdf" {
			t.Errorf("unexpected content type: %s", ct)
		}
		w.Write([]byte("  extracted text  \n"))
	}))
	defer srv.Close()

	re := NewRemote(RemoteConfig{BaseURL: srv.URL})

	text, err := re.Extract(context.Background(), []byte("%PDF-1.4"), "report.pdf")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if text != "extracted text" {
		t.Errorf("unexpected text: %q", text)
	}
}

func TestRemote_UnparseableFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	re := NewRemote(RemoteConfig{BaseURL: srv.URL})

	_, err := re.Extract(context.Background(), []byte("garbage"), "broken.docx")
	var ee *domain.ExtractionError
	if !errors.As(err, &ee) || ee.Kind != domain.ExtractionCorrupt {
		t.Errorf("expected corrupt extraction error, got %v", err)
	}
}

func TestRemote_Supports(t *testing.T) {
	re := NewRemote(RemoteConfig{BaseURL: "http://localhost:9998"})

	for _, name := range []string{"a.pdf", "b.DOCX", "c.pptx"} {
		if !re.Supports(name) {
			t.Errorf("expected support for %s", name)
		}
	}
	for _, name := range []string{"a.txt", "b.png"} {
		if re.Supports(name) {
			t.Errorf("did not expect support for %s", name)
		}
	}
}
