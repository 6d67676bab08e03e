package extract

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBytes_PlainText(t *testing.T) {
	for _, ext := range []string{".txt", ".md", "", ".unknown"} {
		got, err := Bytes([]byte("hello notes"), ext)
		if err != nil {
			t.Fatalf("Bytes(%q): %v", ext, err)
		}
		if got != "hello notes" {
			t.Errorf("Bytes(%q) = %q", ext, got)
		}
	}
}

func TestBytes_InvalidUTF8Replaced(t *testing.T) {
	got, err := Bytes([]byte{'o', 'k', 0xff, 'o', 'k'}, ".txt")
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if !strings.Contains(got, "ok") || strings.ContainsRune(got, 0xff) {
		t.Errorf("got %q, want invalid byte replaced", got)
	}
}

func TestBytes_HTML(t *testing.T) {
	page := `<html><head><style>body { color: red; }</style></head>
<body><h1>Study Guide</h1><p>Newton described <b>three laws</b> of motion.</p>
<script>trackPageView();</script></body></html>`

	got, err := Bytes([]byte(page), ".html")
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	for _, want := range []string{"Study Guide", "three laws", "of motion"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q: %q", want, got)
		}
	}
	for _, unwanted := range []string{"trackPageView", "color: red", "<p>"} {
		if strings.Contains(got, unwanted) {
			t.Errorf("output leaked %q: %q", unwanted, got)
		}
	}
	// Heading and paragraph stay on separate lines.
	if !strings.Contains(got, "\n") {
		t.Errorf("block elements not separated: %q", got)
	}
}

func TestBytes_MalformedPDF(t *testing.T) {
	if _, err := Bytes([]byte("not a pdf at all"), ".pdf"); err == nil {
		t.Error("expected error for malformed pdf")
	}
}

func TestFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.md")
	if err := os.WriteFile(path, []byte("# heading\n\nbody"), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := File(path)
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if got != "# heading\n\nbody" {
		t.Errorf("got %q", got)
	}

	if _, err := File(filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}
