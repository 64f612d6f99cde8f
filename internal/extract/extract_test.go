package extract

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"
)

func TestTextPlain(t *testing.T) {
	got, err := Text([]byte("  hello\n\tworld  "), "notes.txt")
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if got != "hello world" {
		t.Fatalf("Text = %q, want %q", got, "hello world")
	}
}

func TestTextUnknownExtensionFallsBackToUTF8(t *testing.T) {
	got, err := Text([]byte("raw   content"), "answer.xyz")
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if got != "raw content" {
		t.Fatalf("Text = %q", got)
	}
}

func TestTextHTML(t *testing.T) {
	page := `<html><head><style>body{}</style></head><body><h1>Lab 1</h1><p>Osmosis   moves water.</p><script>alert(1)</script></body></html>`
	got, err := Text([]byte(page), "report.html")
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if !strings.Contains(got, "Lab 1") || !strings.Contains(got, "Osmosis moves water.") {
		t.Fatalf("Text = %q", got)
	}
	if strings.Contains(got, "alert") || strings.Contains(got, "body{}") {
		t.Fatalf("script/style content leaked: %q", got)
	}
}

func TestTextDOCX(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	doc, err := w.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	_, _ = doc.Write([]byte(`<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second paragraph.</w:t></w:r></w:p>
  </w:body>
</w:document>`))
	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}

	got, err := Text(buf.Bytes(), "essay.docx")
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if !strings.Contains(got, "First paragraph.") || !strings.Contains(got, "Second paragraph.") {
		t.Fatalf("Text = %q", got)
	}
}

func TestTextDOCXMissingDocument(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	entry, _ := w.Create("other.xml")
	_, _ = entry.Write([]byte("<x/>"))
	_ = w.Close()

	if _, err := Text(buf.Bytes(), "essay.docx"); err == nil {
		t.Fatal("expected error for docx without word/document.xml")
	}
}

func TestTextBadPDF(t *testing.T) {
	if _, err := Text([]byte("not a pdf"), "work.pdf"); err == nil {
		t.Fatal("expected error for invalid pdf")
	}
}
