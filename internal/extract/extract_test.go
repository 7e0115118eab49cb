package extract

import (
	"errors"
	"strings"
	"testing"
)

func TestFromUploadHTML(t *testing.T) {
	html := `<!DOCTYPE html>
<html><head><title>Raft Consensus Notes</title></head>
<body>
<script>alert("tracking")</script>
<article>
<h1>Raft Consensus Notes</h1>
<p>Raft elects a single leader per term and replicates a log.</p>
<p>Followers vote at most once per term.</p>
</article>
</body></html>`

	doc, err := FromUpload("notes.html", "text/html", []byte(html))
	if err != nil {
		t.Fatalf("extracting html: %v", err)
	}
	if doc.Title != "Raft Consensus Notes" {
		t.Errorf("expected title from document, got %q", doc.Title)
	}
	if !strings.Contains(doc.Text, "single leader per term") {
		t.Errorf("expected body text, got %q", doc.Text)
	}
	if strings.Contains(doc.Text, "alert(") {
		t.Errorf("expected scripts stripped, got %q", doc.Text)
	}
}

func TestFromUploadHTMLWithoutArticleShape(t *testing.T) {
	html := `<html><head><title>Snippet</title></head><body><div>Just one line.</div></body></html>`

	doc, err := FromUpload("snippet.htm", "", []byte(html))
	if err != nil {
		t.Fatalf("extracting html: %v", err)
	}
	if doc.Title != "Snippet" {
		t.Errorf("expected title Snippet, got %q", doc.Title)
	}
	if !strings.Contains(doc.Text, "Just one line.") {
		t.Errorf("expected fallback text, got %q", doc.Text)
	}
}

func TestFromUploadMarkdown(t *testing.T) {
	md := "# Reading List\n\n- Designing Data-Intensive Applications\n- The Go Programming Language\n"

	doc, err := FromUpload("reading-list.md", "text/markdown", []byte(md))
	if err != nil {
		t.Fatalf("extracting markdown: %v", err)
	}
	if doc.Title != "Reading List" {
		t.Errorf("expected heading title, got %q", doc.Title)
	}
	if !strings.Contains(doc.Text, "Designing Data-Intensive Applications") {
		t.Errorf("expected markdown preserved, got %q", doc.Text)
	}
}

func TestFromUploadMarkdownWithoutHeading(t *testing.T) {
	doc, err := FromUpload("meeting_notes.md", "", []byte("Discussed quarterly goals."))
	if err != nil {
		t.Fatalf("extracting markdown: %v", err)
	}
	if doc.Title != "meeting notes" {
		t.Errorf("expected filename title, got %q", doc.Title)
	}
}

func TestFromUploadPlainText(t *testing.T) {
	doc, err := FromUpload("todo.txt", "text/plain", []byte("  buy milk\n"))
	if err != nil {
		t.Fatalf("extracting text: %v", err)
	}
	if doc.Title != "todo" {
		t.Errorf("expected filename title, got %q", doc.Title)
	}
	if doc.Text != "buy milk" {
		t.Errorf("expected trimmed text, got %q", doc.Text)
	}
}

func TestFromUploadContentTypeFallback(t *testing.T) {
	doc, err := FromUpload("export", "text/plain; charset=utf-8", []byte("raw dump"))
	if err != nil {
		t.Fatalf("extracting by content type: %v", err)
	}
	if doc.Text != "raw dump" {
		t.Errorf("unexpected text %q", doc.Text)
	}
}

func TestFromUploadUnsupported(t *testing.T) {
	_, err := FromUpload("report.pdf", "application/pdf", []byte("%PDF-1.4"))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected unsupported type error, got %v", err)
	}
}

func TestTitleFromFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"my_notes.txt", "my notes"},
		{"reading-list.md", "reading list"},
		{"/tmp/upload/doc.html", "doc"},
		{".txt", "Untitled document"},
	}
	for _, tt := range tests {
		if got := titleFromFilename(tt.in); got != tt.want {
			t.Errorf("titleFromFilename(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}
