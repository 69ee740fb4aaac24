package shell

import (
	"bytes"
	"strings"
	"testing"

	"rag-keeper/internal/config"
)

func render(t *testing.T, p Page) string {
	t.Helper()
	var buf bytes.Buffer
	if err := Render(&buf, p); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	return buf.String()
}

func TestRenderDefaultPage(t *testing.T) {
	html := render(t, DefaultPage())

	if n := strings.Count(html, `id="`+MountID+`"`); n != 1 {
		t.Errorf("found %d mount points, want exactly 1", n)
	}
	if !strings.Contains(html, `data-widget="chat-box"`) {
		t.Error("mount point lacks data-widget")
	}
	for _, want := range []string{
		"<title>RAG Chatbot</title>",
		"<h1>RAG Chatbot</h1>",
		"<p>Powered by AWS Bedrock NovaLite &amp; ChromaDB</p>",
		"<header",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("output lacks %q", want)
		}
	}
	if strings.Contains(html, "<script") {
		t.Error("script tag rendered without widget_script")
	}
	if render(t, DefaultPage()) != html {
		t.Error("rendering is not deterministic")
	}
}

func TestRenderSubtitleMarkdown(t *testing.T) {
	tests := []struct {
		name     string
		subtitle string
		want     string
		reject   string
	}{
		{"emphasis", "Powered by *Bedrock*", "<p>Powered by <em>Bedrock</em></p>", ""},
		{"link", "[docs](https://example.com)", `<a href="https://example.com" rel="nofollow">docs</a>`, ""},
		{"raw html dropped", "hi <script>alert(1)</script>", "<p>hi alert(1)</p>", "<script"},
		{"javascript url", "[x](javascript:alert(1))", ">x", "javascript:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html := render(t, Page{Title: "T", Subtitle: tt.subtitle})
			if !strings.Contains(html, tt.want) {
				t.Errorf("output lacks %q", tt.want)
			}
			if tt.reject != "" && strings.Contains(html, tt.reject) {
				t.Errorf("output contains %q", tt.reject)
			}
		})
	}
}

func TestRenderEscapesTitleAndAddsWidget(t *testing.T) {
	html := render(t, Page{Title: "<b>Bot</b>", Subtitle: "s", WidgetScript: "/assets/chat-box.js"})
	if strings.Contains(html, "<b>Bot</b>") || !strings.Contains(html, "&lt;b&gt;Bot&lt;/b&gt;") {
		t.Error("title was not escaped")
	}
	if !strings.Contains(html, `<script type="module" src="/assets/chat-box.js"></script>`) {
		t.Error("widget script missing")
	}
}

func TestPageFromConfig(t *testing.T) {
	p := PageFromConfig(config.PageConfig{Subtitle: "custom"})
	if p.Title != config.DefaultTitle || p.Subtitle != "custom" {
		t.Errorf("unexpected page: %+v", p)
	}
}
