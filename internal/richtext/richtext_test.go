package richtext

import (
	"strings"
	"testing"
)

func TestRenderMarkdown(t *testing.T) {
	out, err := Render("Hello **world**")
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if !strings.Contains(out, "<strong>world</strong>") {
		t.Fatalf("expected bold markup, got %q", out)
	}
}

func TestRenderStripsScripts(t *testing.T) {
	out, err := Render("hi <script>alert(1)</script>")
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if strings.Contains(out, "<script>") {
		t.Fatalf("expected script to be removed, got %q", out)
	}
}

func TestRenderEmpty(t *testing.T) {
	out, err := Render("   ")
	if err != nil || out != "" {
		t.Fatalf("expected empty output, got %q (%v)", out, err)
	}
}

func TestExcerpt(t *testing.T) {
	got := Excerpt("# Title\n\nSome *long* paragraph text", 10)
	if got != "Title Some…" {
		t.Fatalf("unexpected excerpt %q", got)
	}
	if got := Excerpt("short", 10); got != "short" {
		t.Fatalf("unexpected excerpt %q", got)
	}
}
