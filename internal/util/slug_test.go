package util

import "testing"

func TestSlugify(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: "About Us", want: "about-us"},
		{name: "punctuation", input: "Hello, World!", want: "hello-world"},
		{name: "accents", input: "Über Café", want: "uber-cafe"},
		{name: "collapse hyphens", input: "a -- b", want: "a-b"},
		{name: "trim", input: "  -news- ", want: "news"},
		{name: "empty", input: "   ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slugify(tt.input); got != tt.want {
				t.Fatalf("Slugify(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsValidSlug(t *testing.T) {
	valid := []string{"news", "news-2024", "a-b-c"}
	invalid := []string{"", "-news", "news-", "a--b", "News", "a b", "a/b"}

	for _, s := range valid {
		if !IsValidSlug(s) {
			t.Errorf("expected %q to be valid", s)
		}
	}
	for _, s := range invalid {
		if IsValidSlug(s) {
			t.Errorf("expected %q to be invalid", s)
		}
	}
}
