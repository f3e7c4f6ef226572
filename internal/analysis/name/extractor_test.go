package name

import "testing"

func TestExtractCommonPatterns(t *testing.T) {
	cases := map[string]string{
		"my name is alice":        "Alice",
		"My Name Is BOB":          "Bob",
		"I'm charlie":             "Charlie",
		"im dana":                 "Dana",
		"i am erin smith":         "Erin",
		"call me Frank":           "Frank",
		"this is grace":           "Grace",
		"hey it's henry":          "Henry",
		"Maya":                    "Maya",
		"my name is   jo": "Jo",
	}

	extractor := NewExtractor()
	for input, want := range cases {
		got, ok := extractor.Extract(input)
		if !ok {
			t.Fatalf("Extract(%q) found no name, want %q", input, want)
		}
		if got != want {
			t.Fatalf("Extract(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestExtractNoMatch(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"how are you today?",
		"12345",
		"my name is x", // single letter, below minimum
	}

	extractor := NewExtractor()
	for _, input := range inputs {
		if got, ok := extractor.Extract(input); ok {
			t.Fatalf("Extract(%q) = %q, want no name", input, got)
		}
	}
}

func TestExtractRejectsOverlongName(t *testing.T) {
	extractor := NewExtractor()
	if got, ok := extractor.Extract("my name is abcdefghijklmnopqrstuvwxyz"); ok {
		t.Fatalf("expected overlong name to be rejected, got %q", got)
	}
}

func TestExtractTakesFirstToken(t *testing.T) {
	extractor := NewExtractor()
	got, ok := extractor.Extract("my name is mary jane watson")
	if !ok || got != "Mary" {
		t.Fatalf("Extract = %q (ok=%v), want Mary", got, ok)
	}
}
