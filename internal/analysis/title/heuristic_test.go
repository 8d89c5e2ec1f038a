package title

import "testing"

func TestExtract(t *testing.T) {
	cases := []struct {
		name   string
		prompt string
		want   string
	}{
		{"short prompt kept", "Hello", "Hello"},
		{"first sentence", "What is Go? I want to learn it fast.", "What is Go?"},
		{"too many words", "please explain how garbage collection works in modern runtimes", "please explain how garbage collection works..."},
		{"sentence then words", "Tell me about the history of the Roman empire in detail. Thanks", "Tell me about the history of..."},
		{"long single word", "supercalifragilisticexpialidocious-and-then-some-more", "supercalifragilisticexpialidocious-and-t..."},
		{"surrounding whitespace", "   hi there   ", "hi there"},
		{"exactly six words", "one two three four five six", "one two three four five six"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Extract(tc.prompt); got != tc.want {
				t.Fatalf("Extract(%q) = %q, want %q", tc.prompt, got, tc.want)
			}
		})
	}
}

func TestExtractCountsRunesNotBytes(t *testing.T) {
	prompt := "我想了解一下关于分布式系统中一致性协议的设计与实现细节以及它们在工业界的实际应用情况和常见问题"
	got := Extract(prompt)
	if n := len([]rune(got)); n != MaxFallbackRunes+len(ellipsis) {
		t.Fatalf("expected %d runes, got %d (%q)", MaxFallbackRunes+len(ellipsis), n, got)
	}
}

func TestClean(t *testing.T) {
	cases := map[string]string{
		`"Learning Go Basics"`:  "Learning Go Basics",
		`'Quoted'`:              "Quoted",
		`  Plain Title  `:       "Plain Title",
		`"Only leading`:         "Only leading",
		`""Double""`:            `"Double"`,
		"":                      "",
		"A title that is way too long to be shown in the sidebar list": "A title that is way too long to be shown in the si...",
	}

	for raw, want := range cases {
		if got := Clean(raw); got != want {
			t.Fatalf("Clean(%q) = %q, want %q", raw, got, want)
		}
	}
}
