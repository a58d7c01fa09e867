package engine

import "testing"

func TestExtractVoiceOutputSegments(t *testing.T) {
	input := "Hello [VOICE OUTPUT]Hi![/VOICE OUTPUT] [VOICE OUTPUT]Bye.[/VOICE OUTPUT]"
	if got := extractVoiceOutput(input); got != "Hi! Bye." {
		t.Fatalf("got %q, want %q", got, "Hi! Bye.")
	}
}

func TestExtractVoiceOutputNoTags(t *testing.T) {
	if got := extractVoiceOutput("Just text."); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
}

func TestExtractVoiceOutputIgnoresEmptySegments(t *testing.T) {
	input := "[VOICE OUTPUT]  [/VOICE OUTPUT] [VOICE OUTPUT]Hello[/VOICE OUTPUT]"
	if got := extractVoiceOutput(input); got != "Hello" {
		t.Fatalf("got %q, want %q", got, "Hello")
	}
}
