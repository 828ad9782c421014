package extractor

import (
	"strings"
	"testing"

	"github.com/sabr2007/Neural-Inbox1/internal/models"
)

func TestSelect_ShortSingleIntentGoesFast(t *testing.T) {
	cfg := DefaultSelectorConfig()
	if got := Select(cfg, "buy milk", models.SourceText); got != TierFast {
		t.Fatalf("Select = %s, want fast", got)
	}
}

func TestSelect_LongVoiceGoesCapable(t *testing.T) {
	cfg := DefaultSelectorConfig()
	text := strings.Repeat("a", 1001)
	if got := Select(cfg, text, models.SourceVoice); got != TierCapable {
		t.Fatalf("Select = %s, want capable", got)
	}
}

func TestSelect_LongTextGoesCapable(t *testing.T) {
	cfg := DefaultSelectorConfig()
	text := strings.Repeat("a", 501)
	if got := Select(cfg, text, models.SourceText); got != TierCapable {
		t.Fatalf("Select = %s, want capable", got)
	}
}

func TestSelect_MultiIntentMarkers(t *testing.T) {
	cfg := DefaultSelectorConfig()

	// Two markers: a newline and an enumeration.
	text := "1. buy milk\n2) call mom"
	if got := Select(cfg, text, models.SourceText); got != TierCapable {
		t.Fatalf("Select = %s, want capable for multi-intent input", got)
	}

	// A single marker is not enough.
	text = "notes from today\nnothing else"
	if got := Select(cfg, text, models.SourceText); got != TierFast {
		t.Fatalf("Select = %s, want fast for single marker", got)
	}
}

func TestSelect_ComplexMarker(t *testing.T) {
	cfg := DefaultSelectorConfig()
	if got := Select(cfg, "skipped the gym because of the deadline", models.SourceText); got != TierCapable {
		t.Fatalf("Select = %s, want capable for causal connective", got)
	}
}

func TestSelect_RuleOrder(t *testing.T) {
	// Medium-length voice input is not caught by the voice rule but still
	// trips the length rule.
	cfg := DefaultSelectorConfig()
	text := strings.Repeat("a", 600)
	if got := Select(cfg, text, models.SourceVoice); got != TierCapable {
		t.Fatalf("Select = %s, want capable", got)
	}
}
