package extractor

import (
	"strings"

	"github.com/sabr2007/Neural-Inbox1/internal/models"
)

// Tier is the capability level chosen for a language-understanding call.
type Tier string

const (
	TierFast    Tier = "fast"
	TierCapable Tier = "capable"
)

// SelectorConfig is an immutable table of thresholds and marker lists that
// drives tier selection. Defaults mirror the heuristics tuned for short
// conversational capture in Russian and English.
type SelectorConfig struct {
	LongTextThreshold  int
	VoiceLongThreshold int
	MultiIntentMin     int
	MultiIntentMarkers []string
	ComplexMarkers     []string
}

func DefaultSelectorConfig() SelectorConfig {
	return SelectorConfig{
		LongTextThreshold:  500,
		VoiceLongThreshold: 1000,
		MultiIntentMin:     2,
		MultiIntentMarkers: []string{
			" и ", " а также ", " плюс ", " ещё ", " and ", " also ", "\n",
			"во-первых", "во-вторых", "first,", "second,",
			"1.", "2.", "1)", "2)",
		},
		ComplexMarkers: []string{
			"с одной стороны", "с другой стороны",
			"если", "потому что", "следовательно",
			"on the one hand", "because", "therefore",
		},
	}
}

// Select chooses the capability tier for the given input. Rules are checked
// in order, first match wins; the function is deterministic and does no I/O.
func Select(cfg SelectorConfig, text string, source models.Source) Tier {
	if source == models.SourceVoice && len([]rune(text)) > cfg.VoiceLongThreshold {
		return TierCapable
	}

	if len([]rune(text)) > cfg.LongTextThreshold {
		return TierCapable
	}

	lower := strings.ToLower(text)
	multiIntent := 0
	for _, marker := range cfg.MultiIntentMarkers {
		if strings.Contains(lower, marker) {
			multiIntent++
		}
	}
	if multiIntent >= cfg.MultiIntentMin {
		return TierCapable
	}

	for _, marker := range cfg.ComplexMarkers {
		if strings.Contains(lower, marker) {
			return TierCapable
		}
	}

	return TierFast
}
