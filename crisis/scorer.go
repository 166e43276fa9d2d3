// Package crisis scores free-text chat messages for crisis risk using tiered
// keyword matching. Scoring is pure and deterministic so callers may invoke it
// from any goroutine without coordination.
package crisis

import (
	"regexp"
	"strings"
)

// Severity is the coarse risk band derived from a numeric score.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// Score bounds and band cut-offs. Scores accumulate per matched pattern and
// are capped at MaxScore, so a flood of matches cannot run the scale off the
// top.
const (
	MaxScore = 10.0

	severeBandMin   = 8.0
	moderateBandMin = 5.0
	lowBandMin      = 2.0

	// DefaultCrisisThreshold is the score at or above which a message is
	// flagged as a crisis. Overridable via config.
	DefaultCrisisThreshold = 3.0
)

// Result is the outcome of scoring a single message.
type Result struct {
	Score             float64  `json:"score"`
	Severity          Severity `json:"severity"`
	Matched           []string `json:"matched"`
	IsCrisis          bool     `json:"isCrisis"`
	RequiresImmediate bool     `json:"requiresImmediate"`
}

type tierPattern struct {
	re     *regexp.Regexp
	weight float64
}

// Scorer matches message text against three keyword tiers. Construct once and
// share; all state is read-only after New.
type Scorer struct {
	threshold float64
	severe    []tierPattern
	moderate  []tierPattern
	low       []tierPattern
}

// New compiles the default keyword tiers. threshold <= 0 falls back to
// DefaultCrisisThreshold.
func New(threshold float64) *Scorer {
	if threshold <= 0 {
		threshold = DefaultCrisisThreshold
	}
	return &Scorer{
		threshold: threshold,
		severe:    compileTier(severeKeywords),
		moderate:  compileTier(moderateKeywords),
		low:       compileTier(lowKeywords),
	}
}

func compileTier(entries []keywordEntry) []tierPattern {
	tier := make([]tierPattern, 0, len(entries))
	for _, e := range entries {
		tier = append(tier, tierPattern{
			re:     regexp.MustCompile(`(?i)` + e.pattern),
			weight: e.weight,
		})
	}
	return tier
}

// Score evaluates text and returns its risk score, severity band, and the
// deduplicated matched terms. Empty or whitespace-only input scores zero.
// Lower tiers are skipped entirely once a higher tier has already confirmed
// that band, so low-grade matches never inflate an already-severe score.
func (s *Scorer) Score(text string) Result {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return Result{Severity: SeverityNone}
	}

	var score float64
	seen := make(map[string]struct{})
	var matched []string

	collect := func(tier []tierPattern) {
		for _, p := range tier {
			hits := p.re.FindAllString(text, -1)
			if len(hits) == 0 {
				continue
			}
			score += p.weight
			for _, h := range hits {
				if _, ok := seen[h]; ok {
					continue
				}
				seen[h] = struct{}{}
				matched = append(matched, h)
			}
		}
	}

	collect(s.severe)
	if score < severeBandMin {
		collect(s.moderate)
	}
	if score < moderateBandMin {
		collect(s.low)
	}
	if score > MaxScore {
		score = MaxScore
	}

	return Result{
		Score:             score,
		Severity:          band(score),
		Matched:           matched,
		IsCrisis:          score >= s.threshold,
		RequiresImmediate: score >= severeBandMin,
	}
}

// Threshold reports the configured crisis cut-off.
func (s *Scorer) Threshold() float64 { return s.threshold }

func band(score float64) Severity {
	switch {
	case score >= severeBandMin:
		return SeveritySevere
	case score >= moderateBandMin:
		return SeverityModerate
	case score >= lowBandMin:
		return SeverityLow
	default:
		return SeverityNone
	}
}
