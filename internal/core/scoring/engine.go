// Package scoring derives a deterministic communication score card from a
// finished transcript. It is pure: no clock, no I/O, same input same output.
package scoring

import (
	"math"
	"regexp"
	"strings"

	"github.com/steveyiyo/voicecoach-backend/internal/core/transcript"
)

// Config holds the hand-tuned heuristic constants. They are configurable on
// purpose; nothing here derives them from first principles.
type Config struct {
	// FillerWords are matched independently as single words or multi-word
	// phrases against the tokenized user text.
	FillerWords []string
	// IdealSentenceLength is the words-per-sentence midpoint; deviation in
	// either direction is penalized symmetrically.
	IdealSentenceLength float64
	// TurnLengthCeiling is the words-per-turn level above which conciseness
	// starts to suffer. Short turns are never penalized.
	TurnLengthCeiling float64

	FillerPenaltyPerPoint  float64
	ClarityPenaltyPerWord  float64
	ConcisenessPenaltyRate float64
}

// DefaultConfig returns the production constants.
func DefaultConfig() Config {
	return Config{
		FillerWords: []string{
			"um", "uh", "er", "ah", "hmm",
			"like", "basically", "actually", "literally",
			"you know", "i mean", "kind of", "sort of",
		},
		IdealSentenceLength:    16,
		TurnLengthCeiling:      28,
		FillerPenaltyPerPoint:  4,
		ClarityPenaltyPerWord:  4,
		ConcisenessPenaltyRate: 3,
	}
}

// Card is the immutable result of scoring one session.
type Card struct {
	OverallScore     int     `json:"overall_score"`
	TotalWords       int     `json:"total_words"`
	FillerCount      int     `json:"filler_count"`
	FillerDensity    float64 `json:"filler_density"`
	AvgWordsPerTurn  float64 `json:"avg_words_per_turn"`
	ConfidenceScore  float64 `json:"confidence_score"`
	ClarityScore     float64 `json:"clarity_score"`
	ConcisenessScore float64 `json:"conciseness_score"`
	Summary          string  `json:"summary"`
}

const (
	summaryExcellent = "Excellent communication. Your delivery was confident, clear, and to the point."
	summaryStrong    = "Strong performance. A little polish on pacing and filler words will take you further."
	summaryDecent    = "Decent foundation. Work on trimming filler words and keeping answers focused."
	summaryNeedsWork = "Keep practicing. Focus on structured answers, fewer fillers, and shorter sentences."
)

var wordPattern = regexp.MustCompile(`[a-z0-9']+`)

var sentenceSplit = regexp.MustCompile(`[.!?]+`)

// Score evaluates a transcript with the production constants.
func Score(turns []transcript.Turn) Card {
	return DefaultConfig().Score(turns)
}

// Score evaluates the user's side of a transcript.
func (c Config) Score(turns []transcript.Turn) Card {
	userTurns := transcript.UserTurns(turns)
	parts := make([]string, 0, len(userTurns))
	for _, t := range userTurns {
		parts = append(parts, t.Text)
	}
	text := strings.ToLower(strings.Join(parts, " "))
	words := wordPattern.FindAllString(text, -1)
	totalWords := len(words)
	if totalWords == 0 {
		return Card{}
	}

	fillerCount := c.countFillers(words)
	fillerDensity := float64(fillerCount) / float64(totalWords) * 100

	sentences := 0
	for _, seg := range sentenceSplit.Split(text, -1) {
		if wordPattern.MatchString(seg) {
			sentences++
		}
	}
	avgSentenceLength := float64(totalWords)
	if sentences > 0 {
		avgSentenceLength = float64(totalWords) / float64(sentences)
	}
	avgWordsPerTurn := float64(totalWords) / float64(len(userTurns))

	confidence := clamp(100 - fillerDensity*c.FillerPenaltyPerPoint)
	clarity := clamp(100 - math.Abs(avgSentenceLength-c.IdealSentenceLength)*c.ClarityPenaltyPerWord)
	conciseness := clamp(100 - math.Max(avgWordsPerTurn-c.TurnLengthCeiling, 0)*c.ConcisenessPenaltyRate)

	overall := int(math.Round(0.35*confidence + 0.35*clarity + 0.30*conciseness))

	return Card{
		OverallScore:     overall,
		TotalWords:       totalWords,
		FillerCount:      fillerCount,
		FillerDensity:    fillerDensity,
		AvgWordsPerTurn:  avgWordsPerTurn,
		ConfidenceScore:  confidence,
		ClarityScore:     clarity,
		ConcisenessScore: conciseness,
		Summary:          summaryFor(overall),
	}
}

// countFillers counts filler occurrences over the token stream by sliding
// each filler phrase over the words. Single- and multi-word phrases are
// matched independently, so "kind of" counts once even though "kind" and
// "of" are separate tokens, and adjacent repeats ("um um um") each count.
func (c Config) countFillers(words []string) int {
	count := 0
	for _, filler := range c.FillerWords {
		phrase := strings.Fields(filler)
		if len(phrase) == 0 {
			continue
		}
		for i := 0; i+len(phrase) <= len(words); i++ {
			match := true
			for j, w := range phrase {
				if words[i+j] != w {
					match = false
					break
				}
			}
			if match {
				count++
			}
		}
	}
	return count
}

func summaryFor(overall int) string {
	switch {
	case overall >= 85:
		return summaryExcellent
	case overall >= 70:
		return summaryStrong
	case overall >= 55:
		return summaryDecent
	default:
		return summaryNeedsWork
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
