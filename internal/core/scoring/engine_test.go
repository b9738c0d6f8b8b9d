package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyiyo/voicecoach-backend/internal/core/transcript"
)

func userTurn(text string) transcript.Turn {
	return transcript.Turn{Speaker: transcript.SpeakerUser, Text: text}
}

func agentTurn(text string) transcript.Turn {
	return transcript.Turn{Speaker: transcript.SpeakerAgent, Text: text}
}

func TestCleanAnswerScoresFullConfidence(t *testing.T) {
	card := Score([]transcript.Turn{
		userTurn("I led a team of five to launch a pricing redesign in six weeks and increased conversion by 14%."),
	})

	assert.Zero(t, card.FillerCount)
	assert.Zero(t, card.FillerDensity)
	assert.Equal(t, 100.0, card.ConfidenceScore)
}

func TestFillerHeavyAnswerLosesConfidence(t *testing.T) {
	card := Score([]transcript.Turn{
		userTurn("Um, I kind of, like, basically delivered things and, you know, it was actually good."),
	})

	assert.Greater(t, card.FillerCount, 3)
	assert.Less(t, card.ConfidenceScore, 100.0)
}

func TestAdjacentRepeatedFillersEachCount(t *testing.T) {
	card := Score([]transcript.Turn{
		userTurn("um um um we shipped it."),
	})

	assert.Equal(t, 3, card.FillerCount)
	assert.InDelta(t, 50.0, card.FillerDensity, 0.01)
}

func TestAdjacentMultiWordFillersEachCount(t *testing.T) {
	card := Score([]transcript.Turn{
		userTurn("you know you know the launch went fine."),
	})

	assert.Equal(t, 2, card.FillerCount)
}

func TestScoreIsDeterministic(t *testing.T) {
	turns := []transcript.Turn{
		agentTurn("Tell me about a project you are proud of."),
		userTurn("I migrated our billing system. It took three months. We cut costs by a third."),
	}
	first := Score(turns)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Score(turns))
	}
}

func TestConfidenceMonotonicInFillerDensity(t *testing.T) {
	base := "we shipped the project on time and the customers were happy with the result"
	prev := 101.0
	text := base
	for i := 0; i < 8; i++ {
		card := Score([]transcript.Turn{userTurn(text + ".")})
		assert.LessOrEqual(t, card.ConfidenceScore, prev)
		assert.GreaterOrEqual(t, card.ConfidenceScore, 0.0)
		assert.LessOrEqual(t, card.ConfidenceScore, 100.0)
		prev = card.ConfidenceScore
		text += " um"
	}
}

func TestConcisenessNeverPenalizesShortTurns(t *testing.T) {
	card := Score([]transcript.Turn{
		userTurn("Yes."),
		userTurn("We shipped it early."),
	})
	assert.Equal(t, 100.0, card.ConcisenessScore)
}

func TestConcisenessPenalizesRamblingTurns(t *testing.T) {
	long := ""
	for i := 0; i < 60; i++ {
		long += "word "
	}
	card := Score([]transcript.Turn{userTurn(long + ".")})
	assert.Less(t, card.ConcisenessScore, 100.0)
}

func TestOverallIsWeightedRounding(t *testing.T) {
	card := Score([]transcript.Turn{
		userTurn("I built the data pipeline. It processes a million events per hour. Reliability went way up."),
	})
	expected := int(round(0.35*card.ConfidenceScore + 0.35*card.ClarityScore + 0.30*card.ConcisenessScore))
	assert.Equal(t, expected, card.OverallScore)
	assert.NotEmpty(t, card.Summary)
}

func round(v float64) float64 {
	if v < 0 {
		return float64(int(v - 0.5))
	}
	return float64(int(v + 0.5))
}

func TestAgentTurnsAreIgnored(t *testing.T) {
	card := Score([]transcript.Turn{
		agentTurn("Um, like, basically, you know."),
		userTurn("The launch went well."),
	})
	assert.Zero(t, card.FillerCount)
}

func TestEmptyTranscriptYieldsZeroCard(t *testing.T) {
	card := Score(nil)
	require.Equal(t, Card{}, card)

	card = Score([]transcript.Turn{agentTurn("Hello there.")})
	assert.Equal(t, Card{}, card)
}

func TestSummaryTiers(t *testing.T) {
	assert.Equal(t, summaryExcellent, summaryFor(85))
	assert.Equal(t, summaryStrong, summaryFor(70))
	assert.Equal(t, summaryDecent, summaryFor(55))
	assert.Equal(t, summaryNeedsWork, summaryFor(54))
}
