package classifier

import (
	"context"
	"strings"

	"go-firestore-sentiment/internal/model"
)

// Classifier scores a batch of texts with one provider call and returns one result per
// text, in input order. Failures are *errors.ClassificationFailure.
type Classifier interface {
	Classify(ctx context.Context, texts []string) ([]Result, error)
}

type Result struct {
	Label      model.Sentiment `json:"sentiment"`
	Confidence float64         `json:"confidence"`
}

// candidate is one label/score pair as the providers return it.
type candidate struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

func (c candidate) result() Result {
	return Result{Label: NormalizeLabel(c.Label), Confidence: clamp(c.Score)}
}

// NormalizeLabel maps a provider label onto positive, negative or neutral.
func NormalizeLabel(label string) model.Sentiment {
	l := strings.ToLower(strings.TrimSpace(label))
	switch {
	case strings.Contains(l, string(model.SentimentPositive)):
		return model.SentimentPositive
	case strings.Contains(l, string(model.SentimentNegative)):
		return model.SentimentNegative
	default:
		return model.SentimentNeutral
	}
}

// best returns the highest scoring candidate; the first one wins ties.
func best(cs []candidate) (candidate, bool) {
	if len(cs) == 0 {
		return candidate{}, false
	}
	max := cs[0]
	for _, c := range cs[1:] {
		if c.Score > max.Score {
			max = c
		}
	}
	return max, true
}

func clamp(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
