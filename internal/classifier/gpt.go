package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	ierr "go-firestore-sentiment/internal/errors"
)

const sentimentInstruction = `You are a sentiment classifier for social media comments.
Each comment is enclosed within <c> </c> tags, in order.
For every comment assign exactly one label out of: positive, negative, neutral,
and a confidence score between 0 and 1.
Generate a JSON formatted response with a list of items under the 'data' key, one item per
comment in the same order, each item with 'label' and 'score' keys. Do not include any other text.
Example:
{"data": [{"label": "positive", "score": 0.93}, {"label": "neutral", "score": 0.61}]}`

type completer interface {
	Complete(ctx context.Context, instruction, prompt string) (string, error)
}

type truncator interface {
	Truncate(s string, max int) string
}

// GPT classifies a batch with one chat completion. Every comment is cut to maxTokens
// before it is put into the prompt.
type GPT struct {
	llm       completer
	tokenizer truncator
	maxTokens int
}

var _ Classifier = (*GPT)(nil)

func NewGPT(llm completer, tokenizer truncator, maxTokens int) *GPT {
	return &GPT{llm: llm, tokenizer: tokenizer, maxTokens: maxTokens}
}

func (g *GPT) Classify(ctx context.Context, texts []string) ([]Result, error) {
	if len(texts) == 0 {
		return []Result{}, nil
	}

	response, err := g.llm.Complete(ctx, sentimentInstruction, g.prompt(texts))
	if err != nil {
		return nil, ierr.NewClassificationFailure(err)
	}

	results, err := responseToResults(response, len(texts))
	if err != nil {
		return nil, ierr.NewClassificationFailure(err)
	}
	return results, nil
}

func (g *GPT) prompt(texts []string) string {
	sb := strings.Builder{}
	for _, text := range texts {
		if g.tokenizer != nil {
			text = g.tokenizer.Truncate(text, g.maxTokens)
		}
		sb.WriteString(fmt.Sprintf("<c>%s</c>\n", text))
	}
	return sb.String()
}

type gptResponse struct {
	Data []candidate `json:"data"`
}

func responseToResults(response string, n int) ([]Result, error) {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")

	data := gptResponse{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(response)), &data); err != nil {
		return nil, fmt.Errorf("decode gpt response: %w", err)
	}

	if len(data.Data) != n {
		return nil, fmt.Errorf("got %d results for %d inputs", len(data.Data), n)
	}

	results := make([]Result, 0, n)
	for _, c := range data.Data {
		results = append(results, c.result())
	}
	return results, nil
}
