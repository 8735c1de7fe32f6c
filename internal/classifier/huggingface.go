package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go-firestore-sentiment/internal/config"
	ierr "go-firestore-sentiment/internal/errors"
)

// defaultTimeout bounds one batch call when the config leaves it unset.
const defaultTimeout = 60 * time.Second

// HuggingFace calls the hosted text-classification inference endpoint.
type HuggingFace struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ Classifier = (*HuggingFace)(nil)

func NewHuggingFace(cnf config.HuggingFace) *HuggingFace {
	timeout := cnf.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &HuggingFace{
		endpoint: strings.TrimSuffix(cnf.ApiUrl, "/") + "/" + cnf.Model,
		apiKey:   cnf.ApiKey,
		http:     &http.Client{Timeout: timeout},
	}
}

func (h *HuggingFace) Classify(ctx context.Context, texts []string) ([]Result, error) {
	if len(texts) == 0 {
		return []Result{}, nil
	}

	body, err := h.post(ctx, texts)
	if err != nil {
		return nil, ierr.NewClassificationFailure(err)
	}

	results, err := decodeResults(body, len(texts))
	if err != nil {
		return nil, ierr.NewClassificationFailure(err)
	}
	return results, nil
}

func (h *HuggingFace) post(ctx context.Context, texts []string) ([]byte, error) {
	payload, err := json.Marshal(map[string]any{
		"inputs":  texts,
		"options": map[string]bool{"wait_for_model": true},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("huggingface returned %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

// decodeResults accepts both response shapes: one {label, score} object per input, or
// one array of candidates per input, in which case the highest score is taken.
func decodeResults(body []byte, n int) ([]Result, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	// a single input may come back unwrapped as a bare candidate list
	if n == 1 && len(entries) > 1 && !isArray(entries[0]) {
		entries = []json.RawMessage{body}
	}

	if len(entries) != n {
		return nil, fmt.Errorf("got %d results for %d inputs", len(entries), n)
	}

	results := make([]Result, 0, n)
	for i, entry := range entries {
		if isArray(entry) {
			var cs []candidate
			if err := json.Unmarshal(entry, &cs); err != nil {
				return nil, fmt.Errorf("decode result %d: %w", i, err)
			}
			c, ok := best(cs)
			if !ok {
				return nil, fmt.Errorf("result %d has no candidates", i)
			}
			results = append(results, c.result())
			continue
		}

		var c candidate
		if err := json.Unmarshal(entry, &c); err != nil {
			return nil, fmt.Errorf("decode result %d: %w", i, err)
		}
		if c.Label == "" {
			return nil, fmt.Errorf("result %d has no label", i)
		}
		results = append(results, c.result())
	}

	return results, nil
}

func isArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}
