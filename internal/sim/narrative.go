package sim

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// SummaryStats condenses a finished session for the narrative recap.
type SummaryStats struct {
	Accepted     int
	Rejected     int
	SharesTraded int64
	CashMoved    string
	Duration     time.Duration
}

type SummaryRequest struct {
	Model  string
	APIKey string
}

// Summarize asks OpenAI for a short desk recap of the session. Callers
// without an API key skip it and print raw stats instead.
func Summarize(ctx context.Context, stats SummaryStats, req SummaryRequest) (string, error) {
	if req.APIKey == "" {
		return "", errors.New("missing API key")
	}
	if req.Model == "" {
		req.Model = "gpt-4o-mini"
	}
	payload := map[string]any{
		"model": req.Model,
		"messages": []map[string]string{
			{"role": "system", "content": "You are an equity trading desk analyst summarizing a simulated session."},
			{"role": "user", "content": fmt.Sprintf("Orders: %d accepted, %d rejected. Shares traded: %d. Cash moved: %s. Window: %s. Provide a concise desk recap (max 3 sentences).", stats.Accepted, stats.Rejected, stats.SharesTraded, stats.CashMoved, stats.Duration)},
		},
		"temperature": 0.2,
	}
	buf, _ := json.Marshal(payload)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.openai.com/v1/chat/completions", bytes.NewReader(buf))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("openai error: %s", resp.Status)
	}
	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", errors.New("no choices returned")
	}
	return out.Choices[0].Message.Content, nil
}
