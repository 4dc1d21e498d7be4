// Package quizapi is the HTTP client for the quiz question and result
// endpoints.
package quizapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sparkd-app/dategame/internal/game"
)

type Client struct {
	BaseURL string
	Token   string
	http    *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		http:    &http.Client{Timeout: 20 * time.Second},
	}
}

type questionsResponse struct {
	Status    bool            `json:"status"`
	Questions []game.Question `json:"questions"`
}

// Questions fetches the ordered question sequence for a stage.
func (c *Client) Questions(ctx context.Context, stage int) ([]game.Question, error) {
	url := fmt.Sprintf("%s/user/quiz-games?stage=%d", c.BaseURL, stage)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching stage %d questions: %w", stage, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching stage %d questions: unexpected status %d", stage, resp.StatusCode)
	}
	var out questionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding questions: %w", err)
	}
	if !out.Status {
		return nil, fmt.Errorf("fetching stage %d questions: server reported failure", stage)
	}
	return out.Questions, nil
}

// SubmitResult posts the finished stage's answer sequence.
func (c *Client) SubmitResult(ctx context.Context, sub game.ResultSubmission) error {
	body, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/user/quiz-result", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("submitting result: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("submitting result: unexpected status %d", resp.StatusCode)
	}
	return nil
}

type resultRow struct {
	User struct {
		ID   string `json:"_id"`
		Name string `json:"name"`
	} `json:"user"`
	Answers []string `json:"answers"`
	Score   int      `json:"score"`
}

type resultResponse struct {
	Status        bool        `json:"status"`
	Results       []resultRow `json:"results"`
	Compatibility int         `json:"compatibility"`
	Shared        int         `json:"shared"`
}

// Result fetches the authoritative session result. While only one player
// has submitted it returns game.ErrResultPending so callers can keep
// polling.
func (c *Client) Result(ctx context.Context, sessionID string) (game.ResultReport, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/user/quiz-result/"+sessionID, nil)
	if err != nil {
		return game.ResultReport{}, err
	}
	c.authorize(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return game.ResultReport{}, fmt.Errorf("fetching result: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return game.ResultReport{}, game.ErrResultPending
	}
	if resp.StatusCode != http.StatusOK {
		return game.ResultReport{}, fmt.Errorf("fetching result: unexpected status %d", resp.StatusCode)
	}
	var out resultResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return game.ResultReport{}, fmt.Errorf("decoding result: %w", err)
	}
	if !out.Status || len(out.Results) < 2 {
		return game.ResultReport{}, game.ErrResultPending
	}
	report := game.ResultReport{
		Compatibility: out.Compatibility,
		Shared:        out.Shared,
	}
	for _, row := range out.Results {
		report.Results = append(report.Results, game.SessionResult{
			UserID:   row.User.ID,
			UserName: row.User.Name,
			Answers:  row.Answers,
			Score:    row.Score,
		})
	}
	return report, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
}
