package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Runs are long: the engine streams through model and tool calls before it
// answers.
const defaultRunTimeout = 10 * time.Minute

// HTTPEngine invokes the execution engine over its REST API.
type HTTPEngine struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewHTTPEngine(baseURL, apiKey string) *HTTPEngine {
	return &HTTPEngine{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: defaultRunTimeout},
	}
}

func (e *HTTPEngine) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	// The engine consumes the steps both structured and as the textual run
	// input its prompt is built from.
	payload := struct {
		RunRequest
		Input string `json:"input"`
	}{RunRequest: req, Input: FormatSteps(req.Steps)}
	body, err := json.Marshal(payload)
	if err != nil {
		return RunResult{}, errors.Wrap(err, "marshal run request")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/runs", bytes.NewReader(body))
	if err != nil {
		return RunResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.http.Do(httpReq)
	if err != nil {
		return RunResult{}, errors.Wrap(err, "execution engine request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := strings.TrimSpace(string(raw))
		var engineErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &engineErr) == nil && engineErr.Error != "" {
			msg = engineErr.Error
		}
		return RunResult{}, fmt.Errorf("execution engine returned %d: %s", resp.StatusCode, msg)
	}

	var result RunResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return RunResult{}, errors.Wrap(err, "decode run result")
	}
	return result, nil
}
