// Package hosted submits request files to the Anthropic message-batch
// API and downloads the results, with resume across reruns.
package hosted

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const anthropicVersion = "2023-06-01"

type Client struct {
	baseURL string
	apiKey  string
	hc      *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		hc:      &http.Client{Timeout: 120 * time.Second},
	}
}

type MessageParams struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature,omitempty"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type BatchRequest struct {
	CustomID string        `json:"custom_id"`
	Params   MessageParams `json:"params"`
}

type Batch struct {
	ID               string `json:"id"`
	ProcessingStatus string `json:"processing_status"`
	ResultsURL       string `json:"results_url"`
}

// ResultRecord is one line of the batch results stream. The nested
// message envelope is kept raw and written through verbatim, which is
// what gives hosted result files their message-content-block shape.
type ResultRecord struct {
	CustomID string `json:"custom_id"`
	Result   struct {
		Type    string          `json:"type"`
		Message json.RawMessage `json:"message,omitempty"`
		Error   json.RawMessage `json:"error,omitempty"`
	} `json:"result"`
}

func (c *Client) CreateBatch(ctx context.Context, requests []BatchRequest) (*Batch, error) {
	payload, err := json.Marshal(map[string]any{"requests": requests})
	if err != nil {
		return nil, fmt.Errorf("marshaling batch: %w", err)
	}
	var batch Batch
	if err := c.do(ctx, http.MethodPost, "/v1/messages/batches", payload, &batch); err != nil {
		return nil, err
	}
	return &batch, nil
}

func (c *Client) GetBatch(ctx context.Context, id string) (*Batch, error) {
	var batch Batch
	if err := c.do(ctx, http.MethodGet, "/v1/messages/batches/"+id, nil, &batch); err != nil {
		return nil, err
	}
	return &batch, nil
}

// Results streams the result records of an ended batch through fn.
func (c *Client) Results(ctx context.Context, id string, fn func(ResultRecord) error) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/v1/messages/batches/"+id+"/results", nil)
	if err != nil {
		return err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("fetching batch results: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var rec ResultRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return fmt.Errorf("parsing result line: %w", err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading results stream: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, out any) error {
	req, err := c.newRequest(ctx, method, path, payload)
	if err != nil {
		return err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, payload []byte) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func apiError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("api status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
}
