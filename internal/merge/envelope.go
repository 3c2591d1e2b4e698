// Package merge turns heterogeneous result files into one normalized,
// analysis-ready table joined back to the seed metadata.
package merge

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fairlens/leaseaudit/internal/config"
)

// Row is the uniform projection every envelope variant normalizes to.
type Row struct {
	CustomID     string
	Model        string
	Content      string
	InputTokens  int
	OutputTokens int
	Failed       bool
}

// openAIRecord is the chat-completion envelope written by the local
// runner (response.body.choices[].message.content).
type openAIRecord struct {
	CustomID string `json:"custom_id"`
	Response *struct {
		Body struct {
			Model   string `json:"model"`
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
			Usage struct {
				PromptTokens     int `json:"prompt_tokens"`
				CompletionTokens int `json:"completion_tokens"`
			} `json:"usage"`
		} `json:"body"`
	} `json:"response"`
	Error json.RawMessage `json:"error"`
}

// anthropicRecord is the message envelope written by the hosted
// submitter (result.message.content[] blocks, result.message.model).
type anthropicRecord struct {
	CustomID string `json:"custom_id"`
	Result   *struct {
		Type    string `json:"type"`
		Message struct {
			Model   string `json:"model"`
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
			Usage struct {
				InputTokens  int `json:"input_tokens"`
				OutputTokens int `json:"output_tokens"`
			} `json:"usage"`
		} `json:"message"`
	} `json:"result"`
}

// normalizer maps one raw result line to a Row. fallbackModel covers
// failed records that carry no model of their own.
type normalizer func(line []byte, fallbackModel string) (Row, error)

// NormalizerFor returns the parser variant for a declared format tag.
func NormalizerFor(format string) (normalizer, error) {
	switch format {
	case config.FormatOpenAI:
		return normalizeOpenAI, nil
	case config.FormatAnthropic:
		return normalizeAnthropic, nil
	default:
		return nil, fmt.Errorf("unknown envelope format %q", format)
	}
}

// ProbeFormat guesses the variant from a raw record; used only for
// files whose model is absent from the config.
func ProbeFormat(line []byte) string {
	var probe struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(line, &probe); err == nil && len(probe.Result) > 0 {
		return config.FormatAnthropic
	}
	return config.FormatOpenAI
}

func normalizeOpenAI(line []byte, fallbackModel string) (Row, error) {
	var rec openAIRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return Row{}, err
	}
	if rec.CustomID == "" {
		return Row{}, fmt.Errorf("record has no custom_id")
	}
	row := Row{CustomID: rec.CustomID, Model: fallbackModel}
	if rec.Response == nil || len(rec.Response.Body.Choices) == 0 {
		row.Failed = true
		return row, nil
	}
	body := rec.Response.Body
	if body.Model != "" {
		row.Model = body.Model
	}
	row.Content = body.Choices[0].Message.Content
	row.InputTokens = body.Usage.PromptTokens
	row.OutputTokens = body.Usage.CompletionTokens
	return row, nil
}

func normalizeAnthropic(line []byte, fallbackModel string) (Row, error) {
	var rec anthropicRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return Row{}, err
	}
	if rec.CustomID == "" {
		return Row{}, fmt.Errorf("record has no custom_id")
	}
	row := Row{CustomID: rec.CustomID, Model: fallbackModel}
	if rec.Result == nil || rec.Result.Type != "succeeded" {
		row.Failed = true
		return row, nil
	}
	msg := rec.Result.Message
	if msg.Model != "" {
		row.Model = msg.Model
	}
	var parts []string
	for _, block := range msg.Content {
		if block.Type == "" || block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	row.Content = strings.Join(parts, "\n")
	row.InputTokens = msg.Usage.InputTokens
	row.OutputTokens = msg.Usage.OutputTokens
	return row, nil
}
