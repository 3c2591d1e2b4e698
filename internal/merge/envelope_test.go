package merge_test

import (
	"testing"

	"github.com/fairlens/leaseaudit/internal/merge"
)

const openAILine = `{"custom_id":"task-3","response":{"body":{"model":"org/model","choices":[{"message":{"content":"$3,000"}}],"usage":{"prompt_tokens":50,"completion_tokens":10}}}}`

const anthropicLine = `{"custom_id":"task-4","result":{"type":"succeeded","message":{"model":"claude-3-5-sonnet-20241022","content":[{"type":"text","text":"I would offer"},{"type":"text","text":"$3,500"}],"usage":{"input_tokens":60,"output_tokens":12}}}}`

func TestNormalizeOpenAI(t *testing.T) {
	n, err := merge.NormalizerFor("openai")
	if err != nil {
		t.Fatal(err)
	}
	row, err := n([]byte(openAILine), "fallback")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if row.CustomID != "task-3" || row.Model != "org/model" {
		t.Errorf("identity: %+v", row)
	}
	if row.Content != "$3,000" {
		t.Errorf("content: %q", row.Content)
	}
	if row.InputTokens != 50 || row.OutputTokens != 10 {
		t.Errorf("usage: %+v", row)
	}
	if row.Failed {
		t.Error("success marked failed")
	}
}

func TestNormalizeOpenAIError(t *testing.T) {
	n, _ := merge.NormalizerFor("openai")
	row, err := n([]byte(`{"custom_id":"task-5","error":{"message":"overloaded"}}`), "org/model")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !row.Failed {
		t.Error("errored record not marked failed")
	}
	if row.Model != "org/model" {
		t.Errorf("fallback model not applied: %q", row.Model)
	}
	if row.Content != "" {
		t.Errorf("failed record carries content: %q", row.Content)
	}
}

func TestNormalizeAnthropic(t *testing.T) {
	n, err := merge.NormalizerFor("anthropic")
	if err != nil {
		t.Fatal(err)
	}
	row, err := n([]byte(anthropicLine), "")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if row.CustomID != "task-4" || row.Model != "claude-3-5-sonnet-20241022" {
		t.Errorf("identity: %+v", row)
	}
	if row.Content != "I would offer\n$3,500" {
		t.Errorf("content blocks not joined: %q", row.Content)
	}
	if row.InputTokens != 60 || row.OutputTokens != 12 {
		t.Errorf("usage: %+v", row)
	}
}

func TestNormalizeAnthropicErrored(t *testing.T) {
	n, _ := merge.NormalizerFor("anthropic")
	row, err := n([]byte(`{"custom_id":"task-6","result":{"type":"errored"}}`), "claude")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !row.Failed {
		t.Error("errored record not marked failed")
	}
}

func TestNormalizeMissingCustomID(t *testing.T) {
	for _, format := range []string{"openai", "anthropic"} {
		n, _ := merge.NormalizerFor(format)
		if _, err := n([]byte(`{}`), ""); err == nil {
			t.Errorf("%s: expected error for record without custom_id", format)
		}
	}
}

func TestNormalizerForUnknown(t *testing.T) {
	if _, err := merge.NormalizerFor("xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestProbeFormat(t *testing.T) {
	if got := merge.ProbeFormat([]byte(anthropicLine)); got != "anthropic" {
		t.Errorf("anthropic line probed as %q", got)
	}
	if got := merge.ProbeFormat([]byte(openAILine)); got != "openai" {
		t.Errorf("openai line probed as %q", got)
	}
}
