package prompt

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const validImprovementJSON = `{
	"auto_improved": "A golden retriever sprints across a dew-covered meadow at sunrise, tracked in a low wide shot with warm color grading.",
	"variants": [
		{"concise": "owner throws frisbee", "expanded": "An owner flings a frisbee across the meadow as the retriever leaps to catch it mid-air."},
		{"concise": "dog chases butterfly", "expanded": "The retriever bounds after a monarch butterfly weaving between wildflowers."},
		{"concise": "two dogs play tug", "expanded": "Two dogs tug a rope toy in the grass, paws braced, in playful golden-hour light."},
		{"concise": "retriever rolls in wildflowers", "expanded": "The retriever flops and rolls through a patch of wildflowers, petals drifting."}
	]
}`

func chatReply(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	})
	return string(b)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewOpenAIClient("gpt-3.5-turbo",
		WithAPIKey("test-key"),
		WithBaseURL(srv.URL),
		WithMaxRetries(1),
		WithBaseBackoff(time.Millisecond),
	)
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}
	return c
}

func TestNewOpenAIClient_NoAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := NewOpenAIClient("")
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("error = %v, want ErrNotConfigured", err)
	}
}

func TestOpenAIClient_Improve(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_, _ = w.Write([]byte(chatReply(validImprovementJSON)))
	})

	imp, err := c.Improve(context.Background(), "a dog in the park")
	if err != nil {
		t.Fatalf("Improve() error = %v", err)
	}

	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotReq.Model != "gpt-3.5-turbo" {
		t.Errorf("model = %q", gotReq.Model)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" {
		t.Fatalf("messages = %+v", gotReq.Messages)
	}
	if !strings.Contains(gotReq.Messages[1].Content, "a dog in the park") {
		t.Errorf("user message = %q", gotReq.Messages[1].Content)
	}

	if imp.AutoImproved == "" {
		t.Error("AutoImproved is empty")
	}
	if len(imp.Variants) != 4 {
		t.Fatalf("len(Variants) = %d, want 4", len(imp.Variants))
	}
	if imp.Variants[0].Concise != "owner throws frisbee" {
		t.Errorf("Variants[0].Concise = %q", imp.Variants[0].Concise)
	}
}

func TestOpenAIClient_Improve_JSONWrappedInProse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(chatReply("Here you go:\n```json\n" + validImprovementJSON + "\n```\nEnjoy!")))
	})

	imp, err := c.Improve(context.Background(), "a dog in the park")
	if err != nil {
		t.Fatalf("Improve() error = %v", err)
	}
	if len(imp.Variants) != 4 {
		t.Errorf("len(Variants) = %d, want 4", len(imp.Variants))
	}
}

func TestOpenAIClient_Improve_EmptyPrompt(t *testing.T) {
	c := newTestClient(t, func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("no request expected")
	})

	_, err := c.Improve(context.Background(), "   ")
	if !errors.Is(err, ErrPromptRequired) {
		t.Errorf("error = %v, want ErrPromptRequired", err)
	}
}

func TestOpenAIClient_Improve_ServerErrorRetried(t *testing.T) {
	attempts := 0
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(chatReply(validImprovementJSON)))
	})

	if _, err := c.Improve(context.Background(), "prompt"); err != nil {
		t.Fatalf("Improve() error = %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestOpenAIClient_Improve_BadRequestNotRetried(t *testing.T) {
	attempts := 0
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := c.Improve(context.Background(), "prompt")
	if !errors.Is(err, ErrRequestFailed) {
		t.Errorf("error = %v, want ErrRequestFailed", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestOpenAIClient_Compose(t *testing.T) {
	tests := []struct {
		name        string
		input       ComposeInput
		wantInUser  []string
		wantSystem  string
	}{
		{
			name: "merge concatenates base and variant",
			input: ComposeInput{
				BaseImproved: "A retriever runs through a meadow.",
				Variant:      "owner throws frisbee",
				Mode:         ModeMerge,
			},
			wantInUser: []string{"A retriever runs through a meadow. owner throws frisbee"},
			wantSystem: mergeSystem,
		},
		{
			name: "auto refine passes both separately",
			input: ComposeInput{
				BaseImproved: "A retriever runs through a meadow.",
				Variant:      "owner throws frisbee",
				Mode:         ModeAutoRefine,
			},
			wantInUser: []string{"Base improved prompt:", "Variant detail:", "owner throws frisbee"},
			wantSystem: refineSystem,
		},
		{
			name: "empty mode defaults to auto refine",
			input: ComposeInput{
				Variant: "owner throws frisbee",
			},
			wantInUser: []string{"Variant detail:"},
			wantSystem: refineSystem,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotReq chatRequest
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewDecoder(r.Body).Decode(&gotReq)
				_, _ = w.Write([]byte(chatReply("  A polished final prompt.  ")))
			})

			out, err := c.Compose(context.Background(), tt.input)
			if err != nil {
				t.Fatalf("Compose() error = %v", err)
			}
			if out != "A polished final prompt." {
				t.Errorf("Compose() = %q", out)
			}
			if gotReq.Messages[0].Content != tt.wantSystem {
				t.Errorf("system message mismatch")
			}
			for _, want := range tt.wantInUser {
				if !strings.Contains(gotReq.Messages[1].Content, want) {
					t.Errorf("user message %q missing %q", gotReq.Messages[1].Content, want)
				}
			}
		})
	}
}

func TestOpenAIClient_Compose_Validation(t *testing.T) {
	tests := []struct {
		name    string
		input   ComposeInput
		wantErr error
	}{
		{"missing variant", ComposeInput{Mode: ModeAutoRefine}, ErrVariantRequired},
		{"invalid mode", ComposeInput{Variant: "v", Mode: "remix"}, ErrInvalidMode},
		{"merge without base", ComposeInput{Variant: "v", Mode: ModeMerge}, ErrBaseRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(_ http.ResponseWriter, _ *http.Request) {
				t.Error("no request expected")
			})

			_, err := c.Compose(context.Background(), tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseImprovement(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr error
	}{
		{"bare json", validImprovementJSON, nil},
		{"fenced json", "```json\n" + validImprovementJSON + "\n```", nil},
		{"no json at all", "I cannot help with that.", ErrUnparsableResponse},
		{"broken json", "{not valid", ErrUnparsableResponse},
		{"missing auto_improved", `{"variants": []}`, ErrUnexpectedShape},
		{"wrong variant count", `{"auto_improved": "x", "variants": [{"concise": "a", "expanded": "b"}]}`, ErrUnexpectedShape},
		{
			"variant missing expanded",
			`{"auto_improved": "x", "variants": [
				{"concise": "a", "expanded": "b"},
				{"concise": "a", "expanded": "b"},
				{"concise": "a", "expanded": "b"},
				{"concise": "a"}
			]}`,
			ErrUnexpectedShape,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			imp, err := parseImprovement(tt.text)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseImprovement() error = %v", err)
			}
			if imp.AutoImproved == "" || len(imp.Variants) != 4 {
				t.Errorf("parsed = %+v", imp)
			}
		})
	}
}
