// Copyright (c) 2025 David Bennett
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestTimeoutForModel(t *testing.T) {
	tests := []struct {
		model string
		want  time.Duration
	}{
		{"qwen2.5:72b", 120 * time.Second},
		{"llama3.3:70b", 120 * time.Second},
		{"qwq:32b", 90 * time.Second},
		{"deepseek-r1:14b-qwen-distill", 60 * time.Second},
		{"qwen2.5:14b", 60 * time.Second},
		{"llama3.2:3b", 30 * time.Second},
		{"mistral", 30 * time.Second},
		{"nomic-embed-text", 30 * time.Second},
	}
	for _, tt := range tests {
		if got := TimeoutForModel(tt.model); got != tt.want {
			t.Errorf("TimeoutForModel(%q) = %v, want %v", tt.model, got, tt.want)
		}
	}
}

func TestIsReasoningModel(t *testing.T) {
	tests := []struct {
		model string
		extra []string
		want  bool
	}{
		{"deepseek-r1:14b", nil, true},
		{"DeepSeek-R1:32b", nil, true},
		{"qwq:32b", nil, true},
		{"o1-preview", nil, true},
		{"custom-think-tuned", nil, true},
		{"qwen2.5:14b", nil, false},
		{"llama3.2:3b", nil, false},
		{"qwen2.5:14b", []string{"qwen2.5"}, true},
		{"qwen2.5:14b", []string{""}, false},
		{"llama3.2:3b", []string{"Llama3"}, true},
	}
	for _, tt := range tests {
		if got := IsReasoningModel(tt.model, tt.extra); got != tt.want {
			t.Errorf("IsReasoningModel(%q, %v) = %v, want %v", tt.model, tt.extra, got, tt.want)
		}
	}
}

func TestGenerateStreamTokens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		flusher := w.(http.Flusher)
		chunks := []string{
			`{"model":"qwen2.5:14b","response":"文語","done":false}`,
			`{"model":"qwen2.5:14b","response":"の答え","done":false}`,
			`{"model":"qwen2.5:14b","response":"","done":true,"done_reason":"stop"}`,
		}
		for _, c := range chunks {
			fmt.Fprintln(w, c)
			flusher.Flush()
		}
	}))
	defer server.Close()

	client := NewClientWithConfig(&ClientConfig{BaseURL: server.URL})

	var text strings.Builder
	var sawDone bool
	err := client.GenerateStream(context.Background(), "qwen2.5:14b", "prompt", func(tok Token) {
		text.WriteString(tok.Text)
		if tok.Done {
			sawDone = true
		}
	})
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}
	if got := text.String(); got != "文語の答え" {
		t.Errorf("assembled text = %q", got)
	}
	if !sawDone {
		t.Error("never saw terminal chunk")
	}
}

func TestGenerateStreamSkipsMalformedLines(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"response":"a","done":false}`)
		fmt.Fprintln(w, `this is not json`)
		fmt.Fprintln(w, ``)
		fmt.Fprintln(w, `{"response":"b","done":true}`)
	}))
	defer server.Close()

	client := NewClientWithConfig(&ClientConfig{BaseURL: server.URL})

	var text strings.Builder
	err := client.GenerateStream(context.Background(), "m:3b", "p", func(tok Token) {
		text.WriteString(tok.Text)
	})
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}
	if got := text.String(); got != "ab" {
		t.Errorf("assembled text = %q, want %q", got, "ab")
	}
}

func TestGenerateStreamMalformedStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `garbage that never decodes`)
	}))
	defer server.Close()

	client := NewClientWithConfig(&ClientConfig{BaseURL: server.URL})
	err := client.GenerateStream(context.Background(), "m:3b", "p", func(Token) {})
	if !IsMalformed(err) {
		t.Errorf("err = %v, want malformed stream", err)
	}
}

func TestGenerateStreamTruncatedAfterTokens(t *testing.T) {
	// Stream ends without a done chunk but tokens were produced; the
	// partial output is usable and should not be reported as malformed.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"response":"partial","done":false}`)
	}))
	defer server.Close()

	client := NewClientWithConfig(&ClientConfig{BaseURL: server.URL})
	var text strings.Builder
	err := client.GenerateStream(context.Background(), "m:3b", "p", func(tok Token) {
		text.WriteString(tok.Text)
	})
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}
	if text.String() != "partial" {
		t.Errorf("text = %q", text.String())
	}
}

func TestGenerateStreamModelNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model 'nope' not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClientWithConfig(&ClientConfig{BaseURL: server.URL})
	err := client.GenerateStream(context.Background(), "nope", "p", func(Token) {})
	if err != ErrModelNotFound {
		t.Errorf("err = %v, want ErrModelNotFound", err)
	}
}

func TestGenerateStreamBackendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"out of memory"}`, http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClientWithConfig(&ClientConfig{BaseURL: server.URL})
	err := client.GenerateStream(context.Background(), "m:3b", "p", func(Token) {})
	if err == nil || !strings.Contains(err.Error(), "out of memory") {
		t.Errorf("err = %v, want backend error message surfaced", err)
	}
}

func TestGenerateStreamCancellation(t *testing.T) {
	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		fmt.Fprintln(w, `{"response":"first","done":false}`)
		flusher.Flush()
		close(started)
		// Stall until the client hangs up.
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	client := NewClientWithConfig(&ClientConfig{BaseURL: server.URL})
	err := client.GenerateStream(ctx, "m:3b", "p", func(Token) {})
	if err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestGenerateStreamNotRunning(t *testing.T) {
	client := NewClientWithConfig(&ClientConfig{BaseURL: "http://127.0.0.1:1"})
	err := client.GenerateStream(context.Background(), "m:3b", "p", func(Token) {})
	if !IsNotRunning(err) {
		t.Errorf("err = %v, want not-running", err)
	}
}

func TestCheckRunning(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "Ollama is running")
	}))
	defer server.Close()

	client := NewClientWithConfig(&ClientConfig{BaseURL: server.URL})
	if err := client.CheckRunning(context.Background()); err != nil {
		t.Errorf("CheckRunning: %v", err)
	}

	down := NewClientWithConfig(&ClientConfig{BaseURL: "http://127.0.0.1:1"})
	if err := down.CheckRunning(context.Background()); !IsNotRunning(err) {
		t.Errorf("err = %v, want not-running", err)
	}
}

func TestListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"models":[{"name":"qwen2.5:14b","size":8988124069},{"name":"deepseek-r1:14b","size":8988124069}]}`)
	}))
	defer server.Close()

	client := NewClientWithConfig(&ClientConfig{BaseURL: server.URL})
	models, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) != 2 || models[0].Name != "qwen2.5:14b" {
		t.Errorf("models = %+v", models)
	}
}

func TestGenerateEmbedding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"embedding":[0.1,0.2,0.3]}`)
	}))
	defer server.Close()

	client := NewClientWithConfig(&ClientConfig{BaseURL: server.URL})
	vec, err := client.GenerateEmbedding(context.Background(), "nomic-embed-text", "べし")
	if err != nil {
		t.Fatalf("GenerateEmbedding: %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.1 {
		t.Errorf("vec = %v", vec)
	}
}

func TestClientConfigDefaults(t *testing.T) {
	c := NewClientWithConfig(&ClientConfig{})
	if c.DefaultModel() == "" {
		t.Error("default model not filled in")
	}
	if c.config.BaseURL == "" || c.config.Timeout == 0 {
		t.Error("config defaults not filled in")
	}
}
