package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func embedServer(t *testing.T, vectors [][]float32) (*httptest.Server, *embedRequest) {
	t.Helper()
	var lastReq embedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&lastReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		out := vectors
		if len(out) == 0 {
			out = make([][]float32, len(lastReq.Input))
			for i := range out {
				out[i] = []float32{0.1, 0.2, 0.3}
			}
		}
		json.NewEncoder(w).Encode(embedResponse{Model: lastReq.Model, Embeddings: out})
	}))
	t.Cleanup(srv.Close)
	return srv, &lastReq
}

func TestNewValidation(t *testing.T) {
	if _, err := New("http://localhost:11434", ""); err == nil {
		t.Error("empty model accepted")
	}
	e, err := New("", "nomic-embed-text")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if e.baseURL != DefaultBaseURL {
		t.Errorf("baseURL = %q, want default", e.baseURL)
	}
}

func TestEmbed(t *testing.T) {
	srv, lastReq := embedServer(t, [][]float32{{1, 2, 3}})
	e, _ := New(srv.URL, "nomic-embed-text")

	vec, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 || vec[0] != 1 {
		t.Errorf("vec = %v", vec)
	}
	if lastReq.Model != "nomic-embed-text" || len(lastReq.Input) != 1 || lastReq.Input[0] != "hello" {
		t.Errorf("request = %+v", lastReq)
	}
}

func TestEmbedBatch(t *testing.T) {
	srv, lastReq := embedServer(t, nil)
	e, _ := New(srv.URL, "all-minilm")

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("got %d vectors, want 2", len(vecs))
	}
	if len(lastReq.Input) != 2 {
		t.Errorf("request input = %v", lastReq.Input)
	}

	if out, err := e.EmbedBatch(context.Background(), nil); err != nil || out != nil {
		t.Errorf("empty batch = (%v, %v), want (nil, nil)", out, err)
	}
}

func TestEmbedBatchCountMismatch(t *testing.T) {
	srv, _ := embedServer(t, [][]float32{{1}})
	e, _ := New(srv.URL, "all-minilm")

	if _, err := e.EmbedBatch(context.Background(), []string{"a", "b"}); err == nil {
		t.Error("mismatched vector count accepted")
	}
}

func TestEmbedServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	e, _ := New(srv.URL, "nomic-embed-text")
	if _, err := e.Embed(context.Background(), "x"); err == nil {
		t.Error("non-200 response accepted")
	}
}

func TestDimensions(t *testing.T) {
	tests := []struct {
		model string
		want  int
	}{
		{"nomic-embed-text", 768},
		{"mxbai-embed-large", 1024},
		{"all-minilm:l6", 384},
	}
	for _, tt := range tests {
		e, _ := New("http://localhost:11434", tt.model)
		if got := e.Dimensions(); got != tt.want {
			t.Errorf("Dimensions(%q) = %d, want %d", tt.model, got, tt.want)
		}
	}

	t.Run("explicit override", func(t *testing.T) {
		e, _ := New("http://localhost:11434", "custom-model", WithDimensions(512))
		if got := e.Dimensions(); got != 512 {
			t.Errorf("Dimensions = %d, want 512", got)
		}
	})

	t.Run("probed", func(t *testing.T) {
		srv, _ := embedServer(t, [][]float32{{0, 0, 0, 0, 0}})
		e, _ := New(srv.URL, "custom-model")
		if got := e.Dimensions(); got != 5 {
			t.Errorf("Dimensions = %d, want probed 5", got)
		}
	})
}
