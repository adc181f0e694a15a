package assistant

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role string `json:"role"`
	} `json:"messages"`
}

type fakeChatServer struct {
	*httptest.Server

	mu   sync.Mutex
	reqs []chatRequest
	raw  [][]byte
	auth []string
}

func newFakeChatServer(t *testing.T, status int, reply string) *fakeChatServer {
	t.Helper()
	f := &fakeChatServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var req chatRequest
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.reqs = append(f.reqs, req)
		f.raw = append(f.raw, body)
		f.auth = append(f.auth, r.Header.Get("Authorization"))
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeChatServer) llm(t *testing.T) *OpenAILLM {
	t.Helper()
	llm, err := NewOpenAILLM(LLMSettings{
		Model:   "test-model",
		APIKey:  "sk-test",
		BaseURL: f.URL + "/v1",
	}, option.WithMaxRetries(0))
	require.NoError(t, err)
	return llm
}

const chatReply = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "test-model",
  "choices": [{
    "index": 0,
    "finish_reason": "stop",
    "message": {"role": "assistant", "content": "  go, testing  "}
  }]
}`

func TestOpenAILLMComplete(t *testing.T) {
	srv := newFakeChatServer(t, http.StatusOK, chatReply)

	out, err := srv.llm(t).Complete(context.Background(), Prompt{
		System: "You tag questions.",
		History: []Message{
			{Role: "user", Content: "first try"},
			{Role: "assistant", Content: "go"},
		},
		User: "What is a goroutine?",
	})
	require.NoError(t, err)
	assert.Equal(t, "go, testing", out)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	require.Len(t, srv.reqs, 1)
	assert.Equal(t, "test-model", srv.reqs[0].Model)
	var roles []string
	for _, m := range srv.reqs[0].Messages {
		roles = append(roles, m.Role)
	}
	assert.Equal(t, []string{"system", "user", "assistant", "user"}, roles)
	assert.Contains(t, string(srv.raw[0]), "What is a goroutine?")
	assert.Equal(t, "Bearer sk-test", srv.auth[0])
}

func TestOpenAILLMCompleteErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		reply  string
		errMsg string
	}{
		{"no choices", http.StatusOK, `{"id":"x","object":"chat.completion","choices":[]}`, "no choices"},
		{"blank reply", http.StatusOK,
			`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"  "}}]}`,
			"empty reply"},
		{"api error", http.StatusBadRequest, `{"error":{"message":"bad model","type":"invalid_request_error"}}`, "test-model"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newFakeChatServer(t, tt.status, tt.reply)
			_, err := srv.llm(t).Complete(context.Background(), Prompt{User: "hi"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestNewOpenAILLMValidates(t *testing.T) {
	_, err := NewOpenAILLM(LLMSettings{Model: "m"})
	assert.ErrorContains(t, err, "api key")
	_, err = NewOpenAILLM(LLMSettings{APIKey: "k"})
	assert.ErrorContains(t, err, "model is required")
}
