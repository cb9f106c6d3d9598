package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/hyperjump/skfed/internal/config"
	"github.com/hyperjump/skfed/internal/models"
)

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func testConfig() *config.CompletionConfig {
	return &config.CompletionConfig{
		BaseURL:     "http://upstream/",
		Path:        "/v1/chat/completions",
		Model:       "test-model",
		Temperature: 0.7,
		MaxTokens:   1000,
		APIKey:      "sk-test",
	}
}

func respond(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
	}
}

func newTestClient(t *testing.T, fn roundTripperFunc) *Client {
	t.Helper()
	return New(testConfig(), WithHTTPClient(&http.Client{Transport: fn}))
}

func TestComplete_Success(t *testing.T) {
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		if req.URL.String() != "http://upstream/v1/chat/completions" {
			t.Errorf("unexpected url: %s", req.URL)
		}
		if got := req.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("authorization=%q", got)
		}
		var in chatCompletionRequest
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			t.Fatalf("decode req: %v", err)
		}
		if in.Model != "test-model" || in.Temperature != 0.7 || in.MaxTokens != 1000 {
			t.Errorf("request params: %+v", in)
		}
		if len(in.Messages) != 2 || in.Messages[0].Role != "system" || in.Messages[1].Role != "user" {
			t.Fatalf("messages: %+v", in.Messages)
		}
		if in.Messages[0].Content != "SYS" || in.Messages[1].Content != "hi there" {
			t.Errorf("contents: %+v", in.Messages)
		}
		return respond(http.StatusOK, `{"choices":[{"message":{"content":"  Hello\n\n\n\nWorld\n"}}]}`), nil
	})

	out, err := c.Complete(context.Background(), models.Prompt{System: "SYS", User: "hi there"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "Hello\n\nWorld" {
		t.Errorf("got %q", out)
	}
}

func TestComplete_UpstreamErrorPassthrough(t *testing.T) {
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return respond(http.StatusTooManyRequests, `{"error":{"message":"rate limited"}}`), nil
	})
	_, err := c.Complete(context.Background(), models.Prompt{User: "hi"})
	var upErr *UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("expected *UpstreamError, got %v", err)
	}
	if upErr.StatusCode != http.StatusTooManyRequests || upErr.Message != "rate limited" {
		t.Errorf("got %+v", upErr)
	}
	if !strings.Contains(upErr.Body, "rate limited") {
		t.Errorf("raw body should be kept, got %q", upErr.Body)
	}
}

func TestComplete_TransportFailure(t *testing.T) {
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})
	_, err := c.Complete(context.Background(), models.Prompt{User: "hi"})
	var upErr *UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("expected *UpstreamError, got %v", err)
	}
	if upErr.StatusCode != http.StatusInternalServerError || upErr.Message != "Failed to reach completion service" {
		t.Errorf("got %+v", upErr)
	}
}

func TestComplete_InvalidResponseFormat(t *testing.T) {
	bodies := []string{
		`{"choices":[]}`,
		`{"choices":[{}]}`,
		`{"choices":[{"message":{}}]}`,
		`{"choices":[{"message":{"content":""}}]}`,
		`{"choices":[{"message":{"content":"\n\n  \n"}}]}`,
		`not json`,
	}
	for _, body := range bodies {
		c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
			return respond(http.StatusOK, body), nil
		})
		if _, err := c.Complete(context.Background(), models.Prompt{User: "hi"}); !errors.Is(err, ErrInvalidResponseFormat) {
			t.Errorf("body %q: expected ErrInvalidResponseFormat, got %v", body, err)
		}
	}
}

func TestComplete_MissingAPIKeyMakesNoRequest(t *testing.T) {
	var calls int32
	cfg := testConfig()
	cfg.APIKey = ""
	cfg.APIKeyEnv = "SKFED_TEST_UNSET_KEY"
	t.Setenv("SKFED_TEST_UNSET_KEY", "")
	c := New(cfg, WithHTTPClient(&http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return respond(http.StatusOK, `{}`), nil
	})}))

	if err := c.CheckConfig(); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("CheckConfig: got %v", err)
	}
	if _, err := c.Complete(context.Background(), models.Prompt{User: "hi"}); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Complete: got %v", err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Errorf("expected no upstream call, got %d", calls)
	}
}

func TestComplete_SingleAttempt(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return respond(http.StatusServiceUnavailable, `overloaded`), nil
	})
	_, _ = c.Complete(context.Background(), models.Prompt{User: "hi"})
	if calls != 1 {
		t.Errorf("expected exactly one attempt, got %d", calls)
	}
}

func TestParseErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"nested", `{"error":{"message":"rate limited","type":"requests"}}`, "rate limited"},
		{"flat", `{"error":"bad key"}`, "bad key"},
		{"top-level message", `{"message":"quota exceeded"}`, "quota exceeded"},
		{"raw text", "Bad Gateway\n", "Bad Gateway"},
		{"json without message", `{"detail":"x"}`, `{"detail":"x"}`},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseErrorMessage([]byte(tt.body)); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizeOutput(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"a\n\n\nb", "a\n\nb"},
		{"a\nb", "a\nb"},
		{"\n\n  a\n\n\n\n\nb\n\nc  \n", "a\n\nb\n\nc"},
		{"", ""},
	}
	for _, tt := range tests {
		got := NormalizeOutput(tt.in)
		if got != tt.want {
			t.Errorf("NormalizeOutput(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if again := NormalizeOutput(got); again != got {
			t.Errorf("not idempotent: %q -> %q", got, again)
		}
	}
}

func TestNew_Defaults(t *testing.T) {
	cfg := testConfig()
	cfg.Path = ""
	var gotURL string
	c := New(cfg, WithHTTPClient(&http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		gotURL = req.URL.String()
		return respond(http.StatusOK, `{"choices":[{"message":{"content":"ok"}}]}`), nil
	})}))
	if c.Model() != "test-model" {
		t.Errorf("Model() = %q", c.Model())
	}
	if _, err := c.Complete(context.Background(), models.Prompt{User: "hi"}); err != nil {
		t.Fatal(err)
	}
	if gotURL != "http://upstream/v1/chat/completions" {
		t.Errorf("default path: got %s", gotURL)
	}
}
