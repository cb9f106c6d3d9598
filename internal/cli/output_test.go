package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hyperjump/skfed/internal/assistant"
	"github.com/hyperjump/skfed/internal/importer"
	"github.com/hyperjump/skfed/internal/models"
)

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{"json", OutputJSON, false},
		{"compact", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOutputFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseOutputFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func testAnswer() *assistant.Answer {
	return &assistant.Answer{
		Response:     "The Basketball Cup is on 5/10/2024.",
		Intent:       assistant.Intent{NeedsEventSearch: true},
		ContextBlock: "Upcoming Events:\n1. Basketball Cup\n\n",
	}
}

func TestWriteAnswer_Text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteAnswer(&buf, testAnswer(), OutputText, false); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "The Basketball Cup is on 5/10/2024.\n" {
		t.Errorf("got %q", buf.String())
	}

	buf.Reset()
	if err := WriteAnswer(&buf, testAnswer(), OutputText, true); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "--- Context ---\nUpcoming Events:") || !strings.HasSuffix(out, "--- Response ---\nThe Basketball Cup is on 5/10/2024.\n") {
		t.Errorf("got %q", out)
	}

	buf.Reset()
	_ = WriteAnswer(&buf, &assistant.Answer{Response: "ok"}, OutputText, true)
	if !strings.Contains(buf.String(), "(no data)") {
		t.Errorf("empty context should be marked, got %q", buf.String())
	}
}

func TestWriteAnswer_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteAnswer(&buf, testAnswer(), OutputJSON, false); err != nil {
		t.Fatal(err)
	}
	var plain map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &plain); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if len(plain) != 1 || plain["response"] != "The Basketball Cup is on 5/10/2024." {
		t.Errorf("plain json: %v", plain)
	}

	buf.Reset()
	if err := WriteAnswer(&buf, testAnswer(), OutputJSON, true); err != nil {
		t.Fatal(err)
	}
	var full assistant.Answer
	if err := json.Unmarshal(buf.Bytes(), &full); err != nil {
		t.Fatal(err)
	}
	if !full.Intent.NeedsEventSearch || full.ContextBlock == "" {
		t.Errorf("full json: %+v", full)
	}
}

func TestWriteImportResult(t *testing.T) {
	var buf bytes.Buffer
	WriteImportResult(&buf, "events.xlsx", &importer.Result{
		Events:  2,
		Skipped: []importer.RowError{{Sheet: "events", Row: 4, Err: "missing title"}},
	})
	out := buf.String()
	if !strings.Contains(out, "Imported events.xlsx: 2 event(s), 0 announcement(s), 0 registration(s)") {
		t.Errorf("summary: %q", out)
	}
	if !strings.Contains(out, "skipped events row 4: missing title") {
		t.Errorf("skip line: %q", out)
	}
}

func TestWriteStatus(t *testing.T) {
	docs := uint64(7)
	disk := int64(4096)
	s := &StatusReport{
		Events: 3, Announcements: 2, Registrations: 10,
		KeywordIndexDocs: &docs,
		DiskUsageBytes:   &disk,
		Config: &StatusConfig{
			StorageDriver:   "sqlite",
			CompletionModel: "gpt-4o-mini",
			SearchBackend:   "bleve",
			DatabasePath:    "/var/lib/skfed/" + strings.Repeat("nested/", 12) + "skfed.db",
		},
	}
	var buf bytes.Buffer
	if err := WriteStatus(&buf, s, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"events:             3", "keyword_index_docs: 7", "disk_usage_bytes:   4096", "completion_model:   gpt-4o-mini", "database_path:      ...", "skfed.db"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := WriteStatus(&buf, s, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded StatusReport
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Registrations != 10 || decoded.KeywordIndexDocs == nil || *decoded.KeywordIndexDocs != 7 {
		t.Errorf("decoded: %+v", decoded)
	}
}

func TestShortenPath(t *testing.T) {
	if got := shortenPath("/short/path"); got != "/short/path" {
		t.Errorf("got %q", got)
	}
	long := strings.Repeat("a", 100)
	if got := shortenPath(long); len(got) != maxPathWidth+3 || !strings.HasPrefix(got, "...") {
		t.Errorf("got %q", got)
	}
}

func TestPostChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		var req models.ChatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		if req.Message == "fail" {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limited"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(models.ChatResponse{Response: "echo: " + req.Message})
	}))
	defer srv.Close()

	got, err := PostChat(context.Background(), srv.Client(), srv.URL+"/", "hello")
	if err != nil || got != "echo: hello" {
		t.Errorf("PostChat = %q, %v", got, err)
	}

	_, err = PostChat(context.Background(), srv.Client(), srv.URL, "fail")
	var remote *RemoteError
	if !errors.As(err, &remote) || remote.StatusCode != http.StatusTooManyRequests || remote.Message != "rate limited" {
		t.Errorf("expected RemoteError 429, got %v", err)
	}
}

func TestFetchStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/status" {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("plain failure"))
			return
		}
		_, _ = w.Write([]byte(`{"events":4,"announcements":1,"registrations":9,"config":{"storage_driver":"postgres"}}`))
	}))
	defer srv.Close()

	s, err := FetchStatus(context.Background(), nil, srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if s.Events != 4 || s.Registrations != 9 || s.Config == nil || s.Config.StorageDriver != "postgres" {
		t.Errorf("status: %+v", s)
	}

	_, err = FetchStatus(context.Background(), nil, srv.URL+"/bad")
	var remote *RemoteError
	if !errors.As(err, &remote) || remote.Message != "plain failure" {
		t.Errorf("expected raw body message, got %v", err)
	}
}
