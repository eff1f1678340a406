package elevenlabs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/harunnryd/tavolo/pkg/resilience"
)

func TestSynthesizeSuccess(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("xi-api-key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("mp3bytes"))
	}))
	defer srv.Close()

	s := New(Config{APIKey: "k", VoiceID: "v1", BaseURL: srv.URL})
	audio, err := s.Synthesize(context.Background(), "hello caller")
	if err != nil {
		t.Fatalf("synthesize failed: %v", err)
	}
	if string(audio.Data) != "mp3bytes" || audio.MIME != "audio/mpeg" {
		t.Fatalf("unexpected audio: %+v", audio)
	}
	if gotPath != "/v1/text-to-speech/v1/stream" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotKey != "k" {
		t.Fatalf("missing api key header")
	}
	if gotBody["text"] != "hello caller" {
		t.Fatalf("unexpected body %+v", gotBody)
	}
	settings, ok := gotBody["voice_settings"].(map[string]any)
	if !ok || settings["stability"] != 0.5 {
		t.Fatalf("voice settings not sent: %+v", gotBody)
	}
}

func TestSynthesizeRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := New(Config{APIKey: "k", VoiceID: "v1", BaseURL: srv.URL})
	_, err := s.Synthesize(context.Background(), "hello")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !resilience.IsRateLimit(err) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
}

func TestSynthesizeRejectsEmptyText(t *testing.T) {
	s := New(Config{APIKey: "k", VoiceID: "v1"})
	if _, err := s.Synthesize(context.Background(), "   "); err == nil {
		t.Fatalf("expected error for empty text")
	}
}

func TestSynthesizeMissingConfig(t *testing.T) {
	s := New(Config{})
	if _, err := s.Synthesize(context.Background(), "hi"); err == nil {
		t.Fatalf("expected error for missing config")
	}
}
