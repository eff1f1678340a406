package twilio

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/harunnryd/tavolo/pkg/adapters/tts"
)

const audioTTL = 10 * time.Minute

type audioEntry struct {
	data    []byte
	mime    string
	callSID string
	created time.Time
}

// AudioStore keeps synthesized speech in memory and serves it under
// /audio/{id} for Twilio to fetch via TwiML Play.
type AudioStore struct {
	baseURL string

	mu      sync.Mutex
	entries map[string]audioEntry
}

func NewAudioStore(baseURL string) *AudioStore {
	return &AudioStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		entries: make(map[string]audioEntry),
	}
}

// Publish stores an audio clip and returns its public URL.
func (s *AudioStore) Publish(callSID string, audio tts.Audio) (string, error) {
	id := uuid.NewString()
	now := time.Now()
	s.mu.Lock()
	s.entries[id] = audioEntry{
		data:    audio.Data,
		mime:    audio.MIME,
		callSID: callSID,
		created: now,
	}
	for k, e := range s.entries {
		if now.Sub(e.created) > audioTTL {
			delete(s.entries, k)
		}
	}
	s.mu.Unlock()
	return s.baseURL + "/audio/" + id, nil
}

// DropCall removes all clips belonging to a finished call.
func (s *AudioStore) DropCall(callSID string) {
	s.mu.Lock()
	for k, e := range s.entries {
		if e.callSID == callSID {
			delete(s.entries, k)
		}
	}
	s.mu.Unlock()
}

func (s *AudioStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/audio/")
	if id == "" || strings.Contains(id, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	s.mu.Lock()
	entry, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	mime := entry.mime
	if mime == "" {
		mime = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mime)
	_, _ = w.Write(entry.data)
}
