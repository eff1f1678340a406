package twilio

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/harunnryd/tavolo/pkg/adapters/tts"
	"github.com/harunnryd/tavolo/pkg/call"
	"github.com/harunnryd/tavolo/pkg/session"
)

type stubHandler struct {
	startEffect  call.Effect
	speechEffect call.Effect
	statusEffect call.Effect

	lastStart  call.CallStart
	lastSpeech call.SpeechResult
	lastStatus call.CallStatus
}

func (s *stubHandler) HandleCallStart(evt call.CallStart) call.Effect {
	s.lastStart = evt
	return s.startEffect
}

func (s *stubHandler) HandleSpeech(evt call.SpeechResult) call.Effect {
	s.lastSpeech = evt
	return s.speechEffect
}

func (s *stubHandler) HandleStatus(evt call.CallStatus) call.Effect {
	s.lastStatus = evt
	return s.statusEffect
}

func newTestTransport(cfg Config, handler *stubHandler) *Transport {
	return New(cfg, handler, session.NewRegistry(nil))
}

func postForm(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestHandleVoiceSignatureValidation(t *testing.T) {
	cfg := Config{AuthToken: "token", PublicURL: "https://example.com"}
	handler := &stubHandler{startEffect: call.Effect{Kind: call.EffectGreeting, Text: "Hello!"}}
	tr := newTestTransport(cfg, handler)

	form := url.Values{}
	form.Set("CallSid", "CA123")
	form.Set("From", "+15551234567")

	req := postForm("https://example.com/webhook/twilio/voice", form)
	params := map[string]string{"CallSid": "CA123", "From": "+15551234567"}
	sig := computeSignature(cfg.AuthToken, tr.requestURL(req), params)
	req.Header.Set("X-Twilio-Signature", sig)

	w := httptest.NewRecorder()
	tr.handleVoice(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "<Gather") {
		t.Fatalf("expected gather in response, got %q", w.Body.String())
	}
	if handler.lastStart.CallSID != "CA123" || handler.lastStart.From != "+15551234567" {
		t.Fatalf("unexpected call start event: %+v", handler.lastStart)
	}

	reqInvalid := postForm("https://example.com/webhook/twilio/voice", form)
	reqInvalid.Header.Set("X-Twilio-Signature", "invalid")
	wInvalid := httptest.NewRecorder()
	tr.handleVoice(wInvalid, reqInvalid)
	if wInvalid.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", wInvalid.Code)
	}
}

func TestHandleSpeechParsesConfidence(t *testing.T) {
	handler := &stubHandler{speechEffect: call.Effect{Kind: call.EffectSpeakAndListen, Text: "ok"}}
	tr := newTestTransport(Config{}, handler)

	form := url.Values{}
	form.Set("CallSid", "CA123")
	form.Set("SpeechResult", "what are your hours")
	form.Set("Confidence", "0.42")

	w := httptest.NewRecorder()
	tr.handleSpeech(w, postForm("http://localhost/webhook/twilio/speech", form))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if handler.lastSpeech.Text != "what are your hours" {
		t.Fatalf("unexpected speech text %q", handler.lastSpeech.Text)
	}
	if handler.lastSpeech.Confidence != 0.42 {
		t.Fatalf("expected confidence 0.42, got %v", handler.lastSpeech.Confidence)
	}
}

func TestHandleSpeechConfidenceDefaultsWhenAbsent(t *testing.T) {
	handler := &stubHandler{speechEffect: call.Effect{Kind: call.EffectSpeakAndListen, Text: "ok"}}
	tr := newTestTransport(Config{}, handler)

	form := url.Values{}
	form.Set("CallSid", "CA123")
	form.Set("SpeechResult", "hello")

	w := httptest.NewRecorder()
	tr.handleSpeech(w, postForm("http://localhost/webhook/twilio/speech", form))
	if handler.lastSpeech.Confidence != 1.0 {
		t.Fatalf("expected default confidence 1.0, got %v", handler.lastSpeech.Confidence)
	}
}

func TestHandleStatusCallbackDropsCallState(t *testing.T) {
	handler := &stubHandler{}
	tr := newTestTransport(Config{}, handler)

	url1, err := tr.audio.Publish("CA123", tts.Audio{Data: []byte("mp3"), MIME: "audio/mpeg"})
	if err != nil {
		t.Fatalf("publish error: %v", err)
	}
	tr.traceFor("CA123")

	form := url.Values{}
	form.Set("CallSid", "CA123")
	form.Set("CallStatus", "completed")

	w := httptest.NewRecorder()
	tr.handleStatusCallback(w, postForm("http://localhost/webhook/twilio/status", form))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if handler.lastStatus.CallSID != "CA123" || handler.lastStatus.Status != "completed" {
		t.Fatalf("unexpected status event: %+v", handler.lastStatus)
	}

	tr.mu.Lock()
	_, stillTraced := tr.traceIDs["CA123"]
	tr.mu.Unlock()
	if stillTraced {
		t.Fatalf("expected trace id dropped on terminal status")
	}

	id := url1[strings.LastIndex(url1, "/")+1:]
	reqAudio := httptest.NewRequest(http.MethodGet, "/audio/"+id, nil)
	wAudio := httptest.NewRecorder()
	tr.audio.ServeHTTP(wAudio, reqAudio)
	if wAudio.Code != http.StatusNotFound {
		t.Fatalf("expected audio dropped on terminal status, got %d", wAudio.Code)
	}
}

func TestRenderEffectSpeakAndListen(t *testing.T) {
	tr := newTestTransport(Config{}, &stubHandler{})

	twiml := tr.renderEffect(call.Effect{Kind: call.EffectSpeakAndListen, Text: "We open at 10 AM."})
	for _, want := range []string{
		`<Gather input="speech" action="/webhook/twilio/speech" method="POST" timeout="40" speechTimeout="10" profanityFilter="true">`,
		`<Say voice="alice">We open at 10 AM.</Say>`,
		`</Gather>`,
	} {
		if !strings.Contains(twiml, want) {
			t.Fatalf("expected %q in twiml, got %q", want, twiml)
		}
	}
}

func TestRenderEffectPrefersAudioURL(t *testing.T) {
	tr := newTestTransport(Config{}, &stubHandler{})

	twiml := tr.renderEffect(call.Effect{
		Kind:     call.EffectGreeting,
		Text:     "Hello!",
		AudioURL: "http://localhost:8080/audio/abc",
	})
	if !strings.Contains(twiml, `<Play>http://localhost:8080/audio/abc</Play>`) {
		t.Fatalf("expected play verb, got %q", twiml)
	}
	if strings.Contains(twiml, "<Say") {
		t.Fatalf("expected no say verb when audio url present, got %q", twiml)
	}
}

func TestRenderEffectEscalateDials(t *testing.T) {
	tr := newTestTransport(Config{TwilioPhone: "+15550001111"}, &stubHandler{})

	twiml := tr.renderEffect(call.Effect{
		Kind:       call.EffectEscalate,
		Text:       "I'll connect you with our staff who can better assist you.",
		TransferTo: "+15559998888",
	})
	for _, want := range []string{
		`<Say voice="alice">I&apos;ll connect you with our staff who can better assist you.</Say>`,
		`<Say voice="alice">Transferring you to our staff now.</Say>`,
		`<Dial callerId="+15550001111"><Number>+15559998888</Number></Dial>`,
	} {
		if !strings.Contains(twiml, want) {
			t.Fatalf("expected %q in twiml, got %q", want, twiml)
		}
	}
}

func TestRenderEffectEscalateWithoutNumberHangsUp(t *testing.T) {
	tr := newTestTransport(Config{}, &stubHandler{})

	twiml := tr.renderEffect(call.Effect{Kind: call.EffectEscalate, Text: "Sorry."})
	if !strings.Contains(twiml, `<Hangup/>`) {
		t.Fatalf("expected hangup fallback, got %q", twiml)
	}
}

func TestRenderEffectHangup(t *testing.T) {
	tr := newTestTransport(Config{}, &stubHandler{})

	twiml := tr.renderEffect(call.Effect{Kind: call.EffectHangup, Text: "Goodbye."})
	if !strings.Contains(twiml, `<Say voice="alice">Goodbye.</Say><Hangup/>`) {
		t.Fatalf("expected say then hangup, got %q", twiml)
	}
}

func TestHandleSessionQuery(t *testing.T) {
	handler := &stubHandler{}
	registry := session.NewRegistry(nil)
	tr := New(Config{}, handler, registry)

	sess, _ := registry.GetOrCreate("CA777", "+15551230000")
	sess.AppendTurn(session.RoleCaller, "what are your hours")

	req := httptest.NewRequest(http.MethodGet, "/api/session/CA777", nil)
	w := httptest.NewRecorder()
	tr.handleSessionQuery(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var snap session.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if snap.CallSID != "CA777" || snap.Turns != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	reqMissing := httptest.NewRequest(http.MethodGet, "/api/session/CA000", nil)
	wMissing := httptest.NewRecorder()
	tr.handleSessionQuery(wMissing, reqMissing)
	if wMissing.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", wMissing.Code)
	}
}

func TestAudioStoreServesPublishedClip(t *testing.T) {
	store := NewAudioStore("http://localhost:8080")

	audioURL, err := store.Publish("CA123", tts.Audio{Data: []byte("mp3-bytes"), MIME: "audio/mpeg"})
	if err != nil {
		t.Fatalf("publish error: %v", err)
	}
	if !strings.HasPrefix(audioURL, "http://localhost:8080/audio/") {
		t.Fatalf("unexpected audio url %q", audioURL)
	}

	id := audioURL[strings.LastIndex(audioURL, "/")+1:]
	req := httptest.NewRequest(http.MethodGet, "/audio/"+id, nil)
	w := httptest.NewRecorder()
	store.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("Content-Type") != "audio/mpeg" {
		t.Fatalf("expected audio/mpeg, got %q", w.Header().Get("Content-Type"))
	}
	if w.Body.String() != "mp3-bytes" {
		t.Fatalf("unexpected body %q", w.Body.String())
	}
}

func computeSignature(authToken, url string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	base := url
	for _, k := range keys {
		base += k + params[k]
	}
	mac := hmac.New(sha1.New, []byte(authToken))
	_, _ = mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
