package twilio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/harunnryd/tavolo/pkg/call"
	"github.com/harunnryd/tavolo/pkg/errorsx"
	"github.com/harunnryd/tavolo/pkg/session"
	"github.com/harunnryd/tavolo/pkg/transports"
	twilioclient "github.com/twilio/twilio-go/client"
)

type Config struct {
	ServerAddr      string   `mapstructure:"server_addr"`
	PublicURL       string   `mapstructure:"public_url"`
	AccountSID      string   `mapstructure:"account_sid"`
	AuthToken       string   `mapstructure:"auth_token"`
	TwilioPhone     string   `mapstructure:"twilio_phone"`
	VoicePath       string   `mapstructure:"voice_path"`
	SpeechPath      string   `mapstructure:"speech_path"`
	StatusPath      string   `mapstructure:"status_path"`
	SayVoice        string   `mapstructure:"say_voice"`
	GatherTimeoutS  int      `mapstructure:"gather_timeout_s"`
	SpeechTimeoutS  int      `mapstructure:"speech_timeout_s"`
	ProfanityFilter *bool    `mapstructure:"profanity_filter"`
	AllowAnyOrigin  bool     `mapstructure:"allow_any_origin"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
}

func (c Config) withDefaults() Config {
	if c.ServerAddr == "" {
		c.ServerAddr = ":8080"
	}
	if c.VoicePath == "" {
		c.VoicePath = "/webhook/twilio/voice"
	}
	if c.SpeechPath == "" {
		c.SpeechPath = "/webhook/twilio/speech"
	}
	if c.StatusPath == "" {
		c.StatusPath = "/webhook/twilio/status"
	}
	if c.SayVoice == "" {
		c.SayVoice = "alice"
	}
	if c.GatherTimeoutS <= 0 {
		c.GatherTimeoutS = 40
	}
	if c.SpeechTimeoutS <= 0 {
		c.SpeechTimeoutS = 10
	}
	if !c.AllowAnyOrigin && len(c.AllowedOrigins) == 0 {
		c.AllowAnyOrigin = true
	}
	return c
}

func (c Config) profanityFilter() bool {
	if c.ProfanityFilter == nil {
		return true
	}
	return *c.ProfanityFilter
}

// Transport serves the Twilio voice webhooks and renders orchestrator
// effects as TwiML. It also hosts the monitoring surfaces: session query
// API, config status, dashboard, and synthesized audio.
type Transport struct {
	cfg       Config
	server    *http.Server
	handler   transports.EventHandler
	registry  *session.Registry
	audio     *AudioStore
	dashboard *Dashboard
	control   *CallControl
	logger    *slog.Logger

	// ConfigStatus reports provider wiring for the /config-status endpoint.
	ConfigStatus func() map[string]any

	mu       sync.Mutex
	traceIDs map[string]string

	draining atomic.Bool
}

func New(cfg Config, handler transports.EventHandler, registry *session.Registry) *Transport {
	cfg = cfg.withDefaults()
	t := &Transport{
		cfg:      cfg,
		handler:  handler,
		registry: registry,
		logger:   slog.Default().With(slog.String("component", "twilio_transport")),
		traceIDs: make(map[string]string),
	}
	t.audio = NewAudioStore(t.baseURL())
	t.dashboard = NewDashboard(t.checkOrigin)
	t.control = NewCallControl(cfg)
	return t
}

func (t *Transport) Name() string { return "twilio" }

// SetHandler installs the event handler. The orchestrator needs the
// transport's audio store at construction time, so wiring happens in two
// steps. Must be called before Start.
func (t *Transport) SetHandler(h transports.EventHandler) { t.handler = h }

// AudioPublisher returns the store the orchestrator publishes synthesized
// audio through.
func (t *Transport) AudioPublisher() *AudioStore { return t.audio }

// DashboardObserver returns the metrics observer feeding the live dashboard.
func (t *Transport) DashboardObserver() *Dashboard { return t.dashboard }

func (t *Transport) ReadyFields() map[string]any {
	return map[string]any{
		"voice_webhook_url":  t.baseURL() + t.cfg.VoicePath,
		"speech_webhook_url": t.baseURL() + t.cfg.SpeechPath,
		"status_webhook_url": t.baseURL() + t.cfg.StatusPath,
	}
}

func (t *Transport) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	mux := http.NewServeMux()
	mux.HandleFunc(t.cfg.VoicePath, t.handleVoice)
	mux.HandleFunc(t.cfg.SpeechPath, t.handleSpeech)
	mux.HandleFunc(t.cfg.StatusPath, t.handleStatusCallback)
	mux.HandleFunc("/api/session/", t.handleSessionQuery)
	mux.HandleFunc("/api/call/", t.handleCallControl)
	mux.HandleFunc("/config-status", t.handleConfigStatus)
	mux.Handle("/audio/", t.audio)
	mux.HandleFunc("/dashboard/ws", t.dashboard.ServeWS)
	mux.HandleFunc("/", t.handleDashboardPage)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	t.server = &http.Server{
		Addr:              t.cfg.ServerAddr,
		ReadHeaderTimeout: 5 * time.Second,
		Handler:           mux,
	}
	go func() {
		<-ctx.Done()
		_ = t.server.Close()
	}()
	go func() {
		if err := t.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.logger.Error("twilio_transport_server_error", "error", err.Error())
		}
	}()
	return nil
}

func (t *Transport) Stop() error {
	t.draining.Store(true)
	if t.server != nil {
		_ = t.server.Close()
	}
	t.dashboard.Close()
	return nil
}

func (t *Transport) handleVoice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if t.cfg.AuthToken != "" && !t.validateTwilioRequest(r) {
		t.logger.Warn("twilio_invalid_signature", "reason_code", string(errorsx.ReasonTransportInvalidSignature), "path", r.URL.Path)
		w.WriteHeader(http.StatusForbidden)
		return
	}
	if err := r.ParseForm(); err != nil {
		t.writeTwiML(w, t.renderEffect(call.Effect{Kind: call.EffectHangup}))
		return
	}
	callSID := r.FormValue("CallSid")
	traceID := t.traceFor(callSID)
	t.logger.Info("voice_webhook",
		"call_sid", callSID,
		"trace_id", traceID,
	)
	eff := t.handler.HandleCallStart(call.CallStart{
		CallSID: callSID,
		From:    r.FormValue("From"),
		To:      r.FormValue("To"),
	})
	t.writeTwiML(w, t.renderEffect(eff))
}

func (t *Transport) handleSpeech(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if t.cfg.AuthToken != "" && !t.validateTwilioRequest(r) {
		t.logger.Warn("twilio_invalid_signature", "reason_code", string(errorsx.ReasonTransportInvalidSignature), "path", r.URL.Path)
		w.WriteHeader(http.StatusForbidden)
		return
	}
	if err := r.ParseForm(); err != nil {
		t.writeTwiML(w, t.renderEffect(call.Effect{Kind: call.EffectHangup}))
		return
	}
	// Twilio omits Confidence for DTMF-less gathers; treat absent as certain.
	confidence := 1.0
	if v := r.FormValue("Confidence"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			confidence = f
		}
	}
	eff := t.handler.HandleSpeech(call.SpeechResult{
		CallSID:      r.FormValue("CallSid"),
		Text:         r.FormValue("SpeechResult"),
		Confidence:   confidence,
		RecordingURL: r.FormValue("RecordingUrl"),
	})
	t.writeTwiML(w, t.renderEffect(eff))
}

func (t *Transport) handleStatusCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if t.cfg.AuthToken != "" && !t.validateTwilioRequest(r) {
		t.logger.Warn("twilio_invalid_signature", "reason_code", string(errorsx.ReasonTransportInvalidSignature), "path", r.URL.Path)
		w.WriteHeader(http.StatusForbidden)
		return
	}
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	callSID := r.FormValue("CallSid")
	status := r.FormValue("CallStatus")
	_ = t.handler.HandleStatus(call.CallStatus{CallSID: callSID, Status: status})
	if call.IsTerminalStatus(status) {
		t.mu.Lock()
		delete(t.traceIDs, callSID)
		t.mu.Unlock()
		t.audio.DropCall(callSID)
	}
	w.WriteHeader(http.StatusOK)
}

func (t *Transport) handleSessionQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	callSID := strings.TrimPrefix(r.URL.Path, "/api/session/")
	if callSID == "" || strings.Contains(callSID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	sess, ok := t.registry.Get(callSID)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(sess.Snapshot())
}

// handleCallControl exposes provider-side call control: GET fetches the
// provider's view of a call, DELETE hangs it up.
func (t *Transport) handleCallControl(w http.ResponseWriter, r *http.Request) {
	callSID := strings.TrimPrefix(r.URL.Path, "/api/call/")
	if callSID == "" || strings.Contains(callSID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	switch r.Method {
	case http.MethodGet:
		info, err := t.control.FetchCall(r.Context(), callSID)
		if err != nil {
			t.logger.Warn("call_fetch_failed", "call_sid", callSID, "error", err.Error())
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"call_sid": info.SID,
			"status":   info.Status,
			"from":     info.From,
			"to":       info.To,
			"duration": info.Duration,
		})
	case http.MethodDelete:
		if err := t.control.EndCall(r.Context(), callSID); err != nil {
			t.logger.Warn("call_end_failed", "call_sid", callSID, "error", err.Error())
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"call_sid": callSID, "status": "completed"})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (t *Transport) handleConfigStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	status := map[string]any{"transport": "twilio"}
	if t.ConfigStatus != nil {
		for k, v := range t.ConfigStatus() {
			status[k] = v
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(status)
}

func (t *Transport) handleDashboardPage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(dashboardHTML))
}

func (t *Transport) writeTwiML(w http.ResponseWriter, twiml string) {
	w.Header().Set("Content-Type", "text/xml")
	_, _ = w.Write([]byte(twiml))
}

func (t *Transport) traceFor(callSID string) string {
	if callSID == "" {
		return ""
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.traceIDs[callSID]; ok {
		return id
	}
	id := uuid.NewString()
	t.traceIDs[callSID] = id
	return id
}

func (t *Transport) validateTwilioRequest(r *http.Request) bool {
	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" {
		return false
	}
	if t.cfg.AuthToken == "" {
		return false
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return false
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))

	validator := twilioclient.NewRequestValidator(t.cfg.AuthToken)
	return validator.ValidateBody(t.requestURL(r), body, signature)
}

func (t *Transport) requestURL(r *http.Request) string {
	if t.cfg.PublicURL != "" {
		base := strings.TrimRight(t.cfg.PublicURL, "/")
		return base + r.URL.RequestURI()
	}
	scheme := r.URL.Scheme
	if scheme == "" {
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		} else {
			scheme = "https"
		}
	}
	host := r.Host
	if host == "" {
		host = strings.TrimPrefix(t.cfg.ServerAddr, ":")
	}
	return scheme + "://" + host + r.URL.RequestURI()
}

func (t *Transport) baseURL() string {
	if t.cfg.PublicURL != "" {
		return "https://" + normalizePublicURL(t.cfg.PublicURL)
	}
	addr := t.cfg.ServerAddr
	if addr == "" {
		addr = ":8080"
	}
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}

func (t *Transport) checkOrigin(r *http.Request) bool {
	if t.cfg.AllowAnyOrigin {
		return true
	}
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	origin = strings.TrimRight(origin, "/")
	originHost := strings.TrimPrefix(origin, "https://")
	originHost = strings.TrimPrefix(originHost, "http://")
	for _, allowed := range t.cfg.AllowedOrigins {
		a := strings.TrimSpace(allowed)
		if a == "" {
			continue
		}
		a = strings.TrimRight(a, "/")
		if strings.HasPrefix(a, "http://") || strings.HasPrefix(a, "https://") {
			if strings.EqualFold(a, origin) {
				return true
			}
			continue
		}
		if strings.EqualFold(a, originHost) {
			return true
		}
	}
	return false
}

func normalizePublicURL(v string) string {
	if v == "" {
		return ""
	}
	if len(v) >= 8 && v[:8] == "https://" {
		v = v[8:]
	} else if len(v) >= 7 && v[:7] == "http://" {
		v = v[7:]
	}
	for len(v) > 0 && v[len(v)-1] == '/' {
		v = v[:len(v)-1]
	}
	return v
}
