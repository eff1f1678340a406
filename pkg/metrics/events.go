package metrics

// Well-known event names emitted across the engine.
const (
	EventRateLimit     = "rate_limit"
	EventBreakerOpen   = "breaker_open"
	EventBreakerClose  = "breaker_close"
	EventBreakerDenied = "breaker_denied"

	EventCallStarted    = "call_started"
	EventCallEnded      = "call_ended"
	EventTurnCompleted  = "turn_completed"
	EventIntentDetected = "intent_detected"
	EventEscalation     = "escalation"
	EventClarify        = "clarify"
	EventSTTTranscribe  = "stt_transcribe"
	EventTTSSynthesize  = "tts_synthesize"
	EventLLMFallback    = "llm_fallback"
	EventLLMGenerate    = "llm_generate"
)
