package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonSTTTranscribe ReasonCode = "stt_transcribe"
	ReasonSTTRateLimit  ReasonCode = "stt_rate_limit"

	ReasonTTSSynthesize ReasonCode = "tts_synthesize"
	ReasonTTSRateLimit  ReasonCode = "tts_rate_limit"

	ReasonLLMGenerate  ReasonCode = "llm_generate"
	ReasonLLMRateLimit ReasonCode = "llm_rate_limit"

	ReasonTransportInvalidSignature ReasonCode = "webhook_invalid_signature"
	ReasonTransportSend             ReasonCode = "transport_send"
	ReasonBadEventPayload           ReasonCode = "bad_event_payload"

	ReasonSessionRedis ReasonCode = "session_redis"
)
