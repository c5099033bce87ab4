package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonPoolTimeout    ReasonCode = "pool_timeout"
	ReasonPoolClosed     ReasonCode = "pool_closed"
	ReasonSynthesisSend  ReasonCode = "synthesis_send"
	ReasonSynthesisClose ReasonCode = "synthesis_closed"

	ReasonTransferNoEndpoint ReasonCode = "transfer_no_endpoint"
	ReasonTransferFailed     ReasonCode = "transfer_failed"

	ReasonLeadFetch  ReasonCode = "lead_fetch"
	ReasonLeadUpdate ReasonCode = "lead_update"

	ReasonClassification ReasonCode = "classification"
	ReasonCallRelease    ReasonCode = "call_release"

	ReasonPresenceConnect ReasonCode = "presence_connect"
)
