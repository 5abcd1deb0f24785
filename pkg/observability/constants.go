package observability

const (
	AttrKind       = "kind"
	AttrReason     = "reason"
	AttrDeltaType  = "delta_type"
	AttrTaskState  = "task_state"
	AttrHTTPMethod = "http.method"
	AttrHTTPRoute  = "http.route"
	AttrHTTPStatus = "http.status_code"
	AttrSessionID  = "session.id"
	AttrAgentName  = "agent.name"
	AttrErrorType  = "error.type"

	SpanStream    = "a2achat.stream"
	SpanTranslate = "a2achat.translate"

	DefaultServiceName = "a2achat"
	DefaultNamespace   = "a2achat"
)
