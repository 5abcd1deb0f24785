package protocol

// Extension identifiers. These are opaque map keys: they are looked up in
// part, artifact and message metadata and never parsed.
const (
	TrajectoryExtensionURI  = "https://a2a-extensions.agentstack.beeai.dev/ui/trajectory/v1"
	CitationExtensionURI    = "https://a2a-extensions.agentstack.beeai.dev/ui/citation/v1"
	ErrorExtensionURI       = "https://a2a-extensions.agentstack.beeai.dev/ui/error/v1"
	FormRequestExtensionURI = "https://a2a-extensions.agentstack.beeai.dev/ui/form_request/v1"
)

// Legacy part metadata hints understood alongside the extensions.
const (
	MetaEventType  = "event_type"
	MetaBlockType  = "block_type"
	MetaBlockID    = "block_id"
	MetaToolCallID = "tool_call_id"
	MetaToolName   = "tool_name"
	MetaIsError    = "is_error"
	MetaSize       = "size"

	EventTypeToolCall = "tool_call"
	EventTypeThinking = "thinking"
	EventTypeError    = "error"
)

// Extensions holds the metadata keys used to resolve each extension payload.
type Extensions struct {
	Trajectory  string `yaml:"trajectory,omitempty" json:"trajectory,omitempty"`
	Citation    string `yaml:"citation,omitempty" json:"citation,omitempty"`
	Error       string `yaml:"error,omitempty" json:"error,omitempty"`
	FormRequest string `yaml:"form_request,omitempty" json:"form_request,omitempty"`
}

// DefaultExtensions returns the well-known extension keys.
func DefaultExtensions() Extensions {
	return Extensions{
		Trajectory:  TrajectoryExtensionURI,
		Citation:    CitationExtensionURI,
		Error:       ErrorExtensionURI,
		FormRequest: FormRequestExtensionURI,
	}
}

// WithDefaults fills unset keys from DefaultExtensions.
func (e Extensions) WithDefaults() Extensions {
	d := DefaultExtensions()
	if e.Trajectory == "" {
		e.Trajectory = d.Trajectory
	}
	if e.Citation == "" {
		e.Citation = d.Citation
	}
	if e.Error == "" {
		e.Error = d.Error
	}
	if e.FormRequest == "" {
		e.FormRequest = d.FormRequest
	}
	return e
}

// Trajectories returns the non-empty trajectory fragments carried by meta.
func (e Extensions) Trajectories(meta map[string]any) []TrajectoryFragment {
	records := Lookup(meta, e.Trajectory)
	if len(records) == 0 {
		return nil
	}
	out := make([]TrajectoryFragment, 0, len(records))
	for _, rec := range records {
		frag, err := DecodeTrajectory(rec)
		if err != nil || frag.IsEmpty() {
			continue
		}
		out = append(out, frag)
	}
	return out
}

// Citations returns the citations carried by meta.
func (e Extensions) Citations(meta map[string]any) []Citation {
	records := Lookup(meta, e.Citation)
	if len(records) == 0 {
		return nil
	}
	out := make([]Citation, 0, len(records))
	for _, rec := range records {
		c, err := DecodeCitation(rec)
		if err != nil || (c.URL == "" && c.Title == "") {
			continue
		}
		out = append(out, c)
	}
	return out
}

// ErrorDetail returns the error detail carried by meta, or nil.
func (e Extensions) ErrorDetail(meta map[string]any) *ErrorDetail {
	rec := LookupOne(meta, e.Error)
	if rec == nil {
		return nil
	}
	detail, err := DecodeError(rec)
	if err != nil || (detail.Message == "" && detail.Title == "") {
		return nil
	}
	return &detail
}

// Form returns the form descriptor carried by meta, or nil.
func (e Extensions) Form(meta map[string]any) *FormRequest {
	rec := LookupOne(meta, e.FormRequest)
	if rec == nil {
		return nil
	}
	form, err := DecodeFormRequest(rec)
	if err != nil || len(form.Fields) == 0 {
		return nil
	}
	return &form
}
