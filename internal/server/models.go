package server

// HTTPError is the JSON error envelope returned by the API.
type HTTPError struct {
	Error string `json:"error"`
}

// QueryRequest is the body of POST /api/query.
type QueryRequest struct {
	Query string `json:"query"`
}

// AuthSignupRequest is the body of POST /api/auth/signup.
type AuthSignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthLoginRequest is the body of POST /api/auth/login.
type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries the JWT returned by login.
type TokenResponse struct {
	Token string `json:"token"`
}

// TimelineEntry is one row of the step-timing view of a trace.
type TimelineEntry struct {
	StepName   string  `json:"step_name"`
	OffsetMS   float64 `json:"offset_ms"`
	DurationMS float64 `json:"duration_ms"`
	Completed  bool    `json:"completed"`
}

// TimelineResponse summarises a trace for visualization tooling.
type TimelineResponse struct {
	TraceID         string          `json:"trace_id"`
	Query           string          `json:"query"`
	TotalDurationMS float64         `json:"total_duration_ms"`
	Sealed          bool            `json:"sealed"`
	Steps           []TimelineEntry `json:"steps"`
}
