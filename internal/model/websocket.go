package model

// WebSocket message types
type WSMessageType string

const (
	WSMessageTypeProgress WSMessageType = "progress"
	WSMessageTypeComplete WSMessageType = "complete"
	WSMessageTypeError    WSMessageType = "error"
	WSMessageTypePing     WSMessageType = "ping"
	WSMessageTypePong     WSMessageType = "pong"
)

// WSMessage is the envelope used for client control messages.
type WSMessage struct {
	Type WSMessageType `json:"type"`
}

// WSProgressMessage streams a progress update for one job.
type WSProgressMessage struct {
	Type     WSMessageType `json:"type"`
	JobID    string        `json:"jobId"`
	Progress int           `json:"progress"`
	Status   JobStatus     `json:"status"`
}

// WSCompleteMessage streams the final manifest of a completed job.
type WSCompleteMessage struct {
	Type   WSMessageType `json:"type"`
	JobID  string        `json:"jobId"`
	Result *RenderResult `json:"result"`
}

// WSErrorMessage streams a terminal failure for one job.
type WSErrorMessage struct {
	Type    WSMessageType `json:"type"`
	JobID   string        `json:"jobId"`
	Code    string        `json:"code"`
	Message string        `json:"message"`
}
