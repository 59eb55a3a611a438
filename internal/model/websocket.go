package model

// WebSocket message types
const (
	WSMessageTypeJobComplete     = "job_complete"
	WSMessageTypeScriptGenerated = "script_generated"
	WSMessageTypeStatus          = "status"
	WSMessageTypeSubscribed      = "subscribed"
	WSMessageTypePing            = "ping"
	WSMessageTypePong            = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSJobCompleteMessage notifies job subscribers that reconciliation finished
type WSJobCompleteMessage struct {
	Type       string    `json:"type"`
	JobID      string    `json:"job_id"`
	Status     JobStatus `json:"status"`
	ScriptText string    `json:"script_text,omitempty"`
	AudioURL   string    `json:"audio_url,omitempty"`
	ImageURLs  []string  `json:"image_urls,omitempty"`
}

// WSCollectionProgressMessage notifies collection subscribers of stage progress
type WSCollectionProgressMessage struct {
	Type         string `json:"type"`
	CollectionID string `json:"collection_id"`
	Status       string `json:"status"`
	Progress     int    `json:"progress"`
}

// WSStatusMessage is the initial snapshot pushed on subscribe
type WSStatusMessage struct {
	Type string `json:"type"`
	Job  *Job   `json:"job"`
}

// WSSubscribedMessage acknowledges a subscription with no stored state to push
type WSSubscribedMessage struct {
	Type         string `json:"type"`
	Topic        string `json:"topic"`
	CollectionID string `json:"collection_id,omitempty"`
}
