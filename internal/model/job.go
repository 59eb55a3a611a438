package model

import "time"

// JobStatus tracks a job's progress through the generation pipeline
type JobStatus string

const (
	JobStatusPending         JobStatus = "PENDING"
	JobStatusScriptGenerated JobStatus = "SCRIPT_GENERATED"
	JobStatusVoiceGenerated  JobStatus = "VOICE_GENERATED"
	JobStatusImageGenerated  JobStatus = "IMAGE_GENERATED"
	JobStatusReady           JobStatus = "READY"
	JobStatusFailed          JobStatus = "FAILED"
)

// Scene is a single segment of a generated script
type Scene struct {
	SceneID string `json:"scene_id"`
	Script  string `json:"script"`
	Visual  string `json:"visual_description,omitempty"`
}

// SceneVoiceover is the synthesized audio for one scene
type SceneVoiceover struct {
	SceneID  string  `json:"scene_id"`
	VoiceID  string  `json:"voice_id,omitempty"`
	AudioURL string  `json:"audio_url"`
	Duration float64 `json:"duration,omitempty"`
}

// SceneImage is the generated visual for one scene
type SceneImage struct {
	SceneID  string `json:"scene_id,omitempty"`
	ImageURL string `json:"image_url"`
}

// ScriptPayload holds the structured script data for a job
type ScriptPayload struct {
	Scenes   []Scene        `json:"scenes"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// VoicePayload holds the structured voiceover data for a job
type VoicePayload struct {
	SceneVoiceovers []SceneVoiceover `json:"scene_voiceovers"`
}

// ImagePayload holds the structured image data for a job
type ImagePayload struct {
	SceneImages []SceneImage `json:"scene_images"`
}

// Job represents one end-to-end generation task. The flat ScriptText,
// AudioURL and ImageURLs fields are denormalized copies of the structured
// payloads, kept for simpler client consumption.
//
// ID and UUID are legacy alias fields from earlier producer versions; the
// store resolves lookups against them after JobID. Get overwrites ID with
// the internal storage key before returning a job to callers.
type Job struct {
	ID           string         `json:"id,omitempty"`
	JobID        string         `json:"job_id"`
	UUID         string         `json:"uuid,omitempty"`
	CollectionID string         `json:"collection_id,omitempty"`
	Title        string         `json:"title,omitempty"`
	Status       JobStatus      `json:"status"`
	Script       *ScriptPayload `json:"script,omitempty"`
	VoiceData    *VoicePayload  `json:"voice_data,omitempty"`
	ImageData    *ImagePayload  `json:"image_data,omitempty"`
	ScriptText   string         `json:"script_text,omitempty"`
	AudioURL     string         `json:"audio_url,omitempty"`
	ImageURLs    []string       `json:"image_urls,omitempty"`
	Error        string         `json:"error,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// JobCreateRequest is the body for POST /api/jobs
type JobCreateRequest struct {
	JobID        string `json:"job_id,omitempty"`
	CollectionID string `json:"collection_id,omitempty"`
	Title        string `json:"title,omitempty" validate:"max=200"`
}

// JobStatusUpdateRequest is the body for POST /api/jobs/:jobId/status
type JobStatusUpdateRequest struct {
	Status JobStatus      `json:"status" validate:"required,oneof=PENDING SCRIPT_GENERATED VOICE_GENERATED IMAGE_GENERATED READY FAILED"`
	Fields map[string]any `json:"fields,omitempty"`
}
