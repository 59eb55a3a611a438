package model

// NormalizedEvent is the canonical record extracted from a heterogeneous
// script.ready payload. Empty string fields mean "absent in the payload".
type NormalizedEvent struct {
	JobID           string
	CollectionID    string
	ScriptText      string
	Scenes          []Scene
	AudioURL        string
	SceneVoiceovers []SceneVoiceover
	ImageURLs       []string
	SceneImages     []SceneImage

	// DegradedID is set when the job id had to be taken from collection_id
	// because no script id was present.
	DegradedID bool
}
