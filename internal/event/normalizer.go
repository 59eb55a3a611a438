package event

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/scriptflow/gateway/internal/model"
)

// DecodeBody decodes a broker message body into a generic payload tree.
// Some legacy producers publish the payload as a JSON-encoded string, so a
// body that decodes to a string gets a second decode pass.
func DecodeBody(body []byte) (map[string]any, error) {
	payload, err := decodeMap(body)
	if err == nil {
		return payload, nil
	}

	var wrapped string
	if json.Unmarshal(body, &wrapped) == nil {
		if payload, err2 := decodeMap([]byte(wrapped)); err2 == nil {
			return payload, nil
		}
	}
	return nil, err
}

func decodeMap(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode event body: %w", err)
	}
	return payload, nil
}

// Normalize extracts the canonical fields from a heterogeneous script.ready
// payload. Producers are versioned inconsistently, so every field is resolved
// through an ordered list of fallback locations; each field resolves
// independently and missing fields stay empty.
func Normalize(payload map[string]any) model.NormalizedEvent {
	var ev model.NormalizedEvent

	script := childMap(payload, "script")
	voice := childMap(payload, "voice")
	image := childMap(payload, "image")

	ev.CollectionID = stringAt(payload, "collection_id")
	ev.JobID, ev.DegradedID = resolveJobID(payload, script)

	ev.ScriptText = firstString(
		stringAt(script, "script_text"),
		stringAt(script, "content"),
		stringAt(payload, "content"),
		stringAt(payload, "text"),
	)

	ev.Scenes = extractScenes(script)
	if len(ev.Scenes) == 0 && ev.ScriptText != "" {
		ev.Scenes = []model.Scene{{
			SceneID: ev.JobID + "_scene_1",
			Script:  ev.ScriptText,
			Visual:  stringAt(script, "visual_description"),
		}}
	}

	ev.AudioURL = firstString(
		stringAt(voice, "audio_url"),
		stringAt(voice, "url"),
		stringAt(payload, "audio_url"),
	)
	ev.SceneVoiceovers = extractVoiceovers(voice)

	ev.SceneImages = extractSceneImages(image)
	for _, img := range ev.SceneImages {
		if img.ImageURL != "" {
			ev.ImageURLs = append(ev.ImageURLs, img.ImageURL)
		}
	}
	if len(ev.ImageURLs) == 0 {
		ev.ImageURLs = extractImageList(image, payload)
	}

	return ev
}

// resolveJobID tries, in order: script._id, top-level script_id, and as a
// last resort the collection_id. The last case is a degraded match and is
// flagged so the caller can log it.
func resolveJobID(payload, script map[string]any) (string, bool) {
	if v, ok := script["_id"]; ok {
		if id := normalizeID(v); id != "" {
			return id, false
		}
	}
	if v, ok := payload["script_id"]; ok {
		if id := normalizeID(v); id != "" {
			return id, false
		}
	}
	if v, ok := payload["collection_id"]; ok {
		if id := normalizeID(v); id != "" {
			return id, true
		}
	}
	return "", false
}

// normalizeID coerces an identifier candidate to its canonical string form.
// UUID-shaped strings (36 chars or hyphenated) pass through verbatim; other
// values, including database-assigned object identifiers that arrive as raw
// numbers, are coerced to their plain string form.
func normalizeID(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case nil:
		return ""
	default:
		return fmt.Sprint(id)
	}
}

func extractScenes(script map[string]any) []model.Scene {
	raw, ok := script["scenes"].([]any)
	if !ok {
		return nil
	}

	var scenes []model.Scene
	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		scene := model.Scene{
			SceneID: stringAt(m, "scene_id"),
			Script:  firstString(stringAt(m, "script"), stringAt(m, "script_text"), stringAt(m, "text")),
			Visual:  firstString(stringAt(m, "visual_description"), stringAt(m, "visual")),
		}
		scenes = append(scenes, scene)
	}
	return scenes
}

func extractVoiceovers(voice map[string]any) []model.SceneVoiceover {
	raw, ok := voice["scene_voiceovers"].([]any)
	if !ok {
		return nil
	}

	var voiceovers []model.SceneVoiceover
	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		voiceovers = append(voiceovers, model.SceneVoiceover{
			SceneID:  stringAt(m, "scene_id"),
			VoiceID:  stringAt(m, "voice_id"),
			AudioURL: firstString(stringAt(m, "audio_url"), stringAt(m, "url")),
			Duration: floatAt(m, "duration"),
		})
	}
	return voiceovers
}

func extractSceneImages(image map[string]any) []model.SceneImage {
	raw, ok := image["scene_images"].([]any)
	if !ok {
		return nil
	}

	var images []model.SceneImage
	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		images = append(images, model.SceneImage{
			SceneID:  stringAt(m, "scene_id"),
			ImageURL: firstString(stringAt(m, "cloudinary_url"), stringAt(m, "url")),
		})
	}
	return images
}

// extractImageList handles the flat fallback shapes: image.images or
// top-level images, with entries that are either bare URL strings or objects
// exposing url/cloudinary_url.
func extractImageList(image, payload map[string]any) []string {
	raw, ok := image["images"].([]any)
	if !ok {
		raw, ok = payload["images"].([]any)
	}
	if !ok {
		return nil
	}

	var urls []string
	for _, entry := range raw {
		switch v := entry.(type) {
		case string:
			if v != "" {
				urls = append(urls, v)
			}
		case map[string]any:
			if url := firstString(stringAt(v, "url"), stringAt(v, "cloudinary_url")); url != "" {
				urls = append(urls, url)
			}
		}
	}
	return urls
}

func childMap(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	child, _ := m[key].(map[string]any)
	return child
}

func stringAt(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func floatAt(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case json.Number:
		f, _ := v.Float64()
		return f
	case float64:
		return v
	}
	return 0
}

func firstString(candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}
