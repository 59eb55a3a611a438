package store

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/scriptflow/gateway/internal/model"
)

// newTestRedis connects to the local Redis test database and wipes it. Tests
// skip when no server is listening.
func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("flush test db: %v", err)
	}
	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})
	return client
}

func newTestJobStore(t *testing.T) *JobStore {
	t.Helper()
	return NewJobStore(newTestRedis(t), zerolog.Nop())
}

func TestCreateAndGetByJobID(t *testing.T) {
	s := newTestJobStore(t)
	ctx := context.Background()

	jobID, err := s.Create(ctx, CreateParams{JobID: "job-1", CollectionID: "col-1", Title: "My Job"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if jobID != "job-1" {
		t.Errorf("canonical id = %q, want job-1", jobID)
	}

	job, err := s.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job.JobID != "job-1" || job.CollectionID != "col-1" || job.Title != "My Job" {
		t.Errorf("job = %+v", job)
	}
	if job.Status != model.JobStatusPending {
		t.Errorf("status = %q, want PENDING", job.Status)
	}
	if job.ID == "" || job.ID == "job-1" {
		t.Errorf("expected ID to carry the storage key, got %q", job.ID)
	}
}

func TestCreateIDPreferenceOrder(t *testing.T) {
	s := newTestJobStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx, CreateParams{ScriptID: "script-1", LegacyID: "legacy-1"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id != "script-1" {
		t.Errorf("canonical id = %q, want script-1", id)
	}

	// Nothing supplied: a fresh identifier is assigned.
	id, err = s.Create(ctx, CreateParams{Title: "anonymous"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id == "" {
		t.Error("expected a generated canonical id")
	}
	if _, err := s.Get(ctx, id); err != nil {
		t.Errorf("generated id not resolvable: %v", err)
	}
}

func TestGetResolutionChain(t *testing.T) {
	s := newTestJobStore(t)
	ctx := context.Background()

	if _, err := s.Create(ctx, CreateParams{
		JobID:    "job-2",
		LegacyID: "legacy-2",
		UUID:     "8d7f2f9e-0000-4000-8000-000000000001",
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	for _, lookup := range []string{"job-2", "legacy-2", "8d7f2f9e-0000-4000-8000-000000000001"} {
		job, err := s.Get(ctx, lookup)
		if err != nil {
			t.Errorf("Get(%q): %v", lookup, err)
			continue
		}
		if job.JobID != "job-2" {
			t.Errorf("Get(%q) resolved to %q", lookup, job.JobID)
		}
	}

	// The storage key itself resolves too.
	job, err := s.Get(ctx, "job-2")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	byKey, err := s.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get by storage key: %v", err)
	}
	if byKey.JobID != "job-2" {
		t.Errorf("storage key resolved to %q", byKey.JobID)
	}

	if _, err := s.Get(ctx, "no-such-job"); err != ErrJobNotFound {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestUpdateStatus(t *testing.T) {
	s := newTestJobStore(t)
	ctx := context.Background()

	if _, err := s.Create(ctx, CreateParams{JobID: "job-3"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	updated, err := s.UpdateStatus(ctx, "job-3", model.JobStatusScriptGenerated, map[string]any{"script_text": "draft"})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if !updated {
		t.Fatal("expected update to apply")
	}

	job, err := s.Get(ctx, "job-3")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job.Status != model.JobStatusScriptGenerated {
		t.Errorf("status = %q", job.Status)
	}
	if job.ScriptText != "draft" {
		t.Errorf("script_text = %q", job.ScriptText)
	}

	// A miss is reported, not an error.
	updated, err = s.UpdateStatus(ctx, "missing", model.JobStatusFailed, nil)
	if err != nil {
		t.Fatalf("UpdateStatus miss: %v", err)
	}
	if updated {
		t.Error("expected no update for unknown job")
	}
}

func TestReconcileFromEvent(t *testing.T) {
	s := newTestJobStore(t)
	ctx := context.Background()

	if _, err := s.Create(ctx, CreateParams{JobID: "job-4", Title: "Keep me"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	ev := model.NormalizedEvent{
		JobID:        "job-4",
		CollectionID: "col-4",
		ScriptText:   "Hello world",
		Scenes:       []model.Scene{{SceneID: "job-4_scene_1", Script: "Hello world"}},
		AudioURL:     "http://x/a.mp3",
		ImageURLs:    []string{"http://x/i.jpg"},
		SceneImages:  []model.SceneImage{{ImageURL: "http://x/i.jpg"}},
	}
	if err := s.ReconcileFromEvent(ctx, "job-4", ev); err != nil {
		t.Fatalf("ReconcileFromEvent: %v", err)
	}

	job, err := s.Get(ctx, "job-4")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job.Status != model.JobStatusReady {
		t.Errorf("status = %q, want READY", job.Status)
	}
	if job.ScriptText != "Hello world" || job.AudioURL != "http://x/a.mp3" {
		t.Errorf("flat fields = %q, %q", job.ScriptText, job.AudioURL)
	}
	if len(job.ImageURLs) != 1 || job.ImageURLs[0] != "http://x/i.jpg" {
		t.Errorf("image urls = %v", job.ImageURLs)
	}
	if job.Script == nil || len(job.Script.Scenes) != 1 {
		t.Errorf("script payload = %+v", job.Script)
	}
	if job.Title != "Keep me" {
		t.Errorf("untouched field overwritten: title = %q", job.Title)
	}
	if job.CollectionID != "col-4" {
		t.Errorf("collection id not backfilled: %q", job.CollectionID)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	s := newTestJobStore(t)
	ctx := context.Background()

	if _, err := s.Create(ctx, CreateParams{JobID: "job-5"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	ev := model.NormalizedEvent{JobID: "job-5", ScriptText: "once", AudioURL: "http://x/a.mp3"}
	for i := 0; i < 3; i++ {
		if err := s.ReconcileFromEvent(ctx, "job-5", ev); err != nil {
			t.Fatalf("ReconcileFromEvent attempt %d: %v", i+1, err)
		}
	}

	job, err := s.Get(ctx, "job-5")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job.Status != model.JobStatusReady || job.ScriptText != "once" {
		t.Errorf("job after replays = %+v", job)
	}
}

func TestReconcilePartialEventKeepsExistingArtifacts(t *testing.T) {
	s := newTestJobStore(t)
	ctx := context.Background()

	if _, err := s.Create(ctx, CreateParams{JobID: "job-6"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	full := model.NormalizedEvent{JobID: "job-6", ScriptText: "text", AudioURL: "http://x/a.mp3"}
	if err := s.ReconcileFromEvent(ctx, "job-6", full); err != nil {
		t.Fatalf("ReconcileFromEvent: %v", err)
	}

	// A later event carrying only images must not blank the audio.
	images := model.NormalizedEvent{JobID: "job-6", ImageURLs: []string{"http://x/i.jpg"}}
	if err := s.ReconcileFromEvent(ctx, "job-6", images); err != nil {
		t.Fatalf("ReconcileFromEvent: %v", err)
	}

	job, err := s.Get(ctx, "job-6")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job.AudioURL != "http://x/a.mp3" {
		t.Errorf("audio url lost on partial merge: %q", job.AudioURL)
	}
	if len(job.ImageURLs) != 1 {
		t.Errorf("image urls = %v", job.ImageURLs)
	}
}

func TestReconcileByCollectionLastResort(t *testing.T) {
	s := newTestJobStore(t)
	ctx := context.Background()

	if _, err := s.Create(ctx, CreateParams{JobID: "job-7", CollectionID: "col-7"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// The event's job id matches nothing; the collection index rescues it.
	ev := model.NormalizedEvent{JobID: "unknown-id", CollectionID: "col-7", ScriptText: "rescued"}
	if err := s.ReconcileFromEvent(ctx, "unknown-id", ev); err != nil {
		t.Fatalf("ReconcileFromEvent: %v", err)
	}

	job, err := s.Get(ctx, "job-7")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job.Status != model.JobStatusReady || job.ScriptText != "rescued" {
		t.Errorf("job = %+v", job)
	}
}

func TestReconcileUnmatchedEvent(t *testing.T) {
	s := newTestJobStore(t)

	ev := model.NormalizedEvent{JobID: "ghost"}
	if err := s.ReconcileFromEvent(context.Background(), "ghost", ev); err != ErrJobNotFound {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}
