package event

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/scriptflow/gateway/internal/model"
	"github.com/scriptflow/gateway/internal/registry"
	"github.com/scriptflow/gateway/internal/store"
)

type fakeJobStore struct {
	jobs       map[string]*model.Job
	created    []store.CreateParams
	reconciled []string
	getErr     error
	recErr     error
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: make(map[string]*model.Job)}
}

func (f *fakeJobStore) Create(_ context.Context, p store.CreateParams) (string, error) {
	f.created = append(f.created, p)
	f.jobs[p.JobID] = &model.Job{JobID: p.JobID, CollectionID: p.CollectionID, Status: model.JobStatusPending}
	return p.JobID, nil
}

func (f *fakeJobStore) Get(_ context.Context, lookupID string) (*model.Job, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	job, ok := f.jobs[lookupID]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	return job, nil
}

func (f *fakeJobStore) ReconcileFromEvent(_ context.Context, lookupID string, _ model.NormalizedEvent) error {
	if f.recErr != nil {
		return f.recErr
	}
	f.reconciled = append(f.reconciled, lookupID)
	return nil
}

type publishedMessage struct {
	topic   string
	message any
}

type fakePublisher struct {
	published []publishedMessage
}

func (f *fakePublisher) Publish(topic string, message any) {
	f.published = append(f.published, publishedMessage{topic: topic, message: message})
}

func TestHandleKnownJob(t *testing.T) {
	jobs := newFakeJobStore()
	jobs.jobs["job-1"] = &model.Job{JobID: "job-1", Status: model.JobStatusPending}
	pub := &fakePublisher{}
	r := NewReconciler(jobs, pub, zerolog.Nop())

	ev := model.NormalizedEvent{JobID: "job-1", ScriptText: "hello", AudioURL: "http://x/a.mp3"}
	if err := r.Handle(context.Background(), ev, nil); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if len(jobs.created) != 0 {
		t.Errorf("no record should be created for a known job, got %d", len(jobs.created))
	}
	if len(jobs.reconciled) != 1 || jobs.reconciled[0] != "job-1" {
		t.Errorf("reconciled = %v", jobs.reconciled)
	}
	if len(pub.published) != 1 {
		t.Fatalf("expected one publish, got %d", len(pub.published))
	}
	if pub.published[0].topic != registry.JobTopic("job-1") {
		t.Errorf("topic = %q", pub.published[0].topic)
	}
	msg, ok := pub.published[0].message.(model.WSJobCompleteMessage)
	if !ok {
		t.Fatalf("message type = %T", pub.published[0].message)
	}
	if msg.Status != model.JobStatusReady || msg.ScriptText != "hello" {
		t.Errorf("message = %+v", msg)
	}
}

func TestHandleUnknownJobCreatesRecordFirst(t *testing.T) {
	jobs := newFakeJobStore()
	pub := &fakePublisher{}
	r := NewReconciler(jobs, pub, zerolog.Nop())

	ev := model.NormalizedEvent{JobID: "job-2", CollectionID: "col-1"}
	if err := r.Handle(context.Background(), ev, nil); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if len(jobs.created) != 1 {
		t.Fatalf("expected one create, got %d", len(jobs.created))
	}
	if jobs.created[0].JobID != "job-2" || jobs.created[0].CollectionID != "col-1" {
		t.Errorf("create params = %+v", jobs.created[0])
	}
	if len(jobs.reconciled) != 1 {
		t.Errorf("reconciled = %v", jobs.reconciled)
	}

	// Both the job topic and the collection topic get a message.
	if len(pub.published) != 2 {
		t.Fatalf("expected two publishes, got %d", len(pub.published))
	}
	if pub.published[0].topic != registry.JobTopic("job-2") {
		t.Errorf("first topic = %q", pub.published[0].topic)
	}
	if pub.published[1].topic != registry.CollectionTopic("col-1") {
		t.Errorf("second topic = %q", pub.published[1].topic)
	}
}

func TestHandleCollectionOnlyEvent(t *testing.T) {
	jobs := newFakeJobStore()
	pub := &fakePublisher{}
	r := NewReconciler(jobs, pub, zerolog.Nop())

	// The normalizer promotes a lone collection_id into JobID and flags it.
	ev := model.NormalizedEvent{JobID: "col-2", CollectionID: "col-2", DegradedID: true}
	if err := r.Handle(context.Background(), ev, nil); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if len(jobs.created) != 0 || len(jobs.reconciled) != 0 {
		t.Error("collection-only event must not touch the job store")
	}
	if len(pub.published) != 1 {
		t.Fatalf("expected one publish, got %d", len(pub.published))
	}
	if pub.published[0].topic != registry.CollectionTopic("col-2") {
		t.Errorf("topic = %q", pub.published[0].topic)
	}
	msg, ok := pub.published[0].message.(model.WSCollectionProgressMessage)
	if !ok {
		t.Fatalf("message type = %T", pub.published[0].message)
	}
	if msg.CollectionID != "col-2" || msg.Progress != 100 {
		t.Errorf("message = %+v", msg)
	}
}

func TestHandleNormalizedCollectionOnlyPayload(t *testing.T) {
	jobs := newFakeJobStore()
	pub := &fakePublisher{}
	r := NewReconciler(jobs, pub, zerolog.Nop())

	// Full path from the wire: a payload with no script-level id must never
	// materialize a job record keyed by the collection id.
	ev := Normalize(decode(t, `{"collection_id": "col-9"}`))
	if !ev.DegradedID {
		t.Fatal("expected degraded id resolution")
	}
	if err := r.Handle(context.Background(), ev, nil); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if len(jobs.created) != 0 {
		t.Errorf("phantom job created: %+v", jobs.created)
	}
	if len(jobs.reconciled) != 0 {
		t.Errorf("phantom reconcile: %v", jobs.reconciled)
	}
	if len(pub.published) != 1 {
		t.Fatalf("expected exactly one publish, got %d", len(pub.published))
	}
	if pub.published[0].topic != registry.CollectionTopic("col-9") {
		t.Errorf("topic = %q, want collection topic", pub.published[0].topic)
	}
	if _, ok := pub.published[0].message.(model.WSCollectionProgressMessage); !ok {
		t.Errorf("message type = %T, want collection progress", pub.published[0].message)
	}
}

func TestHandleNoIdentifiers(t *testing.T) {
	jobs := newFakeJobStore()
	pub := &fakePublisher{}
	r := NewReconciler(jobs, pub, zerolog.Nop())

	if err := r.Handle(context.Background(), model.NormalizedEvent{}, nil); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(pub.published) != 0 {
		t.Errorf("nothing should be published, got %d", len(pub.published))
	}
}

func TestHandleOrphanedReconcileDropped(t *testing.T) {
	jobs := newFakeJobStore()
	jobs.jobs["job-3"] = &model.Job{JobID: "job-3"}
	jobs.recErr = store.ErrJobNotFound
	pub := &fakePublisher{}
	r := NewReconciler(jobs, pub, zerolog.Nop())

	// A record that vanished between lookup and merge is dropped, not retried.
	if err := r.Handle(context.Background(), model.NormalizedEvent{JobID: "job-3"}, nil); err != nil {
		t.Fatalf("orphaned event must be dropped cleanly, got %v", err)
	}
	if len(pub.published) != 0 {
		t.Errorf("nothing should be published for a dropped event, got %d", len(pub.published))
	}
}

func TestHandleStoreFailurePropagates(t *testing.T) {
	jobs := newFakeJobStore()
	jobs.getErr = errors.New("redis down")
	r := NewReconciler(jobs, &fakePublisher{}, zerolog.Nop())

	if err := r.Handle(context.Background(), model.NormalizedEvent{JobID: "job-4"}, nil); err == nil {
		t.Fatal("expected store failure to propagate for redelivery")
	}
}
