package event

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/scriptflow/gateway/internal/model"
	"github.com/scriptflow/gateway/internal/registry"
	"github.com/scriptflow/gateway/internal/store"
)

// JobStore is the slice of the job store the reconciler needs.
type JobStore interface {
	Create(ctx context.Context, p store.CreateParams) (string, error)
	Get(ctx context.Context, lookupID string) (*model.Job, error)
	ReconcileFromEvent(ctx context.Context, lookupID string, ev model.NormalizedEvent) error
}

// Publisher fans a message out to a topic's subscribers.
type Publisher interface {
	Publish(topic string, message any)
}

// Reconciler is the default script.ready handler: it merges completion events
// into job records and notifies subscribed clients. Events referencing a job
// not yet created get a minimal PENDING record synthesized first, so an
// out-of-order completion still lands.
type Reconciler struct {
	jobs JobStore
	pub  Publisher
	log  zerolog.Logger
}

func NewReconciler(jobs JobStore, pub Publisher, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		jobs: jobs,
		pub:  pub,
		log:  log.With().Str("component", "reconciler").Logger(),
	}
}

// Handle implements Callback.
func (r *Reconciler) Handle(ctx context.Context, ev model.NormalizedEvent, _ map[string]any) error {
	if ev.JobID == "" || ev.DegradedID {
		if ev.CollectionID == "" {
			r.log.Warn().Msg("event carries no identifiers, dropping")
			return nil
		}
		// A degraded id is just the collection id; the event cannot be pinned
		// to one job, so no record is touched and the event is forwarded as
		// collection-level progress only.
		r.pub.Publish(registry.CollectionTopic(ev.CollectionID), model.WSCollectionProgressMessage{
			Type:         model.WSMessageTypeScriptGenerated,
			CollectionID: ev.CollectionID,
			Status:       "completed",
			Progress:     100,
		})
		return nil
	}

	if _, err := r.jobs.Get(ctx, ev.JobID); err != nil {
		if !errors.Is(err, store.ErrJobNotFound) {
			return fmt.Errorf("look up job %s: %w", ev.JobID, err)
		}
		r.log.Info().Str("job_id", ev.JobID).Msg("event for unknown job, creating record")
		if _, err := r.jobs.Create(ctx, store.CreateParams{
			JobID:        ev.JobID,
			CollectionID: ev.CollectionID,
			Title:        "Untitled job",
		}); err != nil {
			return fmt.Errorf("create job %s: %w", ev.JobID, err)
		}
	}

	if err := r.jobs.ReconcileFromEvent(ctx, ev.JobID, ev); err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			// Orphaned event: logged by the store, dropped here.
			return nil
		}
		return fmt.Errorf("reconcile job %s: %w", ev.JobID, err)
	}

	r.pub.Publish(registry.JobTopic(ev.JobID), model.WSJobCompleteMessage{
		Type:       model.WSMessageTypeJobComplete,
		JobID:      ev.JobID,
		Status:     model.JobStatusReady,
		ScriptText: ev.ScriptText,
		AudioURL:   ev.AudioURL,
		ImageURLs:  ev.ImageURLs,
	})

	if ev.CollectionID != "" {
		r.pub.Publish(registry.CollectionTopic(ev.CollectionID), model.WSCollectionProgressMessage{
			Type:         model.WSMessageTypeScriptGenerated,
			CollectionID: ev.CollectionID,
			Status:       "completed",
			Progress:     100,
		})
	}
	return nil
}
