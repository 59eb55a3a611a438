package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/scriptflow/gateway/internal/model"
)

// Redis key layout. Job documents live under a generated storage key; the
// by_* keys are secondary indexes mapping each alias identifier back to the
// storage key, since Redis cannot query documents by field the way the
// upstream services' document stores can.
const (
	jobKeyPrefix        = "job:"
	idxJobIDPrefix      = "job:by_job_id:"
	idxUUIDPrefix       = "job:by_uuid:"
	idxLegacyIDPrefix   = "job:by_id:"
	idxCollectionPrefix = "job:by_collection:"

	maxMergeRetries = 5
)

var ErrJobNotFound = errors.New("job not found")

// CreateParams carries the initial fields for a new job. The canonical job id
// is taken from JobID, ScriptID or LegacyID, in that preference order; when
// none is supplied a fresh UUID is assigned.
type CreateParams struct {
	JobID        string
	ScriptID     string
	LegacyID     string
	UUID         string
	CollectionID string
	Title        string
}

// JobStore is the persistent keyed record of job lifecycle and accumulated
// artifacts. Lookups resolve through an ordered chain of identifier
// strategies because job ids arrive from several producers with no single
// field guaranteed present.
type JobStore struct {
	redis *redis.Client
	log   zerolog.Logger
	now   func() time.Time
}

func NewJobStore(redisClient *redis.Client, log zerolog.Logger) *JobStore {
	return &JobStore{
		redis: redisClient,
		log:   log.With().Str("component", "store").Logger(),
		now:   time.Now,
	}
}

// Create persists a new PENDING job and returns its canonical job id, never
// the internal storage key.
func (s *JobStore) Create(ctx context.Context, p CreateParams) (string, error) {
	jobID := firstNonEmpty(p.JobID, p.ScriptID, p.LegacyID)
	if jobID == "" {
		jobID = uuid.New().String()
	}
	storageKey := uuid.New().String()

	now := s.now().UTC()
	job := model.Job{
		JobID:        jobID,
		UUID:         p.UUID,
		ID:           p.LegacyID,
		CollectionID: p.CollectionID,
		Title:        p.Title,
		Status:       model.JobStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("marshal job: %w", err)
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, jobKeyPrefix+storageKey, data, 0)
		pipe.Set(ctx, idxJobIDPrefix+jobID, storageKey, 0)
		if p.UUID != "" {
			pipe.Set(ctx, idxUUIDPrefix+p.UUID, storageKey, 0)
		}
		if p.LegacyID != "" {
			pipe.Set(ctx, idxLegacyIDPrefix+p.LegacyID, storageKey, 0)
		}
		if p.CollectionID != "" {
			pipe.Set(ctx, idxCollectionPrefix+p.CollectionID, storageKey, 0)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("persist job: %w", err)
	}

	s.log.Info().Str("job_id", jobID).Str("collection_id", p.CollectionID).Msg("job created")
	return jobID, nil
}

// Get resolves a lookup id against job_id, the storage key, the legacy id
// and the legacy uuid fields, in that order. On a hit the internal storage
// key is exposed through the job's ID field.
func (s *JobStore) Get(ctx context.Context, lookupID string) (*model.Job, error) {
	storageKey, ok := s.resolve(ctx, lookupID, s.byJobID, s.byStorageKey, s.byLegacyID, s.byUUID)
	if !ok {
		return nil, ErrJobNotFound
	}

	data, err := s.redis.Get(ctx, jobKeyPrefix+storageKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("fetch job: %w", err)
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	job.ID = storageKey
	return &job, nil
}

// UpdateStatus applies a partial merge of status plus any extra fields. A
// lookup miss is non-fatal: logged and reported through the bool, not an
// error.
func (s *JobStore) UpdateStatus(ctx context.Context, lookupID string, status model.JobStatus, extra map[string]any) (bool, error) {
	storageKey, ok := s.resolve(ctx, lookupID, s.byJobID, s.byStorageKey, s.byLegacyID, s.byUUID)
	if !ok {
		s.log.Warn().Str("lookup_id", lookupID).Msg("status update for unknown job")
		return false, nil
	}

	err := s.merge(ctx, storageKey, func(doc map[string]any) {
		for k, v := range extra {
			doc[k] = v
		}
		doc["status"] = string(status)
	})
	if err != nil {
		return false, err
	}

	s.log.Info().Str("lookup_id", lookupID).Str("status", string(status)).Msg("job status updated")
	return true, nil
}

// ReconcileFromEvent merges a normalized script.ready event into the matching
// job: status READY plus whichever structured and flat artifact fields the
// event carries. Unspecified fields stay untouched, so replaying the same
// event is idempotent. Resolution additionally tries the collection id as a
// last resort, which can mis-attribute when several jobs share a collection;
// exact identifiers always win first.
func (s *JobStore) ReconcileFromEvent(ctx context.Context, lookupID string, ev model.NormalizedEvent) error {
	chain := []resolver{s.byJobID, s.byStorageKey, s.byUUID, s.byLegacyID}
	if ev.CollectionID != "" {
		collectionID := ev.CollectionID
		chain = append(chain, func(ctx context.Context, _ string) (string, bool) {
			return s.byCollection(ctx, collectionID)
		})
	}

	storageKey, ok := s.resolve(ctx, lookupID, chain...)
	if !ok {
		s.log.Error().Str("lookup_id", lookupID).Str("collection_id", ev.CollectionID).
			Msg("no job record matches event, dropping")
		return ErrJobNotFound
	}

	err := s.merge(ctx, storageKey, func(doc map[string]any) {
		doc["status"] = string(model.JobStatusReady)
		if ev.ScriptText != "" {
			doc["script_text"] = ev.ScriptText
		}
		if len(ev.Scenes) > 0 {
			doc["script"] = model.ScriptPayload{Scenes: ev.Scenes}
		}
		if ev.AudioURL != "" {
			doc["audio_url"] = ev.AudioURL
		}
		if len(ev.SceneVoiceovers) > 0 {
			doc["voice_data"] = model.VoicePayload{SceneVoiceovers: ev.SceneVoiceovers}
		}
		if len(ev.ImageURLs) > 0 {
			doc["image_urls"] = ev.ImageURLs
		}
		if len(ev.SceneImages) > 0 {
			doc["image_data"] = model.ImagePayload{SceneImages: ev.SceneImages}
		}
		if ev.CollectionID != "" {
			if existing, _ := doc["collection_id"].(string); existing == "" {
				doc["collection_id"] = ev.CollectionID
			}
		}
	})
	if err != nil {
		return err
	}

	// Keep the collection index pointing at the most recent job.
	if ev.CollectionID != "" {
		if err := s.redis.Set(ctx, idxCollectionPrefix+ev.CollectionID, storageKey, 0).Err(); err != nil {
			s.log.Error().Err(err).Str("collection_id", ev.CollectionID).Msg("failed to refresh collection index")
		}
	}

	s.log.Info().Str("lookup_id", lookupID).Msg("job reconciled from event")
	return nil
}

// merge applies a read-modify-write on one job document. Watch keeps the
// merge atomic against a concurrent writer of the same record.
func (s *JobStore) merge(ctx context.Context, storageKey string, apply func(doc map[string]any)) error {
	docKey := jobKeyPrefix + storageKey

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, docKey).Bytes()
		if err != nil {
			return err
		}

		var doc map[string]any
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("decode job: %w", err)
		}

		apply(doc)
		doc["updated_at"] = s.now().UTC().Format(time.RFC3339Nano)

		out, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("encode job: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, docKey, out, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxMergeRetries; i++ {
		err := s.redis.Watch(ctx, txf, docKey)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, redis.Nil) {
			return ErrJobNotFound
		}
		return fmt.Errorf("merge job: %w", err)
	}
	return fmt.Errorf("merge job %s: too many concurrent updates", storageKey)
}

// resolver maps a lookup id to a storage key under one strategy.
type resolver func(ctx context.Context, lookupID string) (string, bool)

// resolve tries each strategy in sequence and returns the first hit.
func (s *JobStore) resolve(ctx context.Context, lookupID string, chain ...resolver) (string, bool) {
	if lookupID == "" {
		return "", false
	}
	for _, try := range chain {
		if storageKey, ok := try(ctx, lookupID); ok {
			return storageKey, true
		}
	}
	return "", false
}

func (s *JobStore) byJobID(ctx context.Context, lookupID string) (string, bool) {
	return s.indexLookup(ctx, idxJobIDPrefix+lookupID)
}

// byStorageKey treats the lookup id as the storage key itself, but only when
// it is syntactically valid as one.
func (s *JobStore) byStorageKey(ctx context.Context, lookupID string) (string, bool) {
	if _, err := uuid.Parse(lookupID); err != nil {
		return "", false
	}
	exists, err := s.redis.Exists(ctx, jobKeyPrefix+lookupID).Result()
	if err != nil || exists == 0 {
		return "", false
	}
	return lookupID, true
}

func (s *JobStore) byUUID(ctx context.Context, lookupID string) (string, bool) {
	return s.indexLookup(ctx, idxUUIDPrefix+lookupID)
}

func (s *JobStore) byLegacyID(ctx context.Context, lookupID string) (string, bool) {
	return s.indexLookup(ctx, idxLegacyIDPrefix+lookupID)
}

func (s *JobStore) byCollection(ctx context.Context, lookupID string) (string, bool) {
	return s.indexLookup(ctx, idxCollectionPrefix+lookupID)
}

func (s *JobStore) indexLookup(ctx context.Context, key string) (string, bool) {
	storageKey, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Error().Err(err).Str("key", key).Msg("index lookup failed")
		}
		return "", false
	}
	return storageKey, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
