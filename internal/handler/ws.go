package handler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/rs/zerolog"

	"github.com/scriptflow/gateway/internal/model"
	"github.com/scriptflow/gateway/internal/registry"
	"github.com/scriptflow/gateway/internal/store"
	"github.com/scriptflow/gateway/internal/ws"
)

const snapshotTimeout = 5 * time.Second

// WSHandler upgrades subscriber connections and binds them to the registry.
type WSHandler struct {
	jobs *store.JobStore
	reg  *registry.Registry
	log  zerolog.Logger
}

func NewWSHandler(jobs *store.JobStore, reg *registry.Registry, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		jobs: jobs,
		reg:  reg,
		log:  log.With().Str("component", "ws_handler").Logger(),
	}
}

// Handle serves one websocket connection for GET /ws. The subscription topic
// comes from the job_id/collection_id query params, job id winning when both
// are present. The current state is pushed immediately on subscribe, before
// any live event arrives.
func (h *WSHandler) Handle(conn *websocket.Conn) {
	jobID := conn.Query("job_id")
	collectionID := conn.Query("collection_id")
	topic := registry.TopicFor(jobID, collectionID)

	client := ws.NewClient(conn, h.log)
	go client.WritePump()

	h.reg.Subscribe(topic, client)
	h.pushSnapshot(client, topic, jobID, collectionID)

	client.ReadLoop()

	h.reg.Unsubscribe(topic, client)
	client.Close()
}

// pushSnapshot sends the stored job state (read through the store, not the
// event path) or a plain subscription ack when there is nothing stored.
func (h *WSHandler) pushSnapshot(client *ws.Client, topic, jobID, collectionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	if jobID != "" {
		if job, err := h.jobs.Get(ctx, jobID); err == nil {
			h.push(client, model.WSStatusMessage{Type: model.WSMessageTypeStatus, Job: job})
			return
		}
	}
	h.push(client, model.WSSubscribedMessage{
		Type:         model.WSMessageTypeSubscribed,
		Topic:        topic,
		CollectionID: collectionID,
	})
}

func (h *WSHandler) push(client *ws.Client, message any) {
	data, err := json.Marshal(message)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to encode snapshot")
		return
	}
	if err := client.Send(data); err != nil {
		h.log.Debug().Err(err).Msg("snapshot send failed")
	}
}
