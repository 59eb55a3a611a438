package registry

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
)

// GeneralTopic receives subscribers that gave neither a job nor a collection id.
const GeneralTopic = "general"

// JobTopic returns the topic key for a job subscription.
func JobTopic(jobID string) string {
	return "job:" + jobID
}

// CollectionTopic returns the topic key for a collection subscription.
func CollectionTopic(collectionID string) string {
	return "collection:" + collectionID
}

// TopicFor computes the subscription topic for a connection. Job id takes
// precedence when both are supplied.
func TopicFor(jobID, collectionID string) string {
	switch {
	case jobID != "":
		return JobTopic(jobID)
	case collectionID != "":
		return CollectionTopic(collectionID)
	default:
		return GeneralTopic
	}
}

// Sender delivers one encoded message to a subscriber connection. A non-nil
// error marks the connection dead; the registry prunes it and keeps going.
type Sender interface {
	Send(message []byte) error
}

// Registry is the process-wide table of live subscriber connections keyed by
// topic. Publishes are best effort: a failed send prunes that connection and
// delivery continues to the rest.
type Registry struct {
	mu     sync.Mutex
	topics map[string][]Sender
	log    zerolog.Logger
}

func New(log zerolog.Logger) *Registry {
	return &Registry{
		topics: make(map[string][]Sender),
		log:    log.With().Str("component", "registry").Logger(),
	}
}

// Subscribe registers a connection under a topic.
func (r *Registry) Subscribe(topic string, s Sender) {
	r.mu.Lock()
	r.topics[topic] = append(r.topics[topic], s)
	r.mu.Unlock()
	r.log.Info().Str("topic", topic).Msg("subscriber registered")
}

// Unsubscribe removes a connection from its topic. Removing the last
// connection deletes the topic entry.
func (r *Registry) Unsubscribe(topic string, s Sender) {
	r.mu.Lock()
	r.remove(topic, s)
	r.mu.Unlock()
	r.log.Info().Str("topic", topic).Msg("subscriber removed")
}

// Publish delivers a message to every connection registered under topic, in
// subscription order. Publishing to a topic with no subscribers is a no-op.
func (r *Registry) Publish(topic string, message any) {
	data, err := json.Marshal(message)
	if err != nil {
		r.log.Error().Err(err).Str("topic", topic).Msg("failed to encode message")
		return
	}

	r.mu.Lock()
	subscribers := append([]Sender(nil), r.topics[topic]...)
	r.mu.Unlock()

	if len(subscribers) == 0 {
		r.log.Warn().Str("topic", topic).Msg("no subscribers for topic")
		return
	}

	r.send(topic, subscribers, data)
}

// Broadcast delivers a message to every connection across every topic.
func (r *Registry) Broadcast(message any) {
	data, err := json.Marshal(message)
	if err != nil {
		r.log.Error().Err(err).Msg("failed to encode broadcast")
		return
	}

	r.mu.Lock()
	snapshot := make(map[string][]Sender, len(r.topics))
	for topic, subscribers := range r.topics {
		snapshot[topic] = append([]Sender(nil), subscribers...)
	}
	r.mu.Unlock()

	for topic, subscribers := range snapshot {
		r.send(topic, subscribers, data)
	}
}

// Subscribers reports the number of live connections on a topic.
func (r *Registry) Subscribers(topic string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.topics[topic])
}

// send delivers to a snapshot of subscribers and prunes the ones whose send
// failed. The snapshot keeps a concurrent unsubscribe from corrupting the
// iteration.
func (r *Registry) send(topic string, subscribers []Sender, data []byte) {
	var failed []Sender
	for _, s := range subscribers {
		if err := s.Send(data); err != nil {
			r.log.Error().Err(err).Str("topic", topic).Msg("send failed, pruning subscriber")
			failed = append(failed, s)
		}
	}

	if len(failed) == 0 {
		return
	}

	r.mu.Lock()
	for _, s := range failed {
		r.remove(topic, s)
	}
	r.mu.Unlock()
}

// remove deletes one subscriber from a topic slice. Caller holds r.mu.
func (r *Registry) remove(topic string, s Sender) {
	subscribers := r.topics[topic]
	for i, existing := range subscribers {
		if existing == s {
			r.topics[topic] = append(subscribers[:i:i], subscribers[i+1:]...)
			break
		}
	}
	if len(r.topics[topic]) == 0 {
		delete(r.topics, topic)
	}
}
