package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// configCollections maps the public configuration type to its hash key.
var configCollections = map[string]string{
	"styles":          "configurations:styles",
	"languages":       "configurations:languages",
	"voices":          "configurations:voices",
	"visual_styles":   "configurations:visual_styles",
	"target_audience": "configurations:target_audience",
	"durations":       "configurations:durations",
}

var ErrUnknownConfigType = errors.New("unknown configuration type")

// ConfigItem is one entry of a configuration lookup table (a style, a
// language, a voice and so on). Extra describes type-specific fields such as
// a voice's gender or a language's encoding.
type ConfigItem struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// ConfigStore holds the read-mostly configuration collections in Redis
// hashes, one hash per collection, one field per item.
type ConfigStore struct {
	redis *redis.Client
	log   zerolog.Logger
}

func NewConfigStore(redisClient *redis.Client, log zerolog.Logger) *ConfigStore {
	return &ConfigStore{
		redis: redisClient,
		log:   log.With().Str("component", "config_store").Logger(),
	}
}

// List returns all items of a configuration type, ordered by id. Items
// without an id get one derived from their name.
func (s *ConfigStore) List(ctx context.Context, configType string) ([]ConfigItem, error) {
	key, ok := configCollections[configType]
	if !ok {
		return nil, ErrUnknownConfigType
	}

	entries, err := s.redis.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch configurations %s: %w", configType, err)
	}

	items := make([]ConfigItem, 0, len(entries))
	for id, raw := range entries {
		var item ConfigItem
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			s.log.Warn().Str("type", configType).Str("id", id).Msg("skipping malformed configuration entry")
			continue
		}
		if item.ID == "" {
			item.ID = id
		}
		items = append(items, item)
	}

	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

// Add inserts a new configuration item and returns its id.
func (s *ConfigStore) Add(ctx context.Context, configType string, item ConfigItem) (string, error) {
	key, ok := configCollections[configType]
	if !ok {
		return "", ErrUnknownConfigType
	}

	if item.ID == "" {
		item.ID = strings.ReplaceAll(strings.ToLower(item.Name), " ", "_")
	}

	data, err := json.Marshal(item)
	if err != nil {
		return "", fmt.Errorf("marshal configuration: %w", err)
	}
	if err := s.redis.HSet(ctx, key, item.ID, data).Err(); err != nil {
		return "", fmt.Errorf("store configuration: %w", err)
	}
	return item.ID, nil
}

// Update replaces an existing item. Returns false when the id is unknown.
func (s *ConfigStore) Update(ctx context.Context, configType, id string, item ConfigItem) (bool, error) {
	key, ok := configCollections[configType]
	if !ok {
		return false, ErrUnknownConfigType
	}

	exists, err := s.redis.HExists(ctx, key, id).Result()
	if err != nil {
		return false, fmt.Errorf("check configuration: %w", err)
	}
	if !exists {
		return false, nil
	}

	item.ID = id
	data, err := json.Marshal(item)
	if err != nil {
		return false, fmt.Errorf("marshal configuration: %w", err)
	}
	if err := s.redis.HSet(ctx, key, id, data).Err(); err != nil {
		return false, fmt.Errorf("store configuration: %w", err)
	}
	return true, nil
}

// Delete removes an item. Returns false when the id is unknown.
func (s *ConfigStore) Delete(ctx context.Context, configType, id string) (bool, error) {
	key, ok := configCollections[configType]
	if !ok {
		return false, ErrUnknownConfigType
	}

	removed, err := s.redis.HDel(ctx, key, id).Result()
	if err != nil {
		return false, fmt.Errorf("delete configuration: %w", err)
	}
	return removed > 0, nil
}

// ConfigTypes lists the valid configuration type names.
func ConfigTypes() []string {
	types := make([]string, 0, len(configCollections))
	for t := range configCollections {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
