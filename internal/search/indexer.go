// Package search publishes device and shelf documents for an external search index.
package search

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/grabngo/loaner/internal/model"
	"github.com/redis/go-redis/v9"
)

// Stream is the Redis stream that carries index updates
const Stream = "search:updates"

const maxStreamLen = 10000

// Indexer receives documents whenever an entity changes
type Indexer interface {
	IndexDevice(ctx context.Context, d *model.Device) error
	IndexShelf(ctx context.Context, s *model.Shelf) error
}

// RedisIndexer appends documents to a capped Redis stream consumed by the indexer
type RedisIndexer struct {
	rdb *redis.Client
}

func NewRedisIndexer(rdb *redis.Client) *RedisIndexer {
	return &RedisIndexer{rdb: rdb}
}

func (i *RedisIndexer) IndexDevice(ctx context.Context, d *model.Device) error {
	return i.add(ctx, "device", d.ID.String(), DeviceDocument(d))
}

func (i *RedisIndexer) IndexShelf(ctx context.Context, s *model.Shelf) error {
	return i.add(ctx, "shelf", s.ID.String(), ShelfDocument(s))
}

func (i *RedisIndexer) add(ctx context.Context, kind, id string, doc map[string]interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	err = i.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: Stream,
		MaxLen: maxStreamLen,
		Approx: true,
		Values: map[string]interface{}{
			"op":   "update",
			"kind": kind,
			"id":   id,
			"doc":  string(data),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish %s %s to search: %w", kind, id, err)
	}
	return nil
}

// DeviceDocument flattens the searchable fields of a device
func DeviceDocument(d *model.Device) map[string]interface{} {
	tags := make([]string, 0, len(d.Tags))
	for _, t := range d.Tags {
		tags = append(tags, t.Name)
	}
	doc := map[string]interface{}{
		"serial_number": d.SerialNumber,
		"device_model":  d.DeviceModel,
		"assigned_user": d.AssignedUser,
		"enrolled":      d.Enrolled,
		"locked":        d.Locked,
		"lost":          d.Lost,
		"damaged":       d.Damaged,
		"tags":          tags,
	}
	if d.AssetTag != nil {
		doc["asset_tag"] = *d.AssetTag
	}
	if d.ShelfID != nil {
		doc["shelf_id"] = d.ShelfID.String()
	}
	return doc
}

// ShelfDocument flattens the searchable fields of a shelf
func ShelfDocument(s *model.Shelf) map[string]interface{} {
	return map[string]interface{}{
		"location":      s.Location,
		"friendly_name": s.FriendlyName,
		"enabled":       s.Enabled,
		"capacity":      s.Capacity,
	}
}
