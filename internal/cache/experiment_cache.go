package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"deliberatelab/internal/model"
)

// ExperimentCache caches resolved experiment bundles (experiment document
// plus ordered stage configs) to avoid refetching every sub-document on
// reads. A miss returns (nil, nil).
type ExperimentCache interface {
	Set(ctx context.Context, bundle *model.ExperimentBundle) error
	Get(ctx context.Context, id string) (*model.ExperimentBundle, error)
	Delete(ctx context.Context, id string) error
}

type experimentCache struct {
	client *redis.Client
}

// NewExperimentCache creates a new experiment cache
func NewExperimentCache(client *redis.Client) ExperimentCache {
	return &experimentCache{client: client}
}

func (c *experimentCache) Set(ctx context.Context, bundle *model.ExperimentBundle) error {
	data, err := json.Marshal(bundle)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, "experiment:"+bundle.Experiment.ID, data, 10*time.Minute).Err()
}

func (c *experimentCache) Get(ctx context.Context, id string) (*model.ExperimentBundle, error) {
	data, err := c.client.Get(ctx, "experiment:"+id).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var bundle model.ExperimentBundle
	if err := json.Unmarshal([]byte(data), &bundle); err != nil {
		return nil, err
	}
	return &bundle, nil
}

func (c *experimentCache) Delete(ctx context.Context, id string) error {
	return c.client.Del(ctx, "experiment:"+id).Err()
}
