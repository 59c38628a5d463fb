package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"deliberatelab/internal/model"
)

// AnswerCache keeps a participant's latest stage answers warm so progress
// views do not hit the document store on every poll. A miss returns
// (nil, nil).
type AnswerCache interface {
	Set(ctx context.Context, ans *model.StageParticipantAnswer) error
	Get(ctx context.Context, experimentID, participantID, stageID string) (*model.StageParticipantAnswer, error)
	DeleteByParticipant(ctx context.Context, experimentID, participantID string) error
}

type answerCache struct {
	client *redis.Client
}

// NewAnswerCache creates a new answer cache
func NewAnswerCache(client *redis.Client) AnswerCache {
	return &answerCache{client: client}
}

func answerCacheKey(experimentID, participantID string) string {
	return "answers:" + experimentID + ":" + participantID
}

func (c *answerCache) Set(ctx context.Context, ans *model.StageParticipantAnswer) error {
	data, err := json.Marshal(ans)
	if err != nil {
		return err
	}
	key := answerCacheKey(ans.ExperimentID, ans.ParticipantID)
	if err := c.client.HSet(ctx, key, ans.StageID, data).Err(); err != nil {
		return err
	}
	return c.client.Expire(ctx, key, 24*time.Hour).Err()
}

func (c *answerCache) Get(ctx context.Context, experimentID, participantID, stageID string) (*model.StageParticipantAnswer, error) {
	data, err := c.client.HGet(ctx, answerCacheKey(experimentID, participantID), stageID).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ans model.StageParticipantAnswer
	if err := json.Unmarshal([]byte(data), &ans); err != nil {
		return nil, err
	}
	return &ans, nil
}

func (c *answerCache) DeleteByParticipant(ctx context.Context, experimentID, participantID string) error {
	return c.client.Del(ctx, answerCacheKey(experimentID, participantID)).Err()
}
