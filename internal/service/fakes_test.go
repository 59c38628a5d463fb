package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"deliberatelab/internal/cache"
	"deliberatelab/internal/model"
)

// In-memory repositories for service tests. They mirror the Mongo repo
// contracts: lookups miss with (nil, nil), writes stamp timestamps.

type fakeExperimentRepo struct {
	docs map[string]map[string]*model.Experiment // collection -> id -> doc
}

func newFakeExperimentRepo() *fakeExperimentRepo {
	return &fakeExperimentRepo{docs: make(map[string]map[string]*model.Experiment)}
}

func (r *fakeExperimentRepo) Upsert(ctx context.Context, collection string, exp *model.Experiment) error {
	exp.Metadata.DateModified = time.Now()
	if exp.Metadata.DateCreated.IsZero() {
		exp.Metadata.DateCreated = exp.Metadata.DateModified
	}
	if r.docs[collection] == nil {
		r.docs[collection] = make(map[string]*model.Experiment)
	}
	stored := *exp
	r.docs[collection][exp.ID] = &stored
	return nil
}

func (r *fakeExperimentRepo) GetByID(ctx context.Context, collection, id string) (*model.Experiment, error) {
	exp, ok := r.docs[collection][id]
	if !ok {
		return nil, nil
	}
	out := *exp
	return &out, nil
}

func (r *fakeExperimentRepo) ListByCreator(ctx context.Context, collection, creator string) ([]*model.Experiment, error) {
	var out []*model.Experiment
	for _, exp := range r.docs[collection] {
		if exp.Metadata.Creator == creator {
			copied := *exp
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeExperimentRepo) Delete(ctx context.Context, collection, id string) error {
	delete(r.docs[collection], id)
	return nil
}

type fakeStageRepo struct {
	docs map[string]*model.StageConfig // experimentID/stageID -> doc
}

func newFakeStageRepo() *fakeStageRepo {
	return &fakeStageRepo{docs: make(map[string]*model.StageConfig)}
}

func (r *fakeStageRepo) key(experimentID, stageID string) string {
	return experimentID + "/" + stageID
}

func (r *fakeStageRepo) Upsert(ctx context.Context, stage *model.StageConfig) error {
	stored := *stage
	r.docs[r.key(stage.ExperimentID, stage.ID)] = &stored
	return nil
}

func (r *fakeStageRepo) GetByID(ctx context.Context, experimentID, stageID string) (*model.StageConfig, error) {
	cfg, ok := r.docs[r.key(experimentID, stageID)]
	if !ok {
		return nil, nil
	}
	out := *cfg
	return &out, nil
}

func (r *fakeStageRepo) ListByExperiment(ctx context.Context, experimentID string) ([]*model.StageConfig, error) {
	var out []*model.StageConfig
	for _, cfg := range r.docs {
		if cfg.ExperimentID == experimentID {
			copied := *cfg
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeStageRepo) Delete(ctx context.Context, experimentID, stageID string) error {
	delete(r.docs, r.key(experimentID, stageID))
	return nil
}

func (r *fakeStageRepo) DeleteByExperiment(ctx context.Context, experimentID string) error {
	for key, cfg := range r.docs {
		if cfg.ExperimentID == experimentID {
			delete(r.docs, key)
		}
	}
	return nil
}

type fakeAnswerRepo struct {
	docs map[string]*model.StageParticipantAnswer
}

func newFakeAnswerRepo() *fakeAnswerRepo {
	return &fakeAnswerRepo{docs: make(map[string]*model.StageParticipantAnswer)}
}

func (r *fakeAnswerRepo) key(experimentID, participantID, stageID string) string {
	return experimentID + "/" + participantID + "/" + stageID
}

func (r *fakeAnswerRepo) Upsert(ctx context.Context, ans *model.StageParticipantAnswer) error {
	ans.UpdatedAt = time.Now()
	stored := *ans
	r.docs[r.key(ans.ExperimentID, ans.ParticipantID, ans.StageID)] = &stored
	return nil
}

func (r *fakeAnswerRepo) Get(ctx context.Context, experimentID, participantID, stageID string) (*model.StageParticipantAnswer, error) {
	ans, ok := r.docs[r.key(experimentID, participantID, stageID)]
	if !ok {
		return nil, nil
	}
	out := *ans
	return &out, nil
}

func (r *fakeAnswerRepo) ParticipantIDs(ctx context.Context, experimentID string) ([]string, error) {
	seen := make(map[string]bool)
	var ids []string
	for _, ans := range r.docs {
		if ans.ExperimentID == experimentID && !seen[ans.ParticipantID] {
			seen[ans.ParticipantID] = true
			ids = append(ids, ans.ParticipantID)
		}
	}
	return ids, nil
}

func (r *fakeAnswerRepo) DeleteByExperiment(ctx context.Context, experimentID string) error {
	for key, ans := range r.docs {
		if ans.ExperimentID == experimentID {
			delete(r.docs, key)
		}
	}
	return nil
}

func (r *fakeAnswerRepo) ListByParticipant(ctx context.Context, experimentID, participantID string) ([]*model.StageParticipantAnswer, error) {
	var out []*model.StageParticipantAnswer
	for _, ans := range r.docs {
		if ans.ExperimentID == experimentID && ans.ParticipantID == participantID {
			copied := *ans
			out = append(out, &copied)
		}
	}
	return out, nil
}

// recordingBroadcaster captures broadcast calls for assertions
type recordingBroadcaster struct {
	messages     []string
	disconnected []string
}

func (b *recordingBroadcaster) BroadcastToExperimenter(experimentID, msgType string, payload interface{}) {
	b.messages = append(b.messages, msgType)
}

func (b *recordingBroadcaster) BroadcastToParticipant(experimentID, participantID, msgType string, payload interface{}) {
	b.messages = append(b.messages, msgType)
}

func (b *recordingBroadcaster) BroadcastToAllParticipants(experimentID, msgType string, payload interface{}) {
	b.messages = append(b.messages, msgType)
}

func (b *recordingBroadcaster) DisconnectExperiment(experimentID string) {
	b.disconnected = append(b.disconnected, experimentID)
}

func setupTestCaches(t *testing.T) (cache.ExperimentCache, cache.AnswerCache) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return cache.NewExperimentCache(client), cache.NewAnswerCache(client)
}
