package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deliberatelab/internal/model"
	"deliberatelab/internal/stage"
	"deliberatelab/internal/validation"
)

func rawStages(t *testing.T, stages ...model.StageConfig) []json.RawMessage {
	t.Helper()
	out := make([]json.RawMessage, len(stages))
	for i, cfg := range stages {
		raw, err := json.Marshal(cfg)
		require.NoError(t, err)
		out[i] = raw
	}
	return out
}

func newTestExperimentService(t *testing.T) (*ExperimentService, *fakeExperimentRepo, *fakeStageRepo, *recordingBroadcaster) {
	t.Helper()
	expRepo := newFakeExperimentRepo()
	stageRepo := newFakeStageRepo()
	expCache, answerCache := setupTestCaches(t)
	svc := NewExperimentService(expRepo, stageRepo, newFakeAnswerRepo(), expCache, answerCache)
	broadcaster := &recordingBroadcaster{}
	svc.SetBroadcaster(broadcaster)
	return svc, expRepo, stageRepo, broadcaster
}

func TestWriteExperiment(t *testing.T) {
	svc, _, stageRepo, broadcaster := newTestExperimentService(t)
	ctx := context.Background()

	tos := stage.CreateTOSStage()
	survey := stage.CreateSurveyStage()

	exp := model.Experiment{Metadata: model.ExperimentMetadata{Name: "Pilot"}}
	saved, err := svc.WriteExperiment(ctx, CollectionExperiments, exp, rawStages(t, tos, survey), "experimenter_1")
	require.NoError(t, err)

	assert.NotEmpty(t, saved.ID, "a fresh experiment gets an id")
	assert.Equal(t, "experimenter_1", saved.Metadata.Creator)
	assert.Equal(t, []string{tos.ID, survey.ID}, saved.StageIDs, "stage order derives from payload order")

	stored, err := stageRepo.GetByID(ctx, saved.ID, tos.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, saved.ID, stored.ExperimentID)

	assert.Contains(t, broadcaster.messages, "experiment_updated")
}

func TestWriteExperimentRejectsInvalidStage(t *testing.T) {
	svc, expRepo, _, _ := newTestExperimentService(t)
	ctx := context.Background()

	good := stage.CreateInfoStage()
	raw := rawStages(t, good)
	raw = append(raw, json.RawMessage(`{"id":"x","kind":"INFO","name":"n","descriptions":{},"bogus":1}`))

	_, err := svc.WriteExperiment(ctx, CollectionExperiments, model.Experiment{}, raw, "experimenter_1")
	var verr *validation.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "bogus", verr.Faults[0].Path)

	assert.Empty(t, expRepo.docs[CollectionExperiments], "one invalid stage rejects the whole write")
}

func TestWriteExperimentUnknownCollection(t *testing.T) {
	svc, _, _, _ := newTestExperimentService(t)
	_, err := svc.WriteExperiment(context.Background(), "surveys", model.Experiment{}, nil, "experimenter_1")
	assert.ErrorIs(t, err, ErrUnknownCollection)
}

func TestGetResolvesStagesInOrder(t *testing.T) {
	svc, _, _, _ := newTestExperimentService(t)
	ctx := context.Background()

	tos := stage.CreateTOSStage()
	survey := stage.CreateSurveyStage()
	saved, err := svc.WriteExperiment(ctx, CollectionExperiments, model.Experiment{}, rawStages(t, survey, tos), "experimenter_1")
	require.NoError(t, err)

	bundle, err := svc.Get(ctx, CollectionExperiments, saved.ID)
	require.NoError(t, err)
	require.Len(t, bundle.Stages, 2)
	assert.Equal(t, survey.ID, bundle.Stages[0].ID)
	assert.Equal(t, tos.ID, bundle.Stages[1].ID)

	// Second read serves from the cache.
	cached, err := svc.Get(ctx, CollectionExperiments, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, bundle.Experiment.ID, cached.Experiment.ID)
}

func TestGetSkipsMissingStageDocs(t *testing.T) {
	svc, _, stageRepo, _ := newTestExperimentService(t)
	ctx := context.Background()

	tos := stage.CreateTOSStage()
	survey := stage.CreateSurveyStage()
	saved, err := svc.WriteExperiment(ctx, CollectionExperiments, model.Experiment{}, rawStages(t, tos, survey), "experimenter_1")
	require.NoError(t, err)

	require.NoError(t, stageRepo.Delete(ctx, saved.ID, tos.ID))

	bundle, err := svc.Get(ctx, CollectionExperiments, saved.ID)
	require.NoError(t, err)
	require.Len(t, bundle.Stages, 1, "missing sub-document is skipped, not an error")
	assert.Equal(t, survey.ID, bundle.Stages[0].ID)
	assert.Len(t, bundle.Experiment.StageIDs, 2)
}

func TestGetNotFound(t *testing.T) {
	svc, _, _, _ := newTestExperimentService(t)
	_, err := svc.Get(context.Background(), CollectionExperiments, "missing")
	assert.ErrorIs(t, err, ErrExperimentNotFound)
}

func TestDeleteExperiment(t *testing.T) {
	svc, expRepo, stageRepo, broadcaster := newTestExperimentService(t)
	ctx := context.Background()

	tos := stage.CreateTOSStage()
	saved, err := svc.WriteExperiment(ctx, CollectionExperiments, model.Experiment{}, rawStages(t, tos), "experimenter_1")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteExperiment(ctx, CollectionExperiments, saved.ID))

	exp, err := expRepo.GetByID(ctx, CollectionExperiments, saved.ID)
	require.NoError(t, err)
	assert.Nil(t, exp)

	stages, err := stageRepo.ListByExperiment(ctx, saved.ID)
	require.NoError(t, err)
	assert.Empty(t, stages)

	assert.Contains(t, broadcaster.messages, "experiment_deleted")
	assert.Contains(t, broadcaster.disconnected, saved.ID)
}

func TestDeleteExperimentRemovesAnswers(t *testing.T) {
	expRepo := newFakeExperimentRepo()
	stageRepo := newFakeStageRepo()
	answerRepo := newFakeAnswerRepo()
	expCache, answerCache := setupTestCaches(t)
	svc := NewExperimentService(expRepo, stageRepo, answerRepo, expCache, answerCache)
	ctx := context.Background()

	tos := stage.CreateTOSStage()
	saved, err := svc.WriteExperiment(ctx, CollectionExperiments, model.Experiment{}, rawStages(t, tos), "experimenter_1")
	require.NoError(t, err)

	for _, participantID := range []string{"p-1", "p-2"} {
		ans := &model.StageParticipantAnswer{
			ExperimentID:  saved.ID,
			ParticipantID: participantID,
			StageID:       tos.ID,
			Kind:          model.StageKindTOS,
		}
		require.NoError(t, answerRepo.Upsert(ctx, ans))
		require.NoError(t, answerCache.Set(ctx, ans))
	}

	require.NoError(t, svc.DeleteExperiment(ctx, CollectionExperiments, saved.ID))

	for _, participantID := range []string{"p-1", "p-2"} {
		answers, err := answerRepo.ListByParticipant(ctx, saved.ID, participantID)
		require.NoError(t, err)
		assert.Empty(t, answers, "stored answers are removed with the experiment")

		cached, err := answerCache.Get(ctx, saved.ID, participantID, tos.ID)
		require.NoError(t, err)
		assert.Nil(t, cached, "cached answers are removed with the experiment")
	}
}

func TestTemplatesDoNotBroadcast(t *testing.T) {
	svc, _, _, broadcaster := newTestExperimentService(t)
	ctx := context.Background()

	saved, err := svc.WriteExperiment(ctx, CollectionTemplates, model.Experiment{}, rawStages(t, stage.CreateInfoStage()), "experimenter_1")
	require.NoError(t, err)
	require.NoError(t, svc.DeleteExperiment(ctx, CollectionTemplates, saved.ID))

	assert.Empty(t, broadcaster.messages)
	assert.Empty(t, broadcaster.disconnected)
}

func TestListByCreator(t *testing.T) {
	svc, _, _, _ := newTestExperimentService(t)
	ctx := context.Background()

	_, err := svc.WriteExperiment(ctx, CollectionExperiments, model.Experiment{}, nil, "experimenter_1")
	require.NoError(t, err)
	_, err = svc.WriteExperiment(ctx, CollectionExperiments, model.Experiment{}, nil, "experimenter_2")
	require.NoError(t, err)

	mine, err := svc.ListByCreator(ctx, CollectionExperiments, "experimenter_1")
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}
