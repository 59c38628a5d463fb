package experiment

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"deliberatelab/internal/model"
	"deliberatelab/internal/stage"
)

func testExperiment(stageIDs ...string) model.Experiment {
	return model.Experiment{
		ID:       "exp-1",
		Metadata: model.ExperimentMetadata{Name: "Pilot", Creator: "experimenter_1"},
		StageIDs: stageIDs,
	}
}

func testStage(id string, kind model.StageKind, name string) model.StageConfig {
	cfg := stage.CreateStage(kind)
	cfg.ID = id
	cfg.Name = name
	return cfg
}

func TestModelLoadingState(t *testing.T) {
	m := NewModel()
	assert.True(t, m.Loading())

	m.SetExperiment(testExperiment("s1"))
	assert.True(t, m.Loading(), "still loading until stages arrive")

	m.ApplyStages([]model.StageConfig{testStage("s1", model.StageKindInfo, "Intro")})
	m.MarkStagesLoaded()
	assert.False(t, m.Loading())
}

func TestModelStagesSkipUnresolvedIDs(t *testing.T) {
	m := NewModel()
	m.SetExperiment(testExperiment("s1", "s2", "s3"))
	m.ApplyStages([]model.StageConfig{
		testStage("s1", model.StageKindTOS, "Terms"),
		testStage("s3", model.StageKindSurvey, "Survey"),
	})

	stages := m.Stages()
	assert.Len(t, stages, 2, "unsynced s2 is skipped, not a ghost entry")
	assert.Equal(t, "s1", stages[0].ID)
	assert.Equal(t, "s3", stages[1].ID)
	assert.Len(t, m.StageIDs(), 3)
}

func TestModelNextStageID(t *testing.T) {
	m := NewModel()
	m.SetExperiment(testExperiment("s1", "s2", "s3"))

	next, ok := m.NextStageID("s1")
	assert.True(t, ok)
	assert.Equal(t, "s2", next)

	_, ok = m.NextStageID("s3")
	assert.False(t, ok, "last stage has no successor")

	_, ok = m.NextStageID("nope")
	assert.False(t, ok, "unknown id has no successor")
}

func TestModelStaleVersionSkipped(t *testing.T) {
	m := NewModel()
	m.SetExperiment(testExperiment("s1"))

	newer := testStage("s1", model.StageKindInfo, "Edited locally")
	newer.Version = 5
	m.ApplyStages([]model.StageConfig{newer})

	stale := testStage("s1", model.StageKindInfo, "Old snapshot")
	stale.Version = 3
	m.ApplyStages([]model.StageConfig{stale})

	cfg, ok := m.Stage("s1")
	assert.True(t, ok)
	assert.Equal(t, "Edited locally", cfg.Name)

	// Same version is reapplied, so an identical snapshot is a no-op.
	m.ApplyStages([]model.StageConfig{newer})
	cfg, _ = m.Stage("s1")
	assert.Equal(t, "Edited locally", cfg.Name)
}

func TestModelStageName(t *testing.T) {
	m := NewModel()
	assert.Equal(t, "Loading...", m.StageName("s1", true))

	m.SetExperiment(testExperiment("s1", "s2"))
	m.ApplyStages([]model.StageConfig{
		testStage("s1", model.StageKindTOS, "Terms"),
		testStage("s2", model.StageKindSurvey, "Survey"),
	})
	m.MarkStagesLoaded()

	assert.Equal(t, "Survey", m.StageName("s2", false))
	assert.Equal(t, "2. Survey", m.StageName("s2", true))
}

func TestModelClearAndFail(t *testing.T) {
	m := NewModel()
	m.SetExperiment(testExperiment("s1"))
	m.ApplyStages([]model.StageConfig{testStage("s1", model.StageKindInfo, "Intro")})
	m.MarkStagesLoaded()
	m.Fail(errors.New("stream closed"))

	assert.Error(t, m.Err())

	m.Clear()
	assert.True(t, m.Loading())
	assert.NoError(t, m.Err())
	_, ok := m.Experiment()
	assert.False(t, ok)
	assert.Empty(t, m.Stages())
	assert.Equal(t, "Experiment", m.ExperimentName())
}
