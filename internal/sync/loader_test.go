package sync

import (
	"context"
	"errors"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deliberatelab/internal/experiment"
	"deliberatelab/internal/model"
	"deliberatelab/internal/stage"
)

// fakeWatcher feeds hand-built events and records teardown order
type fakeWatcher struct {
	mu      gosync.Mutex
	expCh   chan ExperimentEvent
	stageCh chan StageEvent

	onCancel func(which string)
	expErr   error
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{
		expCh:   make(chan ExperimentEvent, 8),
		stageCh: make(chan StageEvent, 8),
	}
}

func (w *fakeWatcher) WatchExperiment(ctx context.Context, experimentID string) (<-chan ExperimentEvent, func(), error) {
	if w.expErr != nil {
		return nil, nil, w.expErr
	}
	return w.expCh, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.onCancel != nil {
			w.onCancel("experiment")
		}
	}, nil
}

func (w *fakeWatcher) WatchStages(ctx context.Context, experimentID string) (<-chan StageEvent, func(), error) {
	return w.stageCh, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.onCancel != nil {
			w.onCancel("stages")
		}
	}, nil
}

func loaderStage(id, name string) model.StageConfig {
	cfg := stage.CreateInfoStage()
	cfg.ID = id
	cfg.Name = name
	return cfg
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, time.Second, 5*time.Millisecond, msg)
}

func TestLoaderAppliesSnapshots(t *testing.T) {
	w := newFakeWatcher()
	m := experiment.NewModel()
	l := NewLoader(w, m)

	require.NoError(t, l.Load(context.Background(), "exp-1"))
	assert.Equal(t, "exp-1", l.ExperimentID())

	w.expCh <- ExperimentEvent{Experiment: model.Experiment{
		ID:       "exp-1",
		Metadata: model.ExperimentMetadata{Name: "Pilot"},
		StageIDs: []string{"s1", "s2"},
	}}
	w.stageCh <- StageEvent{Docs: []model.StageConfig{
		loaderStage("s1", "Intro"),
		loaderStage("s2", "Wrap up"),
	}}

	waitFor(t, func() bool { return !m.Loading() }, "model never finished loading")
	assert.Len(t, m.Stages(), 2)
	assert.Equal(t, "Pilot", m.ExperimentName())
}

func TestLoaderZeroChangeEventAppliesFullDocs(t *testing.T) {
	w := newFakeWatcher()
	m := experiment.NewModel()
	l := NewLoader(w, m)

	require.NoError(t, l.Load(context.Background(), "exp-1"))
	w.expCh <- ExperimentEvent{Experiment: model.Experiment{ID: "exp-1", StageIDs: []string{"s1", "s2"}}}

	// An event with no changed documents still carries the full set; it must
	// be applied wholesale, not treated as empty.
	w.stageCh <- StageEvent{Docs: []model.StageConfig{
		loaderStage("s1", "Intro"),
		loaderStage("s2", "Wrap up"),
	}}

	waitFor(t, func() bool { return len(m.Stages()) == 2 }, "full doc set not applied")
}

func TestLoaderIncrementalChanges(t *testing.T) {
	w := newFakeWatcher()
	m := experiment.NewModel()
	l := NewLoader(w, m)

	require.NoError(t, l.Load(context.Background(), "exp-1"))
	w.expCh <- ExperimentEvent{Experiment: model.Experiment{ID: "exp-1", StageIDs: []string{"s1", "s2"}}}
	w.stageCh <- StageEvent{Docs: []model.StageConfig{
		loaderStage("s1", "Intro"),
		loaderStage("s2", "Wrap up"),
	}}
	waitFor(t, func() bool { return len(m.Stages()) == 2 }, "initial set not applied")

	edited := loaderStage("s1", "Intro v2")
	w.stageCh <- StageEvent{
		Changes: []StageChange{{Type: ChangeUpsert, Stage: edited}},
		Docs:    []model.StageConfig{edited, loaderStage("s2", "Wrap up")},
	}
	waitFor(t, func() bool {
		cfg, ok := m.Stage("s1")
		return ok && cfg.Name == "Intro v2"
	}, "upsert change not applied")

	w.stageCh <- StageEvent{
		Changes: []StageChange{{Type: ChangeRemove, StageID: "s2"}},
		Docs:    []model.StageConfig{edited},
	}
	waitFor(t, func() bool {
		_, ok := m.Stage("s2")
		return !ok
	}, "remove change not applied")
}

func TestLoaderCloseUnsubscribesBeforeClearing(t *testing.T) {
	w := newFakeWatcher()
	m := experiment.NewModel()
	l := NewLoader(w, m)

	require.NoError(t, l.Load(context.Background(), "exp-1"))
	w.expCh <- ExperimentEvent{Experiment: model.Experiment{ID: "exp-1", StageIDs: []string{"s1"}}}
	w.stageCh <- StageEvent{Docs: []model.StageConfig{loaderStage("s1", "Intro")}}
	waitFor(t, func() bool { return len(m.Stages()) == 1 }, "initial set not applied")

	var order []string
	w.mu.Lock()
	w.onCancel = func(which string) {
		// The projection must still hold data while subscriptions are being
		// released; clearing happens strictly after.
		if _, ok := m.Experiment(); ok {
			order = append(order, which)
		} else {
			order = append(order, which+" after clear")
		}
	}
	w.mu.Unlock()

	l.Close()

	assert.Equal(t, []string{"experiment", "stages"}, order)
	assert.Empty(t, l.ExperimentID())
	assert.True(t, m.Loading())
	assert.Empty(t, m.Stages())
}

func TestLoaderIgnoresEventsAfterClose(t *testing.T) {
	w := newFakeWatcher()
	m := experiment.NewModel()
	l := NewLoader(w, m)

	require.NoError(t, l.Load(context.Background(), "exp-1"))
	l.Close()

	// A buffered event raced against the teardown must not repopulate state.
	w.stageCh <- StageEvent{Docs: []model.StageConfig{loaderStage("s1", "Ghost")}}
	w.expCh <- ExperimentEvent{Experiment: model.Experiment{ID: "exp-1", StageIDs: []string{"s1"}}}
	close(w.stageCh)
	close(w.expCh)

	time.Sleep(50 * time.Millisecond)
	assert.True(t, m.Loading())
	assert.Empty(t, m.Stages())
	_, ok := m.Experiment()
	assert.False(t, ok)
}

func TestLoaderWatchErrorFailsModel(t *testing.T) {
	w := newFakeWatcher()
	w.expErr = errors.New("stream unavailable")
	m := experiment.NewModel()
	l := NewLoader(w, m)

	err := l.Load(context.Background(), "exp-1")
	require.Error(t, err)
	assert.Error(t, m.Err())
	assert.Empty(t, l.ExperimentID())
}
