// Package sync reconciles remotely stored experiment documents into the
// in-memory experiment projection. It subscribes to the experiment document
// and to its stage sub-documents, merges incoming snapshots, and guarantees
// that tearing a subscription down releases listeners before any cached
// state is cleared.
package sync

import (
	"context"
	gosync "sync"

	"deliberatelab/internal/experiment"
	"deliberatelab/internal/model"
)

// ChangeType discriminates stage change entries
type ChangeType int

const (
	// ChangeUpsert is a created or updated stage document
	ChangeUpsert ChangeType = iota
	// ChangeRemove is a deleted stage document
	ChangeRemove
)

// StageChange is one changed stage document in a snapshot event
type StageChange struct {
	Type    ChangeType
	Stage   model.StageConfig // valid for ChangeUpsert
	StageID string            // valid for ChangeRemove
}

// StageEvent is one snapshot of the stage sub-document collection. Changes
// lists the documents that changed since the previous event; Docs is the
// full current document set.
type StageEvent struct {
	Changes []StageChange
	Docs    []model.StageConfig
}

// ExperimentEvent is one snapshot of the experiment document
type ExperimentEvent struct {
	Experiment model.Experiment
}

// Watcher produces live snapshot streams for an experiment. The returned
// cancel func releases the subscription; after it returns, the event channel
// is closed without further deliveries.
type Watcher interface {
	WatchExperiment(ctx context.Context, experimentID string) (<-chan ExperimentEvent, func(), error)
	WatchStages(ctx context.Context, experimentID string) (<-chan StageEvent, func(), error)
}

// Loader drives one experiment projection from a Watcher. Switching
// experiments or closing the loader releases the previous subscriptions
// before clearing the projection, so a late event can never repopulate state
// for an experiment no longer being viewed.
type Loader struct {
	watcher Watcher
	model   *experiment.Model

	mu           gosync.Mutex
	gen          uint64
	cancels      []func()
	experimentID string
}

// NewLoader returns a loader feeding the given model
func NewLoader(w Watcher, m *experiment.Model) *Loader {
	return &Loader{watcher: w, model: m}
}

// ExperimentID returns the id currently being loaded, or ""
func (l *Loader) ExperimentID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.experimentID
}

// Load switches the projection to the given experiment. Any previous
// subscriptions are released first.
func (l *Loader) Load(ctx context.Context, experimentID string) error {
	l.Close()

	expCh, cancelExp, err := l.watcher.WatchExperiment(ctx, experimentID)
	if err != nil {
		l.model.Fail(err)
		return err
	}
	stageCh, cancelStages, err := l.watcher.WatchStages(ctx, experimentID)
	if err != nil {
		cancelExp()
		l.model.Fail(err)
		return err
	}

	l.mu.Lock()
	l.gen++
	gen := l.gen
	l.cancels = []func(){cancelExp, cancelStages}
	l.experimentID = experimentID
	l.mu.Unlock()

	go l.consumeExperiment(gen, expCh)
	go l.consumeStages(gen, stageCh)
	return nil
}

// Close releases all subscriptions, then clears the projection. The order
// matters: unsubscribe first, clear second.
func (l *Loader) Close() {
	l.mu.Lock()
	l.gen++
	cancels := l.cancels
	l.cancels = nil
	l.experimentID = ""
	l.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	l.model.Clear()
}

// current reports whether events from the given subscription generation are
// still live. Events raced against a Close or a newer Load are dropped.
func (l *Loader) current(gen uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gen == gen
}

func (l *Loader) consumeExperiment(gen uint64, ch <-chan ExperimentEvent) {
	for ev := range ch {
		if !l.current(gen) {
			return
		}
		l.model.SetExperiment(ev.Experiment)
	}
}

func (l *Loader) consumeStages(gen uint64, ch <-chan StageEvent) {
	for ev := range ch {
		if !l.current(gen) {
			return
		}
		l.applyStageEvent(ev)
	}
}

// applyStageEvent merges one stage snapshot. When the event reports changes,
// only those documents are applied; when it reports none (an initial or
// empty-diff snapshot) the full document set is applied instead, so the
// local cache is eventually fully populated even without incremental
// changes.
func (l *Loader) applyStageEvent(ev StageEvent) {
	if len(ev.Changes) == 0 {
		l.model.ApplyStages(ev.Docs)
	} else {
		for _, change := range ev.Changes {
			switch change.Type {
			case ChangeUpsert:
				l.model.ApplyStages([]model.StageConfig{change.Stage})
			case ChangeRemove:
				l.model.RemoveStage(change.StageID)
			}
		}
	}
	l.model.MarkStagesLoaded()
}
