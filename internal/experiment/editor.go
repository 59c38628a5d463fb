package experiment

import (
	"errors"
	"sync"

	"deliberatelab/internal/model"
	"deliberatelab/internal/stage"
)

var (
	// ErrStageExists is returned when adding a stage whose id is taken
	ErrStageExists = errors.New("stage id already exists")
	// ErrUnknownStage is returned when mutating a stage id not in the experiment
	ErrUnknownStage = errors.New("unknown stage id")
	// ErrImmutableField is returned when an update tries to change a stage's kind
	ErrImmutableField = errors.New("stage id and kind are immutable")
	// ErrNotPermutation is returned when a reorder is not a permutation of the
	// current stage ids
	ErrNotPermutation = errors.New("reorder must be a permutation of existing stage ids")
)

// Snapshot is an immutable view of the editor's state, published to
// subscribers on every mutation.
type Snapshot struct {
	Experiment model.Experiment
	Stages     []model.StageConfig
	Dirty      bool
	Seq        uint64
}

// Editor is the sole local mutation surface for an experiment under
// construction. Every mutation is validated before it is accepted and bumps
// a monotonic edit counter; persistence happens separately through an
// explicit save, decoupling "edit" from "commit".
type Editor struct {
	mu sync.Mutex

	experiment model.Experiment
	stageMap   map[string]model.StageConfig

	canEditStages bool
	dirty         bool
	seq           uint64

	subs []chan Snapshot
}

// NewEditor returns an editor seeded with the given experiment and stages.
// Seeding does not mark the experiment dirty.
func NewEditor(exp model.Experiment, stages []model.StageConfig) *Editor {
	e := &Editor{
		experiment: exp,
		stageMap:   make(map[string]model.StageConfig, len(stages)),
	}
	if e.experiment.StageIDs == nil {
		e.experiment.StageIDs = []string{}
	}
	for _, cfg := range stages {
		e.stageMap[cfg.ID] = cfg
	}
	return e
}

// SetCanEditStages records the permission flag supplied by the identity
// collaborator. The editor only exposes it; it does not re-derive or enforce
// permissions itself.
func (e *Editor) SetCanEditStages(v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.canEditStages = v
}

// CanEditStages reports whether mutation affordances should be enabled
func (e *Editor) CanEditStages() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.canEditStages
}

// AddStage validates a stage config and appends it to the experiment
func (e *Editor) AddStage(cfg model.StageConfig) error {
	if err := stage.ValidateConfigValue(cfg); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.stageMap[cfg.ID]; ok {
		return ErrStageExists
	}
	e.bumpLocked()
	cfg.Version = e.seq
	e.stageMap[cfg.ID] = cfg
	e.experiment.StageIDs = append(e.experiment.StageIDs, cfg.ID)
	e.publishLocked()
	return nil
}

// UpdateStage replaces a stage config. The stage's id and kind are
// immutable: an update naming an unknown id is rejected, as is one changing
// the kind.
func (e *Editor) UpdateStage(cfg model.StageConfig) error {
	if err := stage.ValidateConfigValue(cfg); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	existing, ok := e.stageMap[cfg.ID]
	if !ok {
		return ErrUnknownStage
	}
	if existing.Kind != cfg.Kind {
		return ErrImmutableField
	}
	e.bumpLocked()
	cfg.Version = e.seq
	e.stageMap[cfg.ID] = cfg
	e.publishLocked()
	return nil
}

// RemoveStage removes a stage from the experiment
func (e *Editor) RemoveStage(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.stageMap[id]; !ok {
		return ErrUnknownStage
	}
	delete(e.stageMap, id)
	ids := e.experiment.StageIDs[:0]
	for _, stageID := range e.experiment.StageIDs {
		if stageID != id {
			ids = append(ids, stageID)
		}
	}
	e.experiment.StageIDs = ids
	e.bumpLocked()
	e.publishLocked()
	return nil
}

// ReorderStages replaces the stage order. The new order must be a
// permutation of the current stage ids; otherwise the order is left
// unchanged.
func (e *Editor) ReorderStages(order []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(order) != len(e.experiment.StageIDs) {
		return ErrNotPermutation
	}
	seen := make(map[string]bool, len(order))
	for _, id := range order {
		if seen[id] {
			return ErrNotPermutation
		}
		if _, ok := e.stageMap[id]; !ok {
			return ErrNotPermutation
		}
		seen[id] = true
	}
	e.experiment.StageIDs = append([]string(nil), order...)
	e.bumpLocked()
	e.publishLocked()
	return nil
}

// HasStageKind reports whether any current stage has the given kind. The UI
// uses it to suppress duplicate singleton stages such as TOS.
func (e *Editor) HasStageKind(kind model.StageKind) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, cfg := range e.stageMap {
		if cfg.Kind == kind {
			return true
		}
	}
	return false
}

// Experiment returns a copy of the experiment document under construction
func (e *Editor) Experiment() model.Experiment {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.experimentLocked()
}

// Stages returns the stage configs in canonical order
func (e *Editor) Stages() []model.StageConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stagesLocked()
}

// Stage returns one stage config by id
func (e *Editor) Stage(id string) (model.StageConfig, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cfg, ok := e.stageMap[id]
	return cfg, ok
}

// Dirty reports whether there are unsaved changes
func (e *Editor) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirty
}

// Seq returns the current edit counter. Writers stamp saves with it so a
// completed save can be matched against edits made while it was in flight.
func (e *Editor) Seq() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seq
}

// MarkSaved clears the dirty flag if no edit happened since the save with
// the given counter was taken
func (e *Editor) MarkSaved(seq uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.seq == seq {
		e.dirty = false
	}
}

// Snapshot returns the current immutable view
func (e *Editor) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Subscribe returns a channel receiving a snapshot after every mutation.
// Slow subscribers miss intermediate snapshots rather than blocking the
// editor.
func (e *Editor) Subscribe() <-chan Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	ch := make(chan Snapshot, 16)
	e.subs = append(e.subs, ch)
	return ch
}

func (e *Editor) bumpLocked() {
	e.seq++
	e.dirty = true
}

func (e *Editor) publishLocked() {
	snap := e.snapshotLocked()
	for _, ch := range e.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

func (e *Editor) snapshotLocked() Snapshot {
	return Snapshot{
		Experiment: e.experimentLocked(),
		Stages:     e.stagesLocked(),
		Dirty:      e.dirty,
		Seq:        e.seq,
	}
}

func (e *Editor) experimentLocked() model.Experiment {
	exp := e.experiment
	exp.StageIDs = append([]string(nil), e.experiment.StageIDs...)
	return exp
}

func (e *Editor) stagesLocked() []model.StageConfig {
	stages := make([]model.StageConfig, 0, len(e.experiment.StageIDs))
	for _, id := range e.experiment.StageIDs {
		if cfg, ok := e.stageMap[id]; ok {
			stages = append(stages, cfg)
		}
	}
	return stages
}
