// Package experiment holds the in-memory view of one experiment: a
// read-only projection kept live by the sync layer, and an editor that is
// the sole local mutation surface.
package experiment

import (
	"strconv"
	"sync"

	"deliberatelab/internal/model"
)

// Model is the read projection of an experiment and its stage configs. The
// sync layer applies remote snapshots to it and the UI-facing callers read
// from it. Writers are serialized by the internal lock; readers never
// observe a half-applied update.
type Model struct {
	mu sync.RWMutex

	experiment    model.Experiment
	hasExperiment bool
	stageMap      map[string]model.StageConfig

	experimentLoaded bool
	stagesLoaded     bool
	err              error
}

// NewModel returns an empty model in the loading state
func NewModel() *Model {
	return &Model{stageMap: make(map[string]model.StageConfig)}
}

// SetExperiment applies the experiment document snapshot
func (m *Model) SetExperiment(exp model.Experiment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.experiment = exp
	m.hasExperiment = true
	m.experimentLoaded = true
}

// ApplyStages applies stage config snapshots. A stage older than the copy
// already held (by its edit-counter version) is discarded, so a stale remote
// snapshot cannot clobber a newer local edit. Applying the same snapshot
// twice is a no-op.
func (m *Model) ApplyStages(stages []model.StageConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cfg := range stages {
		if existing, ok := m.stageMap[cfg.ID]; ok && cfg.Version < existing.Version {
			continue
		}
		m.stageMap[cfg.ID] = cfg
	}
}

// RemoveStage drops a stage config from the projection
func (m *Model) RemoveStage(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stageMap, id)
}

// MarkStagesLoaded records that the stage subscription delivered its first
// snapshot
func (m *Model) MarkStagesLoaded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stagesLoaded = true
}

// Fail records a transport fault. The model stays readable; callers present
// a retry affordance.
func (m *Model) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Err returns the recorded transport fault, if any
func (m *Model) Err() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.err
}

// Clear resets the projection to the empty loading state. The sync layer
// calls this only after releasing its subscriptions.
func (m *Model) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.experiment = model.Experiment{}
	m.hasExperiment = false
	m.stageMap = make(map[string]model.StageConfig)
	m.experimentLoaded = false
	m.stagesLoaded = false
	m.err = nil
}

// Loading is true until both underlying subscriptions delivered a first
// snapshot
func (m *Model) Loading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !(m.experimentLoaded && m.stagesLoaded)
}

// Experiment returns the current experiment document snapshot
func (m *Model) Experiment() (model.Experiment, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.experiment, m.hasExperiment
}

// ExperimentName returns the experiment's display name, or a default
func (m *Model) ExperimentName() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.hasExperiment && m.experiment.Metadata.Name != "" {
		return m.experiment.Metadata.Name
	}
	return "Experiment"
}

// StageIDs returns the canonical stage order
func (m *Model) StageIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.experiment.StageIDs))
	copy(out, m.experiment.StageIDs)
	return out
}

// Stages resolves stageIds in order, skipping ids whose config has not
// synced yet. Partial loads degrade to a shorter list, never a ghost entry.
func (m *Model) Stages() []model.StageConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stages := make([]model.StageConfig, 0, len(m.experiment.StageIDs))
	for _, id := range m.experiment.StageIDs {
		if cfg, ok := m.stageMap[id]; ok {
			stages = append(stages, cfg)
		}
	}
	return stages
}

// Stage returns the config for one stage id
func (m *Model) Stage(id string) (model.StageConfig, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.stageMap[id]
	return cfg, ok
}

// StageIndex returns the position of a stage id in the canonical order, or
// -1 when absent
func (m *Model) StageIndex(id string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stageIndexLocked(id)
}

func (m *Model) stageIndexLocked(id string) int {
	for i, stageID := range m.experiment.StageIDs {
		if stageID == id {
			return i
		}
	}
	return -1
}

// NextStageID returns the sequential successor of a stage. It reports false
// both at the last stage and for an unknown id; callers treat either as "no
// successor".
func (m *Model) NextStageID(id string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i := m.stageIndexLocked(id)
	if i >= 0 && i < len(m.experiment.StageIDs)-1 {
		return m.experiment.StageIDs[i+1], true
	}
	return "", false
}

// StageName returns a stage's display name, optionally prefixed with its
// 1-based position
func (m *Model) StageName(id string, withNumber bool) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !(m.experimentLoaded && m.stagesLoaded) {
		return "Loading..."
	}
	name := m.stageMap[id].Name
	if !withNumber {
		return name
	}
	i := m.stageIndexLocked(id)
	if i < 0 {
		return name
	}
	return strconv.Itoa(i+1) + ". " + name
}
