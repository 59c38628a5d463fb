package model

import "time"

// ExperimentMetadata describes an experiment independent of its stages
type ExperimentMetadata struct {
	Name         string    `json:"name" bson:"name"`
	Description  string    `json:"description,omitempty" bson:"description,omitempty"`
	Creator      string    `json:"creator" bson:"creator"`
	DateCreated  time.Time `json:"dateCreated" bson:"dateCreated"`
	DateModified time.Time `json:"dateModified" bson:"dateModified"`
}

// Experiment is the top-level entity participants execute end to end.
// StageIDs is the canonical stage order; each id resolves to a StageConfig
// persisted as its own document so stages sync independently.
type Experiment struct {
	ID       string             `json:"id" bson:"_id"`
	Metadata ExperimentMetadata `json:"metadata" bson:"metadata"`
	StageIDs []string           `json:"stageIds" bson:"stageIds"`
}

// ExperimentBundle pairs an experiment with its resolved stage configs in
// canonical order. Used for cache snapshots and read responses.
type ExperimentBundle struct {
	Experiment Experiment    `json:"experiment"`
	Stages     []StageConfig `json:"stages"`
}
