package model

import "encoding/json"

// StageKind identifies which configuration schema and participant-answer
// schema apply to a stage. The set is closed: every component dispatches on
// this tag through the stage registry.
type StageKind string

const (
	StageKindTOS     StageKind = "TOS"     // Terms of service to accept
	StageKindInfo    StageKind = "INFO"    // Informational panel, no answer
	StageKindProfile StageKind = "PROFILE" // Participant profile setup
	StageKindSurvey  StageKind = "SURVEY"  // Ordered list of survey questions
)

// StageTextConfig holds the description texts shown alongside a stage.
// All three are independently optional.
type StageTextConfig struct {
	PrimaryText string `json:"primaryText,omitempty" bson:"primaryText,omitempty"`
	InfoText    string `json:"infoText,omitempty" bson:"infoText,omitempty"`
	HelpText    string `json:"helpText,omitempty" bson:"helpText,omitempty"`
}

// StageConfig is one stage of an experiment. ID and Kind are immutable after
// creation; ID is unique within the owning experiment. Kind-specific fields
// are only populated for their kind, which the strict schema enforces at
// every write boundary.
type StageConfig struct {
	ID           string          `json:"id" bson:"id"`
	ExperimentID string          `json:"-" bson:"experimentId,omitempty"`
	Kind         StageKind       `json:"kind" bson:"kind"`
	Name         string          `json:"name" bson:"name"`
	Descriptions StageTextConfig `json:"descriptions" bson:"descriptions"`

	// TOS only
	TOSLines []string `json:"tosLines,omitempty" bson:"tosLines,omitempty"`
	// INFO only
	InfoLines []string `json:"infoLines,omitempty" bson:"infoLines,omitempty"`
	// SURVEY only
	Questions []SurveyQuestion `json:"questions,omitempty" bson:"questions,omitempty"`

	// Version is a monotonic edit counter stamped by the editor. It never
	// travels over the wire; remote snapshots older than the local copy are
	// discarded by comparing it.
	Version uint64 `json:"-" bson:"version,omitempty"`
}

// MarshalJSON emits only the fields legal for the stage's kind. The kind's
// collection is always present, as an empty array when unset, so strict
// readers see the field rather than an omission.
func (c StageConfig) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"id":           c.ID,
		"kind":         c.Kind,
		"name":         c.Name,
		"descriptions": c.Descriptions,
	}
	switch c.Kind {
	case StageKindTOS:
		lines := c.TOSLines
		if lines == nil {
			lines = []string{}
		}
		out["tosLines"] = lines
	case StageKindInfo:
		lines := c.InfoLines
		if lines == nil {
			lines = []string{}
		}
		out["infoLines"] = lines
	case StageKindSurvey:
		questions := c.Questions
		if questions == nil {
			questions = []SurveyQuestion{}
		}
		out["questions"] = questions
	}
	return json.Marshal(out)
}

// Question returns the survey question with the given id, or nil.
func (c *StageConfig) Question(id string) *SurveyQuestion {
	for i := range c.Questions {
		if c.Questions[i].ID == id {
			return &c.Questions[i]
		}
	}
	return nil
}
