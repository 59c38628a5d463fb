package model

import (
	"encoding/json"
	"time"
)

// SurveyAnswer is a participant's answer to a single survey question. The
// representation of the answer value is fixed by Kind: TEXT carries a free
// string, CHECK a boolean, MULTIPLE_CHOICE and SCALE the id of the selected
// option. On the wire all four share the "answer" key.
type SurveyAnswer struct {
	ID   string             `bson:"id"`
	Kind SurveyQuestionKind `bson:"kind"`

	TextAnswer  string `bson:"textAnswer,omitempty"`
	CheckAnswer bool   `bson:"checkAnswer,omitempty"`
	OptionID    string `bson:"optionId,omitempty"` // MULTIPLE_CHOICE and SCALE
}

type surveyAnswerHead struct {
	ID   string             `json:"id"`
	Kind SurveyQuestionKind `json:"kind"`
}

// MarshalJSON emits the kind-appropriate representation under "answer".
func (a SurveyAnswer) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"id":   a.ID,
		"kind": a.Kind,
	}
	switch a.Kind {
	case SurveyQuestionKindText:
		out["answer"] = a.TextAnswer
	case SurveyQuestionKindCheck:
		out["answer"] = a.CheckAnswer
	case SurveyQuestionKindMultipleChoice, SurveyQuestionKindScale:
		out["answer"] = a.OptionID
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes "answer" into the representation selected by "kind".
func (a *SurveyAnswer) UnmarshalJSON(data []byte) error {
	var head surveyAnswerHead
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	a.ID = head.ID
	a.Kind = head.Kind
	a.TextAnswer = ""
	a.CheckAnswer = false
	a.OptionID = ""

	switch head.Kind {
	case SurveyQuestionKindCheck:
		var body struct {
			Answer bool `json:"answer"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return err
		}
		a.CheckAnswer = body.Answer
	case SurveyQuestionKindText:
		var body struct {
			Answer string `json:"answer"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return err
		}
		a.TextAnswer = body.Answer
	case SurveyQuestionKindMultipleChoice, SurveyQuestionKindScale:
		var body struct {
			Answer string `json:"answer"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return err
		}
		a.OptionID = body.Answer
	}
	return nil
}

// SurveyStageParticipantAnswer maps question ids to answers for one SURVEY
// stage. Keys are non-empty and every value's kind must match the question
// it answers, which the answer service enforces on submission.
type SurveyStageParticipantAnswer struct {
	Kind      StageKind               `json:"kind" bson:"kind"`
	AnswerMap map[string]SurveyAnswer `json:"answerMap" bson:"answerMap"`
}

// ProfileStageParticipantAnswer is the participant profile set during a
// PROFILE stage.
type ProfileStageParticipantAnswer struct {
	Kind      StageKind `json:"kind" bson:"kind"`
	Name      string    `json:"name" bson:"name"`
	Pronouns  string    `json:"pronouns" bson:"pronouns"`
	AvatarURL string    `json:"avatarUrl" bson:"avatarUrl"`
}

// TOSStageParticipantAnswer records acceptance of the terms of service as a
// unix millisecond timestamp.
type TOSStageParticipantAnswer struct {
	Kind       StageKind `json:"kind" bson:"kind"`
	AcceptedAt float64   `json:"acceptedAt" bson:"acceptedAt"`
}

// StageParticipantAnswer is the stored envelope for one participant's answer
// to one stage. Answer holds the validated payload as decoded JSON.
type StageParticipantAnswer struct {
	ExperimentID  string    `json:"experimentId" bson:"experimentId"`
	ParticipantID string    `json:"participantId" bson:"participantId"`
	StageID       string    `json:"stageId" bson:"stageId"`
	Kind          StageKind `json:"kind" bson:"kind"`
	Answer        any       `json:"answer" bson:"answer"`
	UpdatedAt     time.Time `json:"updatedAt" bson:"updatedAt"`
}
