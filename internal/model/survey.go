package model

import "encoding/json"

// SurveyQuestionKind defines the type of survey question
type SurveyQuestionKind string

const (
	SurveyQuestionKindText           SurveyQuestionKind = "TEXT"            // Freeform text
	SurveyQuestionKindCheck          SurveyQuestionKind = "CHECK"           // Yes/no checkbox
	SurveyQuestionKindMultipleChoice SurveyQuestionKind = "MULTIPLE_CHOICE" // Pick one option
	SurveyQuestionKindScale          SurveyQuestionKind = "SCALE"           // Pick one point on a scale
)

// MultipleChoiceItem is one selectable option of a MULTIPLE_CHOICE question
type MultipleChoiceItem struct {
	ID     string  `json:"id" bson:"id"`
	Text   string  `json:"text" bson:"text"`
	Points float64 `json:"points" bson:"points"`
}

// ScaleItem is one point of a SCALE question
type ScaleItem struct {
	ID          string  `json:"id" bson:"id"`
	Value       float64 `json:"value" bson:"value"`
	Description string  `json:"description" bson:"description"`
}

// SurveyQuestion is one question of a SURVEY stage. Kind determines which
// option list is legal: MULTIPLE_CHOICE owns MultipleChoiceOptions, SCALE
// owns ScaleOptions, TEXT and CHECK own neither. On the wire both option
// lists share the "options" key, discriminated by kind.
type SurveyQuestion struct {
	ID            string             `bson:"id"`
	Kind          SurveyQuestionKind `bson:"kind"`
	QuestionTitle string             `bson:"questionTitle"`

	MultipleChoiceOptions []MultipleChoiceItem `bson:"mcOptions,omitempty"`
	ScaleOptions          []ScaleItem          `bson:"scaleOptions,omitempty"`
}

type surveyQuestionHead struct {
	ID            string             `json:"id"`
	Kind          SurveyQuestionKind `json:"kind"`
	QuestionTitle string             `json:"questionTitle"`
}

// MarshalJSON emits the kind-appropriate option list under "options".
func (q SurveyQuestion) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"id":            q.ID,
		"kind":          q.Kind,
		"questionTitle": q.QuestionTitle,
	}
	switch q.Kind {
	case SurveyQuestionKindMultipleChoice:
		opts := q.MultipleChoiceOptions
		if opts == nil {
			opts = []MultipleChoiceItem{}
		}
		out["options"] = opts
	case SurveyQuestionKindScale:
		opts := q.ScaleOptions
		if opts == nil {
			opts = []ScaleItem{}
		}
		out["options"] = opts
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes "options" into the list selected by "kind".
func (q *SurveyQuestion) UnmarshalJSON(data []byte) error {
	var head surveyQuestionHead
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	q.ID = head.ID
	q.Kind = head.Kind
	q.QuestionTitle = head.QuestionTitle
	q.MultipleChoiceOptions = nil
	q.ScaleOptions = nil

	switch head.Kind {
	case SurveyQuestionKindMultipleChoice:
		var body struct {
			Options []MultipleChoiceItem `json:"options"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return err
		}
		q.MultipleChoiceOptions = body.Options
	case SurveyQuestionKindScale:
		var body struct {
			Options []ScaleItem `json:"options"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return err
		}
		q.ScaleOptions = body.Options
	}
	return nil
}
