package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"deliberatelab/internal/model"
	"deliberatelab/internal/service"
	"deliberatelab/internal/transport/rest/middleware"
	"deliberatelab/internal/validation"
)

// AnswerHandler handles participant join and answer endpoints
type AnswerHandler struct {
	authSvc   *service.AuthService
	expSvc    *service.ExperimentService
	answerSvc *service.AnswerService
}

// NewAnswerHandler creates a new answer handler
func NewAnswerHandler(authSvc *service.AuthService, expSvc *service.ExperimentService, answerSvc *service.AnswerService) *AnswerHandler {
	return &AnswerHandler{authSvc: authSvc, expSvc: expSvc, answerSvc: answerSvc}
}

// Join handles POST /v1/experiments/{experimentId}/join. It issues a token
// scoped to the experiment; the participant id is minted here.
func (h *AnswerHandler) Join(w http.ResponseWriter, r *http.Request) {
	experimentID := mux.Vars(r)["experimentId"]

	if _, err := h.expSvc.Get(r.Context(), service.CollectionExperiments, experimentID); err != nil {
		if err == service.ErrExperimentNotFound {
			writeError(w, http.StatusNotFound, "experiment not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	participantID := "participant_" + uuid.New().String()[:8]
	token, err := h.authSvc.GenerateParticipantToken(experimentID, participantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	writeJSON(w, http.StatusOK, model.JoinResponse{
		Token:         token,
		ParticipantID: participantID,
		ExperimentID:  experimentID,
	})
}

// GetExperiment handles GET /v1/participant/experiment. The experiment is
// the one the participant's token is scoped to.
func (h *AnswerHandler) GetExperiment(w http.ResponseWriter, r *http.Request) {
	experimentID := middleware.GetExperimentID(r.Context())

	bundle, err := h.expSvc.Get(r.Context(), service.CollectionExperiments, experimentID)
	if err == service.ErrExperimentNotFound {
		writeError(w, http.StatusNotFound, "experiment not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, bundle)
}

// Submit handles POST /v1/participant/stages/{stageId}/answer. The body is
// the raw answer payload; the strict schema for the stage's kind decides
// whether it is accepted.
func (h *AnswerHandler) Submit(w http.ResponseWriter, r *http.Request) {
	experimentID := middleware.GetExperimentID(r.Context())
	participantID := middleware.GetParticipantID(r.Context())
	stageID := mux.Vars(r)["stageId"]

	raw, err := io.ReadAll(r.Body)
	if err != nil || len(raw) == 0 {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ans, err := h.answerSvc.Submit(r.Context(), experimentID, participantID, stageID, json.RawMessage(raw))
	if err != nil {
		var verr *validation.ValidationError
		switch {
		case errors.As(err, &verr):
			writeValidationError(w, verr)
		case err == service.ErrStageNotFound:
			writeError(w, http.StatusNotFound, "stage not found")
		case errors.Is(err, service.ErrNoAnswerExpected):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrUnknownQuestion), errors.Is(err, service.ErrAnswerKindMismatch):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, ans)
}

// Get handles GET /v1/participant/stages/{stageId}/answer
func (h *AnswerHandler) Get(w http.ResponseWriter, r *http.Request) {
	experimentID := middleware.GetExperimentID(r.Context())
	participantID := middleware.GetParticipantID(r.Context())
	stageID := mux.Vars(r)["stageId"]

	ans, err := h.answerSvc.Get(r.Context(), experimentID, participantID, stageID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if ans == nil {
		writeError(w, http.StatusNotFound, "answer not found")
		return
	}

	writeJSON(w, http.StatusOK, ans)
}

// List handles GET /v1/participant/answers
func (h *AnswerHandler) List(w http.ResponseWriter, r *http.Request) {
	experimentID := middleware.GetExperimentID(r.Context())
	participantID := middleware.GetParticipantID(r.Context())

	answers, err := h.answerSvc.ListByParticipant(r.Context(), experimentID, participantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"answers": answers})
}

// ListForExperimenter handles GET /v1/experiments/{experimentId}/participants/{participantId}/answers
func (h *AnswerHandler) ListForExperimenter(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	answers, err := h.answerSvc.ListByParticipant(r.Context(), vars["experimentId"], vars["participantId"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"answers": answers})
}
