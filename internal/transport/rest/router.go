package rest

import (
	"net/http"
	"os"

	"github.com/gorilla/mux"

	"deliberatelab/internal/service"
	"deliberatelab/internal/sync"
	"deliberatelab/internal/transport/rest/handler"
	"deliberatelab/internal/transport/rest/middleware"
	"deliberatelab/internal/transport/ws"
)

// Container holds all dependencies for the router
type Container struct {
	AuthService       *service.AuthService
	ExperimentService *service.ExperimentService
	AnswerService     *service.AnswerService
	WSHub             *ws.Hub
	Watcher           sync.Watcher
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	// Initialize handlers
	authHandler := handler.NewAuthHandler(c.AuthService)
	expHandler := handler.NewExperimentHandler(c.ExperimentService)
	answerHandler := handler.NewAnswerHandler(c.AuthService, c.ExperimentService, c.AnswerService)
	wsHandler := ws.NewHandler(c.WSHub, c.AuthService, c.Watcher)

	// Initialize middleware
	authMW := middleware.NewAuthMiddleware(c.AuthService)

	// CORS middleware (apply first)
	r.Use(corsMiddleware)

	// API v1 routes
	v1 := r.PathPrefix("/v1").Subrouter()

	// Public routes
	v1.HandleFunc("/auth/login", authHandler.Login).Methods("POST", "OPTIONS")
	v1.HandleFunc("/experiments/{experimentId}/join", answerHandler.Join).Methods("POST", "OPTIONS")

	// WebSocket routes (public with token in query param)
	v1.HandleFunc("/ws/experiments/{experimentId}/experimenter", wsHandler.ExperimenterWS).Methods("GET")
	v1.HandleFunc("/ws/experiments/{experimentId}/participant", wsHandler.ParticipantWS).Methods("GET")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Experimenter routes (require experimenter auth)
	expRoutes := v1.NewRoute().Subrouter()
	expRoutes.Use(authMW.RequireExperimenter)

	expRoutes.HandleFunc("/experiments", expHandler.Write).Methods("POST", "OPTIONS")
	expRoutes.HandleFunc("/experiments", expHandler.List).Methods("GET", "OPTIONS")
	expRoutes.HandleFunc("/experiments/{experimentId}", expHandler.Get).Methods("GET", "OPTIONS")
	expRoutes.HandleFunc("/experiments/{experimentId}", expHandler.Delete).Methods("DELETE", "OPTIONS")
	expRoutes.HandleFunc("/experiments/{experimentId}/stages/{stageId}", expHandler.GetStage).Methods("GET", "OPTIONS")
	expRoutes.HandleFunc("/experiments/{experimentId}/participants/{participantId}/answers", answerHandler.ListForExperimenter).Methods("GET", "OPTIONS")

	expRoutes.HandleFunc("/templates", expHandler.WriteTemplate).Methods("POST", "OPTIONS")
	expRoutes.HandleFunc("/templates", expHandler.ListTemplates).Methods("GET", "OPTIONS")
	expRoutes.HandleFunc("/templates/{experimentId}", expHandler.GetTemplate).Methods("GET", "OPTIONS")
	expRoutes.HandleFunc("/templates/{experimentId}", expHandler.DeleteTemplate).Methods("DELETE", "OPTIONS")

	// Participant routes (require participant auth)
	participantRoutes := v1.NewRoute().Subrouter()
	participantRoutes.Use(authMW.RequireParticipant)

	participantRoutes.HandleFunc("/participant/experiment", answerHandler.GetExperiment).Methods("GET", "OPTIONS")
	participantRoutes.HandleFunc("/participant/stages/{stageId}/answer", answerHandler.Submit).Methods("POST", "OPTIONS")
	participantRoutes.HandleFunc("/participant/stages/{stageId}/answer", answerHandler.Get).Methods("GET", "OPTIONS")
	participantRoutes.HandleFunc("/participant/answers", answerHandler.List).Methods("GET", "OPTIONS")

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
		if allowedOrigins == "" {
			allowedOrigins = "*"
		}

		allowedMethods := os.Getenv("CORS_ALLOWED_METHODS")
		if allowedMethods == "" {
			allowedMethods = "GET, POST, PUT, DELETE, OPTIONS"
		}

		allowedHeaders := os.Getenv("CORS_ALLOWED_HEADERS")
		if allowedHeaders == "" {
			allowedHeaders = "Content-Type, Authorization"
		}

		w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
		w.Header().Set("Access-Control-Allow-Methods", allowedMethods)
		w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
