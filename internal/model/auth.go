package model

import "github.com/golang-jwt/jwt/v5"

// LoginRequest is the experimenter login payload
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the experimenter token
type LoginResponse struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
}

// JoinResponse carries a participant token scoped to one experiment
type JoinResponse struct {
	Token         string `json:"token"`
	ParticipantID string `json:"participantId"`
	ExperimentID  string `json:"experimentId"`
}

// ExperimenterClaims are JWT claims for experimenter tokens
type ExperimenterClaims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// ParticipantClaims are JWT claims for participant tokens, scoped to a
// single experiment
type ParticipantClaims struct {
	ExperimentID  string `json:"experimentId"`
	ParticipantID string `json:"participantId"`
	jwt.RegisteredClaims
}
