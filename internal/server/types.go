package server

import (
	"time"

	"github.com/CK6170/Oxyfit-go/models"
	"github.com/CK6170/Oxyfit-go/pipeline"
)

type APIError struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	OK        bool      `json:"ok"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

type ReduceResponse struct {
	ReductionID string               `json:"reductionId"`
	Bottles     int                  `json:"bottles"`
	Result      *models.OxygenResult `json:"result"`
}

type FitStartResponse struct {
	FitID string `json:"fitId"`
}

// FitProgressDTO is the payload of a "progress" message on /ws/fit.
type FitProgressDTO struct {
	FitID     string    `json:"fitId"`
	Phase     string    `json:"phase"`
	Iteration int       `json:"iteration"`
	Cost      float64   `json:"cost"`
	X         []float64 `json:"x,omitempty"`
	Message   string    `json:"message,omitempty"`
}

type FitDoneDTO struct {
	FitID   string                       `json:"fitId"`
	Fitted  *pipeline.FittedCoefficients `json:"fitted,omitempty"`
	Warning string                       `json:"warning,omitempty"`
}
