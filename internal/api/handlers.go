// Package api contains the HTTP handlers for the workflow service
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"inkwell/backend/internal/repository"
	"inkwell/backend/internal/services"
)

// HealthStatus represents the health check response
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
}

// HandleHealth returns basic health status (always returns 200 OK)
func (s *Server) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Service:   "inkwell-workflows",
		Version:   "1.0.0",
	})
}

// ProblemDetails represents an RFC 7807 Problem Details response
type ProblemDetails struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

// problem maps service-layer errors onto RFC 7807 problem responses.
func (s *Server) problem(c echo.Context, err error) error {
	var validation *services.ValidationError
	var invalidState *services.InvalidStateError
	var concurrency *services.ConcurrencyError
	var execution *services.ExecutionError

	status := http.StatusInternalServerError
	title := "Internal Server Error"
	switch {
	case errors.Is(err, repository.ErrNotFound):
		status, title = http.StatusNotFound, "Not Found"
	case errors.As(err, &validation):
		status, title = http.StatusBadRequest, "Validation Error"
	case errors.As(err, &invalidState):
		status, title = http.StatusConflict, "Invalid State"
	case errors.As(err, &concurrency):
		status, title = http.StatusConflict, "Execution In Progress"
	case errors.As(err, &execution):
		status, title = http.StatusBadGateway, "Collaborator Failure"
	default:
		s.Logger.Error("unhandled API error", "error", err)
	}

	c.Response().Header().Set(echo.HeaderContentType, "application/problem+json")
	return c.JSON(status, ProblemDetails{
		Type:   "about:blank",
		Title:  title,
		Status: status,
		Detail: err.Error(),
	})
}
