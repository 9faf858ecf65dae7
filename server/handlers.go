package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	orchestratorx "github.com/tanpawarit/device-reservation-agent/agent/agents/orchestrator"
	contractx "github.com/tanpawarit/device-reservation-agent/agent/contract"
)

const (
	detailUnavailable          = "model credentials are not configured."
	detailInternal             = "agent failed to process the request."
	detailInvalidBody          = "request body must be a JSON object."
	detailSessionRequired      = "session_id is required."
	detailMessageRequired      = "message is required."
	detailActionInvalid        = "action must be either 'confirm' or 'cancel'."
	detailStartTimeMissing     = "start_time is required when confirming a reservation."
	detailReservationIDMissing = "reservation_id is required when cancelling a reservation."
)

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type decisionRequest struct {
	SessionID     string `json:"session_id"`
	Action        string `json:"action"`
	StartTime     string `json:"start_time"`
	ReservationID string `json:"reservation_id"`
}

type errorLine struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": s.cfg.AppName})
}

func (s *Server) chatStream(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": detailInvalidBody})
		return
	}
	req.SessionID = strings.TrimSpace(req.SessionID)
	if req.SessionID == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": detailSessionRequired})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": detailMessageRequired})
		return
	}
	if s.engine == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": detailUnavailable})
		return
	}

	enc := json.NewEncoder(c.Writer)
	enc.SetEscapeHTML(false)
	started := false
	begin := func() {
		if started {
			return
		}
		started = true
		c.Header("Content-Type", "application/x-ndjson")
		c.Header("Cache-Control", "no-cache")
		c.Header("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)
	}

	sink := func(ev orchestratorx.Event) error {
		if err := c.Request.Context().Err(); err != nil {
			return err
		}
		begin()
		if err := enc.Encode(ev); err != nil {
			return err
		}
		c.Writer.Flush()
		return nil
	}

	err := s.engine.StreamTurn(c.Request.Context(), req.SessionID, req.Message, sink)
	if err == nil {
		return
	}
	if !started {
		s.writeError(c, err)
		return
	}
	s.logger.Error().Err(err).Str("session_id", req.SessionID).Msg("stream turn failed")
	if c.Request.Context().Err() != nil {
		return
	}
	_ = enc.Encode(errorLine{Type: "error", Error: err.Error()})
	c.Writer.Flush()
}

func (s *Server) decision(c *gin.Context) {
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": detailInvalidBody})
		return
	}

	action := contractx.ActionType(req.Action)
	switch {
	case strings.TrimSpace(req.SessionID) == "":
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": detailSessionRequired})
		return
	case !action.Valid():
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": detailActionInvalid})
		return
	case action == contractx.ActionConfirm && strings.TrimSpace(req.StartTime) == "":
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": detailStartTimeMissing})
		return
	case action == contractx.ActionCancel && strings.TrimSpace(req.ReservationID) == "":
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": detailReservationIDMissing})
		return
	}
	if s.engine == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": detailUnavailable})
		return
	}

	out, err := s.engine.ApplyAction(c.Request.Context(), contractx.ActionRequest{
		SessionID:     strings.TrimSpace(req.SessionID),
		Action:        action,
		StartTime:     req.StartTime,
		ReservationID: req.ReservationID,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) writeError(c *gin.Context, err error) {
	if errors.Is(err, contractx.ErrValidation) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	s.logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("agent request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"detail": detailInternal})
}
