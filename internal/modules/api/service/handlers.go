package service

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"forwardtest/internal/helper"
	"forwardtest/internal/models"
	"forwardtest/internal/modules/config"
	diagsvc "forwardtest/internal/modules/diagnostics/service"
	orchsvc "forwardtest/internal/modules/orchestrator/service"
	sessionssvc "forwardtest/internal/modules/sessions/service"

	"github.com/gin-gonic/gin"
)

const defaultLogLimit = 50

// PositionCloser flattens an instrument's position on demand.
type PositionCloser interface {
	ClosePosition(ctx context.Context, account models.AccountRef, instrument string) error
}

// Handler is the dashboard-facing HTTP surface: arm/disarm sessions, read
// the execution log, run diagnostics.
type Handler struct {
	manager *orchsvc.Manager
	store   sessionssvc.Store
	diag    *diagsvc.Service
	broker  PositionCloser
	cfg     *config.Config
}

func NewHandler(cfg *config.Config, manager *orchsvc.Manager, store sessionssvc.Store, diag *diagsvc.Service, broker PositionCloser) *Handler {
	return &Handler{
		manager: manager,
		store:   store,
		diag:    diag,
		broker:  broker,
		cfg:     cfg,
	}
}

func (h *Handler) Register(r *gin.Engine) {
	api := r.Group("/api", JWTAuth(h.cfg.API.JWTSecret))
	api.POST("/sessions", h.createSession)
	api.GET("/sessions", h.listSessions)
	api.DELETE("/sessions/:id", h.deleteSession)
	api.GET("/sessions/:id/log", h.sessionLog)
	api.GET("/diagnostics", h.diagnostics)
}

type armBody struct {
	StrategyID  string  `json:"strategy_id" binding:"required"`
	AccountID   string  `json:"account_id" binding:"required"`
	Environment string  `json:"environment"`
	Instrument  string  `json:"instrument" binding:"required"`
	Timeframe   string  `json:"timeframe" binding:"required"`

	RiskPerTrade    float64 `json:"risk_per_trade"`
	StopLossPips    float64 `json:"stop_loss_pips"`
	TakeProfitPips  float64 `json:"take_profit_pips"`
	MaxPositionSize int64   `json:"max_position_size"`
	ReverseSignals  bool    `json:"reverse_signals"`
}

func (h *Handler) createSession(c *gin.Context) {
	var body armBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	env := models.Environment(body.Environment)
	if env == "" {
		env = models.EnvPractice
	}
	if env != models.EnvPractice && env != models.EnvLive {
		c.JSON(http.StatusBadRequest, gin.H{"error": "environment must be practice or live"})
		return
	}
	tf := helper.NormTF(body.Timeframe)
	if helper.TFDuration(tf) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown timeframe " + body.Timeframe})
		return
	}
	if body.RiskPerTrade <= 0 || body.StopLossPips <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "risk_per_trade and stop_loss_pips must be positive"})
		return
	}

	sess, err := h.manager.Arm(c.Request.Context(), orchsvc.ArmRequest{
		UserID:     userID(c),
		StrategyID: body.StrategyID,
		Account:    models.AccountRef{AccountID: body.AccountID, Environment: env},
		Instrument: body.Instrument,
		Timeframe:  tf,
		Risk: models.RiskParams{
			RiskPerTrade:    body.RiskPerTrade,
			StopLossPips:    body.StopLossPips,
			TakeProfitPips:  body.TakeProfitPips,
			MaxPositionSize: body.MaxPositionSize,
			ReverseSignals:  body.ReverseSignals,
		},
	})
	if err != nil {
		if errors.Is(err, sessionssvc.ErrConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "an active session already exists for this strategy and account"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, sess)
}

func (h *Handler) listSessions(c *gin.Context) {
	sessions, err := h.store.List(c.Request.Context(), sessionssvc.Filter{
		UserID:     userID(c),
		ActiveOnly: c.Query("active") == "true",
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (h *Handler) deleteSession(c *gin.Context) {
	sess, ok := h.ownedSession(c)
	if !ok {
		return
	}
	if err := h.manager.Disarm(c.Request.Context(), sess.ID, "user request"); err != nil {
		if errors.Is(err, sessionssvc.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// ?close=true also flattens whatever the session left open
	if c.Query("close") == "true" {
		if err := h.broker.ClosePosition(c.Request.Context(), sess.Account, sess.Instrument); err != nil {
			c.JSON(http.StatusOK, gin.H{"warning": "session disarmed but close failed: " + err.Error()})
			return
		}
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) sessionLog(c *gin.Context) {
	sess, ok := h.ownedSession(c)
	if !ok {
		return
	}

	limit := defaultLogLimit
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := h.store.RecentLog(c.Request.Context(), sess.ID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (h *Handler) diagnostics(c *gin.Context) {
	verdict, err := h.diag.Run(c.Request.Context(), userID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, verdict)
}

// ownedSession loads :id and hides other users' sessions behind a 404.
func (h *Handler) ownedSession(c *gin.Context) (*models.Session, bool) {
	sess, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, sessionssvc.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	if sess.UserID != userID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return nil, false
	}
	return sess, true
}
