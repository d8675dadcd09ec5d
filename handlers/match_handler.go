package handlers

import (
	"net/http"

	"github.com/itpetinwtbap/quiz/models"
	"github.com/itpetinwtbap/quiz/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type MatchHandler struct {
	matchService *services.MatchService
	syncService  *services.SyncService
}

func NewMatchHandler(matchService *services.MatchService, syncService *services.SyncService) *MatchHandler {
	return &MatchHandler{
		matchService: matchService,
		syncService:  syncService,
	}
}

func (h *MatchHandler) CreateMatch(c *gin.Context) {
	var req services.CreateMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	match, err := h.matchService.CreateMatch(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, match)
}

func (h *MatchHandler) ListActive(c *gin.Context) {
	matches, err := h.matchService.ListActive(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, matches)
}

func (h *MatchHandler) ListMatches(c *gin.Context) {
	status := models.MatchStatus(c.DefaultQuery("status", string(models.MatchStatusActive)))
	matches, err := h.matchService.ListByStatus(c.Request.Context(), status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, matches)
}

func (h *MatchHandler) GetMatch(c *gin.Context) {
	match, err := h.matchService.GetMatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, match)
}

func (h *MatchHandler) GetState(c *gin.Context) {
	view, err := h.syncService.State(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *MatchHandler) DeleteMatch(c *gin.Context) {
	if err := h.matchService.DeleteMatch(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Match deleted successfully"})
}

func (h *MatchHandler) UpdateState(c *gin.Context)    { h.run(c, services.ActionUpdateState) }
func (h *MatchHandler) SelectQuestion(c *gin.Context) { h.run(c, services.ActionSelectQuestion) }
func (h *MatchHandler) RandomQuestion(c *gin.Context) { h.run(c, services.ActionRandomQuestion) }
func (h *MatchHandler) ControlTimer(c *gin.Context)   { h.run(c, services.ActionTimerControl) }
func (h *MatchHandler) UpdateTimer(c *gin.Context)    { h.run(c, services.ActionTimerTimeUpdate) }
func (h *MatchHandler) UpdateScore(c *gin.Context)    { h.run(c, services.ActionUpdateScore) }
func (h *MatchHandler) AddLog(c *gin.Context)         { h.run(c, services.ActionAddLog) }
func (h *MatchHandler) FlipCard(c *gin.Context)       { h.run(c, services.ActionFlipCard) }
func (h *MatchHandler) ResetMatch(c *gin.Context)     { h.run(c, services.ActionResetMatch) }
func (h *MatchHandler) Shuffle(c *gin.Context)        { h.run(c, services.ActionShuffle) }

// SaveState accepts the page-unload beacon. It always answers 204.
func (h *MatchHandler) SaveState(c *gin.Context) {
	matchID := c.Param("id")

	var patch services.MatchPatch
	if err := c.ShouldBind(&patch); err != nil {
		log.Warn().Err(err).Str("match_id", matchID).Msg("malformed save-state body")
		c.Status(http.StatusNoContent)
		return
	}

	h.syncService.SaveState(c.Request.Context(), matchID, patch)
	c.Status(http.StatusNoContent)
}

// run decodes the body as the given action and executes it with no
// originating connection, so every attached viewer gets the event.
func (h *MatchHandler) run(c *gin.Context, name services.ActionName) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	action, err := services.DecodeAction(name, raw)
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := h.syncService.Handle(c.Request.Context(), "", c.Param("id"), "", action)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
