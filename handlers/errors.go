package handlers

import (
	"net/http"

	"github.com/itpetinwtbap/quiz/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func statusFor(err error) int {
	switch services.ErrorKind(err) {
	case "not_found":
		return http.StatusNotFound
	case "exhausted", "conflict":
		return http.StatusConflict
	case "invalid_action":
		return http.StatusBadRequest
	case "persistence_unavailable":
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error(), "kind": services.ErrorKind(err)})
}
