package routes

import (
	"net/http"

	"github.com/itpetinwtbap/quiz/handlers"
	"github.com/itpetinwtbap/quiz/middleware"
	"github.com/itpetinwtbap/quiz/services"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	router *gin.Engine,
	matchHandler *handlers.MatchHandler,
	packageHandler *handlers.PackageHandler,
	hub *services.Hub,
	registry *services.RoomRegistry,
) {
	api := router.Group("/api")
	{
		matches := api.Group("/matches")
		{
			matches.GET("/active", matchHandler.ListActive)
			matches.GET("", matchHandler.ListMatches)
			matches.POST("", matchHandler.CreateMatch)
			matches.GET("/:id", matchHandler.GetMatch)
			matches.GET("/:id/state", matchHandler.GetState)
			matches.PUT("/:id", matchHandler.UpdateState)
			matches.DELETE("/:id", matchHandler.DeleteMatch)

			matches.POST("/:id/select-question", matchHandler.SelectQuestion)
			matches.POST("/:id/random-question", matchHandler.RandomQuestion)
			matches.POST("/:id/timer", matchHandler.ControlTimer)
			matches.POST("/:id/timer-time", matchHandler.UpdateTimer)
			matches.POST("/:id/score", matchHandler.UpdateScore)
			matches.POST("/:id/log", matchHandler.AddLog)
			matches.POST("/:id/flip-card", matchHandler.FlipCard)
			matches.POST("/:id/reset", matchHandler.ResetMatch)
			matches.POST("/:id/shuffle", matchHandler.Shuffle)
			matches.POST("/:id/save-state", middleware.Beacon(), matchHandler.SaveState)
		}

		packages := api.Group("/packages")
		{
			packages.GET("", packageHandler.ListPackages)
			packages.POST("", packageHandler.CreatePackage)
			packages.POST("/import", packageHandler.ImportSIGame)
			packages.GET("/:id", packageHandler.GetPackage)
			packages.PUT("/:id", packageHandler.UpdatePackage)
			packages.DELETE("/:id", packageHandler.DeletePackage)
			packages.GET("/:id/questions", packageHandler.PackageQuestions)
			packages.POST("/:id/toggle", packageHandler.TogglePackage)
		}

		questions := api.Group("/questions")
		{
			questions.GET("", packageHandler.ListQuestions)
			questions.GET("/:id", packageHandler.GetQuestion)
		}
	}

	// WebSocket endpoint for real-time match synchronization
	router.GET("/ws", func(c *gin.Context) {
		hub.ServeWS(c.Writer, c.Request)
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"clients": hub.ClientCount(),
			"rooms":   registry.Stats(),
		})
	})
}
