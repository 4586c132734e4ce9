package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"quiz-engine/internal/platform/logger"
	"quiz-engine/internal/quiz"
)

type RouterConfig struct {
	JWTSecret    []byte
	AllowOrigins []string
}

func NewRouter(service *quiz.Service, log *logger.Logger, cfg RouterConfig) *gin.Engine {
	api := NewAPI(service, log, cfg.JWTSecret)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(api.log))
	router.Use(corsMiddleware(cfg.AllowOrigins))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	quizGroup := router.Group("/api/quiz", api.requireUser())
	{
		quizGroup.POST("/practice/start", api.HandleStartPractice)
		quizGroup.POST("/mock/:mockTestId/start", api.HandleStartMock)
		quizGroup.POST("/submit", api.HandleSubmit)
		quizGroup.POST("/violation", api.HandleViolation)
		quizGroup.GET("/mock-tests", api.HandleMockTests)
		quizGroup.GET("/attempts", api.HandleAttempts)
		quizGroup.GET("/attempt/:attemptId", api.HandleReview)
	}

	router.NoRoute(func(c *gin.Context) {
		respondError(c, http.StatusNotFound, "not_found", "route not found")
	})
	return router
}
