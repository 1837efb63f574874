package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ensayo-paes/practice-service/internal/config"
	"github.com/ensayo-paes/practice-service/internal/models"
	"github.com/ensayo-paes/practice-service/internal/services"
	"github.com/ensayo-paes/practice-service/internal/utils"
)

type HandlerManager struct {
	sessionHandler  *SessionHandler
	questionHandler *QuestionHandler
	authMiddleware  *CasdoorAuthMiddleware
	serviceManager  services.ServiceManager
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
) *HandlerManager {
	return &HandlerManager{
		sessionHandler:  NewSessionHandler(serviceManager.Practice(), logger),
		questionHandler: NewQuestionHandler(serviceManager.Question(), logger),
		authMiddleware:  NewCasdoorAuthMiddleware(casdoorConfig),
		serviceManager:  serviceManager,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", hm.sessionHandler.StartSession)
			sessions.POST("/resume", hm.sessionHandler.ResumeSession)
			sessions.DELETE("/snapshot", hm.sessionHandler.DiscardSnapshot)

			sessions.GET("/:id", hm.sessionHandler.GetSession)
			sessions.POST("/:id/select", hm.sessionHandler.SelectAnswer)
			sessions.POST("/:id/answer", hm.sessionHandler.SubmitAnswer)
			sessions.POST("/:id/advance", hm.sessionHandler.AdvanceSession)
			sessions.POST("/:id/ready", hm.sessionHandler.ReadySession)
			sessions.POST("/:id/exit", hm.sessionHandler.ExitSession)
			sessions.GET("/:id/result", hm.sessionHandler.GetResult)
			sessions.POST("/:id/retry", hm.sessionHandler.RetrySession)
		}

		questions := v1.Group("/questions")
		{
			questions.GET("", hm.questionHandler.ListQuestions)
			questions.POST("/import", hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin), hm.questionHandler.ImportQuestions)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		if err := hm.serviceManager.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "practice-service",
		})
	})
}
