package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/mailvault/mailvault/api/handlers"
	"github.com/mailvault/mailvault/config"
	"github.com/mailvault/mailvault/interfaces"
	"github.com/mailvault/mailvault/internal/logger"
	"github.com/mailvault/mailvault/internal/repository"
	"github.com/mailvault/mailvault/internal/tracing"
	"github.com/mailvault/mailvault/services/search"
	"github.com/mailvault/mailvault/services/smtp"
)

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(
	ctx context.Context,
	r *gin.Engine,
	cfg *config.Config,
	log logger.Logger,
	repos *repository.Repositories,
	sender *smtp.Sender,
	searchService *search.Service,
	processor interfaces.ProcessorService,
) {
	if repos == nil {
		panic("Repositories cannot be nil")
	}

	r.Use(gin.Recovery())
	r.Use(tracing.RecoveryWithJaeger(opentracing.GlobalTracer()))

	apiHandlers := handlers.InitHandlers(cfg, log, repos, sender, searchService, processor)

	r.GET("/", handlers.Root)
	r.GET("/health", handlers.HealthCheck)
	r.GET("/status", apiHandlers.Status())

	v1 := r.Group("/api/v1")
	{
		accounts := v1.Group("/smtp-configs")
		{
			accounts.POST("", apiHandlers.CreateAccount())
			accounts.GET("", apiHandlers.ListAccounts())
			accounts.GET("/:id", apiHandlers.GetAccount())
			accounts.PUT("/:id", apiHandlers.UpdateAccount())
			accounts.DELETE("/:id", apiHandlers.DeleteAccount())
			accounts.GET("/:id/test-connection", apiHandlers.TestAccountConnection())
			accounts.POST("/:id/process", apiHandlers.PollAccount())
		}

		emails := v1.Group("/emails")
		{
			emails.GET("", apiHandlers.ListEmails())
			emails.GET("/search", apiHandlers.SearchEmails())
			emails.GET("/:id", apiHandlers.GetEmail())
			emails.DELETE("/:id", apiHandlers.DeleteEmail())
			emails.GET("/:id/attachments", apiHandlers.ListEmailAttachments())
			emails.POST("/:id/reply", apiHandlers.ReplyEmail())
			emails.POST("/:id/forward", apiHandlers.ForwardEmail())
		}

		v1.POST("/send-email", apiHandlers.SendEmail())
		v1.POST("/send-email-with-attachments", apiHandlers.SendEmailWithAttachments())

		v1.GET("/status", apiHandlers.Status())
	}

	// JSON-RPC endpoint for LLM agents
	r.POST("/llm/mcp", apiHandlers.MCP())
}
