package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mailvault/mailvault/dto"
	"github.com/mailvault/mailvault/internal/tracing"
)

const serviceVersion = "1.0.0"

// HealthCheck reports liveness
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Root identifies the service
func Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "mailvault",
		"version": serviceVersion,
	})
}

// Status reports storage counts and processor state
func (h *Handlers) Status() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "Status", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		accounts, err := h.repos.AccountRepository.Count(ctx)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		enabled, err := h.repos.AccountRepository.CountEnabled(ctx)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		emails, err := h.repos.EmailRepository.Count(ctx)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		attachments, err := h.repos.EmailAttachmentRepository.Count(ctx)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		processor := h.processor.Status()

		c.JSON(http.StatusOK, dto.StatusResponse{
			Status:          "ok",
			Version:         serviceVersion,
			Accounts:        accounts,
			EnabledAccounts: enabled,
			Emails:          emails,
			Attachments:     attachments,
			Processor: dto.Processor{
				Running:         processor.Running,
				ActivePollers:   processor.ActivePollers,
				CyclesCompleted: processor.CyclesCompleted,
				LastCycleError:  processor.LastCycleError,
			},
			Time:        time.Now().UTC(),
			LastCycleAt: processor.LastCycleAt,
		})
	}
}
