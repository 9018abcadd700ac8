package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/mailvault/mailvault/dto"
	"github.com/mailvault/mailvault/internal/models"
	"github.com/mailvault/mailvault/internal/repository"
	"github.com/mailvault/mailvault/internal/tracing"
	"github.com/mailvault/mailvault/services/smtp"
)

func (h *Handlers) loadAccount(c *gin.Context, ctx context.Context, id uint) (*models.Account, bool) {
	account, err := h.repos.AccountRepository.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	return account, true
}

func (h *Handlers) deliver(c *gin.Context, ctx context.Context, span opentracing.Span, account *models.Account, outgoing *smtp.OutgoingEmail) {
	messageID, err := h.sender.Send(ctx, account, outgoing)
	if err != nil {
		tracing.TraceErr(span, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.SendEmailResponse{
		MessageID: messageID,
		Status:    "sent",
	})
}
