package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/mailvault/mailvault/dto"
	"github.com/mailvault/mailvault/internal/repository"
	"github.com/mailvault/mailvault/internal/tracing"
)

// ListEmails returns stored messages newest-first
func (h *Handlers) ListEmails() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "ListEmails", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		skip := queryInt(c, "skip", 0)
		limit := queryInt(c, "limit", 50)

		emails, total, err := h.repos.EmailRepository.List(ctx, skip, limit)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, dto.EmailListResponse{
			Emails: emails,
			Total:  total,
			Skip:   skip,
			Limit:  limit,
		})
	}
}

// GetEmail returns one stored message with its attachment records.
// include_content=false strips the body fields from the response.
func (h *Handlers) GetEmail() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "GetEmail", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		id, ok := pathID(c)
		if !ok {
			return
		}

		includeContent := c.DefaultQuery("include_content", "true") != "false"

		email, err := h.repos.EmailRepository.GetByID(ctx, id, true)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "email not found"})
				return
			}
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		if !includeContent {
			email.BodyPlain = ""
			email.BodyHTML = ""
		}

		c.JSON(http.StatusOK, email)
	}
}

// DeleteEmail removes one stored message with its attachments
func (h *Handlers) DeleteEmail() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "DeleteEmail", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		id, ok := pathID(c)
		if !ok {
			return
		}

		if err := h.repos.EmailRepository.Delete(ctx, id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "email not found"})
				return
			}
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "email removed", "id": id})
	}
}

// ListEmailAttachments returns the attachment rows for one message
func (h *Handlers) ListEmailAttachments() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "ListEmailAttachments", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		id, ok := pathID(c)
		if !ok {
			return
		}

		if _, err := h.repos.EmailRepository.GetByID(ctx, id, false); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "email not found"})
				return
			}
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		attachments, err := h.repos.EmailAttachmentRepository.ListByEmail(ctx, id)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"attachments": attachments, "total": len(attachments)})
	}
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
