package handlers

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/mailvault/mailvault/dto"
	"github.com/mailvault/mailvault/internal/repository"
	"github.com/mailvault/mailvault/internal/tracing"
	"github.com/mailvault/mailvault/services/smtp"
)

// SendEmail delivers a new message through one account's SMTP endpoint
func (h *Handlers) SendEmail() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "SendEmail", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		var req dto.SendEmailRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		account, ok := h.loadAccount(c, ctx, req.AccountID)
		if !ok {
			return
		}

		outgoing := &smtp.OutgoingEmail{
			To:       req.To,
			Cc:       req.Cc,
			Bcc:      req.Bcc,
			ReplyTo:  req.ReplyTo,
			Subject:  req.Subject,
			BodyText: req.BodyText,
			BodyHTML: req.BodyHTML,
		}

		for _, payload := range req.Attachments {
			content, err := base64.StdEncoding.DecodeString(payload.ContentBase64)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "attachment content is not valid base64"})
				return
			}
			outgoing.Attachments = append(outgoing.Attachments, smtp.OutgoingAttachment{
				Filename:    payload.Filename,
				ContentType: payload.ContentType,
				Content:     content,
			})
		}

		h.deliver(c, ctx, span, account, outgoing)
	}
}

// SendEmailWithAttachments accepts a multipart form: a JSON "message" field
// plus one or more file parts
func (h *Handlers) SendEmailWithAttachments() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "SendEmailWithAttachments", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		form, err := c.MultipartForm()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		var req dto.SendEmailRequest
		if err := json.Unmarshal([]byte(c.PostForm("message")), &req); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "message field must be valid JSON"})
			return
		}

		account, ok := h.loadAccount(c, ctx, req.AccountID)
		if !ok {
			return
		}

		outgoing := &smtp.OutgoingEmail{
			To:       req.To,
			Cc:       req.Cc,
			Bcc:      req.Bcc,
			ReplyTo:  req.ReplyTo,
			Subject:  req.Subject,
			BodyText: req.BodyText,
			BodyHTML: req.BodyHTML,
		}

		for _, files := range form.File {
			for _, header := range files {
				file, err := header.Open()
				if err != nil {
					c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
					return
				}
				content, err := io.ReadAll(file)
				file.Close()
				if err != nil {
					c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
					return
				}
				outgoing.Attachments = append(outgoing.Attachments, smtp.OutgoingAttachment{
					Filename:    header.Filename,
					ContentType: header.Header.Get("Content-Type"),
					Content:     content,
				})
			}
		}

		h.deliver(c, ctx, span, account, outgoing)
	}
}

// ReplyEmail sends a reply to one stored message
func (h *Handlers) ReplyEmail() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "ReplyEmail", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		id, ok := pathID(c)
		if !ok {
			return
		}

		var req dto.ReplyEmailRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		original, err := h.repos.EmailRepository.GetByID(ctx, id, false)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "email not found"})
				return
			}
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		account, ok := h.loadAccount(c, ctx, req.AccountID)
		if !ok {
			return
		}

		h.deliver(c, ctx, span, account, smtp.BuildReply(original, req.Body))
	}
}

// ForwardEmail forwards one stored message to new recipients
func (h *Handlers) ForwardEmail() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "ForwardEmail", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		id, ok := pathID(c)
		if !ok {
			return
		}

		var req dto.ForwardEmailRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		original, err := h.repos.EmailRepository.GetByID(ctx, id, true)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "email not found"})
				return
			}
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		account, ok := h.loadAccount(c, ctx, req.AccountID)
		if !ok {
			return
		}

		h.deliver(c, ctx, span, account, smtp.BuildForward(original, req.To, req.Note, req.IncludeAttachmentText))
	}
}
