package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/mailvault/mailvault/dto"
	"github.com/mailvault/mailvault/internal/models"
	"github.com/mailvault/mailvault/internal/repository"
	"github.com/mailvault/mailvault/internal/tracing"
	"github.com/mailvault/mailvault/services/imap"
	"github.com/mailvault/mailvault/services/processor"
)

// CreateAccount registers a new mail account
func (h *Handlers) CreateAccount() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "CreateAccount", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		var req dto.CreateAccountRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		account := accountFromCreateRequest(&req)

		if err := h.repos.AccountRepository.Create(ctx, account); err != nil {
			if errors.Is(err, repository.ErrDuplicateName) {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "account name already exists"})
				return
			}
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusCreated, account)
	}
}

// ListAccounts returns all configured accounts
func (h *Handlers) ListAccounts() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "ListAccounts", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		accounts, err := h.repos.AccountRepository.List(ctx)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"accounts": accounts, "total": len(accounts)})
	}
}

// GetAccount returns one account by id
func (h *Handlers) GetAccount() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "GetAccount", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		id, ok := pathID(c)
		if !ok {
			return
		}

		account, err := h.repos.AccountRepository.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
				return
			}
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, account)
	}
}

// UpdateAccount applies a partial update to an account
func (h *Handlers) UpdateAccount() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "UpdateAccount", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		id, ok := pathID(c)
		if !ok {
			return
		}

		var req dto.UpdateAccountRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		account, err := h.repos.AccountRepository.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
				return
			}
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		applyAccountUpdate(account, &req)

		if err := h.repos.AccountRepository.Update(ctx, account); err != nil {
			if errors.Is(err, repository.ErrDuplicateName) {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "account name already exists"})
				return
			}
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, account)
	}
}

// DeleteAccount removes an account; accounts still referenced by stored
// mail are refused
func (h *Handlers) DeleteAccount() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "DeleteAccount", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		id, ok := pathID(c)
		if !ok {
			return
		}

		if err := h.repos.AccountRepository.Delete(ctx, id); err != nil {
			switch {
			case errors.Is(err, repository.ErrNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
			case errors.Is(err, repository.ErrAccountReferenced):
				c.JSON(http.StatusConflict, gin.H{"error": "account has stored emails and cannot be deleted"})
			default:
				tracing.TraceErr(span, err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "account removed", "id": id})
	}
}

// TestAccountConnection verifies both transports with throwaway logins and
// reports per-protocol status
func (h *Handlers) TestAccountConnection() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "TestAccountConnection", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		id, ok := pathID(c)
		if !ok {
			return
		}

		account, err := h.repos.AccountRepository.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
				return
			}
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		imapStatus := gin.H{"status": "ok"}
		if err := imap.TestConnection(ctx, *account, h.log); err != nil {
			imapStatus = gin.H{"status": "failed", "error": err.Error()}
		}

		smtpStatus := gin.H{"status": "ok"}
		if err := h.sender.TestConnection(ctx, account); err != nil {
			smtpStatus = gin.H{"status": "failed", "error": err.Error()}
		}

		c.JSON(http.StatusOK, gin.H{"imap": imapStatus, "smtp": smtpStatus})
	}
}

// PollAccount triggers an immediate poll of one account
func (h *Handlers) PollAccount() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "PollAccount", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		id, ok := pathID(c)
		if !ok {
			return
		}

		if err := h.processor.PollAccount(ctx, id); err != nil {
			switch {
			case errors.Is(err, repository.ErrNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
			case errors.Is(err, processor.ErrPollInProgress):
				c.JSON(http.StatusConflict, gin.H{"error": "a poll for this account is already running"})
			default:
				tracing.TraceErr(span, err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "poll completed", "id": id})
	}
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

func accountFromCreateRequest(req *dto.CreateAccountRequest) *models.Account {
	account := &models.Account{
		Name:        req.Name,
		AccountName: req.AccountName,
		IMAPHost:    req.IMAPHost,
		IMAPPort:    993,
		IMAPUseSSL:  true,
		SMTPHost:    req.SMTPHost,
		SMTPPort:    587,
		SMTPUseTLS:  true,
		Username:    req.Username,
		Password:    req.Password,
		Enabled:     true,

		StoreTextOnly:     req.StoreTextOnly,
		MaxAttachmentSize: req.MaxAttachmentSize,
		ExtractPDFText:    req.ExtractPDFText,
		ExtractDocxText:   req.ExtractDocxText,
		ExtractImageText:  req.ExtractImageText,
		ExtractOtherText:  req.ExtractOtherText,
	}

	if req.IMAPPort != nil {
		account.IMAPPort = *req.IMAPPort
	}
	if req.IMAPUseSSL != nil {
		account.IMAPUseSSL = *req.IMAPUseSSL
	}
	if req.IMAPUseTLS != nil {
		account.IMAPUseTLS = *req.IMAPUseTLS
	}
	if req.SMTPPort != nil {
		account.SMTPPort = *req.SMTPPort
	}
	if req.SMTPUseSSL != nil {
		account.SMTPUseSSL = *req.SMTPUseSSL
	}
	if req.SMTPUseTLS != nil {
		account.SMTPUseTLS = *req.SMTPUseTLS
	}
	if req.Enabled != nil {
		account.Enabled = *req.Enabled
	}

	return account
}

func applyAccountUpdate(account *models.Account, req *dto.UpdateAccountRequest) {
	if req.Name != nil {
		account.Name = *req.Name
	}
	if req.AccountName != nil {
		account.AccountName = *req.AccountName
	}
	if req.IMAPHost != nil {
		account.IMAPHost = *req.IMAPHost
	}
	if req.IMAPPort != nil {
		account.IMAPPort = *req.IMAPPort
	}
	if req.IMAPUseSSL != nil {
		account.IMAPUseSSL = *req.IMAPUseSSL
	}
	if req.IMAPUseTLS != nil {
		account.IMAPUseTLS = *req.IMAPUseTLS
	}
	if req.SMTPHost != nil {
		account.SMTPHost = *req.SMTPHost
	}
	if req.SMTPPort != nil {
		account.SMTPPort = *req.SMTPPort
	}
	if req.SMTPUseSSL != nil {
		account.SMTPUseSSL = *req.SMTPUseSSL
	}
	if req.SMTPUseTLS != nil {
		account.SMTPUseTLS = *req.SMTPUseTLS
	}
	if req.Username != nil {
		account.Username = *req.Username
	}
	if req.Password != nil {
		account.Password = *req.Password
	}
	if req.Enabled != nil {
		account.Enabled = *req.Enabled
	}
	if req.StoreTextOnly != nil {
		account.StoreTextOnly = req.StoreTextOnly
	}
	if req.MaxAttachmentSize != nil {
		account.MaxAttachmentSize = req.MaxAttachmentSize
	}
	if req.ExtractPDFText != nil {
		account.ExtractPDFText = req.ExtractPDFText
	}
	if req.ExtractDocxText != nil {
		account.ExtractDocxText = req.ExtractDocxText
	}
	if req.ExtractImageText != nil {
		account.ExtractImageText = req.ExtractImageText
	}
	if req.ExtractOtherText != nil {
		account.ExtractOtherText = req.ExtractOtherText
	}
}
