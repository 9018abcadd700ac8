package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/mailvault/mailvault/internal/tracing"
	"github.com/mailvault/mailvault/services/search"
)

// SearchEmails runs a regex search over stored mail. Without a query
// parameter it degrades to a filtered metadata listing.
func (h *Handlers) SearchEmails() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "SearchEmails", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		params := search.Params{
			Field:       c.Query("field"),
			Participant: c.Query("participant"),
			SortBy:      c.Query("sort_by"),
			SortDesc:    c.DefaultQuery("sort_order", "desc") != "asc",
			Skip:        queryInt(c, "skip", 0),
			Limit:       queryInt(c, "limit", 0),
		}

		if query, present := c.GetQuery("query"); present {
			params.Query = &query
		}

		if raw := c.Query("smtp_config_id"); raw != "" {
			id, err := strconv.ParseUint(raw, 10, 32)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid smtp_config_id"})
				return
			}
			accountID := uint(id)
			params.AccountID = &accountID
		}

		var ok bool
		if params.HasAttachments, ok = queryBool(c, "has_attachments"); !ok {
			return
		}

		var flag *bool
		if flag, ok = queryBool(c, "from_me"); !ok {
			return
		}
		params.FromMe = flag != nil && *flag
		if flag, ok = queryBool(c, "to_me"); !ok {
			return
		}
		params.ToMe = flag != nil && *flag
		if flag, ok = queryBool(c, "search_attachments"); !ok {
			return
		}
		params.SearchAttachments = flag != nil && *flag

		if params.Since, ok = queryTime(c, "date_from"); !ok {
			return
		}
		if params.Until, ok = queryTime(c, "date_to"); !ok {
			return
		}

		results, total, err := h.search.Search(ctx, params)
		if err != nil {
			if errors.Is(err, search.ErrInvalidQuery) || errors.Is(err, search.ErrInvalidFilter) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"results": results,
			"total":   total,
			"skip":    params.Skip,
		})
	}
}

func queryTime(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name + ", expected RFC 3339"})
		return nil, false
	}
	return &parsed, true
}

func queryBool(c *gin.Context, name string) (*bool, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name + ", expected true or false"})
		return nil, false
	}
	return &value, true
}
