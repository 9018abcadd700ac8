package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/mailvault/mailvault/internal/repository"
	"github.com/mailvault/mailvault/internal/tracing"
	"github.com/mailvault/mailvault/services/search"
)

// JSON-RPC 2.0 error codes
const (
	rpcParseError     = -32700
	rpcInvalidRequest = -32600
	rpcMethodNotFound = -32601
	rpcInvalidParams  = -32602
	rpcServerError    = -32000
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type toolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type toolDescriptor struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// MCP exposes the service's operations over a JSON-RPC 2.0 endpoint so
// LLM agents can drive search and retrieval with the tools protocol
func (h *Handlers) MCP() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "MCP", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRPC(span)

		var req rpcRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, rpcResponse{
				JSONRPC: "2.0",
				Error:   &rpcError{Code: rpcParseError, Message: "parse error"},
			})
			return
		}

		response := rpcResponse{JSONRPC: "2.0", ID: req.ID}

		switch req.Method {
		case "initialize":
			response.Result = gin.H{
				"protocolVersion": "2024-11-05",
				"serverInfo":      gin.H{"name": "mailvault", "version": serviceVersion},
				"capabilities":    gin.H{"tools": gin.H{}},
			}
		case "tools/list":
			response.Result = gin.H{"tools": toolCatalog()}
		case "tools/call":
			var params toolCallParams
			if err := json.Unmarshal(req.Params, &params); err != nil {
				response.Error = &rpcError{Code: rpcInvalidParams, Message: "invalid params"}
				break
			}
			result, err := h.callTool(ctx, params)
			if err != nil {
				tracing.TraceErr(span, err)
				response.Error = rpcErrorFor(err)
				break
			}
			response.Result = result
		default:
			response.Error = &rpcError{Code: rpcMethodNotFound, Message: fmt.Sprintf("method %q not found", req.Method)}
		}

		c.JSON(http.StatusOK, response)
	}
}

func (h *Handlers) callTool(ctx context.Context, params toolCallParams) (interface{}, error) {
	switch params.Name {
	case "search_emails":
		var args struct {
			Query             string `json:"query"`
			Field             string `json:"field"`
			AccountID         *uint  `json:"account_id"`
			SearchAttachments *bool  `json:"search_attachments"`
			Limit             int    `json:"limit"`
		}
		if err := json.Unmarshal(params.Arguments, &args); err != nil {
			return nil, errors.Wrap(search.ErrInvalidQuery, "invalid arguments")
		}
		// the agent tool spans all fields unless told otherwise
		searchAttachments := args.SearchAttachments == nil || *args.SearchAttachments
		results, total, err := h.search.Search(ctx, search.Params{
			Query:             &args.Query,
			Field:             args.Field,
			AccountID:         args.AccountID,
			SearchAttachments: searchAttachments,
			SortDesc:          true,
			Limit:             args.Limit,
		})
		if err != nil {
			return nil, err
		}
		return toolResult(gin.H{"results": results, "total": total}), nil

	case "list_emails":
		var args struct {
			Skip  int `json:"skip"`
			Limit int `json:"limit"`
		}
		if len(params.Arguments) > 0 {
			if err := json.Unmarshal(params.Arguments, &args); err != nil {
				return nil, errors.New("invalid arguments")
			}
		}
		if args.Limit <= 0 {
			args.Limit = 50
		}
		emails, total, err := h.repos.EmailRepository.List(ctx, args.Skip, args.Limit)
		if err != nil {
			return nil, err
		}
		return toolResult(gin.H{"emails": emails, "total": total}), nil

	case "get_email":
		var args struct {
			ID uint `json:"id"`
		}
		if err := json.Unmarshal(params.Arguments, &args); err != nil {
			return nil, errors.New("invalid arguments")
		}
		email, err := h.repos.EmailRepository.GetByID(ctx, args.ID, true)
		if err != nil {
			return nil, err
		}
		return toolResult(email), nil

	case "list_accounts":
		accounts, err := h.repos.AccountRepository.List(ctx)
		if err != nil {
			return nil, err
		}
		return toolResult(gin.H{"accounts": accounts}), nil

	case "get_status":
		return toolResult(h.processor.Status()), nil

	default:
		return nil, errors.Errorf("unknown tool %q", params.Name)
	}
}

// toolResult wraps a payload in the MCP content envelope
func toolResult(payload interface{}) gin.H {
	encoded, err := json.Marshal(payload)
	if err != nil {
		encoded = []byte("{}")
	}
	return gin.H{
		"content": []gin.H{
			{"type": "text", "text": string(encoded)},
		},
	}
}

func rpcErrorFor(err error) *rpcError {
	switch {
	case errors.Is(err, search.ErrInvalidQuery):
		return &rpcError{Code: rpcInvalidParams, Message: err.Error()}
	case errors.Is(err, repository.ErrNotFound):
		return &rpcError{Code: rpcInvalidParams, Message: "not found"}
	default:
		return &rpcError{Code: rpcServerError, Message: err.Error()}
	}
}

func toolCatalog() []toolDescriptor {
	return []toolDescriptor{
		{
			Name:        "search_emails",
			Description: "Search stored emails with a case-insensitive regular expression over body, subject, sender and attachment text",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query":              map[string]interface{}{"type": "string"},
					"field":              map[string]interface{}{"type": "string", "enum": []string{"sender", "subject", "body", "attachment"}},
					"account_id":         map[string]interface{}{"type": "integer"},
					"search_attachments": map[string]interface{}{"type": "boolean"},
					"limit":              map[string]interface{}{"type": "integer"},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        "list_emails",
			Description: "List stored emails newest first",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"skip":  map[string]interface{}{"type": "integer"},
					"limit": map[string]interface{}{"type": "integer"},
				},
			},
		},
		{
			Name:        "get_email",
			Description: "Fetch one stored email with its attachments",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"id": map[string]interface{}{"type": "integer"},
				},
				"required": []string{"id"},
			},
		},
		{
			Name:        "list_accounts",
			Description: "List configured mail accounts",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "get_status",
			Description: "Report the background processor status",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}
}
