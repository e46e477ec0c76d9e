package devapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/pubfront/graphql"
	"github.com/eringen/pubfront/post"
	"github.com/eringen/pubfront/validation"
)

// MaxLimit caps the page size a GetPosts request may ask for.
const MaxLimit = 100

// Handler serves POST /graphql from a Store. It recognizes operations by
// operationName and ignores the query text.
type Handler struct {
	store  *Store
	policy *validation.Policy
	logger *zap.Logger
}

// NewHandler returns a Handler over s. A nil logger is replaced with a no-op.
func NewHandler(s *Store, policy *validation.Policy, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: s, policy: policy, logger: logger}
}

// RegisterRoutes mounts the endpoint at /graphql.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/graphql", h.Serve)
}

type request struct {
	Query         string          `json:"query"`
	OperationName string          `json:"operationName"`
	Variables     json.RawMessage `json:"variables"`
}

type response struct {
	Data   any             `json:"data,omitempty"`
	Errors []graphql.Error `json:"errors,omitempty"`
}

func fail(c echo.Context, code int, op, msg string) error {
	ge := graphql.Error{Message: msg}
	if op != "" {
		ge.Path = []any{op}
	}
	return c.JSON(code, response{Errors: []graphql.Error{ge}})
}

// Serve handles one GraphQL request.
func (h *Handler) Serve(c echo.Context) error {
	var req request
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return fail(c, http.StatusBadRequest, "", "invalid request body")
	}
	ctx := c.Request().Context()

	switch req.OperationName {
	case "GetPosts":
		var vars struct {
			Page  int `json:"page"`
			Limit int `json:"limit"`
		}
		if err := decodeVars(req.Variables, &vars); err != nil {
			return fail(c, http.StatusBadRequest, "posts", err.Error())
		}
		if vars.Page < 1 || vars.Limit < 1 || vars.Limit > MaxLimit {
			return fail(c, http.StatusOK, "posts", "page must be >= 1 and limit between 1 and 100")
		}
		posts, err := h.store.ListPosts(ctx, vars.Page, vars.Limit)
		if err != nil {
			h.logger.Error("list posts", zap.Error(err))
			return fail(c, http.StatusInternalServerError, "posts", "internal error")
		}
		out := make([]graphql.PostJSON, 0, len(posts))
		for _, p := range posts {
			out = append(out, graphql.FromPost(p))
		}
		return c.JSON(http.StatusOK, response{Data: map[string]any{"posts": out}})

	case "GetPost":
		var vars struct {
			ID string `json:"id"`
		}
		if err := decodeVars(req.Variables, &vars); err != nil {
			return fail(c, http.StatusBadRequest, "post", err.Error())
		}
		p, err := h.store.GetPost(ctx, vars.ID)
		if errors.Is(err, ErrNotFound) {
			return c.JSON(http.StatusOK, response{Data: map[string]any{"post": nil}})
		}
		if err != nil {
			h.logger.Error("get post", zap.String("id", vars.ID), zap.Error(err))
			return fail(c, http.StatusInternalServerError, "post", "internal error")
		}
		return c.JSON(http.StatusOK, response{Data: map[string]any{"post": graphql.FromPost(p)}})

	case "CreatePost":
		var d post.Draft
		if err := decodeVars(req.Variables, &d); err != nil {
			return fail(c, http.StatusBadRequest, "createPost", err.Error())
		}
		if violations := h.policy.Validate(d); violations != nil {
			return fail(c, http.StatusOK, "createPost", violations.Error())
		}
		p, err := h.store.CreatePost(ctx, d)
		if err != nil {
			h.logger.Error("create post", zap.Error(err))
			return fail(c, http.StatusInternalServerError, "createPost", "internal error")
		}
		h.logger.Info("post created", zap.String("id", p.ID))
		return c.JSON(http.StatusOK, response{Data: map[string]any{"createPost": graphql.FromPost(p)}})
	}
	return fail(c, http.StatusBadRequest, req.OperationName, "unknown operation "+req.OperationName)
}

func decodeVars(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}
