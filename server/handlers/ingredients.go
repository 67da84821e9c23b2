// Package handlers provides the HTTP handlers of the sous ingredient service.
//
// Every ingredient response carries an "ingredients" array, empty on failure:
//
//	200 {"success": true, "ingredients": [...], "recipe": "..."}
//	400 {"error": "No recipe provided", "ingredients": []}
//	500 {"success": false, "error": "Gemini API error: ...", "ingredients": []}
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	serr "github.com/teilomillet/sous/errors"
	"github.com/teilomillet/sous/server/metrics"
	"github.com/teilomillet/sous/server/middleware"
	"github.com/teilomillet/sous/server/processing"
	"go.uber.org/zap"
)

// Response is the body of every ingredient response. Success and Recipe are
// pointers so the validation body can omit them.
type Response struct {
	Success     *bool    `json:"success,omitempty"`
	Error       string   `json:"error,omitempty"`
	Ingredients []string `json:"ingredients"`
	Recipe      *string  `json:"recipe,omitempty"`
}

func successResponse(recipe string, ingredients []string) Response {
	ok := true
	return Response{Success: &ok, Ingredients: ingredients, Recipe: &recipe}
}

func errorResponse(e *serr.SousError) Response {
	body := e.Response()
	return Response{Success: body.Success, Error: body.Error, Ingredients: body.Ingredients}
}

// IngredientHandler serves POST /api/get-ingredients.
type IngredientHandler struct {
	processor    *processing.Processor
	providerName string
	notConfigErr error
	notConfigMsg string
	maxBodyBytes int64
	logger       *zap.Logger
	metrics      *metrics.Metrics
}

// Option configures an IngredientHandler.
type Option func(*IngredientHandler)

// WithMetrics records lookup outcomes in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *IngredientHandler) { h.metrics = m }
}

// WithMaxBodyBytes limits how much of the request body is read. Zero disables the limit.
func WithMaxBodyBytes(n int64) Option {
	return func(h *IngredientHandler) { h.maxBodyBytes = n }
}

// WithNotConfigured marks the provider as unavailable. Valid requests are
// answered with message and cause is logged.
func WithNotConfigured(message string, cause error) Option {
	return func(h *IngredientHandler) {
		h.notConfigMsg = message
		h.notConfigErr = cause
	}
}

// NewIngredientHandler creates the handler. processor may be nil when the
// provider could not be configured; providerName is the display name used
// to prefix provider errors.
func NewIngredientHandler(processor *processing.Processor, providerName string, logger *zap.Logger, opts ...Option) *IngredientHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &IngredientHandler{
		processor:    processor,
		providerName: providerName,
		notConfigMsg: "Gemini API not configured",
		logger:       logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Configured reports whether lookups can reach a provider.
func (h *IngredientHandler) Configured() bool {
	return h.processor != nil && h.notConfigErr == nil
}

// Handle runs one lookup against body and returns the status code and the
// response to send. A panic during the lookup is returned as a 500 with the
// panic value as the error message.
func (h *IngredientHandler) Handle(ctx context.Context, body []byte) (int, Response) {
	recipe, ingredients, err := h.lookup(ctx, body)
	if err != nil {
		return err.Code, errorResponse(err)
	}
	return http.StatusOK, successResponse(recipe, ingredients)
}

func (h *IngredientHandler) lookup(ctx context.Context, body []byte) (recipe string, ingredients []string, se *serr.SousError) {
	requestID := middleware.GetRequestID(ctx)
	defer func() {
		if rec := recover(); rec != nil {
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			h.logger.Error("panic during ingredient lookup",
				zap.Any("panic", rec),
				zap.String("request_id", requestID),
			)
			recipe, ingredients = "", nil
			se = serr.NewInternalError(requestID, fmt.Errorf("%v", rec))
		}
	}()

	recipe, verr := parseRecipe(requestID, body)
	if verr != nil {
		return "", nil, verr
	}

	if !h.Configured() {
		return "", nil, serr.NewConfigError(requestID, h.notConfigMsg, h.notConfigErr)
	}

	ingredients, err := h.processor.Process(ctx, recipe)
	if err != nil {
		var genErr *processing.GenerationError
		if errors.As(err, &genErr) {
			return "", nil, serr.NewProviderError(requestID, h.providerName, genErr.Err)
		}
		return "", nil, serr.NewInternalError(requestID, err)
	}
	return recipe, ingredients, nil
}

// parseRecipe extracts the recipe from a JSON object body. The recipe is
// returned as received; trimming is only used to reject blank values.
func parseRecipe(requestID string, body []byte) (string, *serr.SousError) {
	var payload interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", serr.NewValidationError(requestID, serr.MsgNoJSON)
	}
	obj, ok := payload.(map[string]interface{})
	if !ok {
		return "", serr.NewValidationError(requestID, serr.MsgNoJSON)
	}

	recipe, ok := obj["recipe"].(string)
	if !ok || strings.TrimSpace(recipe) == "" {
		return "", serr.NewValidationError(requestID, serr.MsgNoRecipe)
	}
	return recipe, nil
}

// ServeHTTP implements http.Handler.
func (h *IngredientHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	// LogError adds request_id itself.
	logger := h.logger.With(zap.String("remote_addr", r.RemoteAddr))

	var reader io.Reader = r.Body
	if h.maxBodyBytes > 0 {
		reader = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			se := serr.NewError(serr.ValidationError, "Request body too large", http.StatusRequestEntityTooLarge, requestID, err)
			h.record(se)
			serr.LogError(logger, se, requestID)
			serr.WriteError(w, se)
			return
		}
		se := serr.NewInternalError(requestID, err)
		h.record(se)
		serr.LogError(logger, se, requestID)
		serr.WriteError(w, se)
		return
	}

	recipe, ingredients, se := h.lookup(r.Context(), body)
	h.record(se)
	if se != nil {
		serr.LogError(logger, se, requestID)
		serr.WriteError(w, se)
		return
	}

	logger.Info("ingredients found",
		zap.String("request_id", requestID),
		zap.String("recipe", recipe),
		zap.Int("count", len(ingredients)),
	)
	if h.metrics != nil {
		h.metrics.IngredientsReturned.Observe(float64(len(ingredients)))
	}
	serr.WriteJSON(w, http.StatusOK, successResponse(recipe, ingredients))
}

func (h *IngredientHandler) record(se *serr.SousError) {
	if h.metrics == nil {
		return
	}
	outcome := "success"
	if se != nil {
		outcome = string(se.Type)
	}
	h.metrics.IngredientRequests.WithLabelValues(outcome).Inc()
}
