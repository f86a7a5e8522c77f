package handler

import (
	"net/http"
	"strings"

	"github.com/boddenberg/iagente-vida-go/internal/domain"
	"github.com/boddenberg/iagente-vida-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// chatHandler runs one turn without going through WhatsApp.
// POST /v1/chat/{userId}
func chatHandler(conv *service.Conversation, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "handler.Chat")
		defer span.End()

		userID := chi.URLParam(r, "userId")

		var req domain.ChatRequest
		if err := decodeJSON(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			writeError(w, http.StatusBadRequest, "message is required")
			return
		}

		res, err := conv.ProcessMessage(ctx, userID, req.Message, service.InboundMeta{
			Channel:     "api",
			ContactName: req.ContactName,
		})
		if err != nil {
			span.RecordError(err)
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// POST /v1/admin/token
func adminTokenHandler(auth *service.AdminAuth, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if auth == nil || !auth.Enabled() {
			writeError(w, http.StatusServiceUnavailable, "admin API disabled")
			return
		}

		var req domain.TokenRequest
		if err := decodeJSON(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		resp, err := auth.IssueToken(&req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// GET /v1/admin/conversations/{userId}
func getConversationHandler(conv *service.Conversation, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := conv.GetState(r.Context(), chi.URLParam(r, "userId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}
