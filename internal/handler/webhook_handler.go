package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/boddenberg/iagente-vida-go/internal/domain"
	"github.com/boddenberg/iagente-vida-go/internal/infra/woztell"
	"github.com/boddenberg/iagente-vida-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const signatureHeader = "X-Woztell-Signature"

// verifyWebhookHandler answers the platform subscription handshake.
// GET /webhook/whatsapp?hub.mode=subscribe&hub.verify_token=...&hub.challenge=...
func verifyWebhookHandler(verifyToken string, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if verifyToken == "" || q.Get("hub.mode") != "subscribe" || q.Get("hub.verify_token") != verifyToken {
			logger.Warn("webhook verification rejected", zap.String("mode", q.Get("hub.mode")))
			writeError(w, http.StatusForbidden, "verification failed")
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(q.Get("hub.challenge")))
	}
}

// receiveWebhookHandler runs one inbound WhatsApp message through the bot.
// POST /webhook/whatsapp
func receiveWebhookHandler(channel *service.ChannelService, secret string, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "handler.ReceiveWebhook")
		defer span.End()

		if channel == nil {
			writeError(w, http.StatusServiceUnavailable, "whatsapp channel not configured")
			return
		}

		payload, err := readBody(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		if secret != "" && !woztell.ValidateSignature(payload, r.Header.Get(signatureHeader), secret) {
			logger.Warn("webhook signature mismatch", zap.String("remote_addr", r.RemoteAddr))
			writeError(w, http.StatusUnauthorized, "invalid signature")
			return
		}

		msg, err := woztell.ParseIncoming(payload)
		if errors.Is(err, woztell.ErrNoMessage) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "no_message"})
			return
		}
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.String("message.type", msg.Type))

		result, err := channel.HandleInbound(ctx, msg)
		if err != nil {
			span.RecordError(err)
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "processed",
			"delivered": result.Success,
		})
	}
}

// webhookStatusHandler reports liveness plus the number of live conversations.
// GET /webhook/status
func webhookStatusHandler(conv *service.Conversation, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := domain.WebhookStatus{Status: "active", Timestamp: time.Now().UTC().Format(time.RFC3339)}
		if conv != nil {
			n, err := conv.ActiveCount(r.Context())
			if err != nil {
				handleServiceError(w, err, logger)
				return
			}
			status.ActiveConversations = n
		}
		writeJSON(w, http.StatusOK, status)
	}
}

// GET /webhook/conversations
func listConversationsHandler(conv *service.Conversation, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := conv.ListConversations(r.Context())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"total":         len(list),
			"conversations": list,
		})
	}
}

// DELETE /webhook/conversation/{phone}
func resetConversationHandler(conv *service.Conversation, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		phone := woztell.CleanPhone(chi.URLParam(r, "phone"))
		if phone == "" {
			writeError(w, http.StatusBadRequest, "phone is required")
			return
		}
		if err := conv.Reset(r.Context(), phone); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		logger.Info("conversation reset by admin",
			zap.String("user_id", phone),
			zap.String("admin", AdminSubjectFromContext(r.Context())),
		)
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "phone": phone})
	}
}
