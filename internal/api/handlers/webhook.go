package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/facegroup/internal/facegroup"
	"github.com/your-org/facegroup/internal/ingest"
	"github.com/your-org/facegroup/pkg/dto"
)

// maxNotificationBytes caps the webhook body. Notification envelopes are
// far smaller.
const maxNotificationBytes = 1 << 20

// NotificationHandler processes one raw notification payload.
type NotificationHandler interface {
	Handle(ctx context.Context, payload []byte) (ingest.Result, error)
}

type WebhookHandler struct {
	pipeline NotificationHandler
}

func NewWebhookHandler(pipeline NotificationHandler) *WebhookHandler {
	return &WebhookHandler{pipeline: pipeline}
}

// Receive accepts a notification envelope. The body may be sent as JSON or
// text/plain, so it is read raw rather than bound.
func (h *WebhookHandler) Receive(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxNotificationBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read body: " + err.Error()})
		return
	}
	if len(body) > maxNotificationBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "notification too large"})
		return
	}

	res, err := h.pipeline.Handle(c.Request.Context(), body)
	switch {
	case errors.Is(err, facegroup.ErrMalformedPayload):
		slog.Warn("rejecting malformed notification", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, ingest.ErrConfirmFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	created := make([]string, 0, len(res.Created))
	for _, f := range res.Created {
		created = append(created, f.FaceID)
	}
	c.JSON(http.StatusOK, dto.WebhookResponse{
		Kind:       res.Kind,
		Created:    created,
		Skipped:    res.Skipped,
		Duplicates: res.Duplicates,
		Failed:     res.Failed,
	})
}
