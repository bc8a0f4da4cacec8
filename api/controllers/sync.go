package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/cuisync/api/responses"
	"github.com/angelmondragon/cuisync/api/validators"
	"github.com/angelmondragon/cuisync/internal/engine"
	"github.com/angelmondragon/cuisync/pkg/logger"
)

const maxNotices = 50

type SyncService interface {
	DeviceID() string
	Online() bool
	QueuedMessages() int
	SetOnline(ctx context.Context, online bool) error
}

type NoticeSource interface {
	Notices() []engine.Notice
}

type syncStatus struct {
	DeviceID string `json:"deviceId"`
	Online   bool   `json:"online"`
	Queued   int    `json:"queued"`
}

type setOnlineRequest struct {
	Online *bool `json:"online" validate:"required"`
}

func SyncStatus(svc SyncService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, statusOf(svc))
	}
}

// SetOnline toggles connectivity. Going online replays the offline queue;
// a partial replay still answers 200 with the remaining queue length.
func SetOnline(svc SyncService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req setOnlineRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.SetOnline(r.Context(), *req.Online); err != nil {
			logg.Warn(r.Context(), "sync.flush_incomplete")
		}
		responses.WriteSuccess(w, statusOf(svc))
	}
}

// ListNotices returns the most recent user-facing notices, oldest first.
func ListNotices(src NoticeSource, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", validators.IntRange{Min: 1, Max: maxNotices})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		notices := src.Notices()
		if limit > 0 && len(notices) > limit {
			notices = notices[len(notices)-limit:]
		}
		responses.WriteSuccess(w, notices)
	}
}

func statusOf(svc SyncService) syncStatus {
	return syncStatus{
		DeviceID: svc.DeviceID(),
		Online:   svc.Online(),
		Queued:   svc.QueuedMessages(),
	}
}
