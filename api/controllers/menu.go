package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/cuisync/api/responses"
	"github.com/angelmondragon/cuisync/api/validators"
	"github.com/angelmondragon/cuisync/internal/collab"
	"github.com/angelmondragon/cuisync/internal/persistence"
	"github.com/angelmondragon/cuisync/pkg/logger"
)

type MenuService interface {
	Collab() *collab.State
	UpdateMenu(ctx context.Context, menu collab.Menu)
}

type SettingsService interface {
	Settings() persistence.Settings
	SetCompactMode(compact bool)
}

type settingsRequest struct {
	CompactMode *bool `json:"compactMode" validate:"required"`
}

func GetMenu(svc MenuService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, svc.Collab().Menu())
	}
}

// PutMenu replaces the local menu and broadcasts it to the other devices.
func PutMenu(svc MenuService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var menu collab.Menu
		if err := validators.DecodeJSON(r, &menu); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		svc.UpdateMenu(r.Context(), menu)
		responses.WriteSuccess(w, svc.Collab().Menu())
	}
}

func GetSettings(svc SettingsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, svc.Settings())
	}
}

func PutSettings(svc SettingsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req settingsRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		svc.SetCompactMode(*req.CompactMode)
		responses.WriteSuccess(w, svc.Settings())
	}
}

// CollabSnapshot returns the table and inventory payloads last forwarded by peers.
func CollabSnapshot(svc MenuService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := svc.Collab()
		responses.WriteSuccess(w, map[string]any{
			"tables":    state.Tables(),
			"inventory": state.Inventory(),
		})
	}
}
