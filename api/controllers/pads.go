package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/cuisync/api/responses"
	"github.com/angelmondragon/cuisync/api/validators"
	"github.com/angelmondragon/cuisync/internal/engine"
	"github.com/angelmondragon/cuisync/internal/pads"
	"github.com/angelmondragon/cuisync/internal/undo"
	"github.com/angelmondragon/cuisync/pkg/enums"
	pkgerrors "github.com/angelmondragon/cuisync/pkg/errors"
	"github.com/angelmondragon/cuisync/pkg/logger"
	"github.com/angelmondragon/cuisync/pkg/pagination"
)

// PadService is the pad surface of the engine.
type PadService interface {
	Pads() []*pads.Pad
	History() []*pads.Pad
	Pad(padID string) (*pads.Pad, error)
	AddItemToPad(ctx context.Context, req engine.AddItemRequest) (*pads.Pad, error)
	SendPad(ctx context.Context, padID string) (*pads.Pad, error)
	SendAllOpenPads(ctx context.Context) ([]*pads.Pad, error)
	MarkPadReady(ctx context.Context, padID string) (*pads.Pad, error)
	MarkPadServed(ctx context.Context, padID string) (*pads.Pad, error)
	DeletePad(ctx context.Context, padID string) (*pads.Pad, error)
	UpdatePadDetails(ctx context.Context, padID string, input engine.DetailsInput) (*pads.Pad, error)
}

type UndoService interface {
	PerformUndo(ctx context.Context) (*undo.Applied, error)
	UndoDepth() int
}

// ListPads returns the active pads, optionally filtered by ?status=.
func ListPads(svc PadService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pad service unavailable"))
			return
		}

		all := svc.Pads()
		raw := r.URL.Query().Get("status")
		if raw == "" {
			responses.WriteSuccess(w, all)
			return
		}
		status, err := enums.ParsePadStatus(raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter").WithDetails(map[string]any{"field": "status"}))
			return
		}
		filtered := make([]*pads.Pad, 0, len(all))
		for _, pad := range all {
			if pad.Status == status {
				filtered = append(filtered, pad)
			}
		}
		responses.WriteSuccess(w, filtered)
	}
}

// ListHistory pages through archived pads, most recently archived first.
func ListHistory(svc PadService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pad service unavailable"))
			return
		}
		params, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		history := svc.History()
		for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
			history[i], history[j] = history[j], history[i]
		}

		page, err := pagination.Slice(history, params, func(pad *pads.Pad) pagination.Cursor {
			return pagination.Cursor{At: pad.UpdatedAt, ID: pad.ID}
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func GetPad(svc PadService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		padID, err := validators.PathID(r, "padId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		pad, err := svc.Pad(padID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pad)
	}
}

// AddItem appends an item to the table's open pad, creating it when needed.
func AddItem(svc PadService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req engine.AddItemRequest
		if err := validators.DecodeJSON(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithTable(r.Context(), req.Table)
		pad, err := svc.AddItemToPad(ctx, req)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, pad)
	}
}

func SendAllPads(svc PadService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sent, err := svc.SendAllOpenPads(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sent)
	}
}

func SendPad(svc PadService, logg *logger.Logger) http.HandlerFunc {
	return padAction(logg, svc.SendPad)
}

func MarkPadReady(svc PadService, logg *logger.Logger) http.HandlerFunc {
	return padAction(logg, svc.MarkPadReady)
}

func MarkPadServed(svc PadService, logg *logger.Logger) http.HandlerFunc {
	return padAction(logg, svc.MarkPadServed)
}

func DeletePad(svc PadService, logg *logger.Logger) http.HandlerFunc {
	return padAction(logg, svc.DeletePad)
}

// UpdatePadDetails patches covers, client name and table notes.
func UpdatePadDetails(svc PadService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		padID, err := validators.PathID(r, "padId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var input engine.DetailsInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithPadID(r.Context(), padID)
		pad, err := svc.UpdatePadDetails(ctx, padID, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, pad)
	}
}

func Undo(svc UndoService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		applied, err := svc.PerformUndo(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"undone":    applied,
			"remaining": svc.UndoDepth(),
		})
	}
}

func padAction(logg *logger.Logger, action func(context.Context, string) (*pads.Pad, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		padID, err := validators.PathID(r, "padId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithPadID(r.Context(), padID)
		pad, err := action(ctx, padID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, pad)
	}
}
