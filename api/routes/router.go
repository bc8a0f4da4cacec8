package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/cuisync/api/controllers"
	"github.com/angelmondragon/cuisync/api/middleware"
	"github.com/angelmondragon/cuisync/pkg/config"
	"github.com/angelmondragon/cuisync/pkg/logger"
)

// Engine is everything the HTTP surface needs from the device engine.
type Engine interface {
	controllers.PadService
	controllers.UndoService
	controllers.PaymentService
	controllers.SyncService
	controllers.NoticeSource
	controllers.MenuService
	controllers.SettingsService
}

type Params struct {
	Config *config.Config
	Logger *logger.Logger
	Engine Engine
	// Idempotency is optional; without it requests are never replayed.
	Idempotency middleware.ResponseStore
	Gatherer    prometheus.Gatherer
	Deps        map[string]controllers.Pinger
}

func NewRouter(p Params) http.Handler {
	cfg, logg, eng := p.Config, p.Logger, p.Engine
	if logg == nil {
		logg = logger.Nop()
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(eng.DeviceID(), logg),
		middleware.DeviceContext(eng.DeviceID(), logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.Deps))
	})

	if p.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	padWrite := middleware.Idempotency(p.Idempotency, logg, middleware.PadWritePolicy)
	payment := middleware.Idempotency(p.Idempotency, logg, middleware.PaymentPolicy)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/pads", func(r chi.Router) {
			r.Get("/", controllers.ListPads(eng, logg))
			r.Get("/history", controllers.ListHistory(eng, logg))
			r.With(padWrite).Post("/items", controllers.AddItem(eng, logg))
			r.With(padWrite).Post("/send-all", controllers.SendAllPads(eng, logg))

			r.Route("/{padId}", func(r chi.Router) {
				r.Get("/", controllers.GetPad(eng, logg))
				r.Patch("/", controllers.UpdatePadDetails(eng, logg))
				r.Delete("/", controllers.DeletePad(eng, logg))
				r.Post("/send", controllers.SendPad(eng, logg))
				r.Post("/ready", controllers.MarkPadReady(eng, logg))
				r.Post("/served", controllers.MarkPadServed(eng, logg))
				r.Get("/payment-panel", controllers.PaymentPanel(eng, logg))
				r.Post("/split/items", controllers.SplitByItems(eng, logg))
				r.With(payment).Post("/payments", controllers.RecordPayment(eng, logg))
				r.With(padWrite).Post("/paid", controllers.MarkPadPaid(eng, logg))
			})
		})

		r.Post("/undo", controllers.Undo(eng, logg))
		r.Get("/notices", controllers.ListNotices(eng, logg))

		r.Route("/sync", func(r chi.Router) {
			r.Get("/", controllers.SyncStatus(eng))
			r.Post("/online", controllers.SetOnline(eng, logg))
		})

		r.Get("/menu", controllers.GetMenu(eng))
		r.Put("/menu", controllers.PutMenu(eng, logg))
		r.Get("/collab", controllers.CollabSnapshot(eng))

		r.Get("/settings", controllers.GetSettings(eng))
		r.Put("/settings", controllers.PutSettings(eng, logg))
	})

	return r
}
