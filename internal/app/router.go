package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/clinicore/clinicore/internal/appointments"
	"github.com/clinicore/clinicore/internal/auth"
	"github.com/clinicore/clinicore/internal/inventory"
	"github.com/clinicore/clinicore/internal/masterdata"
	"github.com/clinicore/clinicore/internal/observability"
	"github.com/clinicore/clinicore/internal/patients"
	"github.com/clinicore/clinicore/internal/records"
	"github.com/clinicore/clinicore/internal/shared"
	"github.com/clinicore/clinicore/internal/users"
	"github.com/clinicore/clinicore/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger              *slog.Logger
	Config              *Config
	SessionManager      *shared.SessionManager
	CSRFManager         *shared.CSRFManager
	AuthHandler         *auth.Handler
	UsersHandler        *users.Handler
	PatientsHandler     *patients.Handler
	AppointmentsHandler *appointments.Handler
	RecordsHandler      *records.Handler
	InventoryHandler    *inventory.Handler
	MasterDataHandler   *masterdata.Handler
	JobsHandler         *jobs.Handler
	Metrics             *observability.Metrics
}

// NewRouter constructs the chi.Router with Clinicore defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	if params.UsersHandler != nil {
		r.Route("/users", params.UsersHandler.MountRoutes)
	}
	if params.PatientsHandler != nil {
		r.Route("/patients", params.PatientsHandler.MountRoutes)
	}
	if params.AppointmentsHandler != nil {
		r.Route("/appointments", params.AppointmentsHandler.MountRoutes)
	}
	if params.RecordsHandler != nil {
		r.Route("/records", params.RecordsHandler.MountRoutes)
	}
	r.Route("/inventory", params.InventoryHandler.MountRoutes)
	if params.MasterDataHandler != nil {
		r.Route("/masterdata", params.MasterDataHandler.MountRoutes)
	}
	if params.JobsHandler != nil {
		r.Route("/jobs", params.JobsHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
