// Package masterdata groups reference-data endpoints behind one mount point.
package masterdata

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/clinicore/internal/masterdata/diseases"
	"github.com/clinicore/clinicore/internal/masterdata/medicines"
	"github.com/clinicore/clinicore/internal/masterdata/units"
	"github.com/clinicore/clinicore/internal/masterdata/usagemethods"
	"github.com/clinicore/clinicore/internal/rbac"
)

// Handler aggregates the masterdata sub-handlers.
type Handler struct {
	medicines    *medicines.Handler
	units        *units.Handler
	usageMethods *usagemethods.Handler
	diseases     *diseases.Handler
	rbac         rbac.Middleware
}

// NewHandler builds the aggregate handler with all sub-services wired to the pool.
func NewHandler(logger *slog.Logger, pool *pgxpool.Pool, rbac rbac.Middleware) *Handler {
	return &Handler{
		medicines:    medicines.NewHandler(logger, medicines.NewService(medicines.NewRepository(pool))),
		units:        units.NewHandler(logger, units.NewService(units.NewRepository(pool))),
		usageMethods: usagemethods.NewHandler(logger, usagemethods.NewService(usagemethods.NewRepository(pool))),
		diseases:     diseases.NewHandler(logger, diseases.NewService(diseases.NewRepository(pool))),
		rbac:         rbac,
	}
}

// MountRoutes registers all masterdata routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/medicines", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.RequireAny("masterdata.view", "masterdata.edit"))
			r.Get("/", h.medicines.List)
			r.Get("/{id}", h.medicines.Show)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.RequireAll("masterdata.edit"))
			r.Post("/", h.medicines.Create)
			r.Put("/{id}", h.medicines.Update)
			r.Post("/{id}/activate", h.medicines.Activate)
			r.Post("/{id}/deactivate", h.medicines.Deactivate)
		})
	})

	h.mountCRUD(r, "/units", crudHandlers{
		list: h.units.List, show: h.units.Show,
		create: h.units.Create, update: h.units.Update, delete: h.units.Delete,
	})
	h.mountCRUD(r, "/usage-methods", crudHandlers{
		list: h.usageMethods.List, show: h.usageMethods.Show,
		create: h.usageMethods.Create, update: h.usageMethods.Update, delete: h.usageMethods.Delete,
	})
	h.mountCRUD(r, "/diseases", crudHandlers{
		list: h.diseases.List, show: h.diseases.Show,
		create: h.diseases.Create, update: h.diseases.Update, delete: h.diseases.Delete,
	})
}

type crudHandlers struct {
	list, show, create, update, delete http.HandlerFunc
}

func (h *Handler) mountCRUD(r chi.Router, pattern string, handlers crudHandlers) {
	r.Route(pattern, func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.RequireAny("masterdata.view", "masterdata.edit"))
			r.Get("/", handlers.list)
			r.Get("/{id}", handlers.show)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.RequireAll("masterdata.edit"))
			r.Post("/", handlers.create)
			r.Put("/{id}", handlers.update)
			r.Delete("/{id}", handlers.delete)
		})
	})
}
