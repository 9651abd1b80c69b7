package records

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/clinicore/clinicore/internal/inventory"
	"github.com/clinicore/clinicore/internal/platform/httpx"
	"github.com/clinicore/clinicore/internal/rbac"
	"github.com/clinicore/clinicore/internal/shared"
)

const dateLayout = "2006-01-02"

// Handler wires HTTP endpoints for medical records.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	rbac     rbac.Middleware
}

// NewHandler constructs a records handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(), rbac: rbac}
}

// MountRoutes registers record routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny("records.view", "records.edit"))
		r.Get("/{id}", h.handleGet)
		r.Get("/patients/{patientID}", h.handleListByPatient)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll("records.edit"))
		r.Post("/", h.handleCreate)
	})
}

type prescriptionPayload struct {
	MedicineID    int64  `json:"medicine_id" validate:"required,gt=0"`
	UsageMethodID int64  `json:"usage_method_id" validate:"required,gt=0"`
	Quantity      int64  `json:"quantity" validate:"required,gt=0"`
	Dosage        string `json:"dosage"`
}

type recordPayload struct {
	PatientID     int64                 `json:"patient_id" validate:"required,gt=0"`
	DiseaseID     *int64                `json:"disease_id" validate:"omitempty,gt=0"`
	Symptoms      string                `json:"symptoms"`
	Diagnosis     string                `json:"diagnosis"`
	RecordDate    string                `json:"record_date" validate:"omitempty,datetime=2006-01-02"`
	Prescriptions []prescriptionPayload `json:"prescriptions" validate:"dive"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload recordPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	recordDate := todayUTC()
	if payload.RecordDate != "" {
		recordDate, _ = time.Parse(dateLayout, payload.RecordDate)
	}

	input := CreateRecordInput{
		PatientID:  payload.PatientID,
		DoctorID:   currentUserID(r),
		DiseaseID:  payload.DiseaseID,
		Symptoms:   payload.Symptoms,
		Diagnosis:  payload.Diagnosis,
		RecordDate: recordDate,
	}
	for _, line := range payload.Prescriptions {
		input.Prescriptions = append(input.Prescriptions, PrescriptionInput{
			MedicineID:    line.MedicineID,
			UsageMethodID: line.UsageMethodID,
			Quantity:      line.Quantity,
			Dosage:        line.Dosage,
		})
	}

	record, err := h.service.CreateRecord(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, record)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "record id must be a positive integer")
		return
	}
	record, err := h.service.GetRecord(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, record)
}

func (h *Handler) handleListByPatient(w http.ResponseWriter, r *http.Request) {
	patientID, err := strconv.ParseInt(chi.URLParam(r, "patientID"), 10, 64)
	if err != nil || patientID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "patient id must be a positive integer")
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	list, pagination, err := h.service.ListByPatient(r.Context(), patientID, page, perPage)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"records": list, "pagination": pagination})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, inventory.ErrInsufficientStock):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	case errors.Is(err, inventory.ErrMedicineNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, httpx.ErrNotFound), errors.Is(err, httpx.ErrValidation):
		httpx.RespondError(w, err)
	default:
		h.logger.Error("records request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func currentUserID(r *http.Request) int64 {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0
	}
	id, err := strconv.ParseInt(sess.User(), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func todayUTC() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
