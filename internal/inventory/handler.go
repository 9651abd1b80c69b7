package inventory

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/clinicore/clinicore/internal/platform/httpx"
	"github.com/clinicore/clinicore/internal/rbac"
	"github.com/clinicore/clinicore/internal/shared"
)

// Handler wires HTTP endpoints for the inventory module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	rbac     rbac.Middleware
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(), rbac: rbac}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny("inventory.view", "inventory.edit"))
		r.Get("/receipts", h.handleListReceipts)
		r.Get("/receipts/{id}", h.handleGetReceipt)
		r.Get("/medicines/{medicineID}/batches", h.handleListBatches)
		r.Get("/batches/expiring", h.handleListExpiring)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll("inventory.edit"))
		r.Post("/receipts", h.handleCreateReceipt)
		r.Put("/receipts/{id}", h.handleReplaceReceipt)
		r.Delete("/receipts/{id}", h.handleDeleteReceipt)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny("inventory.dispense", "inventory.edit"))
		r.Post("/allocations", h.handleAllocate)
	})
}

type receiptLinePayload struct {
	MedicineID      int64   `json:"medicine_id" validate:"required,gt=0"`
	BatchCode       string  `json:"batch_code" validate:"required"`
	ManufactureDate string  `json:"manufacture_date" validate:"required"`
	ExpiryDate      string  `json:"expiry_date,omitempty"`
	Quantity        int64   `json:"quantity" validate:"required,gt=0"`
	UnitPrice       float64 `json:"unit_price" validate:"gte=0"`
}

type receiptPayload struct {
	SupplierName   string               `json:"supplier_name" validate:"required"`
	ReceiptDate    string               `json:"receipt_date" validate:"required"`
	IdempotencyKey string               `json:"idempotency_key,omitempty"`
	Batches        []receiptLinePayload `json:"batches" validate:"required,min=1,dive"`
}

type allocatePayload struct {
	MedicineID int64 `json:"medicine_id" validate:"required,gt=0"`
	Quantity   int64 `json:"quantity" validate:"required,gt=0"`
}

type batchView struct {
	ID              int64   `json:"id"`
	MedicineID      int64   `json:"medicine_id"`
	ReceiptID       int64   `json:"import_receipt_id"`
	BatchCode       string  `json:"batch_code"`
	ManufactureDate string  `json:"manufacture_date"`
	ExpiryDate      *string `json:"expiry_date"`
	Quantity        int64   `json:"quantity"`
	UnitPrice       float64 `json:"unit_price"`
	Remaining       int64   `json:"remaining_quantity"`
}

type receiptView struct {
	ID           int64       `json:"id"`
	SupplierName string      `json:"supplier_name"`
	ReceiptDate  string      `json:"receipt_date"`
	CreatedBy    int64       `json:"user_id"`
	TotalAmount  float64     `json:"total_amount"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	Batches      []batchView `json:"batches,omitempty"`
}

const dateLayout = "2006-01-02"

func (p receiptPayload) toLines() ([]ReceiptLine, error) {
	lines := make([]ReceiptLine, 0, len(p.Batches))
	for _, b := range p.Batches {
		manufactured, err := time.Parse(dateLayout, b.ManufactureDate)
		if err != nil {
			return nil, err
		}
		line := ReceiptLine{
			MedicineID:      b.MedicineID,
			BatchCode:       b.BatchCode,
			ManufactureDate: manufactured,
			Quantity:        b.Quantity,
			UnitPrice:       b.UnitPrice,
		}
		if b.ExpiryDate != "" {
			expiry, err := time.Parse(dateLayout, b.ExpiryDate)
			if err != nil {
				return nil, err
			}
			line.ExpiryDate = &expiry
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func newBatchView(b Batch) batchView {
	view := batchView{
		ID:              b.ID,
		MedicineID:      b.MedicineID,
		ReceiptID:       b.ReceiptID,
		BatchCode:       b.Code,
		ManufactureDate: b.ManufactureDate.Format(dateLayout),
		Quantity:        b.Quantity,
		UnitPrice:       b.UnitPrice,
		Remaining:       b.Remaining,
	}
	if b.ExpiryDate != nil {
		expiry := b.ExpiryDate.Format(dateLayout)
		view.ExpiryDate = &expiry
	}
	return view
}

func newReceiptView(receipt ImportReceipt, batches []Batch) receiptView {
	view := receiptView{
		ID:           receipt.ID,
		SupplierName: receipt.SupplierName,
		ReceiptDate:  receipt.ReceiptDate.Format(dateLayout),
		CreatedBy:    receipt.CreatedBy,
		TotalAmount:  receipt.TotalAmount,
		CreatedAt:    receipt.CreatedAt,
		UpdatedAt:    receipt.UpdatedAt,
	}
	for _, b := range batches {
		view.Batches = append(view.Batches, newBatchView(b))
	}
	return view
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrReceiptNotFound), errors.Is(err, ErrMedicineNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInsufficientStock):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Duplicate Request", err.Error())
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidUnitPrice):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("inventory request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func (h *Handler) handleCreateReceipt(w http.ResponseWriter, r *http.Request) {
	var payload receiptPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	date, err := time.Parse(dateLayout, payload.ReceiptDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "receipt_date must be YYYY-MM-DD")
		return
	}
	lines, err := payload.toLines()
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "batch dates must be YYYY-MM-DD")
		return
	}

	receiptID, err := h.service.CreateReceipt(r.Context(), CreateReceiptInput{
		Supplier:       payload.SupplierName,
		Date:           date,
		UserID:         currentUserID(r),
		IdempotencyKey: payload.IdempotencyKey,
		Lines:          lines,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"receipt_id": receiptID})
}

func (h *Handler) handleReplaceReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid receipt id")
		return
	}
	var payload receiptPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	date, err := time.Parse(dateLayout, payload.ReceiptDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "receipt_date must be YYYY-MM-DD")
		return
	}
	lines, err := payload.toLines()
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "batch dates must be YYYY-MM-DD")
		return
	}

	if err := h.service.ReplaceReceipt(r.Context(), id, ReplaceReceiptInput{
		Supplier: payload.SupplierName,
		Date:     date,
		UserID:   currentUserID(r),
		Lines:    lines,
	}); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"receipt_id": id})
}

func (h *Handler) handleDeleteReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid receipt id")
		return
	}
	if err := h.service.DeleteReceipt(r.Context(), id, currentUserID(r)); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"receipt_id": id})
}

func (h *Handler) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid receipt id")
		return
	}
	receipt, batches, err := h.service.GetReceipt(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newReceiptView(receipt, batches))
}

func (h *Handler) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	pagination := shared.NewPagination(page, perPage, 0)

	receipts, total, err := h.service.ListReceipts(r.Context(), pagination.PerPage, pagination.Offset())
	if err != nil {
		h.respondError(w, err)
		return
	}
	views := make([]receiptView, 0, len(receipts))
	for _, receipt := range receipts {
		views = append(views, newReceiptView(receipt, nil))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"data":       views,
		"pagination": shared.NewPagination(pagination.Page, pagination.PerPage, total),
	})
}

func (h *Handler) handleListBatches(w http.ResponseWriter, r *http.Request) {
	medicineID, err := strconv.ParseInt(chi.URLParam(r, "medicineID"), 10, 64)
	if err != nil || medicineID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid medicine id")
		return
	}
	onlyWithStock := r.URL.Query().Get("in_stock") != "false"
	batches, err := h.service.ListBatches(r.Context(), medicineID, onlyWithStock)
	if err != nil {
		h.respondError(w, err)
		return
	}
	views := make([]batchView, 0, len(batches))
	for _, b := range batches {
		views = append(views, newBatchView(b))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": views})
}

func (h *Handler) handleListExpiring(w http.ResponseWriter, r *http.Request) {
	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "days must be a positive integer")
			return
		}
		days = parsed
	}
	batches, err := h.service.ListExpiring(r.Context(), time.Duration(days)*24*time.Hour)
	if err != nil {
		h.respondError(w, err)
		return
	}
	views := make([]batchView, 0, len(batches))
	for _, b := range batches {
		views = append(views, newBatchView(b))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": views})
}

func (h *Handler) handleAllocate(w http.ResponseWriter, r *http.Request) {
	var payload allocatePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	allocations, err := h.service.Allocate(r.Context(), payload.MedicineID, payload.Quantity)
	if err != nil {
		h.respondError(w, err)
		return
	}
	result := make([]map[string]int64, 0, len(allocations))
	for _, a := range allocations {
		result = append(result, map[string]int64{"batch_id": a.BatchID, "deducted": a.Deducted})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"allocations": result})
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
