package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/clinicore/clinicore/internal/inventory"
)

func scrape(t *testing.T, metrics *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	return rr.Body.String()
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}

	body := scrape(t, metrics)
	if !strings.Contains(body, "clinicore_http_requests_total{code=\"418\",route=\"/test\"} 1") {
		t.Fatalf("expected metrics to record request, got: %s", body)
	}
	if !strings.Contains(body, "clinicore_http_request_duration_seconds_bucket{route=\"/test\"") {
		t.Fatalf("expected duration histogram to be present, got: %s", body)
	}
}

func TestMetricsCountsInventoryEvents(t *testing.T) {
	metrics := NewMetrics()

	metrics.ReceiptPosted(inventory.ReceiptPostedEvent{ReceiptID: 1, Action: "created"})
	metrics.ReceiptPosted(inventory.ReceiptPostedEvent{ReceiptID: 1, Action: "deleted"})
	metrics.StockAllocated(inventory.StockAllocatedEvent{MedicineID: 10, Quantity: 15})

	body := scrape(t, metrics)
	if !strings.Contains(body, "clinicore_inventory_receipts_total{action=\"created\"} 1") {
		t.Fatalf("expected created receipt counter, got: %s", body)
	}
	if !strings.Contains(body, "clinicore_inventory_receipts_total{action=\"deleted\"} 1") {
		t.Fatalf("expected deleted receipt counter, got: %s", body)
	}
	if !strings.Contains(body, "clinicore_inventory_allocations_total 1") {
		t.Fatalf("expected allocation counter, got: %s", body)
	}
	if !strings.Contains(body, "clinicore_inventory_allocated_units_total 15") {
		t.Fatalf("expected allocated units counter, got: %s", body)
	}
}
