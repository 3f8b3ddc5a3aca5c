package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/agrolinkhq/agrolink-backend/api/responses"
	"github.com/agrolinkhq/agrolink-backend/api/validators"
	"github.com/agrolinkhq/agrolink-backend/internal/inventory"
	"github.com/agrolinkhq/agrolink-backend/pkg/logger"
)

type setStockRequest struct {
	Stock     int    `json:"stock" validate:"min=0"`
	Threshold *int   `json:"threshold,omitempty"`
	Reason    string `json:"reason" validate:"required,min=3,max=200"`
}

type bulkStockRequest struct {
	Items []bulkStockItem `json:"items" validate:"required,min=1,max=100,dive"`
}

type bulkStockItem struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Stock     int       `json:"stock" validate:"min=0"`
	Threshold *int      `json:"threshold,omitempty"`
	Reason    string    `json:"reason" validate:"required,min=3,max=200"`
}

// VendorInventory returns the vendor's aggregate stock position.
func VendorInventory(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vendorID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		overview, err := svc.Overview(r.Context(), vendorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, overview)
	}
}

// VendorInventoryAlerts lists products at or below their thresholds.
func VendorInventoryAlerts(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vendorID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		alerts, err := svc.Alerts(r.Context(), vendorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, alerts)
	}
}

// VendorInventoryMovements lists the last 30 days of stock adjustments.
func VendorInventoryMovements(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vendorID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		movements, err := svc.Movements(r.Context(), vendorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, movements)
	}
}

// VendorSetStock sets one product's absolute stock level.
func VendorSetStock(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vendorID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := pathUUID(r, chi.URLParam(r, "productId"), "product id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req setStockRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.SetStock(r.Context(), vendorID, inventory.SetStockInput{
			ProductID: productID,
			Stock:     req.Stock,
			Threshold: req.Threshold,
			Reason:    req.Reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// VendorBulkSetStock applies a sheet of absolute stock writes.
func VendorBulkSetStock(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vendorID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req bulkStockRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items := make([]inventory.SetStockInput, 0, len(req.Items))
		for _, item := range req.Items {
			items = append(items, inventory.SetStockInput{
				ProductID: item.ProductID,
				Stock:     item.Stock,
				Threshold: item.Threshold,
				Reason:    item.Reason,
			})
		}
		outcome, err := svc.BulkSetStock(r.Context(), vendorID, items)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, outcome)
	}
}
