package controllers

import (
	"net/http"

	"github.com/agrolinkhq/agrolink-backend/api/responses"
	"github.com/agrolinkhq/agrolink-backend/api/validators"
	"github.com/agrolinkhq/agrolink-backend/internal/checkout"
	"github.com/agrolinkhq/agrolink-backend/internal/payments"
	"github.com/agrolinkhq/agrolink-backend/pkg/enums"
	"github.com/agrolinkhq/agrolink-backend/pkg/logger"
	"github.com/agrolinkhq/agrolink-backend/pkg/types"
)

type checkoutRequest struct {
	DeliveryAddress types.DeliveryAddress `json:"delivery_address" validate:"required"`
	Notes           string                `json:"notes" validate:"max=500"`
}

type verifyPaymentRequest struct {
	RazorpayOrderID   string                `json:"razorpay_order_id" validate:"required"`
	RazorpayPaymentID string                `json:"razorpay_payment_id" validate:"required"`
	RazorpaySignature string                `json:"razorpay_signature" validate:"required"`
	DeliveryAddress   types.DeliveryAddress `json:"delivery_address" validate:"required"`
	Notes             string                `json:"notes" validate:"max=500"`
}

// CheckoutCOD places a cash-on-delivery order from the buyer's cart.
func CheckoutCOD(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req checkoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.PlaceCOD(r.Context(), actor, checkout.Input{
			PaymentMethod:   enums.PaymentMethodCOD,
			DeliveryAddress: req.DeliveryAddress,
			Notes:           req.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// RazorpayOrderCreate opens a gateway order for the current cart total.
func RazorpayOrderCreate(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		gatewayOrder, err := svc.CreateGatewayOrder(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, gatewayOrder)
	}
}

// RazorpayVerify reconciles a gateway payment and places the order.
func RazorpayVerify(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req verifyPaymentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.VerifyAndPlace(r.Context(), actor, payments.VerifyInput{
			GatewayOrderID:   req.RazorpayOrderID,
			GatewayPaymentID: req.RazorpayPaymentID,
			Signature:        req.RazorpaySignature,
			Order: checkout.Input{
				PaymentMethod:   enums.PaymentMethodRazorpay,
				DeliveryAddress: req.DeliveryAddress,
				Notes:           req.Notes,
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}
