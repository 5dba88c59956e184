package payments

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/foodbowl/foodbowl-backend/api/middleware"
	"github.com/foodbowl/foodbowl-backend/api/responses"
	"github.com/foodbowl/foodbowl-backend/api/validators"
	internalpayments "github.com/foodbowl/foodbowl-backend/internal/payments"
	pkgerrors "github.com/foodbowl/foodbowl-backend/pkg/errors"
	"github.com/foodbowl/foodbowl-backend/pkg/logger"
)

type createGatewayOrderRequest struct {
	AppOrderID uuid.UUID `json:"appOrderId" validate:"required"`
}

// CreateGatewayOrder opens (or returns the existing) gateway order for the caller's app order.
func CreateGatewayOrder(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, ok := middleware.ActorIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context"))
			return
		}

		var req createGatewayOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateGatewayOrderFor(r.Context(), actorID, req.AppOrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// Verify checks the gateway callback signature and reconciles the order.
func Verify(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input internalpayments.VerifyInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.VerifyPayment(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
