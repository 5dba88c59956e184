package delivery

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/foodbowl/foodbowl-backend/api/middleware"
	"github.com/foodbowl/foodbowl-backend/api/responses"
	"github.com/foodbowl/foodbowl-backend/api/validators"
	internaldelivery "github.com/foodbowl/foodbowl-backend/internal/delivery"
	pkgerrors "github.com/foodbowl/foodbowl-backend/pkg/errors"
	"github.com/foodbowl/foodbowl-backend/pkg/logger"
)

// Available lists ready, unassigned shop orders the worker has not rejected.
func Available(svc internaldelivery.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		workerID, ok := worker(w, r, logg)
		if !ok {
			return
		}
		views, err := svc.ListAvailable(r.Context(), workerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views)
	}
}

func Accept(svc internaldelivery.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		workerID, input, ok := decodeTarget(w, r, logg)
		if !ok {
			return
		}
		result, err := svc.Accept(r.Context(), workerID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func Reject(svc internaldelivery.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		workerID, input, ok := decodeTarget(w, r, logg)
		if !ok {
			return
		}
		if err := svc.Reject(r.Context(), workerID, input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"message": "order rejected"})
	}
}

// Mine pages through the worker's current and past deliveries.
func Mine(svc internaldelivery.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		workerID, ok := worker(w, r, logg)
		if !ok {
			return
		}
		params, err := validators.PageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.MyDeliveries(r.Context(), workerID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func MarkDelivered(svc internaldelivery.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		workerID, input, ok := decodeTarget(w, r, logg)
		if !ok {
			return
		}
		result, err := svc.MarkDelivered(r.Context(), workerID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// Stats reports today's and lifetime counts; now is injectable for tests.
func Stats(svc internaldelivery.Service, now func() time.Time, logg *logger.Logger) http.HandlerFunc {
	if now == nil {
		now = time.Now
	}
	return func(w http.ResponseWriter, r *http.Request) {
		workerID, ok := worker(w, r, logg)
		if !ok {
			return
		}
		stats, err := svc.ComputeStats(r.Context(), workerID, now())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}

func worker(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (uuid.UUID, bool) {
	id, ok := middleware.ActorIDFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context"))
	}
	return id, ok
}

func decodeTarget(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (uuid.UUID, internaldelivery.ShopOrderInput, bool) {
	var input internaldelivery.ShopOrderInput
	workerID, ok := worker(w, r, logg)
	if !ok {
		return uuid.Nil, input, false
	}
	if err := validators.DecodeJSONBody(r, &input); err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return uuid.Nil, input, false
	}
	return workerID, input, true
}
