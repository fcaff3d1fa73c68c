package handlers

import (
	"net/http"
	"strconv"

	"parcel-dispatch/internal/logx"
)

// DeliveryHandler serves the lifecycle endpoints of /deliveries.
type DeliveryHandler struct {
	usecase deliveryUsecase
	logger  logx.Logger
}

// NewDeliveryHandler creates a new DeliveryHandler.
func NewDeliveryHandler(logger logx.Logger, uc deliveryUsecase) *DeliveryHandler {
	if logger == nil {
		logger = logx.Nop()
	}
	return &DeliveryHandler{usecase: uc, logger: logger}
}

// Create handles POST /deliveries.
func (h *DeliveryHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOf(h.logger, w, r)
	if !ok {
		return
	}
	var req createDeliveryRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}

	d, err := h.usecase.Create(r.Context(), actor, req.toInput())
	if err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/deliveries/"+strconv.FormatInt(d.ID, 10))
	writeData(h.logger, w, r, http.StatusCreated, deliveryToResponse(d))
}

// Get handles GET /deliveries/{id}.
func (h *DeliveryHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := request(h.logger, w, r)
	if !ok {
		return
	}
	d, err := h.usecase.Get(r.Context(), actor, id)
	if err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	writeData(h.logger, w, r, http.StatusOK, deliveryToResponse(d))
}

// UpdateStatus handles PATCH /deliveries/{id}/status.
func (h *DeliveryHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := request(h.logger, w, r)
	if !ok {
		return
	}
	var req updateStatusRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	d, err := h.usecase.UpdateStatus(r.Context(), actor, id, req.Status)
	if err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	writeData(h.logger, w, r, http.StatusOK, deliveryToResponse(d))
}

// ArrivePickup handles POST /deliveries/{id}/arrive-pickup.
func (h *DeliveryHandler) ArrivePickup(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := request(h.logger, w, r)
	if !ok {
		return
	}
	d, err := h.usecase.ArrivePickup(r.Context(), actor, id)
	if err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	writeData(h.logger, w, r, http.StatusOK, deliveryToResponse(d))
}

// ArriveDropoff handles POST /deliveries/{id}/arrive-dropoff.
func (h *DeliveryHandler) ArriveDropoff(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := request(h.logger, w, r)
	if !ok {
		return
	}
	d, err := h.usecase.ArriveDropoff(r.Context(), actor, id)
	if err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	writeData(h.logger, w, r, http.StatusOK, deliveryToResponse(d))
}

// Cancel handles POST /deliveries/{id}/cancel. The body is optional.
func (h *DeliveryHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := request(h.logger, w, r)
	if !ok {
		return
	}
	var req cancelRequest
	if r.ContentLength != 0 {
		if ok := decodeJSON(h.logger, w, r, &req); !ok {
			return
		}
	}
	d, err := h.usecase.Cancel(r.Context(), actor, id, req.Reason)
	if err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	writeData(h.logger, w, r, http.StatusOK, deliveryToResponse(d))
}
