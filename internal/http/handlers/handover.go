package handlers

import (
	"context"
	"net/http"

	"parcel-dispatch/internal/domain"
	"parcel-dispatch/internal/logx"
)

// HandoverHandler serves PIN reveal and verification.
type HandoverHandler struct {
	usecase handoverUsecase
	logger  logx.Logger
}

// NewHandoverHandler creates a new HandoverHandler.
func NewHandoverHandler(logger logx.Logger, uc handoverUsecase) *HandoverHandler {
	if logger == nil {
		logger = logx.Nop()
	}
	return &HandoverHandler{usecase: uc, logger: logger}
}

// PickupPin handles GET /deliveries/{id}/pickup-pin.
func (h *HandoverHandler) PickupPin(w http.ResponseWriter, r *http.Request) {
	h.reveal(w, r, h.usecase.PickupPin)
}

// DeliveryPin handles GET /deliveries/{id}/delivery-pin.
func (h *HandoverHandler) DeliveryPin(w http.ResponseWriter, r *http.Request) {
	h.reveal(w, r, h.usecase.DeliveryPin)
}

func (h *HandoverHandler) reveal(w http.ResponseWriter, r *http.Request, fn func(context.Context, domain.Actor, int64) (string, error)) {
	actor, id, ok := request(h.logger, w, r)
	if !ok {
		return
	}
	pin, err := fn(r.Context(), actor, id)
	if err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeData(h.logger, w, r, http.StatusOK, pinDTO{Pin: pin})
}

// VerifyPickupPin handles POST /deliveries/{id}/verify-pickup-pin.
func (h *HandoverHandler) VerifyPickupPin(w http.ResponseWriter, r *http.Request) {
	h.verify(w, r, h.usecase.VerifyPickupPin)
}

// VerifyDeliveryPin handles POST /deliveries/{id}/verify-delivery-pin.
func (h *HandoverHandler) VerifyDeliveryPin(w http.ResponseWriter, r *http.Request) {
	h.verify(w, r, h.usecase.VerifyDeliveryPin)
}

func (h *HandoverHandler) verify(w http.ResponseWriter, r *http.Request, fn func(context.Context, domain.Actor, int64, string) (*domain.Delivery, error)) {
	actor, id, ok := request(h.logger, w, r)
	if !ok {
		return
	}
	var req verifyPinRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	d, err := fn(r.Context(), actor, id, req.Pin)
	if err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	writeData(h.logger, w, r, http.StatusOK, deliveryToResponse(d))
}
