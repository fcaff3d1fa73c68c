package handlers

import (
	"net/http"

	"parcel-dispatch/internal/apperr"
	"parcel-dispatch/internal/logx"
)

// DispatchHandler serves rider assignment endpoints.
type DispatchHandler struct {
	usecase dispatchUsecase
	logger  logx.Logger
}

// NewDispatchHandler creates a new DispatchHandler.
func NewDispatchHandler(logger logx.Logger, uc dispatchUsecase) *DispatchHandler {
	if logger == nil {
		logger = logx.Nop()
	}
	return &DispatchHandler{usecase: uc, logger: logger}
}

// Accept handles POST /deliveries/{id}/accept. Losing riders get 409.
func (h *DispatchHandler) Accept(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := request(h.logger, w, r)
	if !ok {
		return
	}
	d, err := h.usecase.Accept(r.Context(), actor, id)
	if err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	writeData(h.logger, w, r, http.StatusOK, deliveryToResponse(d))
}

// Reject handles POST /deliveries/{id}/reject.
func (h *DispatchHandler) Reject(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := request(h.logger, w, r)
	if !ok {
		return
	}
	d, err := h.usecase.Reject(r.Context(), actor, id)
	if err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	writeData(h.logger, w, r, http.StatusOK, deliveryToResponse(d))
}

// Unassign handles POST /deliveries/{id}/unassign (admin).
func (h *DispatchHandler) Unassign(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := request(h.logger, w, r)
	if !ok {
		return
	}
	d, err := h.usecase.Unassign(r.Context(), actor, id)
	if err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	writeData(h.logger, w, r, http.StatusOK, deliveryToResponse(d))
}

// Dispatch handles POST /deliveries/{id}/dispatch (admin) and re-sends offers.
func (h *DispatchHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := request(h.logger, w, r)
	if !ok {
		return
	}
	if !actor.IsAdmin() {
		writeAppError(h.logger, w, r, apperr.New(apperr.ErrForbidden, "only administrators can trigger dispatch"))
		return
	}
	n, err := h.usecase.Dispatch(r.Context(), id)
	if err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	writeData(h.logger, w, r, http.StatusAccepted, map[string]int{"offered": n})
}
