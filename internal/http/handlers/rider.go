package handlers

import (
	"net/http"

	"parcel-dispatch/internal/apperr"
	"parcel-dispatch/internal/domain"
	"parcel-dispatch/internal/logx"
)

// RiderHandler serves the /riders/me endpoints of the calling rider.
type RiderHandler struct {
	usecase riderUsecase
	wallets walletReader
	logger  logx.Logger
}

// NewRiderHandler creates a new RiderHandler.
func NewRiderHandler(logger logx.Logger, uc riderUsecase, wallets walletReader) *RiderHandler {
	if logger == nil {
		logger = logx.Nop()
	}
	return &RiderHandler{usecase: uc, wallets: wallets, logger: logger}
}

// SetOnline handles PUT /riders/me/online.
func (h *RiderHandler) SetOnline(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOf(h.logger, w, r)
	if !ok {
		return
	}
	var req onlineRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	rd, err := h.usecase.SetOnline(r.Context(), actor, *req.Online)
	if err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	writeData(h.logger, w, r, http.StatusOK, riderToResponse(rd))
}

// UpdateLocation handles PUT /riders/me/location and answers with the ETA of the active delivery.
func (h *RiderHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOf(h.logger, w, r)
	if !ok {
		return
	}
	var req riderLocationRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	eta, err := h.usecase.UpdateLocation(r.Context(), actor, req.toInput())
	if err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	writeData(h.logger, w, r, http.StatusOK, map[string]any{"eta": etaToResponse(eta)})
}

// Wallet handles GET /riders/me/wallet.
func (h *RiderHandler) Wallet(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOf(h.logger, w, r)
	if !ok {
		return
	}
	if actor.Role != domain.RoleRider {
		writeAppError(h.logger, w, r, apperr.New(apperr.ErrForbidden, "only riders have a wallet"))
		return
	}
	balance, err := h.wallets.WalletBalance(r.Context(), actor.ID)
	if err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	writeData(h.logger, w, r, http.StatusOK, map[string]int64{"balance": balance})
}
