package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"parcel-dispatch/internal/apperr"
	"parcel-dispatch/internal/domain"
	"parcel-dispatch/internal/http/handlers"
	"parcel-dispatch/internal/service/rider"
)

type stubRiderUsecase struct {
	setOnlineFn      func(ctx context.Context, actor domain.Actor, online bool) (*domain.Rider, error)
	updateLocationFn func(ctx context.Context, actor domain.Actor, in rider.LocationInput) (*rider.Eta, error)
}

func (s *stubRiderUsecase) SetOnline(ctx context.Context, actor domain.Actor, online bool) (*domain.Rider, error) {
	return s.setOnlineFn(ctx, actor, online)
}

func (s *stubRiderUsecase) UpdateLocation(ctx context.Context, actor domain.Actor, in rider.LocationInput) (*rider.Eta, error) {
	return s.updateLocationFn(ctx, actor, in)
}

type walletStub map[int64]int64

func (w walletStub) WalletBalance(_ context.Context, riderID int64) (int64, error) {
	return w[riderID], nil
}

func TestRiderHandler_SetOnline(t *testing.T) {
	t.Parallel()

	uc := &stubRiderUsecase{
		setOnlineFn: func(_ context.Context, actor domain.Actor, online bool) (*domain.Rider, error) {
			require.False(t, online)
			return &domain.Rider{ID: actor.ID, Name: "Ada", IsOnline: online, Availability: domain.AvailabilityOffline}, nil
		},
	}
	h := handlers.NewRiderHandler(nil, uc, walletStub{})

	rr := httptest.NewRecorder()
	h.SetOnline(rr, newRequest(http.MethodPut, "/", `{"online":false}`, &riderOne, ""))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"is_online":false`)

	// an omitted flag must not read as "offline"
	rr = httptest.NewRecorder()
	h.SetOnline(rr, newRequest(http.MethodPut, "/", `{}`, &riderOne, ""))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRiderHandler_UpdateLocation(t *testing.T) {
	t.Parallel()

	uc := &stubRiderUsecase{
		updateLocationFn: func(_ context.Context, _ domain.Actor, in rider.LocationInput) (*rider.Eta, error) {
			require.Equal(t, int64(77), in.DeliveryID)
			require.NotNil(t, in.Speed)
			return &rider.Eta{DeliveryID: 77, Minutes: 6, DistanceKm: 3.1, Target: "dropoff"}, nil
		},
	}
	h := handlers.NewRiderHandler(nil, uc, walletStub{})

	rr := httptest.NewRecorder()
	h.UpdateLocation(rr, newRequest(http.MethodPut, "/", `{"delivery_id":77,"lat":9.04,"lng":7.49,"speed":30}`, &riderOne, ""))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"data":{"eta":{"delivery_id":77,"minutes":6,"distance_km":3.1,"target":"dropoff"}}}`, rr.Body.String())

	rr = httptest.NewRecorder()
	h.UpdateLocation(rr, newRequest(http.MethodPut, "/", `{"lat":9.04,"lng":7.49,"heading":400}`, &riderOne, ""))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRiderHandler_UpdateLocationWithoutDelivery(t *testing.T) {
	t.Parallel()

	uc := &stubRiderUsecase{
		updateLocationFn: func(context.Context, domain.Actor, rider.LocationInput) (*rider.Eta, error) { return nil, nil },
	}
	rr := httptest.NewRecorder()
	handlers.NewRiderHandler(nil, uc, walletStub{}).UpdateLocation(rr, newRequest(http.MethodPut, "/", `{"lat":9.04,"lng":7.49}`, &riderOne, ""))

	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"data":{"eta":null}}`, rr.Body.String())
}

func TestRiderHandler_UpdateLocationForbidden(t *testing.T) {
	t.Parallel()

	uc := &stubRiderUsecase{
		updateLocationFn: func(context.Context, domain.Actor, rider.LocationInput) (*rider.Eta, error) {
			return nil, apperr.New(apperr.ErrForbidden, "only riders report locations")
		},
	}
	rr := httptest.NewRecorder()
	handlers.NewRiderHandler(nil, uc, walletStub{}).UpdateLocation(rr, newRequest(http.MethodPut, "/", `{"lat":9.04,"lng":7.49}`, &customer, ""))
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRiderHandler_Wallet(t *testing.T) {
	t.Parallel()

	h := handlers.NewRiderHandler(nil, &stubRiderUsecase{}, walletStub{2: 120000})

	rr := httptest.NewRecorder()
	h.Wallet(rr, newRequest(http.MethodGet, "/", "", &riderOne, ""))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"data":{"balance":120000}}`, rr.Body.String())

	rr = httptest.NewRecorder()
	h.Wallet(rr, newRequest(http.MethodGet, "/", "", &customer, ""))
	require.Equal(t, http.StatusForbidden, rr.Code)
}
