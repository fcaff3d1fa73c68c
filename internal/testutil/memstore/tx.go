package memstore

import (
	"context"
	"fmt"
	"time"

	"parcel-dispatch/internal/domain"
	"parcel-dispatch/internal/ports/deliverytx"
)

// tx operates on Store.st while the store lock is held by WithTx.
type tx struct{ s *Store }

var _ deliverytx.Repository = (*tx)(nil)

func (t *tx) GetDelivery(_ context.Context, id int64) (*domain.Delivery, error) {
	d, ok := t.s.st.deliveries[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (t *tx) InsertDelivery(_ context.Context, d *domain.Delivery) error {
	d.ID = t.s.id()
	d.Version = 0
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = d.CreatedAt
	}
	t.s.st.deliveries[d.ID] = *d
	return nil
}

func (t *tx) AssignRider(_ context.Context, deliveryID, riderID int64, at time.Time) (bool, error) {
	d, ok := t.s.st.deliveries[deliveryID]
	if !ok || d.RiderID != nil || !d.Status.AwaitingRider() {
		return false, nil
	}
	id := riderID
	d.RiderID = &id
	d.Apply(domain.StatusChange{To: domain.StatusRiderAccepted, At: at})
	t.s.st.deliveries[deliveryID] = d
	return true, nil
}

func (t *tx) UnassignRider(_ context.Context, deliveryID, riderID int64, at time.Time) (bool, error) {
	d, ok := t.s.st.deliveries[deliveryID]
	if !ok || !d.HasRider(riderID) || !d.Status.Assigned() {
		return false, nil
	}
	d.RiderID = nil
	d.Status = domain.StatusSearchingRider
	d.CanReschedule = true
	d.UpdatedAt = at
	d.Version++
	t.s.st.deliveries[deliveryID] = d
	return true, nil
}

func (t *tx) TransitionStatus(_ context.Context, c domain.StatusChange) (bool, error) {
	d, ok := t.s.st.deliveries[c.DeliveryID]
	if !ok || d.Status != c.From || d.Version != c.Version {
		return false, nil
	}
	d.Apply(c)
	t.s.st.deliveries[c.DeliveryID] = d
	return true, nil
}

func (t *tx) VerifyPickupPin(_ context.Context, deliveryID, riderID int64, pin string, at time.Time) (bool, error) {
	d, ok := t.s.st.deliveries[deliveryID]
	if !ok || !d.HasRider(riderID) || d.PickupPin == "" || d.PickupPin != pin || d.PickupPinVerified ||
		d.PaymentStatus != domain.PaymentPaid || !domain.PickupPinAccepted(d.Status) {
		return false, nil
	}
	d.PickupPinVerified = true
	d.Status = domain.StatusPickupInProgress
	d.UpdatedAt = at
	d.Version++
	t.s.st.deliveries[deliveryID] = d
	return true, nil
}

func (t *tx) VerifyDeliveryPin(_ context.Context, deliveryID, riderID int64, pin string, at time.Time) (bool, error) {
	d, ok := t.s.st.deliveries[deliveryID]
	if !ok || !d.HasRider(riderID) || d.DeliveryPin == "" || d.DeliveryPin != pin || d.DeliveryPinVerified ||
		!domain.DeliveryPinAccepted(d.Status) {
		return false, nil
	}
	d.DeliveryPinVerified = true
	d.Apply(domain.StatusChange{To: domain.StatusDelivered, At: at})
	t.s.st.deliveries[deliveryID] = d
	return true, nil
}

func (t *tx) SetPins(_ context.Context, deliveryID int64, pickupPin, deliveryPin string) error {
	d, ok := t.s.st.deliveries[deliveryID]
	if !ok {
		return fmt.Errorf("delivery %d not found", deliveryID)
	}
	if d.PickupPin == "" {
		d.PickupPin = pickupPin
	}
	if d.DeliveryPin == "" {
		d.DeliveryPin = deliveryPin
	}
	t.s.st.deliveries[deliveryID] = d
	return nil
}

func (t *tx) SetPaymentStatus(_ context.Context, deliveryID int64, status domain.PaymentStatus) error {
	d, ok := t.s.st.deliveries[deliveryID]
	if !ok {
		return fmt.Errorf("delivery %d not found", deliveryID)
	}
	d.PaymentStatus = status
	t.s.st.deliveries[deliveryID] = d
	return nil
}

func (t *tx) GetRider(_ context.Context, id int64) (*domain.Rider, error) {
	r, ok := t.s.st.riders[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (t *tx) ReserveRider(_ context.Context, riderID int64) (bool, error) {
	r, ok := t.s.st.riders[riderID]
	if !ok || !r.CanAccept() {
		return false, nil
	}
	r.CurrentDeliveryCount++
	r.Availability = domain.AvailabilityOnDelivery
	t.s.st.riders[riderID] = r
	return true, nil
}

func (t *tx) ReleaseRider(_ context.Context, riderID int64) error {
	r, ok := t.s.st.riders[riderID]
	if !ok {
		return nil
	}
	if r.CurrentDeliveryCount > 0 {
		r.CurrentDeliveryCount--
	}
	if r.CurrentDeliveryCount == 0 {
		if r.IsOnline {
			r.Availability = domain.AvailabilityAvailable
		} else {
			r.Availability = domain.AvailabilityOffline
		}
	}
	t.s.st.riders[riderID] = r
	return nil
}

func (t *tx) InsertEarning(_ context.Context, e *domain.Earning) (bool, error) {
	key := earningKey{e.RiderID, e.DeliveryID}
	if _, ok := t.s.st.earnings[key]; ok {
		return false, nil
	}
	e.ID = t.s.id()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	t.s.st.earnings[key] = *e
	return true, nil
}

func (t *tx) CreditWallet(_ context.Context, riderID, amount int64) error {
	if t.s.FailCreditWallet != nil {
		return t.s.FailCreditWallet
	}
	t.s.st.wallets[riderID] += amount
	return nil
}
