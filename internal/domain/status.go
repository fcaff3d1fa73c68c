package domain

type (
	// DeliveryStatus is a lifecycle state of a delivery.
	DeliveryStatus string
	// PaymentStatus is the settlement state of the delivery price.
	PaymentStatus string
	// DeliveryType separates on-demand deliveries from pre-paid scheduled ones.
	DeliveryType string
)

// List of delivery lifecycle states.
const (
	StatusPending             DeliveryStatus = "PENDING"
	StatusScheduled           DeliveryStatus = "SCHEDULED"
	StatusSearchingRider      DeliveryStatus = "SEARCHING_RIDER"
	StatusRiderAccepted       DeliveryStatus = "RIDER_ACCEPTED"
	StatusRiderAssigned       DeliveryStatus = "RIDER_ASSIGNED"
	StatusRiderEnRoutePickup  DeliveryStatus = "RIDER_EN_ROUTE_PICKUP"
	StatusRiderArrivedPickup  DeliveryStatus = "RIDER_ARRIVED_PICKUP"
	StatusAwaitingPayment     DeliveryStatus = "AWAITING_PAYMENT"
	StatusPaymentConfirmed    DeliveryStatus = "PAYMENT_CONFIRMED"
	StatusPickupInProgress    DeliveryStatus = "PICKUP_IN_PROGRESS"
	StatusPickedUp            DeliveryStatus = "PICKED_UP"
	StatusInTransit           DeliveryStatus = "IN_TRANSIT"
	StatusRiderArrivedDropoff DeliveryStatus = "RIDER_ARRIVED_DROPOFF"
	StatusDeliveryInProgress  DeliveryStatus = "DELIVERY_IN_PROGRESS"
	StatusDelivered           DeliveryStatus = "DELIVERED"
	StatusCompleted           DeliveryStatus = "COMPLETED"
	StatusCancelled           DeliveryStatus = "CANCELLED"
	StatusFailed              DeliveryStatus = "FAILED"
)

// List of payment states.
const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

// List of delivery types.
const (
	DeliveryQuick     DeliveryType = "quick"
	DeliveryScheduled DeliveryType = "scheduled"
)

var allStatuses = [...]DeliveryStatus{
	StatusPending, StatusScheduled, StatusSearchingRider, StatusRiderAccepted, StatusRiderAssigned,
	StatusRiderEnRoutePickup, StatusRiderArrivedPickup, StatusAwaitingPayment, StatusPaymentConfirmed,
	StatusPickupInProgress, StatusPickedUp, StatusInTransit, StatusRiderArrivedDropoff,
	StatusDeliveryInProgress, StatusDelivered, StatusCompleted, StatusCancelled, StatusFailed,
}

// common tails of the allow-list
var (
	cancelOrFail = []DeliveryStatus{StatusCancelled, StatusFailed}
	failOnly     = []DeliveryStatus{StatusFailed}
)

// transitions is the allow-list: current state -> permitted next states.
// The SEARCHING_RIDER <- RIDER_ACCEPTED rollback is not listed; it is a separate unassign operation.
var transitions = map[DeliveryStatus][]DeliveryStatus{
	StatusPending:             append([]DeliveryStatus{StatusSearchingRider}, cancelOrFail...),
	StatusScheduled:           append([]DeliveryStatus{StatusSearchingRider}, cancelOrFail...),
	StatusSearchingRider:      append([]DeliveryStatus{StatusRiderAccepted, StatusRiderAssigned}, cancelOrFail...),
	StatusRiderAccepted:       append([]DeliveryStatus{StatusRiderEnRoutePickup, StatusRiderArrivedPickup}, cancelOrFail...),
	StatusRiderAssigned:       append([]DeliveryStatus{StatusRiderEnRoutePickup, StatusRiderArrivedPickup}, cancelOrFail...),
	StatusRiderEnRoutePickup:  append([]DeliveryStatus{StatusRiderArrivedPickup}, cancelOrFail...),
	StatusRiderArrivedPickup:  append([]DeliveryStatus{StatusAwaitingPayment, StatusPaymentConfirmed, StatusPickupInProgress}, cancelOrFail...),
	StatusAwaitingPayment:     append([]DeliveryStatus{StatusPaymentConfirmed}, cancelOrFail...),
	StatusPaymentConfirmed:    append([]DeliveryStatus{StatusPickupInProgress}, cancelOrFail...),
	StatusPickupInProgress:    append([]DeliveryStatus{StatusPickedUp}, cancelOrFail...),
	StatusPickedUp:            append([]DeliveryStatus{StatusInTransit}, cancelOrFail...),
	StatusInTransit:           append([]DeliveryStatus{StatusRiderArrivedDropoff, StatusDeliveryInProgress, StatusDelivered}, cancelOrFail...),
	StatusRiderArrivedDropoff: append([]DeliveryStatus{StatusDeliveryInProgress, StatusDelivered}, failOnly...),
	StatusDeliveryInProgress:  append([]DeliveryStatus{StatusDelivered}, failOnly...),
	StatusDelivered:           {StatusCompleted},
}

// pinGated targets can only be entered through handover verification, the arrival chain
// or a payment event, unless the caller is an administrator.
var pinGated = map[DeliveryStatus]bool{
	StatusAwaitingPayment:  true,
	StatusPickupInProgress: true,
	StatusDelivered:        true,
	StatusPaymentConfirmed: true,
}

var labels = map[DeliveryStatus]string{
	StatusRiderAccepted:       "Rider has accepted your delivery",
	StatusRiderAssigned:       "A rider has been assigned to your delivery",
	StatusRiderEnRoutePickup:  "Rider is on the way to the pickup location",
	StatusRiderArrivedPickup:  "Rider has arrived at pickup location",
	StatusAwaitingPayment:     "Payment is required before pickup",
	StatusPaymentConfirmed:    "Payment confirmed",
	StatusPickupInProgress:    "Pickup PIN verified, parcel handover in progress",
	StatusPickedUp:            "Parcel picked up",
	StatusInTransit:           "Parcel is on the way",
	StatusRiderArrivedDropoff: "Rider has arrived at the dropoff location",
	StatusDelivered:           "Parcel delivered",
	StatusCompleted:           "Delivery completed",
	StatusCancelled:           "Delivery cancelled",
	StatusFailed:              "Delivery failed",
}

// Valid checks if the DeliveryStatus is a known state.
func (s DeliveryStatus) Valid() bool {
	for _, v := range allStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s DeliveryStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

// CanTransition reports whether next is in the allow-list for s.
func (s DeliveryStatus) CanTransition(next DeliveryStatus) bool {
	for _, v := range transitions[s] {
		if v == next {
			return true
		}
	}
	return false
}

// Gated reports whether the status may only be entered via PIN or payment confirmation.
func (s DeliveryStatus) Gated() bool { return pinGated[s] }

// Label returns the chat timeline line for entering s, or "" when the transition is silent.
func (s DeliveryStatus) Label() string { return labels[s] }

// AwaitingRider reports whether the delivery is open for acceptance.
func (s DeliveryStatus) AwaitingRider() bool {
	return s == StatusPending || s == StatusSearchingRider
}

// Assigned reports whether the status is one of the two rollback-eligible assignment states.
func (s DeliveryStatus) Assigned() bool {
	return s == StatusRiderAccepted || s == StatusRiderAssigned
}

// PostPickup reports whether the parcel is physically with the rider.
func (s DeliveryStatus) PostPickup() bool {
	switch s {
	case StatusPickedUp, StatusInTransit, StatusRiderArrivedDropoff, StatusDeliveryInProgress:
		return true
	}
	return false
}

// HoldsRider reports whether a rider capacity slot is held while in s.
func (s DeliveryStatus) HoldsRider() bool {
	switch s {
	case StatusPending, StatusScheduled, StatusSearchingRider,
		StatusDelivered, StatusCompleted, StatusCancelled, StatusFailed:
		return false
	}
	return s.Valid()
}

// ReleasesRider reports whether moving from prev to next frees the rider's capacity slot.
func ReleasesRider(prev, next DeliveryStatus) bool {
	if !prev.HoldsRider() {
		return false
	}
	return next == StatusDelivered || next == StatusCancelled || next == StatusFailed
}

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []DeliveryStatus {
	out := make([]DeliveryStatus, len(allStatuses))
	copy(out, allStatuses[:])
	return out
}

// Valid checks if the PaymentStatus is known.
func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

// Valid checks if the DeliveryType is known.
func (t DeliveryType) Valid() bool {
	return t == DeliveryQuick || t == DeliveryScheduled
}
