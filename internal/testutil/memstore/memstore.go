// Package memstore is an in-memory implementation of the storage contracts used in service tests.
// Transactions are serialized by one mutex, so every conditional write observes the same
// atomicity the SQL store gets from row locks. Reads outside WithTx must not be issued from
// inside a transaction callback.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"parcel-dispatch/internal/apperr"
	"parcel-dispatch/internal/domain"
	"parcel-dispatch/internal/ports/deliverytx"
)

type earningKey struct{ rider, delivery int64 }

type state struct {
	deliveries map[int64]domain.Delivery
	riders     map[int64]domain.Rider
	earnings   map[earningKey]domain.Earning
	wallets    map[int64]int64
}

func (s state) clone() state {
	out := state{
		deliveries: make(map[int64]domain.Delivery, len(s.deliveries)),
		riders:     make(map[int64]domain.Rider, len(s.riders)),
		earnings:   make(map[earningKey]domain.Earning, len(s.earnings)),
		wallets:    make(map[int64]int64, len(s.wallets)),
	}
	for k, v := range s.deliveries {
		out.deliveries[k] = v
	}
	for k, v := range s.riders {
		out.riders[k] = v
	}
	for k, v := range s.earnings {
		out.earnings[k] = v
	}
	for k, v := range s.wallets {
		out.wallets[k] = v
	}
	return out
}

// Store is an in-memory delivery database.
type Store struct {
	mu        sync.Mutex
	st        state
	customers map[int64]domain.Customer
	chat      []domain.ChatMessage
	nextID    int64
	txCount   int

	// FailCreditWallet makes CreditWallet fail, to exercise rollback paths.
	FailCreditWallet error
}

// New returns an empty store.
func New() *Store {
	return &Store{
		st: state{
			deliveries: map[int64]domain.Delivery{},
			riders:     map[int64]domain.Rider{},
			earnings:   map[earningKey]domain.Earning{},
			wallets:    map[int64]int64{},
		},
		customers: map[int64]domain.Customer{},
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// AddCustomer stores a customer and returns its id.
func (s *Store) AddCustomer(c domain.Customer) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		c.ID = s.id()
	}
	s.customers[c.ID] = c
	return c.ID
}

// AddRider stores a rider and returns its id.
func (s *Store) AddRider(r domain.Rider) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == 0 {
		r.ID = s.id()
	}
	s.st.riders[r.ID] = r
	return r.ID
}

// PutDelivery stores d as is and returns its id.
func (s *Store) PutDelivery(d domain.Delivery) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == 0 {
		d.ID = s.id()
	}
	s.st.deliveries[d.ID] = d
	return d.ID
}

// TxCount returns how many transactions were committed.
func (s *Store) TxCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txCount
}

// WithTx runs fn under the store lock and rolls back all delivery, rider and earning writes on error.
func (s *Store) WithTx(ctx context.Context, fn func(tx deliverytx.Repository) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := s.st.clone()
	defer func() {
		if p := recover(); p != nil {
			s.st = snapshot
			panic(p)
		}
	}()

	if err := fn(&tx{s: s}); err != nil {
		s.st = snapshot
		return err
	}
	s.txCount++
	return nil
}

// Get returns a delivery by id, nil if absent.
func (s *Store) Get(_ context.Context, id int64) (*domain.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.st.deliveries[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

// ListUnsettled mirrors DeliveryRepo.ListUnsettled.
func (s *Store) ListUnsettled(_ context.Context, limit int) ([]domain.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Delivery
	for _, d := range s.sortedDeliveries() {
		if d.Status != domain.StatusDelivered && d.Status != domain.StatusCompleted || d.RiderID == nil {
			continue
		}
		if _, ok := s.st.earnings[earningKey{*d.RiderID, d.ID}]; ok {
			continue
		}
		out = append(out, d)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// ListSearching mirrors DeliveryRepo.ListSearching.
func (s *Store) ListSearching(_ context.Context, before time.Time, limit int) ([]domain.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Delivery
	for _, d := range s.sortedDeliveries() {
		if d.Status == domain.StatusSearchingRider && d.RiderID == nil && d.UpdatedAt.Before(before) {
			out = append(out, d)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *Store) sortedDeliveries() []domain.Delivery {
	out := make([]domain.Delivery, 0, len(s.st.deliveries))
	for _, d := range s.st.deliveries {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Rider returns a rider by id, nil if absent.
func (s *Store) Rider(id int64) *domain.Rider {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.st.riders[id]
	if !ok {
		return nil
	}
	return &r
}

// RiderRepo returns the rider read/write view of the store.
func (s *Store) RiderRepo() *Riders { return &Riders{s: s} }

// Customers returns the customer view of the store.
func (s *Store) Customers() *Customers { return &Customers{s: s} }

// Chat returns the chat view of the store.
func (s *Store) Chat() *Chat { return &Chat{s: s} }

// Earnings returns the earnings view of the store.
func (s *Store) Earnings() *Earnings { return &Earnings{s: s} }

// Riders mirrors repository.RiderRepo.
type Riders struct{ s *Store }

// Get returns a rider by id, nil if absent.
func (r *Riders) Get(_ context.Context, id int64) (*domain.Rider, error) {
	return r.s.Rider(id), nil
}

// ListEligible returns eligible riders inside box, ordered by id.
func (r *Riders) ListEligible(_ context.Context, box domain.BoundingBox) ([]domain.Rider, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Rider
	for _, rd := range r.s.st.riders {
		if rd.Eligible() && box.Contains(*rd.Location) {
			out = append(out, rd)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdateLocation stores the last known rider position.
func (r *Riders) UpdateLocation(_ context.Context, id int64, p domain.GeoPoint, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rd, ok := r.s.st.riders[id]
	if !ok {
		return apperr.New(apperr.ErrNotFound, "rider not found")
	}
	rd.Location = &p
	rd.LastLocationUpdate = &at
	r.s.st.riders[id] = rd
	return nil
}

// SetOnline toggles the online flag.
func (r *Riders) SetOnline(_ context.Context, id int64, online bool) (*domain.Rider, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rd, ok := r.s.st.riders[id]
	if !ok {
		return nil, nil
	}
	rd.IsOnline = online
	switch {
	case !online:
		rd.Availability = domain.AvailabilityOffline
	case rd.CurrentDeliveryCount > 0:
		rd.Availability = domain.AvailabilityOnDelivery
	default:
		rd.Availability = domain.AvailabilityAvailable
	}
	r.s.st.riders[id] = rd
	return &rd, nil
}

// Customers mirrors repository.CustomerRepo.
type Customers struct{ s *Store }

// Get returns a customer by id, nil if absent.
func (c *Customers) Get(_ context.Context, id int64) (*domain.Customer, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	cu, ok := c.s.customers[id]
	if !ok {
		return nil, nil
	}
	return &cu, nil
}

// Chat mirrors repository.ChatRepo.
type Chat struct{ s *Store }

// Insert appends a message.
func (c *Chat) Insert(_ context.Context, m *domain.ChatMessage) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	c.s.chat = append(c.s.chat, *m)
	return nil
}

// Recent returns the last limit messages of a delivery, oldest first.
func (c *Chat) Recent(_ context.Context, deliveryID int64, limit int) ([]domain.ChatMessage, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	var all []domain.ChatMessage
	for _, m := range c.s.chat {
		if m.DeliveryID == deliveryID {
			all = append(all, m)
		}
	}
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

// MarkRead marks unread messages of sender as read.
func (c *Chat) MarkRead(_ context.Context, deliveryID int64, sender domain.SenderType) (int64, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	var n int64
	for i := range c.s.chat {
		m := &c.s.chat[i]
		if m.DeliveryID == deliveryID && m.SenderType == sender && !m.IsRead {
			m.IsRead = true
			n++
		}
	}
	return n, nil
}

// Earnings mirrors repository.EarningRepo.
type Earnings struct{ s *Store }

// ListForDelivery returns earnings of a delivery.
func (e *Earnings) ListForDelivery(_ context.Context, deliveryID int64) ([]domain.Earning, error) {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	var out []domain.Earning
	for k, v := range e.s.st.earnings {
		if k.delivery == deliveryID {
			out = append(out, v)
		}
	}
	return out, nil
}

// WalletBalance returns the rider balance.
func (e *Earnings) WalletBalance(_ context.Context, riderID int64) (int64, error) {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	return e.s.st.wallets[riderID], nil
}
