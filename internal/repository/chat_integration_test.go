//go:build integration

package repository_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"parcel-dispatch/internal/domain"
	"parcel-dispatch/internal/ports/deliverytx"
	"parcel-dispatch/internal/repository"
)

func seedDelivery(t *testing.T) int64 {
	t.Helper()
	ctx := context.Background()
	customerID, err := repository.NewCustomerRepo(tcPool).Create(ctx, &domain.Customer{Name: "Chi", Phone: uuid.NewString()})
	require.NoError(t, err)

	d := &domain.Delivery{
		TrackingCode: domain.NewTrackingCode(), CustomerID: customerID, Type: domain.DeliveryQuick,
		Status: domain.StatusPending, PaymentStatus: domain.PaymentPending,
		Pickup: domain.Location{Lat: 9, Lng: 7}, Dropoff: domain.Location{Lat: 9.1, Lng: 7.1},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repository.NewDeliveryRepo(tcPool).WithTx(ctx, func(tx deliverytx.Repository) error {
		return tx.InsertDelivery(ctx, d)
	}))
	return d.ID
}

func TestChatRepo_RecentAndMarkRead(t *testing.T) {
	truncateAll(t)
	ctx := context.Background()
	repo := repository.NewChatRepo(tcPool)
	deliveryID := seedDelivery(t)

	riderID := int64(7)
	base := time.Now().UTC().Truncate(time.Millisecond)
	for i := 0; i < 55; i++ {
		sender := domain.SenderCustomer
		if i%2 == 1 {
			sender = domain.SenderRider
		}
		m := &domain.ChatMessage{
			ID: uuid.NewString(), DeliveryID: deliveryID, SenderType: sender, SenderID: &riderID,
			Content: fmt.Sprintf("msg %02d", i), CreatedAt: base.Add(time.Duration(i) * time.Millisecond),
		}
		require.NoError(t, repo.Insert(ctx, m))
		require.False(t, m.CreatedAt.IsZero())
	}

	recent, err := repo.Recent(ctx, deliveryID, domain.ChatHistoryLimit)
	require.NoError(t, err)
	require.Len(t, recent, domain.ChatHistoryLimit)
	require.Equal(t, "msg 05", recent[0].Content)
	require.Equal(t, "msg 54", recent[len(recent)-1].Content)

	n, err := repo.MarkRead(ctx, deliveryID, domain.SenderRider)
	require.NoError(t, err)
	require.Equal(t, int64(27), n)

	n, err = repo.MarkRead(ctx, deliveryID, domain.SenderRider)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestSettingsRepo_Commission(t *testing.T) {
	truncateAll(t)
	ctx := context.Background()
	repo := repository.NewSettingsRepo(tcPool, domain.Commission{Rate: 0.8, MinimumPayout: 50000})

	c, err := repo.Commission(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.Commission{Rate: 0.8, MinimumPayout: 50000}, c)

	require.NoError(t, repo.Set(ctx, "commission_rate", "0.75"))
	c, err = repo.Commission(ctx)
	require.NoError(t, err)
	require.InDelta(t, 0.75, c.Rate, 1e-9)
	require.Equal(t, int64(50000), c.MinimumPayout)

	require.NoError(t, repo.Set(ctx, "minimum_payout", "abc"))
	_, err = repo.Commission(ctx)
	require.Error(t, err)
}
