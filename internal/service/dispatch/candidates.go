package dispatch

import (
	"context"
	"fmt"
	"sort"

	"parcel-dispatch/internal/domain"
)

// Candidate is an eligible rider with its distance to the pickup point.
type Candidate struct {
	Rider      domain.Rider
	DistanceKm float64
}

// Candidates returns eligible riders within the search radius of pickup, nearest first.
func (s *Service) Candidates(ctx context.Context, pickup domain.GeoPoint) ([]Candidate, error) {
	riders, err := s.riders.ListEligible(ctx, domain.BoxAround(pickup, s.radiusKm))
	if err != nil {
		return nil, fmt.Errorf("list eligible riders: %w", err)
	}

	out := make([]Candidate, 0, len(riders))
	for _, r := range riders {
		if !r.Eligible() {
			continue
		}
		km := domain.HaversineKm(*r.Location, pickup)
		if km > s.radiusKm {
			continue
		}
		out = append(out, Candidate{Rider: r, DistanceKm: km})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	return out, nil
}
