package domain

import "math"

const earthRadiusKm = 6371.0

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid checks the coordinate ranges.
func (p GeoPoint) Valid() bool {
	return ValidCoordinates(p.Lat, p.Lng)
}

// ValidCoordinates checks latitude and longitude ranges and rejects NaN.
func ValidCoordinates(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// HaversineKm returns the great-circle distance between a and b in kilometers.
func HaversineKm(a, b GeoPoint) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// EtaMinutes converts a distance into whole minutes at speedKmh, rounding up.
func EtaMinutes(distanceKm, speedKmh float64) int {
	if speedKmh <= 0 || distanceKm <= 0 {
		return 0
	}
	return int(math.Ceil(distanceKm / speedKmh * 60))
}

// BoundingBox is a coarse lat/lng rectangle used to prefilter candidates before the exact distance check.
type BoundingBox struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// BoxAround returns a box that contains every point within radiusKm of center.
// When the circle reaches a pole the box spans every longitude.
func BoxAround(center GeoPoint, radiusKm float64) BoundingBox {
	r := radiusKm / earthRadiusKm
	dLat := r * 180 / math.Pi
	box := BoundingBox{
		MinLat: center.Lat - dLat,
		MaxLat: center.Lat + dLat,
		MinLng: center.Lng - 180,
		MaxLng: center.Lng + 180,
	}
	if box.MinLat <= -90 || box.MaxLat >= 90 {
		box.MinLat = math.Max(-90, box.MinLat)
		box.MaxLat = math.Min(90, box.MaxLat)
		return box
	}
	dLng := math.Asin(math.Sin(r)/math.Cos(center.Lat*math.Pi/180)) * 180 / math.Pi
	box.MinLng = center.Lng - dLng
	box.MaxLng = center.Lng + dLng
	return box
}

// Contains reports whether p lies inside the box. Boxes crossing the antimeridian are handled.
func (b BoundingBox) Contains(p GeoPoint) bool {
	if p.Lat < b.MinLat || p.Lat > b.MaxLat {
		return false
	}
	if b.MaxLng-b.MinLng >= 360 {
		return true
	}
	lng := p.Lng
	if lng < b.MinLng {
		lng += 360
	} else if lng > b.MaxLng {
		lng -= 360
	}
	return lng >= b.MinLng && lng <= b.MaxLng
}
