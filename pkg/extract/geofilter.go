package extract

import (
	"math"
	"strings"
)

// earthRadiusKM is used for the haversine distance check against a
// city's configured radius.
const earthRadiusKM = 6371.0

// withinRadius reports whether (lat,lng) falls inside radiusKM of
// (centerLat,centerLng).
func withinRadius(lat, lng, centerLat, centerLng, radiusKM float64) bool {
	return haversineKM(lat, lng, centerLat, centerLng) <= radiusKM
}

func haversineKM(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKM * c
}

// geoVerdict is what the geo filter decided for one candidate's
// coordinates.
type geoVerdict int

const (
	// geoKeep: coordinates are plausible and within radius.
	geoKeep geoVerdict = iota
	// geoSnapNull: coordinates look like an echoed city-center default
	// (§4.4 ε ≈ 0.02°) — null them and fall back to city precision.
	geoSnapNull
	// geoReject: coordinates are outside the configured radius entirely.
	geoReject
)

// applyGeoFilter implements §4.4's geo filter: reject signals whose
// coordinates fall outside the city radius; separately snap-and-null any
// pair that looks like the LLM echoing the city center back as the
// signal's own location.
func applyGeoFilter(lat, lng, centerLat, centerLng, radiusKM, epsilonDegrees float64) geoVerdict {
	if math.Abs(lat-centerLat) < epsilonDegrees && math.Abs(lng-centerLng) < epsilonDegrees {
		return geoSnapNull
	}
	if !withinRadius(lat, lng, centerLat, centerLng, radiusKM) {
		return geoReject
	}
	return geoKeep
}

// recognizedLocation reports whether locationName matches (case-
// insensitively, as a substring either direction) one of the city's
// configured geo terms. An unrecognized name still keeps the signal
// (§4.4) but triggers a confidence penalty.
func recognizedLocation(locationName string, geoTerms []string) bool {
	if locationName == "" {
		return true
	}
	name := strings.ToLower(locationName)
	for _, term := range geoTerms {
		t := strings.ToLower(term)
		if t == "" {
			continue
		}
		if strings.Contains(name, t) || strings.Contains(t, name) {
			return true
		}
	}
	return false
}
