package carbon

import (
	"time"
)

// Index represents a qualitative carbon intensity bucket.
type Index string

const (
	IndexVeryLow  Index = "very low"
	IndexLow      Index = "low"
	IndexModerate Index = "moderate"
	IndexHigh     Index = "high"
	IndexVeryHigh Index = "very high"
)

// Source identifies which upstream provider produced a reading.
// Consumers use it for audit and debugging only, never for branching.
type Source string

const (
	SourceNationalGrid    Source = "national-grid"
	SourceElectricityMaps Source = "electricity-maps"
)

// Canonical fuel categories for generation mix entries. Unrecognized
// upstream labels fold into FuelOther.
const (
	FuelNuclear = "nuclear"
	FuelWind    = "wind"
	FuelSolar   = "solar"
	FuelGas     = "gas"
	FuelCoal    = "coal"
	FuelHydro   = "hydro"
	FuelBiomass = "biomass"
	FuelOther   = "other"
)

// MixEntry is one fuel's share of the generation or consumption mix.
type MixEntry struct {
	Fuel       string  `json:"fuel"`
	Percentage float64 `json:"perc"`
}

// Data is the normalized carbon intensity reading shared by every
// provider. A reading is always complete: either every required field is
// populated or the fetch produced an ErrorDetails instead.
type Data struct {
	// Intensity in gCO2/kWh.
	Intensity float64 `json:"intensity"`
	// Index is absent when the provider supplies no bucket and none can
	// be derived.
	Index Index `json:"index,omitempty"`
	// Region is the provider-native region label (e.g. "England" or a
	// zone code).
	Region    string    `json:"region"`
	Timestamp time.Time `json:"timestamp"`
	// Forecast is set by providers that distinguish current vs forecast.
	Forecast *float64 `json:"forecast,omitempty"`
	// Mix is ordered; derived mixes are sorted descending by percentage,
	// pass-through mixes keep upstream order.
	Mix    []MixEntry `json:"mix,omitempty"`
	Source Source     `json:"source"`
}

// ErrorKind classifies a failed reading.
type ErrorKind string

const (
	ErrInvalidLocation   ErrorKind = "INVALID_LOCATION"
	ErrAPIUnavailable    ErrorKind = "API_UNAVAILABLE"
	ErrRateLimited       ErrorKind = "RATE_LIMITED"
	ErrUnsupportedRegion ErrorKind = "UNSUPPORTED_REGION"
	ErrNetworkError      ErrorKind = "NETWORK_ERROR"
)

// ErrorDetails describes a failed reading. Message is always a complete
// sentence naming the offending location where relevant.
type ErrorDetails struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	// RetryAfterSeconds is populated for rate limiting responses that
	// carry a Retry-After header.
	RetryAfterSeconds int `json:"retryAfter,omitempty"`
}

func (e *ErrorDetails) Error() string {
	return e.Message
}

// Result is a discriminated fetch outcome: exactly one of Data or Err is
// set, never both, never neither.
type Result struct {
	Data *Data         `json:"data,omitempty"`
	Err  *ErrorDetails `json:"error,omitempty"`
}
