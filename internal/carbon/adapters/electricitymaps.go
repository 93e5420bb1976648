package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/i474232898/carbon-aware-dev/internal/carbon"
)

// fuelTypeMapping folds Electricity Maps fuel labels into the canonical
// taxonomy. Keys are matched lowercased; anything absent maps to other.
var fuelTypeMapping = map[string]string{
	"nuclear":           carbon.FuelNuclear,
	"wind":              carbon.FuelWind,
	"solar":             carbon.FuelSolar,
	"gas":               carbon.FuelGas,
	"coal":              carbon.FuelCoal,
	"hydro":             carbon.FuelHydro,
	"hydro discharge":   carbon.FuelHydro,
	"biomass":           carbon.FuelBiomass,
	"geothermal":        carbon.FuelOther,
	"oil":               carbon.FuelOther,
	"battery discharge": carbon.FuelOther,
	"unknown":           carbon.FuelOther,
}

// ElectricityMapsAdapter fetches carbon intensity and the power
// consumption breakdown from Electricity Maps, keyed by two-letter
// country code (its "zone") and authorized per request by API key.
type ElectricityMapsAdapter struct {
	name    string
	baseURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
}

func NewElectricityMapsAdapter(client *http.Client) *ElectricityMapsAdapter {
	return &ElectricityMapsAdapter{
		name:    "electricity-maps",
		baseURL: "https://api.electricitymap.org/v3",
		client:  client,
		circuit: newBreaker("electricity-maps"),
	}
}

func (a *ElectricityMapsAdapter) Name() string {
	return a.name
}

func (a *ElectricityMapsAdapter) Source() carbon.Source {
	return carbon.SourceElectricityMaps
}

// Supports reports whether the location is a two-letter country code.
func (a *ElectricityMapsAdapter) Supports(location string) bool {
	return carbon.DetectLocationType(location) == carbon.LocationCountryCode
}

type intensityResponse struct {
	Zone            string  `json:"zone"`
	CarbonIntensity float64 `json:"carbonIntensity"`
	Datetime        string  `json:"datetime"`
}

type powerBreakdownResponse struct {
	Zone                      string             `json:"zone"`
	PowerConsumptionBreakdown map[string]float64 `json:"powerConsumptionBreakdown"`
}

// Fetch returns the current reading for the country code. The intensity
// endpoint is required and its failures carry typed *carbon.ErrorDetails;
// the power breakdown is optional enrichment whose failures are swallowed
// to a reading without a mix.
func (a *ElectricityMapsAdapter) Fetch(ctx context.Context, countryCode, apiKey string) (*carbon.Data, error) {
	clean := strings.TrimSpace(countryCode)
	if !a.Supports(clean) {
		return nil, fmt.Errorf("invalid country code: %q", countryCode)
	}
	zone := strings.ToUpper(clean)

	intensity, err := a.fetchIntensity(ctx, zone, apiKey)
	if err != nil {
		return nil, err
	}

	mix := a.fetchMix(ctx, zone, apiKey)

	ts, parseErr := time.Parse(time.RFC3339, intensity.Datetime)
	if parseErr != nil {
		ts = time.Now().UTC()
	}

	region := intensity.Zone
	if region == "" {
		region = zone
	}

	return &carbon.Data{
		Intensity: intensity.CarbonIntensity,
		Index:     intensityIndex(intensity.CarbonIntensity),
		Region:    region,
		Timestamp: ts,
		Mix:       mix,
		Source:    carbon.SourceElectricityMaps,
	}, nil
}

func (a *ElectricityMapsAdapter) fetchIntensity(ctx context.Context, zone, apiKey string) (*intensityResponse, error) {
	resp, err := a.get(ctx, "/carbon-intensity/latest", zone, apiKey)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) {
			return nil, &carbon.ErrorDetails{
				Kind:    carbon.ErrNetworkError,
				Message: fmt.Sprintf("Electricity Maps API error (%d) for zone %s; please try again later", se.code, zone),
			}
		}
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		// fall through to decode
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, &carbon.ErrorDetails{
			Kind:    carbon.ErrAPIUnavailable,
			Message: "invalid Electricity Maps API key; please check your API key configuration",
		}
	case resp.StatusCode == http.StatusForbidden:
		return nil, &carbon.ErrorDetails{
			Kind:    carbon.ErrUnsupportedRegion,
			Message: fmt.Sprintf("access denied for zone %s; your Electricity Maps API key might not include this zone (the free tier covers a single country)", zone),
		}
	case resp.StatusCode == http.StatusNotFound:
		return nil, &carbon.ErrorDetails{
			Kind:    carbon.ErrInvalidLocation,
			Message: fmt.Sprintf("country code %s is not found or not supported by Electricity Maps", zone),
		}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &carbon.ErrorDetails{
			Kind:              carbon.ErrRateLimited,
			Message:           fmt.Sprintf("Electricity Maps rate limit exceeded for zone %s; please slow down and try again later", zone),
			RetryAfterSeconds: retryAfterSeconds(resp),
		}
	default:
		return nil, &carbon.ErrorDetails{
			Kind:    carbon.ErrNetworkError,
			Message: fmt.Sprintf("Electricity Maps API error (%d) for zone %s; please try again later", resp.StatusCode, zone),
		}
	}

	var payload intensityResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &carbon.ErrorDetails{
			Kind:    carbon.ErrNetworkError,
			Message: fmt.Sprintf("Electricity Maps returned a malformed response for zone %s: %v", zone, err),
		}
	}
	return &payload, nil
}

// fetchMix is best-effort: any failure yields a nil mix, never an error.
func (a *ElectricityMapsAdapter) fetchMix(ctx context.Context, zone, apiKey string) []carbon.MixEntry {
	resp, err := a.get(ctx, "/power-breakdown/latest", zone, apiKey)
	if err != nil {
		log.Debug().Err(err).Str("zone", zone).Msg("power breakdown not available")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Debug().Int("status", resp.StatusCode).Str("zone", zone).Msg("power breakdown not available")
		return nil
	}

	var payload powerBreakdownResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		log.Debug().Err(err).Str("zone", zone).Msg("power breakdown decode failed")
		return nil
	}
	return deriveMix(payload.PowerConsumptionBreakdown)
}

func (a *ElectricityMapsAdapter) get(ctx context.Context, path, zone, apiKey string) (*http.Response, error) {
	buildRequest := func() (*http.Request, error) {
		u := fmt.Sprintf("%s%s?zone=%s", a.baseURL, path, url.QueryEscape(zone))
		req, err := http.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("auth-token", apiKey)
		return req, nil
	}
	return doRequest(ctx, a.client, a.circuit, buildRequest)
}

// intensityIndex derives the qualitative bucket from a raw intensity.
// This derivation is four-level and never yields "very low", unlike the
// UK provider's native five-level enumeration.
func intensityIndex(intensity float64) carbon.Index {
	switch {
	case intensity <= 100:
		return carbon.IndexLow
	case intensity <= 200:
		return carbon.IndexModerate
	case intensity <= 300:
		return carbon.IndexHigh
	default:
		return carbon.IndexVeryHigh
	}
}

// deriveMix converts the instantaneous consumption breakdown into fuel
// percentages: each positive value's share of the total positive
// consumption, folded through the fuel taxonomy, rounded to one decimal,
// zero entries dropped, sorted descending by percentage (ties broken by
// fuel name so the output is deterministic).
func deriveMix(consumption map[string]float64) []carbon.MixEntry {
	var total float64
	for _, value := range consumption {
		if value > 0 {
			total += value
		}
	}
	if total == 0 {
		return nil
	}

	grouped := make(map[string]float64)
	for label, value := range consumption {
		if value <= 0 {
			continue
		}
		grouped[canonicalFuel(label)] += value / total * 100
	}

	entries := make([]carbon.MixEntry, 0, len(grouped))
	for fuel, perc := range grouped {
		rounded := math.Round(perc*10) / 10
		if rounded <= 0 {
			continue
		}
		entries = append(entries, carbon.MixEntry{Fuel: fuel, Percentage: rounded})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Percentage != entries[j].Percentage {
			return entries[i].Percentage > entries[j].Percentage
		}
		return entries[i].Fuel < entries[j].Fuel
	})
	return entries
}

func canonicalFuel(label string) string {
	if fuel, ok := fuelTypeMapping[strings.ToLower(label)]; ok {
		return fuel
	}
	return carbon.FuelOther
}

func retryAfterSeconds(resp *http.Response) int {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return seconds
}
