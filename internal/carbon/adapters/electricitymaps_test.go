package adapters

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/carbon-aware-dev/internal/carbon"
)

const emIntensityFixture = `{
	"zone": "DE",
	"carbonIntensity": 312,
	"datetime": "2026-08-29T14:00:00Z"
}`

const emBreakdownFixture = `{
	"zone": "DE",
	"powerConsumptionBreakdown": {
		"nuclear": 800,
		"wind": 3000,
		"solar": 1200,
		"gas": 2500,
		"coal": 1500,
		"hydro": 400,
		"hydro discharge": 100,
		"biomass": 300,
		"oil": 150,
		"unknown": 50,
		"battery discharge": -20
	}
}`

func newElectricityMapsTestAdapter(serverURL string) *ElectricityMapsAdapter {
	a := NewElectricityMapsAdapter(&http.Client{})
	a.baseURL = serverURL
	return a
}

type authRecorder struct {
	mu sync.Mutex
	m  map[string]string
}

func (a *authRecorder) record(path, token string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.m[path] = token
}

func (a *authRecorder) get(path string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.m[path]
}

func newElectricityMapsServer(t *testing.T, intensityStatus int, breakdownStatus int) (*httptest.Server, *authRecorder) {
	t.Helper()
	headers := &authRecorder{m: make(map[string]string)}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers.record(r.URL.Path, r.Header.Get("auth-token"))
		switch r.URL.Path {
		case "/carbon-intensity/latest":
			if intensityStatus != http.StatusOK {
				w.WriteHeader(intensityStatus)
				return
			}
			w.Write([]byte(emIntensityFixture))
		case "/power-breakdown/latest":
			if breakdownStatus != http.StatusOK {
				w.WriteHeader(breakdownStatus)
				return
			}
			w.Write([]byte(emBreakdownFixture))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	return server, headers
}

func TestElectricityMapsFetch(t *testing.T) {
	server, headers := newElectricityMapsServer(t, http.StatusOK, http.StatusOK)
	defer server.Close()

	adapter := newElectricityMapsTestAdapter(server.URL)
	data, err := adapter.Fetch(context.Background(), "de", "test-key")

	require.NoError(t, err)
	require.NotNil(t, data)

	assert.Equal(t, "test-key", headers.get("/carbon-intensity/latest"))
	assert.Equal(t, "test-key", headers.get("/power-breakdown/latest"))

	assert.Equal(t, 312.0, data.Intensity)
	assert.Equal(t, carbon.IndexVeryHigh, data.Index)
	assert.Equal(t, "DE", data.Region)
	assert.Equal(t, carbon.SourceElectricityMaps, data.Source)
	assert.Nil(t, data.Forecast)
	assert.Equal(t, time.Date(2026, 8, 29, 14, 0, 0, 0, time.UTC), data.Timestamp.UTC())

	// Mix is derived, remapped and sorted descending by percentage.
	require.NotEmpty(t, data.Mix)
	for i := 1; i < len(data.Mix); i++ {
		assert.GreaterOrEqual(t, data.Mix[i-1].Percentage, data.Mix[i].Percentage)
	}
	assert.Equal(t, "wind", data.Mix[0].Fuel)
}

func TestElectricityMapsAdapterIdentity(t *testing.T) {
	adapter := NewElectricityMapsAdapter(&http.Client{})
	assert.Equal(t, "electricity-maps", adapter.Name())
	assert.Equal(t, carbon.SourceElectricityMaps, adapter.Source())
	assert.True(t, adapter.Supports("DE"))
	assert.False(t, adapter.Supports("AL10"))
}

func TestElectricityMapsFetchInvalidCountryCodeSkipsNetwork(t *testing.T) {
	adapter := newElectricityMapsTestAdapter("http://invalid.localhost")

	for _, code := range []string{"", "DEU", "AL10", "1"} {
		data, err := adapter.Fetch(context.Background(), code, "key")
		assert.Error(t, err, "code %q", code)
		assert.Nil(t, data)
		var details *carbon.ErrorDetails
		assert.False(t, errors.As(err, &details), "validation failures are not provider errors")
	}
}

func TestElectricityMapsFetchErrorMapping(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		wantKind    carbon.ErrorKind
		wantContain string
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, wantKind: carbon.ErrAPIUnavailable, wantContain: "API key"},
		{name: "forbidden", status: http.StatusForbidden, wantKind: carbon.ErrUnsupportedRegion, wantContain: "DE"},
		{name: "not found", status: http.StatusNotFound, wantKind: carbon.ErrInvalidLocation, wantContain: "not supported"},
		{name: "rate limited", status: http.StatusTooManyRequests, wantKind: carbon.ErrRateLimited, wantContain: "rate limit"},
		{name: "teapot", status: http.StatusTeapot, wantKind: carbon.ErrNetworkError, wantContain: "418"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newElectricityMapsServer(t, tt.status, http.StatusOK)
			defer server.Close()

			adapter := newElectricityMapsTestAdapter(server.URL)
			data, err := adapter.Fetch(context.Background(), "DE", "key")

			require.Error(t, err)
			assert.Nil(t, data)

			var details *carbon.ErrorDetails
			require.True(t, errors.As(err, &details))
			assert.Equal(t, tt.wantKind, details.Kind)
			assert.Contains(t, details.Message, tt.wantContain)
		})
	}
}

func TestElectricityMapsFetchServerErrorIsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	adapter := newElectricityMapsTestAdapter(server.URL)
	_, err := adapter.Fetch(context.Background(), "DE", "key")

	var details *carbon.ErrorDetails
	require.True(t, errors.As(err, &details))
	assert.Equal(t, carbon.ErrNetworkError, details.Kind)
	assert.Contains(t, details.Message, "503")
}

func TestElectricityMapsRateLimitRetryAfter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	adapter := newElectricityMapsTestAdapter(server.URL)
	_, err := adapter.Fetch(context.Background(), "DE", "key")

	var details *carbon.ErrorDetails
	require.True(t, errors.As(err, &details))
	assert.Equal(t, carbon.ErrRateLimited, details.Kind)
	assert.Equal(t, 120, details.RetryAfterSeconds)
}

func TestElectricityMapsFetchMissingBreakdownStillSucceeds(t *testing.T) {
	server, _ := newElectricityMapsServer(t, http.StatusOK, http.StatusForbidden)
	defer server.Close()

	adapter := newElectricityMapsTestAdapter(server.URL)
	data, err := adapter.Fetch(context.Background(), "DE", "key")

	require.NoError(t, err)
	require.NotNil(t, data)
	assert.Nil(t, data.Mix)
	assert.Equal(t, 312.0, data.Intensity)
}

func TestIntensityIndexThresholds(t *testing.T) {
	tests := []struct {
		intensity float64
		want      carbon.Index
	}{
		{intensity: 0, want: carbon.IndexLow},
		{intensity: 100, want: carbon.IndexLow},
		{intensity: 100.1, want: carbon.IndexModerate},
		{intensity: 200, want: carbon.IndexModerate},
		{intensity: 201, want: carbon.IndexHigh},
		{intensity: 300, want: carbon.IndexHigh},
		{intensity: 300.5, want: carbon.IndexVeryHigh},
		{intensity: 900, want: carbon.IndexVeryHigh},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, intensityIndex(tt.intensity), "intensity %v", tt.intensity)
	}

	// The four-level derivation never yields "very low".
	for intensity := 0.0; intensity <= 500; intensity += 12.5 {
		assert.NotEqual(t, carbon.IndexVeryLow, intensityIndex(intensity))
	}
}

func TestDeriveMixIsDeterministic(t *testing.T) {
	consumption := map[string]float64{
		"wind":            3000,
		"solar":           1200,
		"gas":             2500,
		"hydro":           400,
		"hydro discharge": 100,
		"geothermal":      75,
		"oil":             150,
	}

	first := deriveMix(consumption)
	second := deriveMix(consumption)
	assert.Equal(t, first, second)
}

func TestDeriveMixFoldsFuelsAndDropsNonPositive(t *testing.T) {
	mix := deriveMix(map[string]float64{
		"hydro":             600,
		"hydro discharge":   400,
		"battery discharge": -50,
		"wind":              1000,
	})

	// hydro + hydro discharge fold to one canonical hydro entry; the
	// negative battery discharge is excluded from the total.
	require.Len(t, mix, 2)
	assert.Equal(t, carbon.MixEntry{Fuel: "hydro", Percentage: 50}, mix[0])
	assert.Equal(t, carbon.MixEntry{Fuel: "wind", Percentage: 50}, mix[1])
}

func TestDeriveMixEmptyAndAllNegative(t *testing.T) {
	assert.Nil(t, deriveMix(nil))
	assert.Nil(t, deriveMix(map[string]float64{}))
	assert.Nil(t, deriveMix(map[string]float64{"wind": -10, "gas": 0}))
}

func TestCanonicalFuelClosure(t *testing.T) {
	canonical := map[string]bool{
		carbon.FuelNuclear: true,
		carbon.FuelWind:    true,
		carbon.FuelSolar:   true,
		carbon.FuelGas:     true,
		carbon.FuelCoal:    true,
		carbon.FuelHydro:   true,
		carbon.FuelBiomass: true,
		carbon.FuelOther:   true,
	}

	for label := range fuelTypeMapping {
		assert.True(t, canonical[canonicalFuel(label)], "label %q maps outside the taxonomy", label)
	}

	assert.Equal(t, carbon.FuelOther, canonicalFuel("flux capacitor"))
	assert.Equal(t, carbon.FuelHydro, canonicalFuel("Hydro Discharge"))
}
