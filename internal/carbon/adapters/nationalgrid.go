package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/i474232898/carbon-aware-dev/internal/carbon"
)

// NationalGridAdapter fetches regional carbon intensity from the UK
// National Grid API, keyed by outward postcode. No authentication.
type NationalGridAdapter struct {
	name    string
	baseURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
}

func NewNationalGridAdapter(client *http.Client) *NationalGridAdapter {
	return &NationalGridAdapter{
		name:    "national-grid",
		baseURL: "https://api.carbonintensity.org.uk/regional",
		client:  client,
		circuit: newBreaker("national-grid"),
	}
}

func (a *NationalGridAdapter) Name() string {
	return a.name
}

func (a *NationalGridAdapter) Source() carbon.Source {
	return carbon.SourceNationalGrid
}

// Supports reports whether the location is a UK outward postcode.
func (a *NationalGridAdapter) Supports(location string) bool {
	return carbon.DetectLocationType(location) == carbon.LocationUKPostcode
}

// Fetch returns the current regional reading for the postcode. The
// postcode is re-validated here so the adapter is safely callable
// standalone; on mismatch no network call is made.
func (a *NationalGridAdapter) Fetch(ctx context.Context, postcode string) (*carbon.Data, error) {
	clean := strings.TrimSpace(postcode)
	if !a.Supports(clean) {
		return nil, fmt.Errorf("invalid UK outward postcode: %q", postcode)
	}

	buildRequest := func() (*http.Request, error) {
		u := fmt.Sprintf("%s/postcode/%s", a.baseURL, url.PathEscape(clean))
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequest(ctx, a.client, a.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("national grid request failed with status %d", resp.StatusCode)
	}

	var payload struct {
		Data []struct {
			Shortname string `json:"shortname"`
			Data      []struct {
				Intensity struct {
					Forecast float64 `json:"forecast"`
					Index    string  `json:"index"`
				} `json:"intensity"`
				GenerationMix []struct {
					Fuel string  `json:"fuel"`
					Perc float64 `json:"perc"`
				} `json:"generationmix"`
			} `json:"data"`
		} `json:"data"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("national grid response decode failed: %w", err)
	}
	if len(payload.Data) == 0 || len(payload.Data[0].Data) == 0 {
		return nil, fmt.Errorf("national grid response contained no regional data")
	}

	regional := payload.Data[0]
	reading := regional.Data[0]

	// Upstream's own fallback convention when the short name is absent.
	region := regional.Shortname
	if region == "" {
		region = "England"
	}

	// The mix is passed through unchanged; upstream fuel names are
	// already human-readable.
	var mix []carbon.MixEntry
	for _, item := range reading.GenerationMix {
		mix = append(mix, carbon.MixEntry{Fuel: item.Fuel, Percentage: item.Perc})
	}

	// The UK provider does not distinguish current vs forecast at this
	// granularity; both fields carry the single forecast value.
	forecast := reading.Intensity.Forecast

	log.Debug().Str("postcode", clean).Str("region", region).Msg("national grid reading fetched")

	return &carbon.Data{
		Intensity: forecast,
		Index:     carbon.Index(reading.Intensity.Index),
		Region:    region,
		Timestamp: time.Now().UTC(),
		Forecast:  &forecast,
		Mix:       mix,
		Source:    carbon.SourceNationalGrid,
	}, nil
}
