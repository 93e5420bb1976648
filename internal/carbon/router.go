package carbon

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// UKFetcher fetches a reading for a UK outward postcode.
type UKFetcher interface {
	Fetch(ctx context.Context, postcode string) (*Data, error)
}

// EUFetcher fetches a reading for a two-letter country code. It requires
// an API key and returns *ErrorDetails for provider-attributable failures.
type EUFetcher interface {
	Fetch(ctx context.Context, countryCode, apiKey string) (*Data, error)
}

// Router classifies a location string and dispatches to the matching
// provider adapter. It picks exactly one adapter per location, never
// retries and never races both.
type Router struct {
	uk UKFetcher
	eu EUFetcher
}

func NewRouter(uk UKFetcher, eu EUFetcher) *Router {
	return &Router{uk: uk, eu: eu}
}

// Resolve returns the reading for the location, or a typed error. The API
// key is only consulted for country code lookups.
func (r *Router) Resolve(ctx context.Context, location, apiKey string) Result {
	clean := strings.TrimSpace(location)
	if clean == "" {
		return errResult(ErrInvalidLocation,
			"no location configured; set a UK outward postcode (e.g. AL10, SW1A, M1) or a two-letter country code (e.g. DE, FR, ES)")
	}

	switch DetectLocationType(clean) {
	case LocationUKPostcode:
		data, err := r.uk.Fetch(ctx, clean)
		if err != nil {
			// The UK provider does not distinguish "not found" from
			// transport failures at this granularity.
			log.Warn().Err(err).Str("postcode", clean).Msg("national grid fetch failed")
			return errResult(ErrInvalidLocation,
				fmt.Sprintf("no carbon intensity data available for %q; check that it is a valid UK outward postcode", clean))
		}
		return Result{Data: data}

	case LocationCountryCode:
		if apiKey == "" {
			return errResult(ErrAPIUnavailable,
				fmt.Sprintf("an Electricity Maps API key is required to look up country code %q", clean))
		}
		data, err := r.eu.Fetch(ctx, clean, apiKey)
		if err != nil {
			var details *ErrorDetails
			if errors.As(err, &details) {
				return Result{Err: details}
			}
			log.Warn().Err(err).Str("zone", clean).Msg("electricity maps fetch failed")
			return errResult(ErrNetworkError,
				fmt.Sprintf("failed to reach Electricity Maps for %q: %v", clean, err))
		}
		return Result{Data: data}

	default:
		return errResult(ErrInvalidLocation,
			fmt.Sprintf("%q is not a supported location; use a UK outward postcode (e.g. AL10, SW1A, M1) or a two-letter country code (e.g. DE, FR, ES)", clean))
	}
}

func errResult(kind ErrorKind, message string) Result {
	return Result{Err: &ErrorDetails{Kind: kind, Message: message}}
}
