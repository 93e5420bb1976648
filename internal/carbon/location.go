package carbon

import (
	"regexp"
	"strings"
)

// LocationType classifies a user-entered location string.
type LocationType string

const (
	LocationUKPostcode  LocationType = "uk-postcode"
	LocationCountryCode LocationType = "country-code"
	LocationUnknown     LocationType = "unknown"
)

var (
	// UK outward postcode: 1-2 letters, 1-2 digits, optional trailing letter.
	ukPostcodeRegex = regexp.MustCompile(`^[A-Za-z]{1,2}[0-9]{1,2}[A-Za-z]?$`)
	// ISO-3166 alpha-2 country code. Disjoint from the postcode pattern
	// because a postcode always contains a digit.
	countryCodeRegex = regexp.MustCompile(`^[A-Za-z]{2}$`)
)

// DetectLocationType classifies a location string. It is a total function:
// no I/O, no error, stable across calls. Whitespace is trimmed first;
// empty input is LocationUnknown.
func DetectLocationType(location string) LocationType {
	clean := strings.TrimSpace(location)
	if clean == "" {
		return LocationUnknown
	}
	if ukPostcodeRegex.MatchString(clean) {
		return LocationUKPostcode
	}
	if countryCodeRegex.MatchString(clean) {
		return LocationCountryCode
	}
	return LocationUnknown
}

// IsLocationSupported reports whether any adapter can serve the location.
func IsLocationSupported(location string) bool {
	return DetectLocationType(location) != LocationUnknown
}
