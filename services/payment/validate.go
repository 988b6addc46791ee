package payment

import (
	"strings"
)

// usStateCodes and caProvinceCodes normalize spelled-out state/province
// names to the 2-letter codes the processor requires.
var usStateCodes = map[string]string{
	"alabama": "AL", "alaska": "AK", "arizona": "AZ", "arkansas": "AR",
	"california": "CA", "colorado": "CO", "connecticut": "CT", "delaware": "DE",
	"florida": "FL", "georgia": "GA", "hawaii": "HI", "idaho": "ID",
	"illinois": "IL", "indiana": "IN", "iowa": "IA", "kansas": "KS",
	"kentucky": "KY", "louisiana": "LA", "maine": "ME", "maryland": "MD",
	"massachusetts": "MA", "michigan": "MI", "minnesota": "MN", "mississippi": "MS",
	"missouri": "MO", "montana": "MT", "nebraska": "NE", "nevada": "NV",
	"new hampshire": "NH", "new jersey": "NJ", "new mexico": "NM", "new york": "NY",
	"north carolina": "NC", "north dakota": "ND", "ohio": "OH", "oklahoma": "OK",
	"oregon": "OR", "pennsylvania": "PA", "rhode island": "RI", "south carolina": "SC",
	"south dakota": "SD", "tennessee": "TN", "texas": "TX", "utah": "UT",
	"vermont": "VT", "virginia": "VA", "washington": "WA", "west virginia": "WV",
	"wisconsin": "WI", "wyoming": "WY", "district of columbia": "DC",
}

var caProvinceCodes = map[string]string{
	"alberta": "AB", "british columbia": "BC", "manitoba": "MB",
	"new brunswick": "NB", "newfoundland and labrador": "NL",
	"northwest territories": "NT", "nova scotia": "NS", "nunavut": "NU",
	"ontario": "ON", "prince edward island": "PE", "quebec": "QC",
	"saskatchewan": "SK", "yukon": "YT",
}

// normalizeState maps a state/province to its 2-letter code per country.
// Already-short values are uppercased and passed through; unknown names are
// returned unchanged so the processor can report the field error itself.
func normalizeState(country, state string) string {
	trimmed := strings.TrimSpace(state)
	if len(trimmed) <= 2 {
		return strings.ToUpper(trimmed)
	}

	lower := strings.ToLower(trimmed)
	switch strings.ToUpper(strings.TrimSpace(country)) {
	case "US", "USA":
		if code, ok := usStateCodes[lower]; ok {
			return code
		}
	case "CA", "CAN":
		if code, ok := caProvinceCodes[lower]; ok {
			return code
		}
	}
	return trimmed
}
