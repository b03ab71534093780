package usps

import "strings"

// countryNames maps ISO 3166-1 alpha-2 codes to the names IntlRateV2 expects
// in its Country element.
var countryNames = map[string]string{
	"AR": "Argentina",
	"AU": "Australia",
	"AT": "Austria",
	"BE": "Belgium",
	"BR": "Brazil",
	"CA": "Canada",
	"CL": "Chile",
	"CN": "China",
	"CO": "Colombia",
	"DK": "Denmark",
	"FI": "Finland",
	"FR": "France",
	"DE": "Germany",
	"GR": "Greece",
	"HK": "Hong Kong",
	"IN": "India",
	"IE": "Ireland",
	"IL": "Israel",
	"IT": "Italy",
	"JP": "Japan",
	"KR": "South Korea (Korea, Republic of)",
	"MX": "Mexico",
	"NL": "Netherlands",
	"NZ": "New Zealand",
	"NO": "Norway",
	"PH": "Philippines",
	"PL": "Poland",
	"PT": "Portugal",
	"SG": "Singapore",
	"ZA": "South Africa",
	"ES": "Spain",
	"SE": "Sweden",
	"CH": "Switzerland",
	"TW": "Taiwan",
	"TR": "Turkey",
	"AE": "United Arab Emirates",
	"GB": "United Kingdom (Great Britain)",
}

// CountryName returns the USPS country name for an ISO code. Unknown codes
// are passed through unchanged.
func CountryName(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if name, ok := countryNames[code]; ok {
		return name
	}
	return code
}
