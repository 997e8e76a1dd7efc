package account

// SupportedCountryCodes is the static allowlist phone touchpoints are
// validated against (SPEC_FULL.md C4 supplement, from
// original_source/server/src/api/onboarding/src/routes.rs, which rejects
// unsupported regions rather than relying on E.164 format alone).
var SupportedCountryCodes = map[string]bool{
	"US": true, "CA": true, "GB": true, "IE": true,
	"AU": true, "NZ": true,
	"DE": true, "FR": true, "ES": true, "IT": true, "NL": true, "PT": true,
	"SE": true, "NO": true, "DK": true, "FI": true, "CH": true, "AT": true,
	"BE": true, "PL": true,
	"SG": true, "JP": true,
}

// IsSupportedCountryCode reports whether code (ISO 3166-1 alpha-2) is
// allowed for a phone touchpoint.
func IsSupportedCountryCode(code string) bool {
	return SupportedCountryCodes[code]
}
