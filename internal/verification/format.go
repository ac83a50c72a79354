package verification

import (
	"strings"
	"unicode"

	"startline/internal/catalog"
	dErrors "startline/pkg/domain-errors"
)

// HealthPassPrefix is the distinguished letter that opens every health-pass
// number. Federation license numbers are purely numeric.
const HealthPassPrefix = "P"

// ValidateNumberFormat applies the local format rule before any webservice
// call: federation numbers are 6-8 digits, health-pass numbers start with
// the distinguished prefix. A value violating the expected form for the
// selected license category is rejected without a network call.
func ValidateNumberFormat(licenseCode, number string) error {
	number = strings.TrimSpace(number)
	if number == "" {
		return dErrors.New(dErrors.CodeBadRequest, "identity number is required")
	}

	switch licenseCode {
	case catalog.LicenseCodeFederation:
		if !isNumeric(number) || len(number) < 6 || len(number) > 8 {
			return dErrors.New(dErrors.CodeBadRequest, "federation license numbers are 6 to 8 digits")
		}
	case catalog.LicenseCodeHealthPass:
		if !strings.HasPrefix(strings.ToUpper(number), HealthPassPrefix) {
			return dErrors.New(dErrors.CodeBadRequest, "health-pass numbers start with the letter "+HealthPassPrefix)
		}
	default:
		return dErrors.New(dErrors.CodeBadRequest, "unknown license category: "+licenseCode)
	}
	return nil
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}
