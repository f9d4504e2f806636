package shared

import (
	"strings"

	"github.com/ttacon/libphonenumber"
)

// NormalizePhone validates a phone number and returns it in E.164 form.
// Empty input is returned unchanged. The bool is false when the number is
// not a valid number of any region.
func NormalizePhone(raw, region string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", true
	}
	if region == "" {
		region = DefaultPhoneRegion
	}
	num, err := libphonenumber.Parse(raw, strings.ToUpper(region))
	if err != nil {
		return raw, false
	}
	if !libphonenumber.IsValidNumber(num) {
		return raw, false
	}
	return libphonenumber.Format(num, libphonenumber.E164), true
}
