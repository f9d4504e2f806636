package shared

const (
	// Sort directions
	SortAsc  = "asc"
	SortDesc = "desc"

	// DefaultPhoneRegion is used when a number carries no country prefix.
	DefaultPhoneRegion = "IN"
)
