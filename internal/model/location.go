// Package model defines the records that flow through the solar pipeline.
package model

// EnrichmentState records whether a location has been probed for solar data.
// Stored in LOCATIONS.has_solar_data.
type EnrichmentState int

const (
	StateUnchecked EnrichmentState = 0 // never probed
	StateNoData    EnrichmentState = 1 // probed, no usable data
	StateHasData   EnrichmentState = 2 // probed, GOOGLE_SOLAR row written
)

func (s EnrichmentState) String() string {
	switch s {
	case StateUnchecked:
		return "unchecked"
	case StateNoData:
		return "checked_no_data"
	case StateHasData:
		return "checked_has_data"
	default:
		return "unknown"
	}
}

// CanAdvance reports whether moving from s to next keeps the state monotonic.
// Staying in place is allowed; moving backward never is.
func (s EnrichmentState) CanAdvance(next EnrichmentState) bool {
	if next < StateUnchecked || next > StateHasData {
		return false
	}
	return next >= s
}

// Location is one address point from the LOCATIONS table.
type Location struct {
	ID                int64           `db:"location_id" json:"location_id"`
	Latitude          float64         `db:"latitude" json:"latitude"`
	Longitude         float64         `db:"longitude" json:"longitude"`
	PropertyClassCode string          `db:"dlgf_prop_class_code" json:"dlgf_prop_class_code"`
	Address           string          `db:"geofulladdress" json:"geofulladdress"`
	City              string          `db:"geocity" json:"geocity"`
	State             string          `db:"geostate" json:"geostate"`
	Zip               string          `db:"geozip" json:"geozip"`
	County            string          `db:"geocounty" json:"geocounty"`
	BlockGroup2010    string          `db:"geobg10" json:"geobg10"`
	BlockGroup2020    string          `db:"geobg20" json:"geobg20"`
	Enrichment        EnrichmentState `db:"has_solar_data" json:"has_solar_data"`
}

// TractID returns the 2010 census tract for the location: the first 11
// characters of the 2010 block group id. Empty when the block group is short.
func (l Location) TractID() string {
	if len(l.BlockGroup2010) < 11 {
		return ""
	}
	return l.BlockGroup2010[:11]
}
