package model

// Site is an enriched location joined with its reference data. It is the row
// shape read by reporting consumers.
type Site struct {
	LocationID           int64   `db:"location_id" json:"location_id"`
	Latitude             float64 `db:"latitude" json:"latitude"`
	Longitude            float64 `db:"longitude" json:"longitude"`
	PropertyClassCode    string  `db:"dlgf_prop_class_code" json:"dlgf_prop_class_code"`
	PropertyName         string  `db:"property_name" json:"property_name"`
	Address              string  `db:"geofulladdress" json:"address"`
	City                 string  `db:"geocity" json:"city"`
	Zip                  string  `db:"geozip" json:"zip"`
	TractID              string  `db:"tract_id" json:"tract_id"`
	Disadvantaged        string  `db:"identified_as_disadvantaged" json:"disadvantaged"`
	PanelCount           int     `db:"max_array_panels_count" json:"panel_count"`
	NominalPowerWatts    float64 `db:"nominal_power_watts" json:"nominal_power_watts"`
	YearlyEnergyDCKWh    float64 `db:"yearly_energy_dc_kwh" json:"yearly_energy_dc_kwh"`
	AnnualCO2SavingsTons float64 `db:"estimated_annual_co2_savings_tons" json:"co2_savings_tons"`
	HousesPowered        float64 `db:"estimated_houses_powered" json:"houses_powered"`
}
