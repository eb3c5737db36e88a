package model

import "time"

// SolarEstimate is one GOOGLE_SOLAR row: the derived solar potential for a location.
type SolarEstimate struct {
	ID                     int64     `db:"solar_id" json:"solar_id"`
	LocationID             int64     `db:"location_id" json:"location_id"`
	Latitude               float64   `db:"latitude" json:"latitude"`
	Longitude              float64   `db:"longitude" json:"longitude"`
	ImageryQuality         string    `db:"imagery_quality" json:"imagery_quality"`
	ImageryDate            *string   `db:"imagery_date" json:"imagery_date,omitempty"` // MM-DD-YYYY
	PanelCount             int       `db:"max_array_panels_count" json:"max_array_panels_count"`
	PanelCapacityWatts     float64   `db:"panel_capacity_watts" json:"panel_capacity_watts"`
	NominalPowerWatts      float64   `db:"nominal_power_watts" json:"nominal_power_watts"`
	YearlyEnergyDCKWh      float64   `db:"yearly_energy_dc_kwh" json:"yearly_energy_dc_kwh"`
	CarbonOffsetFactor     float64   `db:"carbon_offset_factor_kg_per_mwh" json:"carbon_offset_factor_kg_per_mwh"`
	AnnualCO2SavingsTons   float64   `db:"estimated_annual_co2_savings_tons" json:"estimated_annual_co2_savings_tons"`
	EstimatedHousesPowered float64   `db:"estimated_houses_powered" json:"estimated_houses_powered"`
	DateAdded              time.Time `db:"date_added" json:"date_added"`
}
