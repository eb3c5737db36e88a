// Package estimate derives solar potential metrics from building-insights payloads.
package estimate

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/sells-group/community-solar/internal/model"
)

// Fixed conversion factors.
const (
	DefaultPanelWatts    = 300.0
	DefaultSunshineHours = 1000.0
	CapacityFactor       = 0.8
	CO2TonsPerKWh        = 0.000699 // EPA
	HouseholdKWhPerYear  = 10566.0  // US average
	UnknownQuality       = "UNKNOWN"
)

// MissingDataError reports a payload that is not the expected object shape.
type MissingDataError struct {
	Field  string
	Reason string
}

func (e *MissingDataError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("estimate: malformed payload: %s", e.Reason)
	}
	return fmt.Sprintf("estimate: malformed payload: %s: %s", e.Field, e.Reason)
}

// SolarMetrics is the derived estimate for one building.
type SolarMetrics struct {
	ImageryQuality         string  `json:"imagery_quality"`
	ImageryDate            *string `json:"imagery_date,omitempty"` // MM-DD-YYYY, nil when unknown
	PanelCount             int     `json:"max_array_panels_count"`
	PanelCapacityWatts     float64 `json:"panel_capacity_watts"`
	NominalPowerWatts      float64 `json:"nominal_power_watts"`
	YearlyEnergyDCKWh      float64 `json:"yearly_energy_dc_kwh"`
	CarbonOffsetFactor     float64 `json:"carbon_offset_factor_kg_per_mwh"`
	AnnualCO2SavingsTons   float64 `json:"estimated_annual_co2_savings_tons"`
	EstimatedHousesPowered float64 `json:"estimated_houses_powered"`
}

// ForLocation builds the GOOGLE_SOLAR row for loc.
func (m *SolarMetrics) ForLocation(loc model.Location) *model.SolarEstimate {
	return &model.SolarEstimate{
		LocationID:             loc.ID,
		Latitude:               loc.Latitude,
		Longitude:              loc.Longitude,
		ImageryQuality:         m.ImageryQuality,
		ImageryDate:            m.ImageryDate,
		PanelCount:             m.PanelCount,
		PanelCapacityWatts:     m.PanelCapacityWatts,
		NominalPowerWatts:      m.NominalPowerWatts,
		YearlyEnergyDCKWh:      m.YearlyEnergyDCKWh,
		CarbonOffsetFactor:     m.CarbonOffsetFactor,
		AnnualCO2SavingsTons:   m.AnnualCO2SavingsTons,
		EstimatedHousesPowered: m.EstimatedHousesPowered,
	}
}

type buildingInsights struct {
	ImageryQuality *string         `json:"imageryQuality"`
	ImageryDate    json.RawMessage `json:"imageryDate"`
	SolarPotential *solarPotential `json:"solarPotential"`
}

type solarPotential struct {
	MaxArrayPanelsCount        *float64      `json:"maxArrayPanelsCount"`
	PanelCapacityWatts         *float64      `json:"panelCapacityWatts"`
	CarbonOffsetFactorKgPerMwh *float64      `json:"carbonOffsetFactorKgPerMwh"`
	MaxSunshineHoursPerYear    *float64      `json:"maxSunshineHoursPerYear"`
	SolarPanelConfigs          []panelConfig `json:"solarPanelConfigs"`
}

type panelConfig struct {
	PanelsCount       *float64 `json:"panelsCount"`
	YearlyEnergyDcKwh *float64 `json:"yearlyEnergyDcKwh"`
}

type imageryDate struct {
	Year  *int `json:"year"`
	Month *int `json:"month"`
	Day   *int `json:"day"`
}

// DeriveMetrics turns a raw building-insights payload into SolarMetrics.
// An empty object yields defaulted metrics. A payload that is not an object,
// or whose solarPotential or solarPanelConfigs have the wrong shape, returns
// a *MissingDataError.
func DeriveMetrics(raw []byte) (*SolarMetrics, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, &MissingDataError{Reason: err.Error()}
	}
	if top == nil {
		return nil, &MissingDataError{Reason: "payload is null"}
	}

	var bi buildingInsights
	if err := json.Unmarshal(raw, &bi); err != nil {
		return nil, &MissingDataError{Field: fieldOf(err), Reason: err.Error()}
	}

	pot := bi.SolarPotential
	if pot == nil {
		pot = &solarPotential{}
	}

	best := bestConfig(pot.SolarPanelConfigs)

	m := &SolarMetrics{
		ImageryQuality:     valueOr(bi.ImageryQuality, UnknownQuality),
		ImageryDate:        formatImageryDate(bi.ImageryDate),
		PanelCount:         int(math.Round(floatOr(pot.MaxArrayPanelsCount, 0))),
		PanelCapacityWatts: floatOr(pot.PanelCapacityWatts, DefaultPanelWatts),
		CarbonOffsetFactor: floatOr(pot.CarbonOffsetFactorKgPerMwh, 0),
	}
	m.NominalPowerWatts = float64(m.PanelCount) * m.PanelCapacityWatts

	if y := floatOr(best.YearlyEnergyDcKwh, 0); y != 0 {
		m.YearlyEnergyDCKWh = y
	} else {
		sunshine := floatOr(pot.MaxSunshineHoursPerYear, DefaultSunshineHours)
		m.YearlyEnergyDCKWh = round2(m.NominalPowerWatts / 1000 * sunshine * CapacityFactor)
	}

	m.AnnualCO2SavingsTons = round2(m.YearlyEnergyDCKWh * CO2TonsPerKWh)
	m.EstimatedHousesPowered = round2(m.YearlyEnergyDCKWh / HouseholdKWhPerYear)
	return m, nil
}

// bestConfig returns the configuration with the highest yearly yield. The
// first maximum wins; an empty list yields an empty configuration.
func bestConfig(configs []panelConfig) panelConfig {
	var (
		best    panelConfig
		found   bool
		highest float64
	)
	for _, c := range configs {
		y := floatOr(c.YearlyEnergyDcKwh, 0)
		if !found || y > highest {
			best, highest, found = c, y, true
		}
	}
	return best
}

// formatImageryDate renders a {year, month, day} object as MM-DD-YYYY.
// Anything missing or out of range yields nil.
func formatImageryDate(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}
	var d imageryDate
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil
	}
	if d.Year == nil || d.Month == nil || d.Day == nil {
		return nil
	}
	if *d.Year < 1 || *d.Year > 9999 || *d.Month < 1 || *d.Month > 12 || *d.Day < 1 || *d.Day > 31 {
		return nil
	}
	s := fmt.Sprintf("%02d-%02d-%04d", *d.Month, *d.Day, *d.Year)
	return &s
}

func fieldOf(err error) string {
	if te, ok := err.(*json.UnmarshalTypeError); ok {
		return te.Field
	}
	return ""
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func floatOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func valueOr(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}
