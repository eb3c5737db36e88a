package store

import (
	"context"

	"github.com/rotisserie/eris"
)

// columnDescriptions documents the known pipeline columns.
var columnDescriptions = map[string]string{
	"location_id":                       "The unique identifier for the location.",
	"has_solar_data":                    "Enrichment state. 0: not checked, 1: checked with no solar data, 2: solar data available.",
	"latitude":                          "The latitude of the location.",
	"longitude":                         "The longitude of the location.",
	"dlgf_prop_class_code":              "The property class code from the Indiana Department of Local Government Finance.",
	"geofulladdress":                    "The full address of the location.",
	"geocity":                           "The city of the location.",
	"geostate":                          "The state of the location.",
	"geozip":                            "The ZIP code of the location.",
	"geocounty":                         "The county of the location.",
	"geobg10":                           "The 2010 census block group of the location.",
	"geobg20":                           "The 2020 census block group of the location.",
	"solar_id":                          "The unique identifier for the solar data.",
	"imagery_quality":                   "The quality of the imagery used for the solar data.",
	"imagery_date":                      "The date of the imagery used for the solar data (MM-DD-YYYY).",
	"max_array_panels_count":            "The maximum number of solar panels in the array.",
	"panel_capacity_watts":              "The capacity of each solar panel in watts.",
	"nominal_power_watts":               "The nominal power of the solar array in watts.",
	"yearly_energy_dc_kwh":              "The estimated yearly energy output of the solar array in kilowatt-hours.",
	"carbon_offset_factor_kg_per_mwh":   "The carbon offset factor in kilograms per megawatt-hour.",
	"estimated_annual_co2_savings_tons": "The estimated annual CO2 savings in tons.",
	"estimated_houses_powered":          "The estimated number of houses powered by the solar array.",
	"date_added":                        "The date the row was added to the database.",
	"cejst_id":                          "The unique identifier for the CEJST data.",
	"census_tract_2010_ID":              "The 2010 census tract ID.",
	"identified_as_disadvantaged":       "Indicates if the census tract is identified as disadvantaged.",
	"property_code_id":                  "The unique identifier for the property code.",
	"property_code":                     "The property code.",
	"description":                       "The description of the property code.",
	"name":                              "The name of the property code.",
	"run_id":                            "The unique identifier for the load run.",
	"table_name":                        "The table the load run wrote to.",
	"source":                            "The file or URL the load run read from.",
	"status":                            "The load run status: running, complete or failed.",
	"inserted":                          "The number of rows inserted.",
	"failed":                            "The number of rows that could not be inserted.",
	"error":                             "The error that ended a failed load run.",
	"started_at":                        "When the load run started.",
	"finished_at":                       "When the load run finished.",
}

// ColumnDescription returns the documented meaning of a column, or "".
func ColumnDescription(column string) string {
	return columnDescriptions[column]
}

// DictionaryColumn is one documented column.
type DictionaryColumn struct {
	ColumnInfo
	Description string `json:"description"`
}

// TableDictionary documents one table.
type TableDictionary struct {
	Table   string             `json:"table"`
	Columns []DictionaryColumn `json:"columns"`
}

// DataDictionary describes every user table in the database.
func (s *SQLiteStore) DataDictionary(ctx context.Context) ([]TableDictionary, error) {
	var tables []string
	err := s.db.SelectContext(ctx, &tables,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list tables")
	}

	out := make([]TableDictionary, 0, len(tables))
	for _, t := range tables {
		cols, err := s.Columns(ctx, t)
		if err != nil {
			return nil, err
		}
		td := TableDictionary{Table: t, Columns: make([]DictionaryColumn, 0, len(cols))}
		for _, c := range cols {
			td.Columns = append(td.Columns, DictionaryColumn{ColumnInfo: c, Description: ColumnDescription(c.Name)})
		}
		out = append(out, td)
	}
	return out, nil
}
