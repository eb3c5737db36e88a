// Package report produces read-only views of the pipeline database: the
// data dictionary workbook, GeoJSON and shapefile exports of enriched sites,
// and the HTTP API.
package report

import (
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/community-solar/internal/store"
)

// DictionaryFile is the default workbook name for the data dictionary.
const DictionaryFile = "community_solar_database_data_dictionary.xlsx"

var dictionaryHeader = []string{"cid", "column_name", "data_type", "notnull", "default_value", "pk", "column_definition"}

// WriteDictionary writes one sheet per table describing its columns.
func WriteDictionary(path string, tables []store.TableDictionary) error {
	if len(tables) == 0 {
		return eris.New("report: no tables to describe")
	}

	f := xlsx.NewFile()
	for _, t := range tables {
		// Sheet names are capped at 31 characters.
		name := t.Table
		if len(name) > 31 {
			name = name[:31]
		}
		sheet, err := f.AddSheet(name)
		if err != nil {
			return eris.Wrapf(err, "report: add sheet %s", t.Table)
		}

		addRow(sheet, dictionaryHeader)
		for _, c := range t.Columns {
			def := ""
			if c.DefaultValue != nil {
				def = *c.DefaultValue
			}
			notNull := "0"
			if c.NotNull {
				notNull = "1"
			}
			addRow(sheet, []string{
				strconv.Itoa(c.CID),
				c.Name,
				c.Type,
				notNull,
				def,
				strconv.Itoa(c.PK),
				c.Description,
			})
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "report: save %s", path)
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}
