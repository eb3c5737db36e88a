package model

// DisadvantagedTract is one CEJST row.
type DisadvantagedTract struct {
	ID            int64  `db:"cejst_id" json:"cejst_id"`
	TractID       string `db:"census_tract_2010_ID" json:"census_tract_2010_id"`
	Disadvantaged string `db:"identified_as_disadvantaged" json:"identified_as_disadvantaged"`
}

// IsDisadvantaged interprets the CEJST flag, which is exported as "True"/"False".
func (d DisadvantagedTract) IsDisadvantaged() bool {
	switch d.Disadvantaged {
	case "True", "true", "TRUE", "1", "Yes", "yes":
		return true
	}
	return false
}

// PropertyCode maps a property-class code to its name and description.
type PropertyCode struct {
	ID          int64  `db:"property_code_id" json:"property_code_id"`
	Code        string `db:"property_code" json:"property_code"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
}
