// Package ingest turns raw upstream files into rows for the pipeline tables.
package ingest

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/community-solar/internal/store"
)

// Column maps a source header name onto a table column.
type Column struct {
	Source   string
	Target   string
	Aliases  []string // other accepted header names
	Optional bool     // absent from the source loads as ""
}

// Dataset describes one upstream source and the table it fills.
type Dataset struct {
	Name     string
	Table    string
	Fallback string // file name used when a URL has no usable path segment
	// Columns selects and renames source columns. Nil keeps the header as-is.
	Columns []Column
}

// Locations keeps only the address-point columns the pipeline reads.
var Locations = Dataset{
	Name:     "locations",
	Table:    store.TableLocations,
	Fallback: "locations_data.csv",
	Columns: keep(
		"latitude",
		"longitude",
		"dlgf_prop_class_code",
		"geofulladdress",
		"geocity",
		"geostate",
		"geozip",
		"geocounty",
		"geobg10",
		"geobg20",
	),
}

// CEJST keeps the tract id and the disadvantaged flag from the screening tool export.
var CEJST = Dataset{
	Name:     "cejst",
	Table:    store.TableCEJST,
	Fallback: "cejst_data.csv",
	Columns: []Column{
		{Source: "Census tract 2010 ID", Target: "census_tract_2010_ID"},
		{Source: "Identified as disadvantaged", Target: "identified_as_disadvantaged"},
	},
}

// PropertyCodes normalizes the DLGF property class reference onto the
// property_code, description and name columns the site queries join on.
var PropertyCodes = Dataset{
	Name:     "property-codes",
	Table:    store.TablePropertyCodes,
	Fallback: "property_codes.csv",
	Columns: []Column{
		{Source: "property_code", Target: "property_code", Aliases: []string{"property class code", "prop_class_code", "code"}},
		{Source: "description", Target: "description", Aliases: []string{"property_type", "type"}, Optional: true},
		{Source: "name", Target: "name", Aliases: []string{"property_name", "class_name"}, Optional: true},
	},
}

// Datasets lists every dataset in load order.
var Datasets = []Dataset{Locations, CEJST, PropertyCodes}

// Lookup returns the dataset registered under name.
func Lookup(name string) (Dataset, bool) {
	for _, d := range Datasets {
		if d.Name == name {
			return d, true
		}
	}
	return Dataset{}, false
}

func keep(names ...string) []Column {
	cols := make([]Column, len(names))
	for i, n := range names {
		cols[i] = Column{Source: n, Target: n}
	}
	return cols
}

func (c Column) resolve(pos map[string]int) (int, bool) {
	for _, name := range append([]string{c.Source}, c.Aliases...) {
		if idx, ok := pos[strings.ToLower(name)]; ok {
			return idx, true
		}
	}
	return 0, false
}

// Projection maps rows with a source header onto the dataset's columns.
type Projection struct {
	Columns []string
	index   []int // nil means identity
}

// Project resolves the dataset's columns against header. Header names and
// aliases are matched case-insensitively. Every required column must be present.
func (d Dataset) Project(header []string) (*Projection, error) {
	if len(d.Columns) == 0 {
		cols := make([]string, len(header))
		copy(cols, header)
		return &Projection{Columns: cols}, nil
	}

	pos := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, dup := pos[key]; !dup {
			pos[key] = i
		}
	}

	p := &Projection{
		Columns: make([]string, len(d.Columns)),
		index:   make([]int, len(d.Columns)),
	}
	var missing []string
	for i, c := range d.Columns {
		p.Columns[i] = c.Target
		idx, ok := c.resolve(pos)
		switch {
		case ok:
			p.index[i] = idx
		case c.Optional:
			p.index[i] = -1
		default:
			missing = append(missing, c.Source)
		}
	}
	if len(missing) > 0 {
		return nil, eris.Errorf("ingest: %s source is missing columns [%s]", d.Name, strings.Join(missing, ", "))
	}
	return p, nil
}

// Apply projects one source row. Identity projections return row unchanged
// so the loader still sees its real width; short rows yield "" for absent cells.
func (p *Projection) Apply(row []string) []string {
	if p.index == nil {
		return row
	}
	out := make([]string, len(p.index))
	for i, idx := range p.index {
		if idx >= 0 && idx < len(row) {
			out[i] = row[idx]
		}
	}
	return out
}

// Stream applies the projection to every row of in. The output channel is
// closed once in is closed or ctx is done.
func (p *Projection) Stream(ctx context.Context, in <-chan []string) <-chan []string {
	out := make(chan []string, 64)
	go func() {
		defer close(out)
		for row := range in {
			select {
			case out <- p.Apply(row):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
