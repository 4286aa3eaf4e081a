package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/gocarina/gocsv"

	"bipv_simulator/internal/model"
)

// Parser reads per-surface irradiance series from a source.
type Parser interface {
	Parse(r io.Reader) (map[string][]float64, error)
}

// IrradianceRow is one line of an irradiance CSV: the incident energy on a
// surface during one time step of the reference year.
type IrradianceRow struct {
	SurfaceID  string  `csv:"surface_id"`
	Step       int     `csv:"step"`
	Irradiance float64 `csv:"irradiance_wh_m2"`
}

var irradianceHeader = []string{"surface_id", "step", "irradiance_wh_m2"}

// IrradianceParser parses irradiance CSV files. Rows may come in any order;
// each surface must cover steps 0..n-1 exactly once.
type IrradianceParser struct{}

func (p *IrradianceParser) Parse(r io.Reader) (map[string][]float64, error) {
	var rows []*IrradianceRow
	if err := unmarshal(r, irradianceHeader, &rows); err != nil {
		return nil, fmt.Errorf("irradiance: %w", err)
	}

	bySurface := make(map[string][]*IrradianceRow)
	for i, row := range rows {
		if row.SurfaceID == "" {
			return nil, model.InvalidParameter("irradiance line %d: empty surface_id", i+2)
		}
		if math.IsNaN(row.Irradiance) || math.IsInf(row.Irradiance, 0) || row.Irradiance < 0 {
			return nil, model.InvalidParameter("irradiance line %d: invalid value %v for %s", i+2, row.Irradiance, row.SurfaceID)
		}
		bySurface[row.SurfaceID] = append(bySurface[row.SurfaceID], row)
	}

	out := make(map[string][]float64, len(bySurface))
	for id, rs := range bySurface {
		sort.SliceStable(rs, func(i, j int) bool { return rs[i].Step < rs[j].Step })
		series := make([]float64, len(rs))
		for i, row := range rs {
			if row.Step != i {
				if row.Step < i {
					return nil, model.InvalidParameter("irradiance %s: duplicate step %d", id, row.Step)
				}
				return nil, model.InvalidParameter("irradiance %s: missing step %d", id, i)
			}
			series[i] = row.Irradiance
		}
		out[id] = series
	}
	return out, nil
}

// WriteIrradiance writes series in the format read by IrradianceParser,
// surfaces in id order.
func WriteIrradiance(w io.Writer, series map[string][]float64) error {
	ids := make([]string, 0, len(series))
	for id := range series {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var rows []*IrradianceRow
	for _, id := range ids {
		for step, v := range series[id] {
			rows = append(rows, &IrradianceRow{SurfaceID: id, Step: step, Irradiance: v})
		}
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("writing irradiance: %w", err)
	}
	return nil
}

// unmarshal checks that the header carries every expected column before
// decoding the rows into out.
func unmarshal(r io.Reader, header []string, out interface{}) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading: %w", err)
	}

	got, err := csv.NewReader(bytes.NewReader(data)).Read()
	if err != nil {
		return model.InvalidParameter("reading header: %v", err)
	}
	present := make(map[string]bool, len(got))
	for _, col := range got {
		present[col] = true
	}
	for _, col := range header {
		if !present[col] {
			return model.InvalidParameter("invalid header: missing column %q", col)
		}
	}

	if err := gocsv.UnmarshalBytes(data, out); err != nil {
		return model.InvalidParameter("%v", err)
	}
	return nil
}
