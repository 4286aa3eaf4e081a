package ingest

import (
	"fmt"
	"io"

	"bipv_simulator/internal/model"
	"bipv_simulator/internal/technology"
)

// TechnologyRow is one line of a technology catalog CSV. Footprints and
// weight are per m² of panel.
type TechnologyRow struct {
	ID                string  `csv:"id"`
	InitialEfficiency float64 `csv:"initial_efficiency"`
	DegradationModel  string  `csv:"degradation_model"`
	FirstYearDrop     float64 `csv:"first_year_drop"`
	AnnualDegradation float64 `csv:"annual_degradation"`
	WeibullShape      float64 `csv:"weibull_shape"`
	WeibullScale      float64 `csv:"weibull_scale"`
	ManufacturingPE   float64 `csv:"manufacturing_primary_energy"`
	ManufacturingCO2  float64 `csv:"manufacturing_carbon"`
	ManufacturingCost float64 `csv:"manufacturing_cost"`
	EndOfLifePE       float64 `csv:"eol_primary_energy"`
	EndOfLifeCO2      float64 `csv:"eol_carbon"`
	EndOfLifeCost     float64 `csv:"eol_cost"`
	WeightPerArea     float64 `csv:"weight_per_area"`
}

var catalogHeader = []string{
	"id", "initial_efficiency", "degradation_model", "first_year_drop", "annual_degradation",
	"weibull_shape", "weibull_scale",
	"manufacturing_primary_energy", "manufacturing_carbon", "manufacturing_cost",
	"eol_primary_energy", "eol_carbon", "eol_cost", "weight_per_area",
}

// Technology converts the row into a catalog entry.
func (r *TechnologyRow) Technology() technology.Technology {
	return technology.Technology{
		ID:                r.ID,
		InitialEfficiency: r.InitialEfficiency,
		Degradation: technology.Degradation{
			Model:             technology.DegradationModel(r.DegradationModel),
			FirstYearDrop:     r.FirstYearDrop,
			AnnualDegradation: r.AnnualDegradation,
		},
		Weibull: technology.Weibull{Shape: r.WeibullShape, Scale: r.WeibullScale},
		Manufacturing: model.Footprint{
			PrimaryEnergy: r.ManufacturingPE,
			Carbon:        r.ManufacturingCO2,
			Cost:          r.ManufacturingCost,
		},
		EndOfLife: model.Footprint{
			PrimaryEnergy: r.EndOfLifePE,
			Carbon:        r.EndOfLifeCO2,
			Cost:          r.EndOfLifeCost,
		},
		WeightPerArea: r.WeightPerArea,
	}
}

// ParseCatalog reads a technology catalog CSV. Every record is validated;
// duplicate ids are rejected.
func ParseCatalog(r io.Reader) (*technology.Catalog, error) {
	var rows []*TechnologyRow
	if err := unmarshal(r, catalogHeader, &rows); err != nil {
		return nil, fmt.Errorf("technology catalog: %w", err)
	}

	c := technology.NewCatalog()
	for i, row := range rows {
		if err := c.Add(row.Technology()); err != nil {
			return nil, fmt.Errorf("technology catalog line %d: %w", i+2, err)
		}
	}
	return c, nil
}
