package ingest

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bipv_simulator/internal/model"
	"bipv_simulator/internal/technology"
)

const catalogCSV = `id,initial_efficiency,degradation_model,first_year_drop,annual_degradation,weibull_shape,weibull_scale,manufacturing_primary_energy,manufacturing_carbon,manufacturing_cost,eol_primary_energy,eol_carbon,eol_cost,weight_per_area
mono-si,0.21,first_year_drop,0.025,0.004,5.3759,30,1100,250,300,20,5,10,12
cigs-facade,0.15,linear,0,0.008,4.2,25,900,180,260,30,7,14,16
`

func TestParseCatalog(t *testing.T) {
	c, err := ParseCatalog(strings.NewReader(catalogCSV))
	require.NoError(t, err)

	assert.Equal(t, []string{"cigs-facade", "mono-si"}, c.IDs())

	mono, err := c.Get("mono-si")
	require.NoError(t, err)
	assert.InDelta(t, 0.21, mono.InitialEfficiency, 1e-12)
	assert.Equal(t, technology.DegradationFirstYearDrop, mono.Degradation.Model)
	assert.InDelta(t, 0.025, mono.Degradation.FirstYearDrop, 1e-12)
	assert.Equal(t, technology.Weibull{Shape: 5.3759, Scale: 30}, mono.Weibull)
	assert.Equal(t, model.Footprint{PrimaryEnergy: 1100, Carbon: 250, Cost: 300}, mono.Manufacturing)
	assert.Equal(t, model.Footprint{PrimaryEnergy: 20, Carbon: 5, Cost: 10}, mono.EndOfLife)
	assert.InDelta(t, 12, mono.WeightPerArea, 1e-12)

	cigs, err := c.Get("cigs-facade")
	require.NoError(t, err)
	assert.Equal(t, technology.DegradationLinear, cigs.Degradation.Model)
}

func TestParseCatalog_Invalid(t *testing.T) {
	header := strings.SplitN(catalogCSV, "\n", 2)[0]

	tests := []struct {
		name string
		row  string
	}{
		{"zero shape", "x,0.2,linear,0,0.01,0,30,1,1,1,1,1,1,1"},
		{"negative scale", "x,0.2,linear,0,0.01,2,-3,1,1,1,1,1,1,1"},
		{"efficiency above one", "x,1.2,linear,0,0.01,2,30,1,1,1,1,1,1,1"},
		{"unknown degradation", "x,0.2,exponential,0,0.01,2,30,1,1,1,1,1,1,1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog(strings.NewReader(header + "\n" + tt.row + "\n"))
			assert.True(t, errors.Is(err, model.ErrInvalidParameter), "got %v", err)
		})
	}

	t.Run("duplicate id", func(t *testing.T) {
		rows := strings.SplitN(catalogCSV, "\n", 3)
		_, err := ParseCatalog(strings.NewReader(header + "\n" + rows[1] + "\n" + rows[1] + "\n"))
		assert.True(t, errors.Is(err, model.ErrInvalidParameter))
	})

	t.Run("missing column", func(t *testing.T) {
		_, err := ParseCatalog(strings.NewReader("id,initial_efficiency\nx,0.2\n"))
		assert.True(t, errors.Is(err, model.ErrInvalidParameter))
	})
}
