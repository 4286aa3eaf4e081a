package solar

import (
	"math"
	"time"

	"github.com/sixdouglas/suncalc"
	"gonum.org/v1/gonum/floats"

	"bipv_simulator/internal/model"
)

const (
	solarConstant = 1367.0 // W/m² at the top of the atmosphere
	deg           = math.Pi / 180
)

// Site is the location of a building.
type Site struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
	// Albedo is the ground reflectance seen by tilted surfaces (0.2 for grass).
	Albedo float64 `json:"albedo" yaml:"albedo"`
}

// Orientation describes a panelled surface.
//
// AzimuthDeg: 0=N, 90=E, 180=S, 270=W
// TiltDeg: from horizontal, 0=flat roof, 90=vertical facade
type Orientation struct {
	AzimuthDeg float64 `json:"azimuth_deg" yaml:"azimuth_deg"`
	TiltDeg    float64 `json:"tilt_deg" yaml:"tilt_deg"`
}

// RoofSouth and FacadeSouth are common reference orientations.
var (
	RoofSouth   = Orientation{AzimuthDeg: 180, TiltDeg: 35}
	FacadeSouth = Orientation{AzimuthDeg: 180, TiltDeg: 90}
)

func (s Site) validate() error {
	if s.Latitude < -90 || s.Latitude > 90 {
		return model.InvalidParameter("latitude %v out of range", s.Latitude)
	}
	if s.Longitude < -180 || s.Longitude > 180 {
		return model.InvalidParameter("longitude %v out of range", s.Longitude)
	}
	if s.Albedo < 0 || s.Albedo > 1 {
		return model.InvalidParameter("albedo %v out of range", s.Albedo)
	}
	return nil
}

func (o Orientation) validate() error {
	if o.TiltDeg < 0 || o.TiltDeg > 90 {
		return model.InvalidParameter("tilt %v out of range [0, 90]", o.TiltDeg)
	}
	return nil
}

// ClearSkySeries returns the cloudless irradiance on the surface for every
// step of the year in Wh/m², starting at midnight UTC on January 1st. Each
// step is evaluated at its midpoint.
func ClearSkySeries(site Site, o Orientation, year int, step time.Duration) ([]float64, error) {
	if step <= 0 || step > 24*time.Hour {
		return nil, model.InvalidParameter("step %v must be in (0, 24h]", step)
	}
	if err := site.validate(); err != nil {
		return nil, err
	}
	if err := o.validate(); err != nil {
		return nil, err
	}

	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)
	hours := step.Hours()

	var series []float64
	for t := start; t.Before(end); t = t.Add(step) {
		series = append(series, PlaneIrradiance(site, o, t.Add(step/2))*hours)
	}
	return series, nil
}

// PlaneIrradiance returns the clear-sky power density (W/m²) on the surface
// at time t: beam, isotropic sky diffuse and ground-reflected components.
func PlaneIrradiance(site Site, o Orientation, t time.Time) float64 {
	pos := suncalc.GetPosition(t, site.Latitude, site.Longitude)
	if pos.Altitude <= 0 {
		return 0
	}

	dni := directNormal(pos.Altitude)
	dhi := 0.1 * dni
	ghi := dni*math.Sin(pos.Altitude) + dhi

	// suncalc measures azimuth from south towards west.
	sunAzimuth := pos.Azimuth + math.Pi
	tilt := o.TiltDeg * deg
	cosIncidence := math.Sin(pos.Altitude)*math.Cos(tilt) +
		math.Cos(pos.Altitude)*math.Sin(tilt)*math.Cos(sunAzimuth-o.AzimuthDeg*deg)

	beam := dni * math.Max(0, cosIncidence)
	sky := dhi * (1 + math.Cos(tilt)) / 2
	ground := ghi * site.Albedo * (1 - math.Cos(tilt)) / 2
	return beam + sky + ground
}

// directNormal is the Meinel clear-sky beam model with the Kasten-Young air
// mass.
func directNormal(altitude float64) float64 {
	zenithDeg := 90 - altitude/deg
	am := 1 / (math.Cos(zenithDeg*deg) + 0.50572*math.Pow(96.07995-zenithDeg, -1.6364))
	return solarConstant * math.Pow(0.7, math.Pow(am, 0.678))
}

// Total returns the sum of a series, e.g. the annual Wh/m² of ClearSkySeries.
func Total(series []float64) float64 {
	return floats.Sum(series)
}
