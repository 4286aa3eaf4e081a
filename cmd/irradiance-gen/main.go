// irradiance-gen writes a synthetic clear-sky irradiance CSV for a list of
// oriented surfaces, in the format read by bipv-sim.
//
// Surfaces are given as id:azimuth:tilt, e.g.
//
//	irradiance-gen -surfaces roof:180:35,facade-w:270:90 -out school.csv
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"bipv_simulator/internal/ingest"
	"bipv_simulator/internal/solar"
)

type surface struct {
	id          string
	orientation solar.Orientation
}

func main() {
	lat := flag.Float64("lat", 52.52, "site latitude")
	lon := flag.Float64("lon", 13.405, "site longitude")
	albedo := flag.Float64("albedo", 0.2, "ground reflectance")
	year := flag.Int("year", 2023, "reference year")
	stepFlag := flag.String("step", "1h", "time step (e.g. 15m, 1h)")
	surfacesFlag := flag.String("surfaces", "roof:180:35", "comma-separated id:azimuth:tilt")
	out := flag.String("out", "", "output CSV file (default: stdout)")
	flag.Parse()

	step, err := time.ParseDuration(*stepFlag)
	if err != nil {
		log.Fatalf("Invalid step duration %q: %v", *stepFlag, err)
	}
	surfaces, err := parseSurfaces(*surfacesFlag)
	if err != nil {
		log.Fatalf("Invalid surfaces %q: %v", *surfacesFlag, err)
	}

	site := solar.Site{Latitude: *lat, Longitude: *lon, Albedo: *albedo}
	series, err := generate(site, surfaces, *year, step)
	if err != nil {
		log.Fatalf("Generating irradiance: %v", err)
	}

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatalf("Creating %s: %v", *out, err)
		}
		defer f.Close()
		w = f
	}
	if err := ingest.WriteIrradiance(w, series); err != nil {
		log.Fatalf("Writing irradiance: %v", err)
	}

	for _, s := range surfaces {
		fmt.Fprintf(os.Stderr, "  %-12s az %5.1f° tilt %4.1f°  %7.1f kWh/m²/year\n",
			s.id, s.orientation.AzimuthDeg, s.orientation.TiltDeg, solar.Total(series[s.id])/1000)
	}
}

func generate(site solar.Site, surfaces []surface, year int, step time.Duration) (map[string][]float64, error) {
	series := make(map[string][]float64, len(surfaces))
	for _, s := range surfaces {
		v, err := solar.ClearSkySeries(site, s.orientation, year, step)
		if err != nil {
			return nil, fmt.Errorf("surface %s: %w", s.id, err)
		}
		series[s.id] = v
	}
	return series, nil
}

func parseSurfaces(s string) ([]surface, error) {
	var out []surface
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Split(part, ":")
		if len(fields) != 3 || fields[0] == "" {
			return nil, fmt.Errorf("expected id:azimuth:tilt, got %q", part)
		}
		az, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("parsing azimuth of %s: %w", fields[0], err)
		}
		tilt, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("parsing tilt of %s: %w", fields[0], err)
		}
		if seen[fields[0]] {
			return nil, fmt.Errorf("duplicate surface %s", fields[0])
		}
		seen[fields[0]] = true
		out = append(out, surface{id: fields[0], orientation: solar.Orientation{AzimuthDeg: az, TiltDeg: tilt}})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no surfaces specified")
	}
	return out, nil
}
