// policy-compare runs one scenario under several replacement policies and
// prints energy, embodied impact and economic indicators side by side.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"bipv_simulator/internal/config"
	"bipv_simulator/internal/kpi"
	"bipv_simulator/internal/policy"
	"bipv_simulator/internal/results"
	"bipv_simulator/internal/simulator"
	"bipv_simulator/internal/technology"
)

type result struct {
	policy     policy.Config
	indicators kpi.Indicators
	wasteKg    float64
	panels     float64
}

func main() {
	configPath := flag.String("config", "scenario.yaml", "scenario YAML file")
	kindsFlag := flag.String("policies", "", "comma-separated policy kinds (default: all)")
	freqFlag := flag.String("frequencies", "5,10", "comma-separated replacement intervals in years")
	minAge := flag.Int("min-age", 25, "minimum panel age for the aged replacement policy")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Loading %s: %v", *configPath, err)
	}
	cfg.ContinueSimulation = false

	freqs, err := parseFrequencies(*freqFlag)
	if err != nil {
		log.Fatalf("Invalid frequencies %q: %v", *freqFlag, err)
	}
	kinds := policy.Kinds
	if *kindsFlag != "" {
		kinds = nil
		for _, k := range strings.Split(*kindsFlag, ",") {
			kinds = append(kinds, policy.Kind(strings.TrimSpace(k)))
		}
	}
	policies, err := expandPolicies(kinds, freqs, *minAge)
	if err != nil {
		log.Fatalf("Invalid policies: %v", err)
	}

	catalog, err := cfg.LoadCatalog()
	if err != nil {
		log.Fatalf("Loading technologies: %v", err)
	}

	rs := make([]result, 0, len(policies))
	for _, p := range policies {
		r, err := runPolicy(cfg, catalog, p)
		if err != nil {
			log.Fatalf("Policy %s: %v", label(p), err)
		}
		rs = append(rs, r)
		fmt.Fprintf(os.Stderr, "  %s done\n", label(p))
	}

	printTable(os.Stdout, cfg, rs)
}

func runPolicy(base *config.Config, catalog *technology.Catalog, p policy.Config) (result, error) {
	cfg := *base
	cfg.Policy = p
	jobs, err := cfg.BuildJobs(catalog, nil)
	if err != nil {
		return result{}, err
	}

	outcomes, err := simulator.RunCanopy(context.Background(), jobs, cfg.Workers, catalog, nil, log.New(io.Discard, "", 0))
	if err != nil {
		return result{}, err
	}
	canopy, err := simulator.Aggregate(outcomes)
	if err != nil {
		return result{}, err
	}
	ind, err := kpi.Compute(canopy.Tree)
	if err != nil {
		return result{}, err
	}
	waste, err := canopy.Tree.SeriesAt(results.KeyTotal, results.KeyDMFAWaste)
	if err != nil {
		return result{}, err
	}
	var panels float64
	if node, ok := canopy.Tree.Lookup(results.KeyTotal, results.KeyPanelCount); ok {
		panels, _ = node.Scalar()
	}
	return result{policy: p, indicators: ind, wasteKg: waste.Total, panels: panels}, nil
}

// expandPolicies builds one configuration per kind and frequency. The
// no-replacement policy appears once.
func expandPolicies(kinds []policy.Kind, freqs []int, minAge int) ([]policy.Config, error) {
	var out []policy.Config
	for _, k := range kinds {
		if k == policy.NoReplacement {
			out = append(out, policy.Config{Kind: k})
			continue
		}
		for _, f := range freqs {
			cfg := policy.Config{Kind: k, FrequencyYears: f}
			if k == policy.ReplaceFailedAndAgedEveryNYears {
				cfg.MinAgeYears = minAge
			}
			out = append(out, cfg)
		}
	}
	for _, cfg := range out {
		if _, err := policy.New(cfg); err != nil {
			return nil, err
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no policies specified")
	}
	return out, nil
}

func parseFrequencies(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	freqs := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("parsing %q: %w", p, err)
		}
		if v <= 0 {
			return nil, fmt.Errorf("frequency must be positive, got %v", v)
		}
		freqs = append(freqs, v)
	}
	if len(freqs) == 0 {
		return nil, fmt.Errorf("no frequencies specified")
	}
	return freqs, nil
}

func label(p policy.Config) string {
	switch p.Kind {
	case policy.NoReplacement:
		return "none"
	case policy.ReplaceFailedEveryNYears:
		return fmt.Sprintf("failed/%dy", p.FrequencyYears)
	case policy.ReplaceAllEveryNYears:
		return fmt.Sprintf("all/%dy", p.FrequencyYears)
	case policy.ReplaceFailedAndAgedEveryNYears:
		return fmt.Sprintf("aged%d/%dy", p.MinAgeYears, p.FrequencyYears)
	}
	return string(p.Kind)
}

func payback(v *int) string {
	if v == nil {
		return "never"
	}
	return fmt.Sprintf("%d y", *v)
}

func printTable(w io.Writer, cfg *config.Config, rs []result) {
	if len(rs) == 0 {
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Replacement Policy Comparison")
	fmt.Fprintf(w, "  Scenario: %s, %d buildings, %.0f panels\n", cfg.Scenario, len(cfg.Buildings), rs[0].panels)
	fmt.Fprintf(w, "  Years: %d to %d, electricity %.2f/kWh, seed %d\n", cfg.StartYear, cfg.EndYear, cfg.Economics.ElectricityPricePerKWh, cfg.Seed)
	fmt.Fprintln(w)

	fmt.Fprintf(w, " %-12s │ %12s │ %6s │ %8s │ %9s │ %10s │ %12s │ %10s\n",
		"Policy", "Energy MWh", "EROI", "E.Payback", "GHG g/kWh", "Waste t", "Net benefit", "vs none")
	fmt.Fprintf(w, "──────────────┼──────────────┼────────┼──────────┼───────────┼────────────┼──────────────┼────────────\n")

	var baseline *kpi.Indicators
	for i := range rs {
		if rs[i].policy.Kind == policy.NoReplacement {
			baseline = &rs[i].indicators
		}
	}

	for _, r := range rs {
		vs := "-"
		if baseline != nil && r.policy.Kind != policy.NoReplacement {
			vs = fmt.Sprintf("%+.0f", r.indicators.NetEconomicBenefit-baseline.NetEconomicBenefit)
		}
		fmt.Fprintf(w, " %-12s │ %12.1f │ %6.2f │ %9s │ %9.1f │ %10.2f │ %12.0f │ %10s\n",
			label(r.policy),
			r.indicators.EnergyHarvested/1000,
			r.indicators.EROI,
			payback(r.indicators.EnergyPaybackYears),
			r.indicators.GHGIntensity*1000,
			r.wasteKg/1000,
			r.indicators.NetEconomicBenefit,
			vs,
		)
	}
	fmt.Fprintln(w)
}
