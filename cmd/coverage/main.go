package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/saviobatista/logbook-coverage/internal/api"
	"github.com/saviobatista/logbook-coverage/internal/catalog"
	"github.com/saviobatista/logbook-coverage/internal/config"
	"github.com/saviobatista/logbook-coverage/internal/coverage"
	"github.com/saviobatista/logbook-coverage/internal/parser"
	"github.com/saviobatista/logbook-coverage/internal/types"
)

// listFlag collects a repeatable string flag
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*l = append(*l, part)
		}
	}
	return nil
}

type options struct {
	catalogPath   string
	secondaryPath string
	jsonOutput    bool
	towered       string
	settings      types.PilotSettings
	logbook       string
}

// parseFlags reads the command line; cfg supplies the flag defaults
func parseFlags(args []string, cfg *config.Config, stderr io.Writer) (*options, error) {
	opts := &options{settings: types.DefaultPilotSettings()}
	s := &opts.settings
	s.ExcludeHubs = cfg.ExcludeHubs
	var surfaces listFlag

	fs := flag.NewFlagSet("coverage", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.catalogPath, "catalog", cfg.CatalogPath, "Facility catalog CSV (.csv or .csv.zst)")
	fs.StringVar(&opts.secondaryPath, "secondary", cfg.SecondaryCatalogPath, "Contributed facility list")
	fs.StringVar(&s.Scope, "scope", s.Scope, "Coverage scope: public, private, heliport, seaplane or all")
	fs.BoolVar(&s.IncludeNotes, "notes", s.IncludeNotes, "Count identifiers mentioned in free-text fields")
	fs.BoolVar(&s.UseEndpoints, "endpoints", s.UseEndpoints, "Count departure and arrival fields")
	fs.BoolVar(&s.ArrivalsOnly, "arrivals", s.ArrivalsOnly, "Count only arrivals among endpoints")
	fs.BoolVar(&s.ExcludeHubs, "exclude-hubs", s.ExcludeHubs, "Leave major hubs out of the public scope")
	fs.StringVar(&s.HomeBase, "home", "", "Home base for trip suggestions")
	fs.Float64Var(&s.MaxTripNM, "max-nm", coverage.DefaultMaxTripNM, "Maximum trip distance in nautical miles")
	fs.IntVar(&s.MinRunwayFt, "min-runway", 0, "Minimum usable runway length in feet")
	fs.Var(&surfaces, "surface", "Accepted runway surface (repeatable): paved, unpaved, water, unknown")
	fs.StringVar(&opts.towered, "towered", "", "Require towered (yes) or untowered (no) facilities")
	fs.BoolVar(&opts.jsonOutput, "json", false, "Print the report as JSON")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 1 {
		return nil, fmt.Errorf("usage: coverage [flags] <logbook.csv>")
	}
	if opts.catalogPath == "" {
		return nil, fmt.Errorf("-catalog or CATALOG_PATH is required")
	}
	if !(s.MaxTripNM > 0) {
		return nil, fmt.Errorf("-max-nm must be positive")
	}
	opts.logbook = fs.Arg(0)

	s.Surfaces = surfaces
	if opts.towered != "" {
		towered, err := api.ParseBool(opts.towered)
		if err != nil {
			return nil, fmt.Errorf("-towered: %w", err)
		}
		s.Towered = &towered
	}
	if err := api.ValidateSettings(s); err != nil {
		return nil, err
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := config.LoadOptional()
	if err != nil {
		return err
	}
	opts, err := parseFlags(args, cfg, stderr)
	if err != nil {
		return err
	}

	//nolint:gosec // the logbook path is given on the command line
	data, err := os.ReadFile(opts.logbook)
	if err != nil {
		return fmt.Errorf("failed to read logbook: %w", err)
	}
	flights, err := parser.ParseLogbook(string(data))
	if err != nil {
		return err
	}

	cat, err := catalog.Load(ctx, opts.catalogPath, opts.secondaryPath)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	req, err := coverage.RequestFromSettings("", flights, opts.settings)
	if err != nil {
		return err
	}
	engine := coverage.NewEngine(cat, coverage.EngineConfig{
		HubIDs:               cfg.HubIDs,
		NearestThresholdNM:   cfg.NearestThresholdNM,
		UsableRunwayFraction: cfg.RunwayUsableFraction,
	})
	report, err := engine.BuildReport(req)
	if err != nil {
		return err
	}

	if opts.jsonOutput {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return writeSummary(stdout, report, opts.settings.HomeBase)
}

// writeSummary prints the report as aligned text
func writeSummary(w io.Writer, r *types.CoverageReport, home string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "Flights:\t%d\n", r.FlightCount)
	fmt.Fprintf(tw, "Coverage (%s):\t%d/%d (%.1f%%)\n", r.Scope, r.Coverage.Visited, r.Coverage.Total, r.Coverage.Ratio*100)
	if r.MostFrequent != "" {
		fmt.Fprintf(tw, "Most frequent:\t%s\n", r.MostFrequent)
	}
	if r.MostVisitedState != "" {
		fmt.Fprintf(tw, "Most visited state:\t%s\n", r.MostVisitedState)
	}
	fmt.Fprintf(tw, "Visited:\t%s\n", strings.Join(r.Visited, " "))

	if len(r.States) > 0 {
		fmt.Fprintln(tw, "\nState\tVisited\tTotal\tRatio")
		for _, s := range r.States {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%.1f%%\n", s.State, s.Visited, s.Total, s.Ratio*100)
		}
	}

	if len(r.Frequency) > 0 {
		fmt.Fprintln(tw, "\nFacility\tTotal\tFrom\tTo\tNotes")
		for _, f := range r.Frequency {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", f.ID, f.Total, f.Counts.EndpointFrom, f.Counts.EndpointTo, f.Counts.NotesMatch)
		}
	}

	if home != "" {
		fmt.Fprintf(tw, "\nTrips from %s\tDistance\tRunway\tName\n", strings.ToUpper(home))
		for _, t := range r.Trips {
			runway := "-"
			if t.UsableRunwayFt != nil {
				runway = fmt.Sprintf("%d ft", *t.UsableRunwayFt)
			}
			fmt.Fprintf(tw, "%s\t%.1f nm\t%s\t%s\n", t.Facility.ID, t.DistanceNM, runway, t.Facility.Name)
		}
	}

	return tw.Flush()
}

func main() {
	log.SetFlags(0)
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Printf("coverage: %v", err)
		os.Exit(1)
	}
}
