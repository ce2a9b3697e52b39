package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShlokMathur/planet-s-trajectory/internal/elements"
	"github.com/ShlokMathur/planet-s-trajectory/internal/events"
	"github.com/ShlokMathur/planet-s-trajectory/internal/export"
	"github.com/ShlokMathur/planet-s-trajectory/internal/propagation"
)

// options are the flags shared by every subcommand.
type options struct {
	elementsPath  string
	unit          string
	velocityPath  string
	referencePath string

	solver    string
	transform string
	scale     float64
	epoch     string

	format  string
	verbose bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "orreryctl",
		Short:         "Approximate planet positions from orbital elements",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.elementsPath, "elements", "", "Keplerian element table (CSV or YAML); empty uses the built-in table")
	pf.StringVar(&opts.unit, "unit", "AU", "distance unit of the element table (AU, km, Mkm)")
	pf.StringVar(&opts.velocityPath, "velocity", "", "velocity table CSV")
	pf.StringVar(&opts.referencePath, "reference", "", "reference coordinates CSV for the velocity table")
	pf.StringVar(&opts.solver, "solver", "epoch", "solver: epoch, circular or velocity")
	pf.StringVar(&opts.transform, "transform", "", "frame transform: ecliptic or simplified (default depends on solver)")
	pf.Float64Var(&opts.scale, "scale", 1, "multiply every output coordinate")
	pf.StringVar(&opts.epoch, "epoch", "", "override the reference epoch (YYYY-MM-DD)")
	pf.StringVarP(&opts.format, "output", "o", "table", "output format: table, json or csv")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging to stderr")

	root.AddCommand(
		newPositionsCmd(opts),
		newTimelineCmd(opts),
		newOrbitsCmd(opts),
		newAccuracyCmd(opts),
		newAlignmentsCmd(opts),
	)
	return root
}

func (o *options) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func (o *options) computation() (propagation.Config, error) {
	cfg := propagation.Config{}
	if o.epoch != "" {
		epoch, err := propagation.ParseDate(o.epoch)
		if err != nil {
			return cfg, err
		}
		cfg.Epoch = epoch
	}
	return cfg.Override(o.solver, o.transform, o.scale)
}

// propagator loads the tables and builds a propagator for the flags.
func (o *options) propagator(cmd *cobra.Command, pc propagation.PropConfig) (*propagation.Propagator, error) {
	logger := o.logger(cmd)
	unit, err := elements.ParseUnit(o.unit)
	if err != nil {
		return nil, err
	}
	ds, err := elements.Load(elements.Options{
		Path:          o.elementsPath,
		Unit:          unit,
		VelocityPath:  o.velocityPath,
		ReferencePath: o.referencePath,
	}, logger)
	if err != nil {
		return nil, err
	}
	cfg, err := o.computation()
	if err != nil {
		return nil, err
	}
	store := elements.NewStore()
	store.Set(ds)
	return propagation.NewPropagator(store, pc, cfg, logger), nil
}

func today() string {
	return time.Now().UTC().Format(propagation.DateLayout)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func checkFormat(format string) error {
	switch format {
	case "table", "json", "csv":
		return nil
	}
	return fmt.Errorf("unknown output format %q", format)
}

func newPositionsCmd(opts *options) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "positions",
		Short: "Positions of every body on one date",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(opts.format); err != nil {
				return err
			}
			prop, err := opts.propagator(cmd, propagation.PropConfig{})
			if err != nil {
				return err
			}
			set, err := prop.PropagateDate(cmd.Context(), date)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch opts.format {
			case "json":
				return writeJSON(out, set)
			case "csv":
				return export.WritePositions(out, set)
			}
			fmt.Fprintf(out, "%s  (%d days from epoch %s, %s/%s)\n", set.Date.Format(propagation.DateLayout),
				set.ElapsedDays, set.Epoch.Format(propagation.DateLayout), set.Solver, set.Transform)
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintf(tw, "Planet\tX (%[1]s)\tY (%[1]s)\tZ (%[1]s)\tDistance (%[1]s)\t\n", set.Unit)
			for _, s := range set.Samples {
				fmt.Fprintf(tw, "%s\t%.6f\t%.6f\t%.6f\t%.6f\t\n", s.Name, s.X, s.Y, s.Z, s.Distance)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&date, "date", "d", today(), "target date (YYYY-MM-DD)")
	return cmd
}

func newTimelineCmd(opts *options) *cobra.Command {
	var (
		start     string
		days      int
		step      int
		workers   int
		maxFrames int
	)
	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Positions over a run of dates",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(opts.format); err != nil {
				return err
			}
			prop, err := opts.propagator(cmd, propagation.PropConfig{Workers: workers, MaxFrames: maxFrames})
			if err != nil {
				return err
			}
			from, err := propagation.ParseDate(start)
			if err != nil {
				return err
			}

			sets, err := prop.Timeline(cmd.Context(), prop.Config(), from, days, step)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch opts.format {
			case "json":
				return writeJSON(out, sets)
			case "csv":
				return export.WriteTimeline(out, sets)
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
			fmt.Fprint(tw, "Date\tPlanet\tX\tY\tZ\tDistance\t\n")
			for _, set := range sets {
				for _, s := range set.Samples {
					fmt.Fprintf(tw, "%s\t%s\t%.6f\t%.6f\t%.6f\t%.6f\t\n", set.Date.Format(propagation.DateLayout), s.Name, s.X, s.Y, s.Z, s.Distance)
				}
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&start, "start", today(), "first date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&days, "days", 30, "days after start to cover")
	cmd.Flags().IntVar(&step, "step", 1, "days between frames")
	cmd.Flags().IntVar(&workers, "workers", runtime.NumCPU(), "worker goroutines")
	cmd.Flags().IntVar(&maxFrames, "max-frames", propagation.DefaultMaxFrames, "refuse longer timelines")
	return cmd
}

func newOrbitsCmd(opts *options) *cobra.Command {
	var segments int
	cmd := &cobra.Command{
		Use:   "orbits",
		Short: "Orbit polylines of every body",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(opts.format); err != nil {
				return err
			}
			prop, err := opts.propagator(cmd, propagation.PropConfig{})
			if err != nil {
				return err
			}
			orbits, err := prop.Orbits(prop.Config(), segments)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.format == "json" {
				return writeJSON(out, orbits)
			}
			// Orbits have no compact table form.
			return export.WriteOrbits(out, orbits)
		},
	}
	cmd.Flags().IntVar(&segments, "segments", propagation.DefaultCurvePoints, "segments per orbit")
	return cmd
}

func newAccuracyCmd(opts *options) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "accuracy",
		Short: "Error of the first-order equation of centre against Kepler's equation",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(opts.format); err != nil {
				return err
			}
			prop, err := opts.propagator(cmd, propagation.PropConfig{})
			if err != nil {
				return err
			}
			reports, err := prop.Accuracy(date)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.format == "json" {
				return writeJSON(out, reports)
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
			fmt.Fprint(tw, "Planet\te\tApprox ν (°)\tKepler ν (°)\tError (°)\tΔr\t\n")
			for _, r := range reports {
				fmt.Fprintf(tw, "%s\t%.3f\t%.4f\t%.4f\t%.5f\t%.2e\t\n", r.Name, r.Eccentricity, r.ApproxTrueDeg, r.KeplerTrueDeg, r.ErrorDeg, r.DistanceError)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&date, "date", "d", today(), "date (YYYY-MM-DD)")
	return cmd
}

func newAlignmentsCmd(opts *options) *cobra.Command {
	var (
		start     string
		days      int
		maxEvents int
		timeout   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "alignments A B [A B ...]",
		Short: "Heliocentric conjunctions and oppositions of body pairs",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 || len(args)%2 != 0 {
				return fmt.Errorf("expected pairs of body names, got %d names", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(opts.format); err != nil {
				return err
			}
			prop, err := opts.propagator(cmd, propagation.PropConfig{})
			if err != nil {
				return err
			}
			from, err := propagation.ParseDate(start)
			if err != nil {
				return err
			}
			ds, err := prop.Dataset()
			if err != nil {
				return err
			}
			var pairs []events.Pair
			for i := 0; i < len(args); i += 2 {
				pairs = append(pairs, events.Pair{A: args[i], B: args[i+1]})
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			found, err := events.Find(ctx, ds, events.Request{
				Config:    prop.Config(),
				Pairs:     pairs,
				Start:     from,
				Days:      days,
				MaxEvents: maxEvents,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.format == "json" {
				return writeJSON(out, found)
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprint(tw, "Pair\tKind\tTime (UTC)\tSeparation\tElongation (°)\t\n")
			for _, p := range found {
				if p.Error != "" {
					fmt.Fprintf(tw, "%s-%s\terror\t%s\t\t\t\n", p.A, p.B, p.Error)
					continue
				}
				for _, e := range p.Events {
					fmt.Fprintf(tw, "%s-%s\t%s\t%s\t%.4f\t%.2f\t\n", p.A, p.B, e.Kind, e.Time.Format(time.RFC3339), e.Separation, e.Elongation.ElongationDeg)
				}
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&start, "start", today(), "search start (YYYY-MM-DD)")
	cmd.Flags().IntVar(&days, "days", 3650, "days to search")
	cmd.Flags().IntVar(&maxEvents, "max", 0, "events per pair (0: all)")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "give up after this long")
	return cmd
}
