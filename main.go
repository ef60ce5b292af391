package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/jonesmeistro/keyword-planner-volumes/internal/config"
	"github.com/jonesmeistro/keyword-planner-volumes/internal/service"
	"github.com/jonesmeistro/keyword-planner-volumes/pkg/batch"
	"github.com/jonesmeistro/keyword-planner-volumes/pkg/export"
	"github.com/jonesmeistro/keyword-planner-volumes/pkg/logger"
	"github.com/jonesmeistro/keyword-planner-volumes/pkg/planner"
	"github.com/jonesmeistro/keyword-planner-volumes/pkg/stats"
	"github.com/jonesmeistro/keyword-planner-volumes/pkg/storage"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "CRITICAL ERROR: application panic recovered: %v\n", r)
			os.Exit(1)
		}
	}()

	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "keyword-planner-volumes",
		Usage: "Fetch Google Ads Keyword Planner search volumes and trends for a keyword list",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Value:   "config/config.yaml",
				Usage:   "configuration file path",
				EnvVars: []string{"KWP_CONFIG"},
			},
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "enable debug logging",
				EnvVars: []string{"DEBUG"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "fetch",
				Usage:     "fetch metrics for the keywords in a file (or stdin) and write the CSV export",
				ArgsUsage: "[keywords-file]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "country",
						Aliases:  []string{"c"},
						Usage:    "target country name, see the countries command",
						EnvVars:  []string{"KWP_COUNTRY"},
						Required: true,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "CSV output path (default from output.csv_path)",
						EnvVars: []string{"KWP_OUTPUT"},
					},
				},
				Action: fetchAction,
			},
			{
				Name:   "countries",
				Usage:  "list selectable countries, priority countries first",
				Action: countriesAction,
			},
			{
				Name:   "missing",
				Usage:  "print keywords recorded in the missing keywords log",
				Action: missingAction,
			},
			{
				Name:      "inspect",
				Usage:     "summarise an existing CSV export",
				ArgsUsage: "<export.csv>",
				Action:    inspectAction,
			},
		},
	}
}

// loadConfig loads the configuration and installs the configured logger.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.NewManager().Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if c.Bool("debug") {
		cfg.Logger.Level = "debug"
	}
	logger.SetLogger(logger.New(cfg.Logger))
	return cfg, nil
}

func fetchAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	log := logger.GetLogger().WithField("component", "cli")

	text, err := readKeywords(c.Args().First())
	if err != nil {
		return err
	}

	creds, err := config.LoadSecrets(cfg.Secrets.File)
	if err != nil {
		return err
	}
	geo, err := config.LoadGeoTargets(cfg.Reference.GeoTargetsFile)
	if err != nil {
		return err
	}

	recorder := stats.NewRecorder(prometheus.NewRegistry())
	fetcher, err := service.NewFetcher(cfg, creds, recorder)
	if err != nil {
		return err
	}
	svc := service.New(cfg, geo, fetcher, storage.NewMissingLog(cfg.Output.MissingLog), recorder)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	progress := newProgressPrinter(c.App.ErrWriter)
	report, runErr := svc.Fetch(ctx, service.FetchRequest{
		Keywords: text,
		Country:  c.String("country"),
		Progress: progress.handle,
	})
	if report == nil {
		return runErr
	}
	progress.done()

	output := c.String("output")
	if output == "" {
		output = cfg.Output.CSVPath
	}
	if err := export.WriteFile(output, report.Table); err != nil {
		return fmt.Errorf("write export: %w", err)
	}

	snap := recorder.Snapshot()
	log.WithFields(map[string]interface{}{
		"run_id":         report.RunID,
		"output":         output,
		"provider_calls": snap.ProviderCalls,
		"duration":       report.Duration.String(),
	}).Info("Export written")

	fmt.Fprintf(c.App.Writer, "Wrote %d of %d keywords to %s\n", report.Resolved(), report.Requested, output)
	if n := len(report.StillMissing); n > 0 {
		fmt.Fprintf(c.App.Writer, "%d keywords returned no data, see %s\n", n, cfg.Output.MissingLog)
	}
	for _, f := range report.Failures {
		fmt.Fprintf(c.App.ErrWriter, "WARNING: %s\n", describeFailure(f))
	}

	if runErr != nil {
		return fmt.Errorf("run interrupted, partial results written: %w", runErr)
	}
	if report.Resolved() == 0 && len(report.Failures) > 0 {
		return errors.New("no keyword data retrieved")
	}
	return nil
}

func readKeywords(path string) (string, error) {
	var r io.Reader = os.Stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("open keywords file: %w", err)
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read keywords: %w", err)
	}
	return string(data), nil
}

func describeFailure(f batch.ChunkFailure) string {
	pe, ok := planner.AsProviderError(f.Err)
	if !ok || len(pe.Details) == 0 {
		return f.Error()
	}
	d := pe.Details[0]
	return fmt.Sprintf("%s (reason %s, field %s, request %s)", f.Error(), d.Reason, d.FieldPath, pe.RequestID)
}

// progressPrinter echoes run events and feeds the initial pass into a
// ProgressReporter.
type progressPrinter struct {
	w        io.Writer
	reporter *logger.ProgressReporter
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w}
}

func (p *progressPrinter) handle(e batch.Event) {
	fmt.Fprintln(p.w, e.String())

	if e.Stage != batch.StageChunk || e.Round != 0 {
		return
	}
	if p.reporter == nil {
		p.reporter = logger.NewProgressReporter(e.TotalChunks, "Initial pass", 10*time.Second)
	}
	p.reporter.Add(1)
}

func (p *progressPrinter) done() {
	if p.reporter != nil {
		p.reporter.Complete()
	}
}

func countriesAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	geo, err := config.LoadGeoTargets(cfg.Reference.GeoTargetsFile)
	if err != nil {
		return err
	}
	for _, country := range geo.Countries() {
		fmt.Fprintf(c.App.Writer, "%-8s %s\n", country.CriteriaID, country.Name)
	}
	return nil
}

func missingAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	kws, err := storage.ReadMissingLog(cfg.Output.MissingLog)
	if err != nil {
		return err
	}
	for _, k := range kws {
		fmt.Fprintln(c.App.Writer, k)
	}
	return nil
}

func inspectAction(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return errors.New("inspect needs the path of a CSV export")
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	table, err := export.ReadCSV(f)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	w := c.App.Writer
	months := table.MonthColumns()
	fmt.Fprintf(w, "Keywords: %d\n", table.Len())
	if len(months) > 0 {
		fmt.Fprintf(w, "Months:   %s .. %s (%d)\n", months[0], months[len(months)-1], len(months))
	}

	competition := make(map[planner.Competition]int)
	var withTrend int
	rows := table.Rows()
	for _, row := range rows {
		competition[row.Competition]++
		if row.Derived.TwelveMonthChange != nil {
			withTrend++
		}
	}
	fmt.Fprintf(w, "With 12 month change: %d\n", withTrend)

	levels := make([]string, 0, len(competition))
	for level := range competition {
		levels = append(levels, string(level))
	}
	sort.Strings(levels)
	for _, level := range levels {
		fmt.Fprintf(w, "Competition %-12s %d\n", level+":", competition[planner.Competition(level)])
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].AvgMonthlySearches > rows[j].AvgMonthlySearches
	})
	if len(rows) > 10 {
		rows = rows[:10]
	}
	if len(rows) > 0 {
		fmt.Fprintln(w, "Top keywords by average monthly searches:")
	}
	for _, row := range rows {
		fmt.Fprintf(w, "  %-40s %d\n", row.Keyword, row.AvgMonthlySearches)
	}
	return nil
}
