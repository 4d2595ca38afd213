package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"BarFlow/internal/di"
	"BarFlow/internal/domain/models"
	"BarFlow/internal/usecase"
	"BarFlow/pkg/config"
	xutil "BarFlow/pkg/util"
)

var configPath string

func main() {
	flag.StringVar(&configPath, "config", "config/config.yaml", "config file path")

	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")

	subcommands.Register(&fetchCmd{}, "data")
	subcommands.Register(&loadCmd{}, "data")
	subcommands.Register(&backfillCmd{}, "data")
	subcommands.Register(&gapsCmd{}, "data")
	subcommands.Register(&validateCmd{}, "data")
	subcommands.Register(&infoCmd{}, "series")
	subcommands.Register(&listCmd{}, "series")
	subcommands.Register(&deleteCmd{}, "series")
	subcommands.Register(&credentialsCmd{}, "providers")
	subcommands.Register(&serveCmd{}, "run")
	subcommands.Register(&streamCmd{}, "run")

	flag.Parse()
	os.Exit(int(subcommands.Execute(context.Background())))
}

func newService() (*usecase.DataService, func(), error) {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return nil, nil, err
	}
	return di.InitializeService(cfg)
}

func printJSON(v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode output: %v\n", err)
		return
	}
	fmt.Println(string(b))
}

func fail(err error) subcommands.ExitStatus {
	fmt.Fprintln(os.Stderr, err)
	return subcommands.ExitFailure
}

// seriesFlags are the flags shared by every per-series command.
type seriesFlags struct {
	provider  string
	symbol    string
	timeframe string
	start     string
	end       string
}

func (s *seriesFlags) register(f *flag.FlagSet) {
	f.StringVar(&s.provider, "provider", "binance", "data provider name")
	f.StringVar(&s.symbol, "symbol", "", "symbol, e.g. BTCUSDT")
	f.StringVar(&s.timeframe, "timeframe", "1m", "timeframe, e.g. 1m, 5m, 4h, 1d")
	f.StringVar(&s.start, "start", "", "window start (RFC3339, date, or unix seconds)")
	f.StringVar(&s.end, "end", "", "window end (RFC3339, date, or unix seconds)")
}

func (s *seriesFlags) window() (models.Window, error) {
	start, ok := xutil.ParseTime(s.start)
	if !ok {
		return models.Window{}, fmt.Errorf("invalid -start %q", s.start)
	}
	end, ok := xutil.ParseTime(s.end)
	if !ok {
		return models.Window{}, fmt.Errorf("invalid -end %q", s.end)
	}
	return models.NewWindow(start, end)
}

type fetchCmd struct {
	seriesFlags
	save bool
}

func (*fetchCmd) Name() string     { return "fetch" }
func (*fetchCmd) Synopsis() string { return "fetch 1m bars from the provider" }
func (*fetchCmd) Usage() string {
	return "fetch -provider P -symbol S -start T -end T [-save]:\n  Fetch 1m bars straight from the provider, optionally storing them.\n"
}

func (c *fetchCmd) SetFlags(f *flag.FlagSet) {
	c.register(f)
	f.BoolVar(&c.save, "save", true, "store fetched bars")
}

func (c *fetchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.symbol == "" {
		return subcommands.ExitUsageError
	}
	w, err := c.window()
	if err != nil {
		return fail(err)
	}
	svc, cleanup, err := newService()
	if err != nil {
		return fail(err)
	}
	defer cleanup()

	bars, err := svc.Fetch(ctx, c.provider, c.symbol, w, c.save)
	if err != nil {
		return fail(err)
	}
	printJSON(bars)
	return subcommands.ExitSuccess
}

type loadCmd struct {
	seriesFlags
}

func (*loadCmd) Name() string     { return "load" }
func (*loadCmd) Synopsis() string { return "load bars at a timeframe, backfilling as needed" }
func (*loadCmd) Usage() string {
	return "load -provider P -symbol S -timeframe TF -start T -end T:\n  Serve the series at the timeframe through the rollup cache.\n"
}

func (c *loadCmd) SetFlags(f *flag.FlagSet) { c.register(f) }

func (c *loadCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.symbol == "" {
		return subcommands.ExitUsageError
	}
	w, err := c.window()
	if err != nil {
		return fail(err)
	}
	svc, cleanup, err := newService()
	if err != nil {
		return fail(err)
	}
	defer cleanup()

	bars, report, err := svc.Load(ctx, c.provider, c.symbol, c.timeframe, w)
	if err != nil {
		return fail(err)
	}
	printJSON(bars)
	if report != nil {
		fmt.Fprintln(os.Stderr, report.Summary())
	}
	return subcommands.ExitSuccess
}

type backfillCmd struct {
	seriesFlags
}

func (*backfillCmd) Name() string     { return "backfill" }
func (*backfillCmd) Synopsis() string { return "close gaps in the stored series" }
func (*backfillCmd) Usage() string {
	return "backfill -provider P -symbol S -timeframe TF -start T -end T:\n  Detect and fetch missing 1m sub-ranges, then rebuild the rollup.\n"
}

func (c *backfillCmd) SetFlags(f *flag.FlagSet) { c.register(f) }

func (c *backfillCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.symbol == "" {
		return subcommands.ExitUsageError
	}
	w, err := c.window()
	if err != nil {
		return fail(err)
	}
	svc, cleanup, err := newService()
	if err != nil {
		return fail(err)
	}
	defer cleanup()

	_, report, err := svc.Backfill(ctx, c.provider, c.symbol, c.timeframe, w)
	if err != nil {
		return fail(err)
	}
	fmt.Println(report.Summary())
	if !report.Complete() {
		printJSON(report.GapsMissing)
	}
	return subcommands.ExitSuccess
}

type gapsCmd struct {
	seriesFlags
	expectedMinutes int
}

func (*gapsCmd) Name() string     { return "gaps" }
func (*gapsCmd) Synopsis() string { return "report missing sub-ranges in the stored series" }
func (*gapsCmd) Usage() string {
	return "gaps -provider P -symbol S -timeframe TF -start T -end T [-expected-minutes N]:\n  Walk the expected boundaries and report what is missing.\n"
}

func (c *gapsCmd) SetFlags(f *flag.FlagSet) {
	c.register(f)
	f.IntVar(&c.expectedMinutes, "expected-minutes", 0, "expected step in minutes (default: timeframe)")
}

func (c *gapsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.symbol == "" {
		return subcommands.ExitUsageError
	}
	w, err := c.window()
	if err != nil {
		return fail(err)
	}
	svc, cleanup, err := newService()
	if err != nil {
		return fail(err)
	}
	defer cleanup()

	gaps, err := svc.Gaps(ctx, c.provider, c.symbol, c.timeframe, c.expectedMinutes, w)
	if err != nil {
		return fail(err)
	}
	printJSON(gaps)
	return subcommands.ExitSuccess
}

type validateCmd struct {
	seriesFlags
}

func (*validateCmd) Name() string     { return "validate" }
func (*validateCmd) Synopsis() string { return "run quality checks over a stored series" }
func (*validateCmd) Usage() string {
	return "validate -provider P -symbol S -timeframe TF [-start T -end T]:\n  Check OHLC consistency, volume sanity, and timestamp ordering.\n"
}

func (c *validateCmd) SetFlags(f *flag.FlagSet) { c.register(f) }

func (c *validateCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.symbol == "" {
		return subcommands.ExitUsageError
	}
	var w models.Window
	if c.start != "" || c.end != "" {
		var err error
		if w, err = c.window(); err != nil {
			return fail(err)
		}
	}
	svc, cleanup, err := newService()
	if err != nil {
		return fail(err)
	}
	defer cleanup()

	res, err := svc.Validate(ctx, c.provider, c.symbol, c.timeframe, w)
	if err != nil {
		return fail(err)
	}
	printJSON(res)
	if !res.Valid {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type infoCmd struct {
	seriesFlags
}

func (*infoCmd) Name() string     { return "info" }
func (*infoCmd) Synopsis() string { return "show row count and date range for a series" }
func (*infoCmd) Usage() string {
	return "info -provider P -symbol S -timeframe TF:\n  Show stored series metadata.\n"
}

func (c *infoCmd) SetFlags(f *flag.FlagSet) { c.register(f) }

func (c *infoCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.symbol == "" {
		return subcommands.ExitUsageError
	}
	svc, cleanup, err := newService()
	if err != nil {
		return fail(err)
	}
	defer cleanup()

	info, err := svc.Info(ctx, c.provider, c.symbol, c.timeframe)
	if err != nil {
		return fail(err)
	}
	printJSON(info)
	return subcommands.ExitSuccess
}

type listCmd struct {
	provider string
}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "list stored bar series" }
func (*listCmd) Usage() string {
	return "list [-provider P]:\n  List stored series, optionally filtered by provider.\n"
}

func (c *listCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.provider, "provider", "", "filter by provider")
}

func (c *listCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	svc, cleanup, err := newService()
	if err != nil {
		return fail(err)
	}
	defer cleanup()

	refs, err := svc.ListSeries(ctx, c.provider)
	if err != nil {
		return fail(err)
	}
	printJSON(refs)
	return subcommands.ExitSuccess
}

type deleteCmd struct {
	seriesFlags
	yes bool
}

func (*deleteCmd) Name() string     { return "delete" }
func (*deleteCmd) Synopsis() string { return "delete one stored series" }
func (*deleteCmd) Usage() string {
	return "delete -provider P -symbol S -timeframe TF -yes:\n  Remove a stored series. Requires -yes.\n"
}

func (c *deleteCmd) SetFlags(f *flag.FlagSet) {
	c.register(f)
	f.BoolVar(&c.yes, "yes", false, "confirm deletion")
}

func (c *deleteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.symbol == "" || !c.yes {
		return subcommands.ExitUsageError
	}
	svc, cleanup, err := newService()
	if err != nil {
		return fail(err)
	}
	defer cleanup()

	if err := svc.Delete(ctx, c.provider, c.symbol, c.timeframe); err != nil {
		return fail(err)
	}
	fmt.Printf("deleted %s/%s/%s\n", c.provider, c.symbol, c.timeframe)
	return subcommands.ExitSuccess
}

type credentialsCmd struct {
	provider string
}

func (*credentialsCmd) Name() string     { return "validate-credentials" }
func (*credentialsCmd) Synopsis() string { return "check provider credentials" }
func (*credentialsCmd) Usage() string {
	return "validate-credentials -provider P:\n  Verify the provider accepts the configured credentials.\n"
}

func (c *credentialsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.provider, "provider", "binance", "data provider name")
}

func (c *credentialsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	svc, cleanup, err := newService()
	if err != nil {
		return fail(err)
	}
	defer cleanup()

	if err := svc.ValidateCredentials(ctx, c.provider); err != nil {
		return fail(err)
	}
	fmt.Printf("%s: credentials ok\n", c.provider)
	return subcommands.ExitSuccess
}

type serveCmd struct{}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "run the HTTP API server" }
func (*serveCmd) Usage() string {
	return "serve:\n  Run the HTTP API (and the tick consumer when Kafka is configured).\n"
}

func (*serveCmd) SetFlags(*flag.FlagSet) {}

func (*serveCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return fail(err)
	}
	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		return fail(err)
	}
	defer cleanup()

	if err := app.Run(); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

type streamCmd struct{}

func (*streamCmd) Name() string     { return "stream" }
func (*streamCmd) Synopsis() string { return "run the live tick-to-minute stream" }
func (*streamCmd) Usage() string {
	return "stream:\n  Pump the provider WebSocket into the canonical 1m series.\n"
}

func (*streamCmd) SetFlags(*flag.FlagSet) {}

func (*streamCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return fail(err)
	}
	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		return fail(err)
	}
	defer cleanup()

	if err := app.RunStream(); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}
