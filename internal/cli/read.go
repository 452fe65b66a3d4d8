package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"text/tabwriter"

	"github.com/google/subcommands"

	"StockSim/internal/model"
	"StockSim/internal/syncer"
)

type watchCmd struct{ app *App }

func (*watchCmd) Name() string     { return "watch" }
func (*watchCmd) Synopsis() string { return "add symbols to the watch list and fetch their prices" }
func (*watchCmd) Usage() string    { return "simctl watch <symbol>...\n" }
func (*watchCmd) SetFlags(*flag.FlagSet) {}

func (c *watchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		return c.app.fail("usage: %s", c.Usage())
	}
	c.app.Core.Refresh(ctx)
	status := subcommands.ExitSuccess
	for _, sym := range f.Args() {
		err := c.app.Core.AddWatched(ctx, sym)
		switch {
		case errors.Is(err, syncer.ErrAlreadyWatching):
			fmt.Fprintf(c.app.Err, "%s: already watching\n", sym)
		case err != nil:
			fmt.Fprintf(c.app.Err, "%s: %v\n", sym, err)
			status = subcommands.ExitFailure
		}
	}
	c.app.Core.Wait()
	c.app.report()
	return status
}

type historyCmd struct{ app *App }

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "list the end-of-day account records" }
func (*historyCmd) Usage() string    { return "simctl history\n" }
func (*historyCmd) SetFlags(*flag.FlagSet) {}

func (c *historyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	records, err := c.app.Core.History(ctx)
	if err != nil {
		return c.app.fail("history failed: %v", err)
	}
	PrintHistory(c.app, records)
	return subcommands.ExitSuccess
}

// PrintHistory writes one row per record.
func PrintHistory(app *App, records []model.HistoryRecord) {
	tw := tabwriter.NewWriter(app.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tCASH\tPORTFOLIO")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Date, money(r.Cash), money(r.PortfolioValue))
	}
	tw.Flush()
}

type priceCmd struct{ app *App }

func (*priceCmd) Name() string     { return "price" }
func (*priceCmd) Synopsis() string { return "print a ticker's price at the simulated time" }
func (*priceCmd) Usage() string    { return "simctl price <ticker>\n" }
func (*priceCmd) SetFlags(*flag.FlagSet) {}

func (c *priceCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return c.app.fail("usage: %s", c.Usage())
	}
	price, ok, err := c.app.Core.Quote(ctx, f.Arg(0))
	if err != nil {
		return c.app.fail("price failed: %v", err)
	}
	if !ok {
		return c.app.fail("%s: no price (unknown ticker or market closed)", f.Arg(0))
	}
	fmt.Fprintln(c.app.Out, money(price))
	return subcommands.ExitSuccess
}

type seriesCmd struct {
	app   *App
	start string
	end   string
}

func (*seriesCmd) Name() string     { return "series" }
func (*seriesCmd) Synopsis() string { return "print a ticker's price series" }
func (*seriesCmd) Usage() string {
	return `simctl series [-start <time>] [-end <time>] <ticker>

  Times use "2006-01-02 15:04:05" or "2006-01-02". Without -start the
  series runs from the simulated clock to one day later.
`
}

func (c *seriesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.start, "start", "", "Series start.")
	f.StringVar(&c.end, "end", "", "Series end. Without -start the series is empty.")
}

func (c *seriesCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return c.app.fail("usage: %s", c.Usage())
	}
	series, err := c.app.Core.Series(ctx, f.Arg(0), c.start, c.end)
	if err != nil {
		return c.app.fail("series failed: %v", err)
	}
	tw := tabwriter.NewWriter(c.app.Out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "TIME\tOPEN\tHIGH\tLOW\tCLOSE\tVOLUME\t")
	for i := 0; i < series.Len(); i++ {
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.0f\t\n",
			series.Date[i].Format(model.DateLayout),
			series.Open[i], series.High[i], series.Low[i], series.Close[i], series.Volume[i])
	}
	tw.Flush()
	return subcommands.ExitSuccess
}
