// Package cli implements the simctl subcommands. State-changing commands
// print the resulting snapshot; read commands print their own tables.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/google/subcommands"

	"StockSim/internal/model"
	"StockSim/internal/syncer"
)

// Core is the synchronizer surface the commands use.
type Core interface {
	Snapshot() model.Snapshot
	Wait()
	Refresh(ctx context.Context)
	BuyStock(ctx context.Context, ticker string, quantity int64) (syncer.TradeResult, error)
	SellStock(ctx context.Context, ticker string, quantity int64) (syncer.TradeResult, error)
	ProgressTime(ctx context.Context, off syncer.Offset) error
	Reset(ctx context.Context) error
	AddWatched(ctx context.Context, symbol string) error
	History(ctx context.Context) ([]model.HistoryRecord, error)
	Series(ctx context.Context, ticker, start, end string) (*model.PriceSeries, error)
	Quote(ctx context.Context, ticker string) (float64, bool, error)
}

// App carries what every command needs.
type App struct {
	Core Core
	Out  io.Writer
	Err  io.Writer
}

// Commands returns all simctl commands bound to app.
func Commands(app *App) []subcommands.Command {
	return []subcommands.Command{
		&statusCmd{app: app},
		&tradeCmd{app: app, side: syncer.SideBuy},
		&tradeCmd{app: app, side: syncer.SideSell},
		&progressCmd{app: app},
		&resetCmd{app: app},
		&watchCmd{app: app},
		&historyCmd{app: app},
		&seriesCmd{app: app},
		&priceCmd{app: app},
	}
}

func (a *App) fail(format string, args ...interface{}) subcommands.ExitStatus {
	fmt.Fprintf(a.Err, format+"\n", args...)
	return subcommands.ExitFailure
}

func money(v float64) string {
	return "$" + humanize.FormatFloat("#,###.##", v)
}

// PrintSnapshot writes snap as a few aligned tables.
func PrintSnapshot(w io.Writer, snap model.Snapshot) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Date\t%s\n", snap.Date)
	fmt.Fprintf(tw, "Cash\t%s\n", money(snap.Cash))
	fmt.Fprintf(tw, "Value\t%s\n", money(snap.PortfolioValue))
	tw.Flush()

	if len(snap.Portfolio) > 0 {
		fmt.Fprintln(w)
		tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SYMBOL\tSHARES\tVALUE")
		for _, h := range snap.Portfolio {
			v, _ := snap.HoldingValue(h)
			fmt.Fprintf(tw, "%s\t%s\t%s\n", h.Ticker, humanize.Comma(h.Quantity), money(v))
		}
		tw.Flush()
	}

	if len(snap.WatchedStocks) > 0 {
		fmt.Fprintln(w)
		tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "WATCHED\tPRICE")
		for _, t := range snap.WatchedStocks {
			price := "-"
			if p, ok := snap.PriceMap[t]; ok {
				price = money(p)
			}
			fmt.Fprintf(tw, "%s\t%s\n", t, price)
		}
		tw.Flush()
	}
}

func (a *App) report() subcommands.ExitStatus {
	snap := a.Core.Snapshot()
	PrintSnapshot(a.Out, snap)
	for _, f := range snap.Failures {
		if f.Ticker != "" {
			fmt.Fprintf(a.Err, "warning: %s %s: %s\n", f.Field, f.Ticker, f.Error)
			continue
		}
		fmt.Fprintf(a.Err, "warning: %s: %s\n", f.Field, f.Error)
	}
	return subcommands.ExitSuccess
}

type statusCmd struct{ app *App }

func (*statusCmd) Name() string     { return "status" }
func (*statusCmd) Synopsis() string { return "show cash, clock, holdings and watched prices" }
func (*statusCmd) Usage() string {
	return `simctl status

  Refreshes from the simulation service and prints the snapshot.
`
}
func (*statusCmd) SetFlags(*flag.FlagSet) {}

func (c *statusCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	c.app.Core.Refresh(ctx)
	return c.app.report()
}

type tradeCmd struct {
	app      *App
	side     string
	quantity int64
}

func (c *tradeCmd) Name() string     { return c.side }
func (c *tradeCmd) Synopsis() string { return c.side + " shares at the simulated price" }
func (c *tradeCmd) Usage() string {
	return fmt.Sprintf("simctl %s [-n <shares>] <ticker>\n", c.side)
}

func (c *tradeCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.quantity, "n", 1, "Number of shares.")
}

func (c *tradeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return c.app.fail("usage: %s", c.Usage())
	}
	if c.quantity <= 0 {
		return c.app.fail("-n must be a positive number of shares")
	}
	c.app.Core.Refresh(ctx)

	trade := c.app.Core.BuyStock
	if c.side == syncer.SideSell {
		trade = c.app.Core.SellStock
	}
	res, err := trade(ctx, f.Arg(0), c.quantity)
	if err != nil {
		return c.app.fail("%s failed: %v", c.side, err)
	}
	if !res.OK() {
		c.app.report()
		return c.app.fail("%s %d %s rejected: %s", c.side, res.Quantity, res.Ticker, res.Reason)
	}
	return c.app.report()
}

type progressCmd struct {
	app *App
	off syncer.Offset
}

func (*progressCmd) Name() string     { return "progress" }
func (*progressCmd) Synopsis() string { return "move the simulated clock forward" }
func (*progressCmd) Usage() string {
	return `simctl progress [-days N] [-hours N] [-minutes N] [-seconds N]

  With no flags the clock does not move.
`
}

func (c *progressCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.off.Days, "days", 0, "Days to advance.")
	f.IntVar(&c.off.Hours, "hours", 0, "Hours to advance.")
	f.IntVar(&c.off.Minutes, "minutes", 0, "Minutes to advance.")
	f.IntVar(&c.off.Seconds, "seconds", 0, "Seconds to advance.")
}

func (c *progressCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.app.Core.ProgressTime(ctx, c.off); err != nil {
		return c.app.fail("progress failed: %v", err)
	}
	return c.app.report()
}

type resetCmd struct{ app *App }

func (*resetCmd) Name() string     { return "reset" }
func (*resetCmd) Synopsis() string { return "restore the simulation to its starting state" }
func (*resetCmd) Usage() string    { return "simctl reset\n" }
func (*resetCmd) SetFlags(*flag.FlagSet) {}

func (c *resetCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.app.Core.Reset(ctx); err != nil {
		return c.app.fail("reset failed: %v", err)
	}
	return c.app.report()
}
