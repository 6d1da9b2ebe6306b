package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/inference-sim/market-sim/sim"
	"github.com/inference-sim/market-sim/sim/trace"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF")).Width(22)
	goodStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	badStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
)

func money(v float64) string {
	return "$" + humanize.FormatFloat("#,###.##", v)
}

func line(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "%s %s\n", labelStyle.Render(label), value)
}

// printSummary writes the end-of-run report. ts may be nil when tracing is off.
func printSummary(w io.Writer, s sim.RunSummary, ts *trace.TraceSummary) {
	var b strings.Builder

	b.WriteString(headerStyle.Render("=== Simulation Summary ===") + "\n")
	line(&b, "State", string(s.State))
	line(&b, "Ticks", humanize.Comma(s.Tick))
	line(&b, "Transactions", humanize.Comma(int64(s.Transactions)))
	line(&b, "Successes", goodStyle.Render(humanize.Comma(int64(s.Successes))))
	line(&b, "Success rate", fmt.Sprintf("%.1f%%", s.SuccessRate*100))
	line(&b, "Volume", money(s.Volume))
	line(&b, "Units sold", humanize.Comma(int64(s.UnitsSold)))
	line(&b, "Budget (now/initial)", fmt.Sprintf("%s / %s", money(s.TotalBudget), money(s.InitialBudget)))
	line(&b, "Active products", fmt.Sprintf("%d / %d", s.ActiveProducts, s.Products))
	line(&b, "Inflated products", fmt.Sprintf("%d", s.InflatedProducts))

	b.WriteString(headerStyle.Render("=== Failures ===") + "\n")
	for _, r := range sim.AllFailureReasons {
		n := s.Failures[r]
		v := humanize.Comma(int64(n))
		if n > 0 {
			v = badStyle.Render(v)
		}
		line(&b, string(r), v)
	}

	b.WriteString(headerStyle.Render("=== Events ===") + "\n")
	for _, k := range sim.AllEventKinds {
		line(&b, string(k), humanize.Comma(int64(s.Events[k])))
	}
	if s.EventErrors > 0 {
		line(&b, "errors", badStyle.Render(humanize.Comma(int64(s.EventErrors))))
	}

	if ts != nil && ts.OrderTotals.Count > 0 {
		b.WriteString(headerStyle.Render("=== Orders ===") + "\n")
		line(&b, "Order total mean", money(ts.OrderTotals.Mean))
		line(&b, "Order total p50", money(ts.OrderTotals.P50))
		line(&b, "Order total p95", money(ts.OrderTotals.P95))
		line(&b, "Order total max", money(ts.OrderTotals.Max))
		line(&b, "Busiest tick", humanize.Comma(ts.BusiestTick))
		line(&b, "Buyers / sellers", fmt.Sprintf("%d / %d", ts.UniqueBuyers, ts.UniqueSuppliers))
		for _, st := range sim.AllStrategies {
			ss := ts.ByStrategy[st]
			if ss.Attempts == 0 {
				continue
			}
			line(&b, "Strategy "+string(st), fmt.Sprintf("%d/%d ok, %s", ss.Successes, ss.Attempts, money(ss.Volume)))
		}
	}

	fmt.Fprint(w, b.String())
}
