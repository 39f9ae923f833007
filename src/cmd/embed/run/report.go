package run

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jiaming2012/tradable-embed/src/eventmodels"
)

// SymbolLookup resolves an instrument id to a display symbol.
type SymbolLookup func(instrumentID string) string

func RenderSnapshot(w io.Writer, snapshot *eventmodels.AccountSnapshot, lookup SymbolLookup) {
	p := message.NewPrinter(language.English)
	m := snapshot.Metrics

	fmt.Fprintf(w, "Account %s\n", snapshot.AccountID)

	metrics := tablewriter.NewWriter(w)
	metrics.SetHeader([]string{"Balance", "Equity", "Margin", "Free Margin", "Open P/L"})
	metrics.SetAlignment(tablewriter.ALIGN_RIGHT)
	metrics.Append([]string{
		p.Sprintf("%.2f %s", m.Balance, m.Currency),
		p.Sprintf("%.2f", m.Equity),
		p.Sprintf("%.2f", m.Margin),
		p.Sprintf("%.2f", m.FreeMargin),
		p.Sprintf("%.2f", m.OpenProfit),
	})
	metrics.Render()

	if len(snapshot.Positions.Open) > 0 {
		positions := tablewriter.NewWriter(w)
		positions.SetHeader([]string{"Position", "Symbol", "Side", "Amount", "Open", "Bid", "P/L"})
		for _, pos := range snapshot.Positions.Open {
			bid := "-"
			if price := snapshot.FindPrice(pos.InstrumentID); price != nil && price.HasBid() {
				bid = p.Sprintf("%.5f", *price.Bid)
			}

			positions.Append([]string{
				pos.ID,
				lookup(pos.InstrumentID),
				string(pos.Side),
				p.Sprintf("%v", pos.Amount),
				p.Sprintf("%.5f", pos.OpenPrice),
				bid,
				p.Sprintf("%.2f", pos.UnrealizedProfit),
			})
		}
		positions.Render()
	}

	if len(snapshot.Orders.Pending) > 0 {
		orders := tablewriter.NewWriter(w)
		orders.SetHeader([]string{"Order", "Symbol", "Side", "Type", "Amount", "Price"})
		for _, order := range snapshot.Orders.Pending {
			orders.Append([]string{
				order.ID,
				lookup(order.InstrumentID),
				string(order.Side),
				string(order.Type),
				p.Sprintf("%v", order.Amount),
				p.Sprintf("%.5f", order.Price),
			})
		}
		orders.Render()
	}
}

func RenderExecution(w io.Writer, result *eventmodels.ExecutionResult) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Kind", "Item"})

	appendRows := func(kind string, ids []string) {
		for _, id := range ids {
			table.Append([]string{kind, id})
		}
	}

	appendRows("order", result.Orders)
	appendRows("cancelled order", result.CancelledOrders)
	appendRows("position", result.Positions)
	appendRows("closed position", result.ClosedPositions)

	fmt.Fprintf(w, "%d new executions\n", result.Total())
	table.Render()
}
