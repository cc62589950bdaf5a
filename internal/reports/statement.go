// Package reports renders monthly account statements from transaction
// records: a text table of the month's activity and a running-balance
// chart.
package reports

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"
	"github.com/wcharczuk/go-chart/v2"

	"github.com/edinstance/aws-banking-system/pkg/transactions"
)

// Statement is a single account's activity for one month.
type Statement struct {
	AccountID string
	Month     time.Month
	Year      int
	Lines     []Line

	// TotalCredits and TotalDebits are exact sums over the month.
	TotalCredits decimal.Decimal
	TotalDebits  decimal.Decimal

	// ClosingBalance is the net movement across the month. Without an
	// opening balance feed it starts from zero.
	ClosingBalance decimal.Decimal
}

// Line is one statement row with the running balance after the
// transaction applied.
type Line struct {
	Record  *transactions.Record
	Balance decimal.Decimal
}

// credits reports whether a transaction type moves money into the
// account; everything else is treated as a debit.
func credits(t transactions.Type) bool {
	return t == transactions.Deposit || t == transactions.Adjustment
}

// Build assembles the statement for a month from an account's records.
// Records outside the month are dropped; the rest are ordered by creation
// time.
func Build(accountID string, year int, month time.Month, records []*transactions.Record) *Statement {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	var inMonth []*transactions.Record
	for _, r := range records {
		if !r.CreatedAt.Before(start) && r.CreatedAt.Before(end) {
			inMonth = append(inMonth, r)
		}
	}
	sort.Slice(inMonth, func(i, j int) bool {
		return inMonth[i].CreatedAt.Before(inMonth[j].CreatedAt)
	})

	st := &Statement{
		AccountID: accountID,
		Month:     month,
		Year:      year,
	}

	balance := decimal.Zero
	for _, r := range inMonth {
		if credits(r.Type) {
			balance = balance.Add(r.Amount.Decimal)
			st.TotalCredits = st.TotalCredits.Add(r.Amount.Decimal)
		} else {
			balance = balance.Sub(r.Amount.Decimal)
			st.TotalDebits = st.TotalDebits.Add(r.Amount.Decimal)
		}
		st.Lines = append(st.Lines, Line{Record: r, Balance: balance})
	}
	st.ClosingBalance = balance

	return st
}

// WriteTable renders the statement as a text table.
func (st *Statement) WriteTable(w io.Writer) {
	fmt.Fprintf(w, "Account %s - %s %d\n\n", st.AccountID, st.Month, st.Year)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Date", "Type", "Description", "Amount", "Balance"})
	table.SetBorder(false)

	for _, line := range st.Lines {
		amount := line.Record.Amount.String()
		if !credits(line.Record.Type) {
			amount = "-" + amount
		}
		table.Append([]string{
			line.Record.CreatedAt.Format("2006-01-02"),
			string(line.Record.Type),
			line.Record.Description,
			amount,
			line.Balance.StringFixed(2),
		})
	}

	table.SetFooter([]string{"", "", "Net",
		st.TotalCredits.Sub(st.TotalDebits).StringFixed(2),
		st.ClosingBalance.StringFixed(2)})
	table.Render()
}

// RenderChart writes a PNG chart of the running balance over the month.
// Chart rendering is visual only, so the float conversion here does not
// feed back into any stored value.
func (st *Statement) RenderChart(w io.Writer) error {
	if len(st.Lines) == 0 {
		return fmt.Errorf("no transactions to chart")
	}

	xValues := make([]time.Time, 0, len(st.Lines))
	yValues := make([]float64, 0, len(st.Lines))
	for _, line := range st.Lines {
		xValues = append(xValues, line.Record.CreatedAt)
		yValues = append(yValues, line.Balance.InexactFloat64())
	}

	graph := chart.Chart{
		Title:  fmt.Sprintf("Account %s - %s %d", st.AccountID, st.Month, st.Year),
		Width:  1024,
		Height: 512,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Balance",
				XValues: xValues,
				YValues: yValues,
			},
		},
	}

	return graph.Render(chart.PNG, w)
}
