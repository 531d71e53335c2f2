package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/guregu/null/v6"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
)

func wantJSON() bool { return strings.EqualFold(format, "json") }

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderTable(header []string, rows [][]string) {
	table := tablewriter.NewTable(os.Stdout, tablewriter.WithHeader(header))
	for _, r := range rows {
		table.Append(r)
	}
	table.Render()
}

func fmtFloat(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

func fmtNull(v null.Float) string {
	if !v.Valid {
		return "-"
	}
	return fmtFloat(v.Float64)
}

func fmtPct(v float64) string {
	if v > 0 {
		return fmt.Sprintf("+%.2f%%", v)
	}
	return fmt.Sprintf("%.2f%%", v)
}

func newBar(n int, desc string) *progressbar.ProgressBar {
	return progressbar.NewOptions(n,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]█[reset]",
			SaucerHead:    "[green]█[reset]",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
