// Package export writes indicator rows as CSV or parquet. Null values become
// empty CSV cells and null parquet values.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"marketlens/internal/model"

	"github.com/guregu/null/v6"
	"github.com/parquet-go/parquet-go"
)

// Format is an export encoding.
type Format string

const (
	CSV     Format = "csv"
	Parquet Format = "parquet"
)

// ParseFormat accepts csv or parquet, case-insensitive. Empty means csv.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", CSV:
		return CSV, nil
	case Parquet:
		return Parquet, nil
	default:
		return "", fmt.Errorf("unknown export format %q", s)
	}
}

// ContentType is the HTTP media type of f.
func (f Format) ContentType() string {
	if f == Parquet {
		return "application/vnd.apache.parquet"
	}
	return "text/csv"
}

// Ext is the file extension of f, without the dot.
func (f Format) Ext() string { return string(f) }

// Columns is the header order shared by both encodings.
var Columns = []string{
	"date", "open", "high", "low", "close", "close_norm", "avg_price",
	"price_change_pct", "rolling_mean_20", "ema12", "ema26", "rsi14",
	"bb_upper", "bb_lower", "bb_ma20",
}

func values(r model.IndicatorRow) []null.Float {
	return []null.Float{
		r.Open, r.High, r.Low, r.Close, r.CloseNorm, r.AvgPrice,
		r.PriceChangePct, r.RollingMean20, r.EMA12, r.EMA26, r.RSI14,
		r.BBUpper, r.BBLower, r.BBMA20,
	}
}

// Write encodes rows in format f.
func Write(w io.Writer, f Format, rows []model.IndicatorRow) error {
	switch f {
	case CSV:
		return WriteCSV(w, rows)
	case Parquet:
		return WriteParquet(w, rows)
	default:
		return fmt.Errorf("unknown export format %q", f)
	}
}

// WriteCSV writes a header line and one record per row.
func WriteCSV(w io.Writer, rows []model.IndicatorRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("csv header: %w", err)
	}
	rec := make([]string, len(Columns))
	for _, r := range rows {
		rec[0] = r.Date.Format(model.DateLayout)
		for i, v := range values(r) {
			rec[i+1] = ""
			if v.Valid {
				rec[i+1] = strconv.FormatFloat(v.Float64, 'f', -1, 64)
			}
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("csv row %s: %w", rec[0], err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ParquetRow is the on-disk parquet schema.
type ParquetRow struct {
	Date           string   `parquet:"date"`
	Open           *float64 `parquet:"open,optional"`
	High           *float64 `parquet:"high,optional"`
	Low            *float64 `parquet:"low,optional"`
	Close          *float64 `parquet:"close,optional"`
	CloseNorm      *float64 `parquet:"close_norm,optional"`
	AvgPrice       *float64 `parquet:"avg_price,optional"`
	PriceChangePct *float64 `parquet:"price_change_pct,optional"`
	RollingMean20  *float64 `parquet:"rolling_mean_20,optional"`
	EMA12          *float64 `parquet:"ema12,optional"`
	EMA26          *float64 `parquet:"ema26,optional"`
	RSI14          *float64 `parquet:"rsi14,optional"`
	BBUpper        *float64 `parquet:"bb_upper,optional"`
	BBLower        *float64 `parquet:"bb_lower,optional"`
	BBMA20         *float64 `parquet:"bb_ma20,optional"`
}

// ToParquet converts an indicator row to its parquet form.
func ToParquet(r model.IndicatorRow) ParquetRow {
	return ParquetRow{
		Date:           r.Date.Format(model.DateLayout),
		Open:           r.Open.Ptr(),
		High:           r.High.Ptr(),
		Low:            r.Low.Ptr(),
		Close:          r.Close.Ptr(),
		CloseNorm:      r.CloseNorm.Ptr(),
		AvgPrice:       r.AvgPrice.Ptr(),
		PriceChangePct: r.PriceChangePct.Ptr(),
		RollingMean20:  r.RollingMean20.Ptr(),
		EMA12:          r.EMA12.Ptr(),
		EMA26:          r.EMA26.Ptr(),
		RSI14:          r.RSI14.Ptr(),
		BBUpper:        r.BBUpper.Ptr(),
		BBLower:        r.BBLower.Ptr(),
		BBMA20:         r.BBMA20.Ptr(),
	}
}

func toParquetRows(rows []model.IndicatorRow) []ParquetRow {
	out := make([]ParquetRow, len(rows))
	for i, r := range rows {
		out[i] = ToParquet(r)
	}
	return out
}

// WriteParquet writes rows as a single parquet file to w.
func WriteParquet(w io.Writer, rows []model.IndicatorRow) error {
	if err := parquet.Write(w, toParquetRows(rows)); err != nil {
		return fmt.Errorf("parquet write: %w", err)
	}
	return nil
}

// WriteParquetFile writes rows to a parquet file at path.
func WriteParquetFile(path string, rows []model.IndicatorRow) error {
	return parquet.WriteFile(path, toParquetRows(rows))
}
