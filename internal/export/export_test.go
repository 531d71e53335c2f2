package export

import (
	"bytes"
	"encoding/csv"
	"path/filepath"
	"testing"
	"time"

	"marketlens/internal/model"

	"github.com/guregu/null/v6"
	"github.com/parquet-go/parquet-go"
)

func sampleRows() []model.IndicatorRow {
	d := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	return []model.IndicatorRow{
		{
			Date: d, Open: null.FloatFrom(10), High: null.FloatFrom(11), Low: null.FloatFrom(9),
			Close: null.FloatFrom(10.5), AvgPrice: null.FloatFrom(10.125), RSI14: null.FloatFrom(0),
		},
		{
			Date: d.AddDate(0, 0, 1), Close: null.FloatFrom(12.25),
		},
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": CSV, "CSV": CSV, " parquet ": Parquet} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("xlsx"); err == nil {
		t.Error("expected error for xlsx")
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleRows()); err != nil {
		t.Fatal(err)
	}
	recs, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 || len(recs[0]) != len(Columns) {
		t.Fatalf("unexpected shape: %d rows", len(recs))
	}
	first := recs[1]
	if first[0] != "2024-03-31" || first[1] != "10" || first[4] != "10.5" || first[6] != "10.125" {
		t.Errorf("unexpected first record: %v", first)
	}
	if first[5] != "" {
		t.Errorf("null close_norm should be empty, got %q", first[5])
	}
	if first[11] != "0" {
		t.Errorf("zero RSI must be written as 0, got %q", first[11])
	}
	if recs[2][1] != "" || recs[2][4] != "12.25" {
		t.Errorf("unexpected second record: %v", recs[2])
	}
}

func TestWriteParquet_ReadBack(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteParquet(&buf, sampleRows()); err != nil {
		t.Fatal(err)
	}
	got, err := parquet.Read[ParquetRow](bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if got[0].Date != "2024-03-31" || got[0].Close == nil || *got[0].Close != 10.5 {
		t.Errorf("unexpected first row: %+v", got[0])
	}
	if got[1].Open != nil || got[0].CloseNorm != nil {
		t.Error("null values must stay null in parquet")
	}
}

func TestWriteParquetFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "NABIL_1Y.parquet")
	if err := WriteParquetFile(path, sampleRows()); err != nil {
		t.Fatal(err)
	}
	got, err := parquet.ReadFile[ParquetRow](path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || *got[1].Close != 12.25 {
		t.Errorf("unexpected rows: %+v", got)
	}
}
