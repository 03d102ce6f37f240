package tabular

import (
	"bytes"
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestParseCSVSkipsEmptyRowsAndKeepsRowNumbers(t *testing.T) {
	data := []byte("part_number,description\n\nABC123,Brake pad\n,,\nDEF456,Oil filter\n")

	table, err := Parse("catalog.csv", data)
	if err != nil {
		t.Fatalf("parse returned error: %v", err)
	}

	if len(table.Headers) != 2 {
		t.Fatalf("expected 2 headers, got %v", table.Headers)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("expected 2 data rows, got %d", len(table.Rows))
	}
	if table.Rows[0].Number != 3 {
		t.Fatalf("expected first data row at file row 3, got %d", table.Rows[0].Number)
	}
	if table.Rows[1].Number != 5 {
		t.Fatalf("expected second data row at file row 5, got %d", table.Rows[1].Number)
	}
	if got := table.Value(table.Rows[1], "Part_Number"); got != "DEF456" {
		t.Fatalf("case-insensitive header lookup failed, got %q", got)
	}
}

func TestParseStripsByteOrderMark(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("code,name\nD01,North\n")...)

	table, err := Parse("dealers.csv", data)
	if err != nil {
		t.Fatalf("parse returned error: %v", err)
	}
	if table.Headers[0] != "code" {
		t.Fatalf("BOM not stripped from first header: %q", table.Headers[0])
	}
}

func TestParseDetectsExcelBySignature(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	_ = f.SetSheetRow(sheet, "A1", &[]any{"part_number", "description"})
	_ = f.SetSheetRow(sheet, "A2", &[]any{"ABC123", "Brake pad"})

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("failed to build xlsx fixture: %v", err)
	}

	// Extension withheld on purpose so detection falls back to sniffing.
	table, err := Parse("upload.bin", buf.Bytes())
	if err != nil {
		t.Fatalf("parse returned error: %v", err)
	}
	if len(table.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(table.Rows))
	}
	if got := table.Value(table.Rows[0], "part_number"); got != "ABC123" {
		t.Fatalf("unexpected cell value %q", got)
	}
}

func TestParseUnknownExtensionFallsBackToCSV(t *testing.T) {
	table, err := Parse("export.dat", []byte("a,b\n1,2\n"))
	if err != nil {
		t.Fatalf("parse returned error: %v", err)
	}
	if len(table.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(table.Rows))
	}
}

func TestParseEmptyPayload(t *testing.T) {
	if _, err := Parse("empty.csv", nil); !errors.Is(err, ErrEmptyFile) {
		t.Fatalf("expected ErrEmptyFile, got %v", err)
	}
}

func TestParseKeepsOverflowCells(t *testing.T) {
	// A row wider than the header keeps its extra cells: the raw payload
	// is handed back verbatim on row errors, so nothing may be dropped.
	table, err := Parse("wide.csv", []byte("a,b\n1,2,surprise\n"))
	if err != nil {
		t.Fatalf("parse returned error: %v", err)
	}
	row := table.Rows[0]
	if len(row.Cells) != 3 {
		t.Fatalf("expected all 3 cells preserved, got %v", row.Cells)
	}
	if row.Cells[2] != "surprise" {
		t.Fatalf("overflow cell lost, got %v", row.Cells)
	}
	if got := table.Value(row, "b"); got != "2" {
		t.Fatalf("header lookup broken on wide row, got %q", got)
	}
}

func TestParsePadsShortRows(t *testing.T) {
	table, err := Parse("short.csv", []byte("a,b,c\n1,2\n"))
	if err != nil {
		t.Fatalf("parse returned error: %v", err)
	}
	if len(table.Rows[0].Cells) != 3 {
		t.Fatalf("expected padded row of width 3, got %d", len(table.Rows[0].Cells))
	}
	if got := table.Value(table.Rows[0], "c"); got != "" {
		t.Fatalf("expected empty padded cell, got %q", got)
	}
}
