package tabular

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnsupportedFormat is returned when an uploaded file is not supported.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrEmptyFile is returned when a file contains no rows at all.
	ErrEmptyFile = errors.New("no rows found in file")

	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

	// xlsx files are zip archives and always open with the PK signature.
	zipSignature = []byte{0x50, 0x4B, 0x03, 0x04}
)

// Row is one populated data row with its original position in the file.
// RowNumber is 1-based and includes the header row, so it matches what an
// operator sees when opening the file in a spreadsheet.
type Row struct {
	Number int
	Cells  []string
}

// Table is a parsed tabular file: the header row plus all populated data
// rows, with cells padded to at least the header width.
type Table struct {
	Headers []string
	Rows    []Row

	index map[string]int
}

// Value returns the cell under the named header, trimmed. Header lookup is
// case-insensitive; a header absent from the file yields "".
func (t *Table) Value(row Row, header string) string {
	idx, ok := t.index[strings.ToLower(header)]
	if !ok || idx >= len(row.Cells) {
		return ""
	}
	return strings.TrimSpace(row.Cells[idx])
}

// HasHeader reports whether the file carried the named header.
func (t *Table) HasHeader(header string) bool {
	_, ok := t.index[strings.ToLower(header)]
	return ok
}

// Parse detects the file format and extracts the header row and data rows.
// Detection goes by extension first, then by byte signature; files with an
// unknown signature attempt spreadsheet parsing before falling back to
// delimited text.
func Parse(fileName string, payload []byte) (*Table, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyFile
	}

	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv", ".txt":
		return parseCSV(payload)
	case ".xlsx", ".xlsm":
		return parseExcel(payload)
	}

	if bytes.HasPrefix(payload, zipSignature) {
		return parseExcel(payload)
	}
	if leadingPrintableASCII(payload) {
		return parseCSV(payload)
	}

	table, err := parseExcel(payload)
	if err == nil {
		return table, nil
	}
	table, csvErr := parseCSV(payload)
	if csvErr == nil {
		return table, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, fileName)
}

func parseCSV(payload []byte) (*Table, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}

	return buildTable(records)
}

func parseExcel(payload []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("excel file has no sheets")
	}

	// GetRows returns formatted display values, so hyperlink cells come
	// back as their visible text rather than the target URL.
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}

	return buildTable(records)
}

func buildTable(records [][]string) (*Table, error) {
	if len(records) == 0 {
		return nil, ErrEmptyFile
	}

	var headers []string
	var rows []Row

	for idx, record := range records {
		if rowEmpty(record) {
			continue
		}
		if headers == nil {
			headers = make([]string, len(record))
			for i, cell := range record {
				headers[i] = strings.TrimSpace(cell)
			}
			continue
		}
		rows = append(rows, Row{
			Number: idx + 1,
			Cells:  padRow(record, len(headers)),
		})
	}

	if headers == nil {
		return nil, errors.New("header row could not be detected")
	}

	index := make(map[string]int, len(headers))
	for i, header := range headers {
		key := strings.ToLower(header)
		if _, exists := index[key]; !exists {
			index[key] = i
		}
	}

	return &Table{Headers: headers, Rows: rows, index: index}, nil
}

func rowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// padRow widens short rows to the header width. Rows wider than the
// header keep their extra cells so the raw payload survives intact;
// header lookup never indexes past the header width anyway.
func padRow(row []string, length int) []string {
	if len(row) >= length {
		return row
	}
	padded := make([]string, length)
	copy(padded, row)
	return padded
}

// leadingPrintableASCII sniffs whether the first bytes of a payload look
// like delimited text rather than a binary container.
func leadingPrintableASCII(payload []byte) bool {
	sample := payload
	if len(sample) > 256 {
		sample = sample[:256]
	}
	if bytes.HasPrefix(sample, byteOrderMark) {
		sample = sample[len(byteOrderMark):]
	}
	for _, b := range sample {
		if b == '\n' || b == '\r' || b == '\t' {
			continue
		}
		if b > unicode.MaxASCII || !unicode.IsPrint(rune(b)) {
			return false
		}
	}
	return len(sample) > 0
}
