package ingest

import (
	"bytes"
	"encoding/csv"
	"log"
	"strings"

	"battforge/domain/telemetry"
	"battforge/internal/errors"

	"github.com/xuri/excelize/v2"
)

// Sniffer turns a raw uploaded byte blob into a RawTable. The declared
// filename is provenance only and never drives parse decisions.
type Sniffer struct{}

// NewSniffer creates a table sniffer.
func NewSniffer() *Sniffer {
	return &Sniffer{}
}

// Sniff tries decode strategies in order until one yields a usable table:
// spreadsheet decode, comma CSV, whitespace/tab, then generic delimiter
// auto-detection. Returns ParseError when everything fails.
func (s *Sniffer) Sniff(content []byte, filename string) (*telemetry.RawTable, error) {
	if len(content) == 0 {
		return nil, errors.ParseError("empty upload")
	}

	type strategy struct {
		name string
		run  func([]byte) ([][]string, bool)
	}
	strategies := []strategy{
		{"spreadsheet", decodeSpreadsheet},
		{"csv", decodeComma},
		{"whitespace", decodeWhitespace},
		{"auto-delimiter", decodeAutoDelimiter},
	}

	for _, strat := range strategies {
		rows, ok := strat.run(content)
		if !ok {
			continue
		}
		table := buildTable(rows, content, filename)
		if table == nil {
			continue
		}
		log.Printf("[Ingest] %s strategy parsed %q (%d columns, %d rows)",
			strat.name, filename, len(table.Headers), len(table.Rows))
		return table, nil
	}

	return nil, errors.ParseError("could not parse file; supported formats: spreadsheet, CSV, tab/whitespace separated")
}

// buildTable converts decoded rows into a RawTable: first row is the header,
// data cells are trimmed and aligned positionally to the header width.
func buildTable(rows [][]string, content []byte, filename string) *telemetry.RawTable {
	if len(rows) < 2 {
		return nil
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}

	data := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		cells := make([]string, len(headers))
		for j := range headers {
			if j < len(row) {
				cells[j] = strings.TrimSpace(row[j])
			}
		}
		data = append(data, cells)
	}

	return &telemetry.RawTable{
		Headers:  headers,
		Rows:     data,
		ByteSize: len(content),
		Filename: filename,
	}
}

// decodeSpreadsheet reads the first sheet of an xlsx workbook.
func decodeSpreadsheet(content []byte) ([][]string, bool) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, false
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, false
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil || len(rows) < 2 {
		return nil, false
	}
	return rows, true
}

// decodeComma parses standard comma-separated text.
func decodeComma(content []byte) ([][]string, bool) {
	return decodeDelimited(content, ',')
}

// decodeWhitespace splits lines on runs of spaces and tabs, the common
// format of cycler text exports ("time/s    cycle ...").
func decodeWhitespace(content []byte) ([][]string, bool) {
	lines := splitLines(content)
	var rows [][]string
	width := 0
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if width == 0 {
			width = len(fields)
		}
		rows = append(rows, fields)
	}
	if len(rows) < 2 || width < 2 {
		return nil, false
	}
	return rows, true
}

// decodeAutoDelimiter tries the remaining common delimiters and keeps the
// first that produces a multi-column table.
func decodeAutoDelimiter(content []byte) ([][]string, bool) {
	for _, delim := range []rune{';', '\t', '|'} {
		if rows, ok := decodeDelimited(content, delim); ok {
			return rows, true
		}
	}
	return nil, false
}

func decodeDelimited(content []byte, delim rune) ([][]string, bool) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil || len(rows) < 2 {
		return nil, false
	}
	// Delimiter-based strategies must yield more than one column, otherwise
	// the delimiter simply did not occur in the input.
	if len(rows[0]) < 2 {
		return nil, false
	}
	return rows, true
}

func splitLines(content []byte) []string {
	text := strings.ReplaceAll(string(content), "\r\n", "\n")
	return strings.Split(text, "\n")
}
