package parser

import (
	"encoding/csv"
	"errors"
	"io"
	"regexp"
	"strings"

	"github.com/saviobatista/logbook-coverage/internal/types"
)

// ErrNoFlightsTable is returned when the export has no recognizable flights table
var ErrNoFlightsTable = errors.New("No Flights Table found.")

// Header aliases, normalized (lower case, alphanumerics only). Earlier
// entries take precedence when resolving columns.
var (
	DateAliases = []string{"date", "flightdate"}
	FromAliases = []string{"from", "origin", "departure", "fromairport", "departureairport"}
	ToAliases   = []string{"to", "destination", "arrival", "toairport", "arrivalairport"}

	// TextHints selects free-text columns whose normalized header contains any hint
	TextHints = []string{"notes", "remarks", "route", "comment", "via", "approach", "procedure"}
)

// maxBlankRun is the number of consecutive blank rows that ends the flights table
const maxBlankRun = 3

var tableTitle = regexp.MustCompile(`(^|\s)Table$`)

// flightColumns holds the resolved column layout of the flights table
type flightColumns struct {
	date, from, to int
	text           []int
}

// ParseLogbook extracts the flights from a ForeFlight logbook export. The
// export is a concatenation of titled tables; only the flights table is
// read. Malformed rows are kept on a best-effort basis; the only error is
// ErrNoFlightsTable.
func ParseLogbook(text string) ([]types.FlightRow, error) {
	rows := readRows(text)

	headerIdx := -1
	for i, row := range rows {
		if isFlightsHeader(row) {
			headerIdx = i
			break
		}
	}
	if headerIdx == -1 {
		return nil, ErrNoFlightsTable
	}

	cols, ok := resolveColumns(rows[headerIdx])
	if !ok {
		return nil, ErrNoFlightsTable
	}

	flights := []types.FlightRow{}
	blankRun := 0
	for _, row := range rows[headerIdx+1:] {
		if tableTitle.MatchString(strings.TrimSpace(row[0])) {
			break
		}
		if isBlank(row) {
			blankRun++
			if blankRun >= maxBlankRun {
				break
			}
			continue
		}
		blankRun = 0
		flights = append(flights, cols.flight(row))
	}

	return flights, nil
}

func (c flightColumns) flight(row []string) types.FlightRow {
	f := types.FlightRow{
		Date: cell(row, c.date),
		From: cell(row, c.from),
		To:   cell(row, c.to),
	}
	for _, i := range c.text {
		if v := strings.TrimSpace(cell(row, i)); v != "" {
			f.TextFields = append(f.TextFields, v)
		}
	}
	return f
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// NormalizeHeader lower-cases h and drops everything but letters and digits
func NormalizeHeader(h string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(h) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func normalizedRow(row []string) []string {
	n := make([]string, len(row))
	for i, h := range row {
		n[i] = NormalizeHeader(h)
	}
	return n
}

func containsAny(cells []string, aliases []string) bool {
	return indexOfAlias(cells, aliases) != -1
}

// indexOfAlias returns the column of the first alias present in cells
func indexOfAlias(cells []string, aliases []string) int {
	for _, alias := range aliases {
		for i, c := range cells {
			if c == alias {
				return i
			}
		}
	}
	return -1
}

func isFlightsHeader(row []string) bool {
	cells := normalizedRow(row)
	return containsAny(cells, DateAliases) && containsAny(cells, FromAliases) && containsAny(cells, ToAliases)
}

func resolveColumns(header []string) (flightColumns, bool) {
	cells := normalizedRow(header)
	cols := flightColumns{
		date: indexOfAlias(cells, DateAliases),
		from: indexOfAlias(cells, FromAliases),
		to:   indexOfAlias(cells, ToAliases),
	}
	if cols.date == -1 || cols.from == -1 || cols.to == -1 {
		return cols, false
	}

	for i, c := range cells {
		for _, hint := range TextHints {
			if strings.Contains(c, hint) {
				cols.text = append(cols.text, i)
				break
			}
		}
	}
	return cols, true
}

// readRows splits text into raw CSV rows with no assumed header. The CSV
// reader silently drops empty lines, so they are reinstated here as
// single empty-cell rows using the reader's line positions.
func readRows(text string) [][]string {
	text = strings.TrimPrefix(text, "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	nextLine := 1 // line following the previous record
	var consumed int64
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				consumed, nextLine = advance(text, consumed, r.InputOffset(), nextLine)
				continue
			}
			break
		}

		start, _ := r.FieldPos(0)
		for i := nextLine; i < start; i++ {
			rows = append(rows, []string{""})
		}
		consumed, nextLine = advance(text, consumed, r.InputOffset(), nextLine)

		if len(record) == 0 {
			continue
		}
		rows = append(rows, record)
	}
	return rows
}

// advance counts the newlines between two input offsets to track the
// line on which the next record would start.
func advance(text string, from, to int64, line int) (int64, int) {
	if to > int64(len(text)) {
		to = int64(len(text))
	}
	if from < to {
		line += strings.Count(text[from:to], "\n")
	}
	return to, line
}
