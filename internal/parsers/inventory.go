package parsers

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/AnjaniMalhotra/auto-restock-agent/internal/models"
)

// ErrInvalidInput marks validation failures in an uploaded inventory file.
// These are fatal: nothing downstream runs on a file that failed validation.
var ErrInvalidInput = errors.New("invalid inventory file")

// Required columns, matched by exact name against the header row.
var requiredColumns = []string{"Item", "Quantity", "Threshold", "Unit_Cost"}

// ParseFile dispatches on the uploaded filename's extension.
func ParseFile(filename string, r io.Reader) ([]models.InventoryRow, error) {
	switch {
	case strings.HasSuffix(strings.ToLower(filename), ".csv"):
		return ParseCSV(r)
	case strings.HasSuffix(strings.ToLower(filename), ".xlsx"):
		return ParseXLSX(r)
	default:
		return nil, fmt.Errorf("%w: unsupported file type %q (need .csv or .xlsx)", ErrInvalidInput, filename)
	}
}

// ParseCSV reads an inventory CSV. Excel on Windows likes to prepend a
// UTF-8 BOM, so that is stripped before the header is read.
func ParseCSV(r io.Reader) ([]models.InventoryRow, error) {
	reader := csv.NewReader(skipBOM(r))
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	return rowsFromRecords(records)
}

// ParseXLSX reads the first sheet of an inventory workbook under the same
// column rules as CSV.
func ParseXLSX(r io.Reader) ([]models.InventoryRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrInvalidInput)
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	return rowsFromRecords(records)
}

func rowsFromRecords(records [][]string) ([]models.InventoryRow, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: file is empty", ErrInvalidInput)
	}

	colIndex, err := columnIndex(records[0])
	if err != nil {
		return nil, err
	}

	get := func(rec []string, col string) string {
		idx := colIndex[col]
		if idx < len(rec) {
			return strings.TrimSpace(rec[idx])
		}
		return ""
	}

	var rows []models.InventoryRow
	seen := make(map[string]bool)

	for i, rec := range records[1:] {
		line := i + 2 // 1-based, after the header

		if isBlank(rec) {
			continue
		}

		item := get(rec, "Item")
		if item == "" {
			return nil, fmt.Errorf("%w: line %d: empty Item", ErrInvalidInput, line)
		}
		if seen[item] {
			return nil, fmt.Errorf("%w: line %d: duplicate item %q", ErrInvalidInput, line, item)
		}
		seen[item] = true

		quantity, err := parseCount(get(rec, "Quantity"))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: Quantity: %v", ErrInvalidInput, line, err)
		}
		threshold, err := parseCount(get(rec, "Threshold"))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: Threshold: %v", ErrInvalidInput, line, err)
		}

		unitCost, err := decimal.NewFromString(get(rec, "Unit_Cost"))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: Unit_Cost: %v", ErrInvalidInput, line, err)
		}
		if unitCost.IsNegative() {
			return nil, fmt.Errorf("%w: line %d: Unit_Cost must not be negative", ErrInvalidInput, line)
		}

		rows = append(rows, models.InventoryRow{
			Item:      item,
			Quantity:  quantity,
			Threshold: threshold,
			UnitCost:  unitCost,
		})
	}

	return rows, nil
}

func columnIndex(header []string) (map[string]int, error) {
	colIndex := make(map[string]int)
	for i, name := range header {
		colIndex[strings.TrimSpace(name)] = i
	}
	for _, req := range requiredColumns {
		if _, ok := colIndex[req]; !ok {
			return nil, fmt.Errorf("%w: missing required column %q", ErrInvalidInput, req)
		}
	}
	return colIndex, nil
}

func parseCount(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	if n < 0 {
		return 0, fmt.Errorf("must not be negative: %d", n)
	}
	return n, nil
}

func isBlank(rec []string) bool {
	for _, cell := range rec {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// skipBOM strips a leading UTF-8 byte order mark.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	peeked, err := br.Peek(3)
	if err == nil && peeked[0] == 0xEF && peeked[1] == 0xBB && peeked[2] == 0xBF {
		br.Discard(3)
	}
	return br
}
