// Package input reads org-number lists for batch runs from XLSX, CSV and
// plain-text files and writes batch outcomes back to XLSX.
package input

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/company-qualifier/internal/company"
)

// headerNames are the lower-cased column headers recognised as holding org
// numbers.
var headerNames = []string{"orgnumber", "org_number", "orgnr", "organisationsnummer", "organization_number", "org"}

// Options selects where org numbers are read from.
type Options struct {
	// Column is the header of the org-number column. When empty a known
	// header is looked up and the first column is used otherwise.
	Column string
	// Sheet names the XLSX sheet; the first sheet is used when empty.
	Sheet string
	// Dedupe drops repeated org numbers, keeping the first.
	Dedupe bool
}

// ReadOrgNumbers reads org numbers from path. The format follows the file
// extension: .xlsx, .csv, anything else is one org number per line.
func ReadOrgNumbers(path string, opts Options) ([]string, error) {
	var rows [][]string
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err = readXLSX(path, opts.Sheet)
	case ".csv":
		rows, err = readCSVFile(path)
	default:
		rows, err = readLinesFile(path)
	}
	if err != nil {
		return nil, err
	}
	return pick(rows, opts)
}

// pick extracts the org-number column from rows. A first row whose cells
// match a known header is treated as the header row.
func pick(rows [][]string, opts Options) ([]string, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	col, hasHeader := findColumn(rows[0], opts.Column)
	if col < 0 {
		return nil, eris.Errorf("input: column %q not found", opts.Column)
	}
	if hasHeader {
		rows = rows[1:]
	}

	out := make([]string, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		if col >= len(row) {
			continue
		}
		org := company.NormalizeOrgNumber(row[col])
		if org == "" || strings.HasPrefix(org, "#") {
			continue
		}
		if opts.Dedupe {
			if seen[org] {
				continue
			}
			seen[org] = true
		}
		out = append(out, org)
	}
	return out, nil
}

// findColumn returns the column index and whether header is a header row.
func findColumn(header []string, want string) (int, bool) {
	if want != "" {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), want) {
				return i, true
			}
		}
		return -1, false
	}
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		for _, known := range headerNames {
			if name == known {
				return i, true
			}
		}
	}
	return 0, false
}

func readCSVFile(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "input: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return readCSV(f)
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "input: parse csv")
	}
	return rows, nil
}

func readLinesFile(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "input: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return readLines(f)
}

func readLines(r io.Reader) ([][]string, error) {
	var rows [][]string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		rows = append(rows, []string{sc.Text()})
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "input: read lines")
	}
	return rows, nil
}
