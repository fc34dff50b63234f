package input

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/company-qualifier/internal/model"
)

func readXLSX(path, sheetName string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "input: open xlsx")
	}

	sheet, err := getSheet(f, sheetName)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		if row == nil {
			continue
		}
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

func getSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name != "" {
		sheet, ok := f.Sheet[name]
		if !ok {
			return nil, eris.Errorf("input: sheet %q not found", name)
		}
		return sheet, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("input: workbook has no sheets")
	}
	return f.Sheets[0], nil
}

// outcomeHeader is the header row written by WriteOutcomesXLSX.
var outcomeHeader = []string{
	"Org Number", "Status", "Match", "Score", "Confidence", "Reason",
	"Matched Keywords", "Unmatched Keywords", "Processing Time (s)", "Error",
}

// WriteOutcomesXLSX saves outcomes as a single-sheet workbook at path.
func WriteOutcomesXLSX(path string, outcomes []model.BatchItemOutcome) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Results")
	if err != nil {
		return eris.Wrap(err, "input: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range outcomeHeader {
		header.AddCell().SetString(h)
	}

	for _, o := range outcomes {
		row := sheet.AddRow()
		row.AddCell().SetString(o.OrgNumber)
		row.AddCell().SetString(string(o.Status))
		match := row.AddCell()
		if o.IsMatch != nil {
			match.SetBool(*o.IsMatch)
		}
		score := row.AddCell()
		if o.MatchScore != nil {
			score.SetInt(*o.MatchScore)
		}
		conf := row.AddCell()
		if o.Confidence != nil {
			conf.SetFloat(*o.Confidence)
		}
		row.AddCell().SetString(o.Reason)
		row.AddCell().SetString(strings.Join(o.MatchedKeywords, ", "))
		row.AddCell().SetString(strings.Join(o.UnmatchedKeywords, ", "))
		row.AddCell().SetFloat(o.ProcessingTimeSeconds)
		errCell := row.AddCell()
		if o.Error != nil {
			errCell.SetString(*o.Error)
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "input: save %s", path)
	}
	return nil
}
