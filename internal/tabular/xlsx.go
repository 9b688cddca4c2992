package tabular

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Sheet is one worksheet to write: a header row then data rows.
type Sheet struct {
	Name    string
	Headers []string
	Rows    [][]string
}

func readXLSX(path string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("xlsx: %s has no sheets", path)
	}

	sheet := f.Sheets[0]
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		if row == nil {
			continue
		}
		rows = append(rows, rowToStrings(row))
	}
	return rows, nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		if cell == nil {
			continue
		}
		cells[j] = cell.String()
	}
	return cells
}

// WriteWorkbook writes sheets, in order, to a new xlsx file at path.
func WriteWorkbook(path string, sheets []Sheet) error {
	if len(sheets) == 0 {
		return eris.New("xlsx: no sheets to write")
	}
	f := xlsx.NewFile()
	for _, s := range sheets {
		sheet, err := f.AddSheet(s.Name)
		if err != nil {
			return eris.Wrapf(err, "xlsx: add sheet %q", s.Name)
		}
		writeRow(sheet, s.Headers)
		for _, r := range s.Rows {
			writeRow(sheet, r)
		}
	}
	return eris.Wrapf(f.Save(path), "xlsx: save %s", path)
}

func writeRow(sheet *xlsx.Sheet, cells []string) {
	row := sheet.AddRow()
	for _, c := range cells {
		row.AddCell().SetString(c)
	}
}
