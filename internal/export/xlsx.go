package export

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"claimflow/internal/domain"
)

// SheetName is the worksheet the XLSX export writes to.
const SheetName = "Claim Runs"

// XLSXWriter builds a workbook with one row per run.
type XLSXWriter struct {
	file *excelize.File
	row  int
}

// NewXLSXWriter creates an empty workbook.
func NewXLSXWriter() (*XLSXWriter, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		_ = f.Close()
		return nil, eris.Wrap(err, "export: name worksheet")
	}
	return &XLSXWriter{file: f, row: 1}, nil
}

// WriteHeader writes the header row and freezes it.
func (x *XLSXWriter) WriteHeader() error {
	if err := x.writeRow(columns); err != nil {
		return err
	}
	return x.file.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// WriteRuns appends one row per run.
func (x *XLSXWriter) WriteRuns(runs []domain.ClaimRun) error {
	for i := range runs {
		if err := x.writeRow(runToRow(&runs[i])); err != nil {
			return err
		}
	}
	return nil
}

func (x *XLSXWriter) writeRow(values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, x.row)
	if err != nil {
		return eris.Wrap(err, "export: cell name")
	}
	row := make([]any, len(values))
	for i, v := range values {
		row[i] = v
	}
	if err := x.file.SetSheetRow(SheetName, cell, &row); err != nil {
		return eris.Wrapf(err, "export: write row %d", x.row)
	}
	x.row++
	return nil
}

// WriteTo writes the workbook to w.
func (x *XLSXWriter) WriteTo(w io.Writer) (int64, error) {
	n, err := x.file.WriteTo(w)
	if err != nil {
		return n, eris.Wrap(err, "export: write workbook")
	}
	return n, nil
}

// Close releases the workbook.
func (x *XLSXWriter) Close() error {
	return x.file.Close()
}
