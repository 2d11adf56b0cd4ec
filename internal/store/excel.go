package store

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/frd21313123123/auto-reg/pkg/types"
)

// statusFills mirrors the account-list status colors.
var statusFills = map[string]string{
	types.StatusNotRegistered:   "FFFFFF",
	types.StatusRegistered:      "D9E1F2",
	types.StatusPlus:            "46BDC6",
	types.StatusBanned:          "FECACA",
	types.StatusInvalidPassword: "E9D5FF",
}

// ExportExcel writes the account list to an xlsx file: a combined
// login/password column plus separate columns, one status-colored row per
// account.
func ExportExcel(path string, accounts []types.Account) error {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	const sheet = "Sheet1"
	f.SetSheetName("Sheet1", sheet) //nolint:errcheck

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"4CAF50"}},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	headers := []string{"Login/Password", "Login", "Password", "Status"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h) //nolint:errcheck
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(headers), 1)
	f.SetCellStyle(sheet, "A1", lastHeader, headerStyle) //nolint:errcheck

	f.SetColWidth(sheet, "A", "A", 50) //nolint:errcheck
	f.SetColWidth(sheet, "B", "B", 35) //nolint:errcheck
	f.SetColWidth(sheet, "C", "D", 20) //nolint:errcheck

	for row, acc := range accounts {
		status := acc.Status
		if status == "" {
			status = types.StatusNotRegistered
		}
		fill, ok := statusFills[status]
		if !ok {
			fill = statusFills[types.StatusNotRegistered]
		}
		rowStyle, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{fill}},
		})
		if err != nil {
			return fmt.Errorf("failed to create row style: %w", err)
		}

		values := []interface{}{
			fmt.Sprintf("%s / %s", acc.Email, acc.Password),
			acc.Email,
			acc.Password,
			status,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v) //nolint:errcheck
		}
		first, _ := excelize.CoordinatesToCellName(1, row+2)
		last, _ := excelize.CoordinatesToCellName(len(values), row+2)
		f.SetCellStyle(sheet, first, last, rowStyle) //nolint:errcheck
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}
