package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/repositories/database"
)

//ContentType is the media type of the generated workbooks
const ContentType string = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

//Sheet names used in the class report
const (
	SheetTotals   = "Totals"
	SheetReadings = "Readings"
)

var totalsHeader = []interface{}{
	"Device ID", "Device", "Type", "Total (kWh)", "Average (kWh)", "Peak (kWh)", "Readings",
}

var readingsHeader = []interface{}{
	"Date", "Hour start", "Hour end", "Device", "Type", "Consumption (kWh)", "Temperature", "Humidity", "Notes",
}

//ClassReport is the data that goes into a spreadsheet report for one class
type ClassReport struct {
	ClassName string
	StartDate string
	EndDate   string
	Totals    []database.DeviceTotal
	Readings  []database.ClassConsumption
}

//FileName returns a file name describing the report
func (r ClassReport) FileName() string {
	return fmt.Sprintf("%s_%s_%s.xlsx", slug(r.ClassName), r.StartDate, r.EndDate)
}

//Workbook renders the report as an xlsx workbook with a totals sheet and a sheet of raw hourly readings
func Workbook(r ClassReport) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetTotals); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}

	if _, err := f.NewSheet(SheetReadings); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	rows := [][]interface{}{totalsHeader}
	for _, t := range r.Totals {
		rows = append(rows, []interface{}{
			t.ID, t.DeviceName, t.DeviceType, t.TotalConsumption, t.AvgConsumption, t.PeakConsumption, t.ReadingsCount,
		})
	}
	if err := writeRows(f, SheetTotals, rows, headerStyle); err != nil {
		return nil, err
	}

	rows = [][]interface{}{readingsHeader}
	for _, c := range r.Readings {
		rows = append(rows, []interface{}{
			c.ConsumptionDate, c.HourStart, c.HourEnd, c.DeviceName, c.DeviceType,
			c.Consumption, optional(c.Temperature), optional(c.Humidity), c.Notes,
		})
	}
	if err := writeRows(f, SheetReadings, rows, headerStyle); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}, headerStyle int) error {
	for idx, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, idx+1)
		if err != nil {
			return err
		}

		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", idx+1, sheet, err)
		}
	}

	last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
	if err != nil {
		return err
	}

	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to style header of %s: %w", sheet, err)
	}

	return f.SetColWidth(sheet, "A", "I", 16)
}

func optional(f *float64) interface{} {
	if f == nil {
		return ""
	}
	return *f
}

func slug(name string) string {
	b := bytes.Buffer{}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	if b.Len() == 0 {
		return "class"
	}
	return b.String()
}
