package application

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/application/ingestion"
	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/export"
	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/logging"
	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/repositories/database"
	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/repositories/models"
)

//Archiver stores generated reports somewhere outside the service
type Archiver interface {
	Archive(ctx context.Context, fileName string, content []byte) (string, error)
}

type dailyPoint struct {
	Hour        string   `json:"hour"`
	Power       float64  `json:"power"`
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
}

type hourlyPoint struct {
	Time  string   `json:"time"`
	AC    float64  `json:"ac"`
	Lamp  float64  `json:"lamp"`
	Other *float64 `json:"other,omitempty"`
}

func requireDate(r *http.Request, name, message string) (string, error) {
	date, err := dateQuery(r, name)
	if err == nil && date == "" {
		err = invalid("%s", message)
	}
	return date, err
}

func dateRange(r *http.Request) (string, string, error) {
	const message = "startDate and endDate query parameters are required (YYYY-MM-DD)"

	start, err := requireDate(r, "startDate", message)
	if err != nil {
		return "", "", err
	}

	end, err := requireDate(r, "endDate", message)
	if err != nil {
		return "", "", err
	}

	return start, end, nil
}

func newGetDeviceConsumptionHandler(log logging.Logger, db database.ConsumptionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deviceID, err := idParam(r, "deviceId")
		if err != nil {
			fail(w, log, err, "")
			return
		}

		date, err := requireDate(r, "date", "Date query parameter is required (YYYY-MM-DD)")
		if err != nil {
			fail(w, log, err, "")
			return
		}

		rows, err := db.GetDeviceConsumption(r.Context(), deviceID, date)
		if err != nil {
			fail(w, log, err, "")
			return
		}

		writeOK(w, "", rows)
	}
}

func newGetClassConsumptionHandler(log logging.Logger, db database.ConsumptionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		classID, err := idParam(r, "classId")
		if err != nil {
			fail(w, log, err, "")
			return
		}

		start, end, err := dateRange(r)
		if err != nil {
			fail(w, log, err, "")
			return
		}

		rows, err := db.GetClassConsumption(r.Context(), classID, start, end)
		if err != nil {
			fail(w, log, err, "")
			return
		}

		writeOK(w, "", rows)
	}
}

func newGetDailyConsumptionHandler(log logging.Logger, db database.ConsumptionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deviceID, err := idParam(r, "deviceId")
		if err != nil {
			fail(w, log, err, "")
			return
		}

		date, err := requireDate(r, "date", "Date query parameter is required (YYYY-MM-DD)")
		if err != nil {
			fail(w, log, err, "")
			return
		}

		rows, err := db.GetDeviceConsumption(r.Context(), deviceID, date)
		if err != nil {
			fail(w, log, err, "")
			return
		}

		points := make([]dailyPoint, 0, len(rows))
		for _, row := range rows {
			points = append(points, dailyPoint{
				Hour:        hourMinute(row.HourStart),
				Power:       row.Consumption,
				Temperature: row.Temperature,
				Humidity:    row.Humidity,
			})
		}

		writeOK(w, "", points)
	}
}

func hourMinute(t string) string {
	if len(t) >= 5 {
		return t[:5]
	}
	return t
}

//yearAndMonth accepts either year=YYYY&month=M or month=YYYY-MM
func yearAndMonth(r *http.Request) (int, int, error) {
	query := r.URL.Query()
	year, month := query.Get("year"), query.Get("month")

	if year == "" && strings.Contains(month, "-") {
		parts := strings.SplitN(month, "-", 2)
		year, month = parts[0], parts[1]
	}

	if year == "" || month == "" {
		return 0, 0, invalid("year and month query parameters are required (or month in YYYY-MM format)")
	}

	y, err := strconv.Atoi(year)
	if err != nil || y < 1 {
		return 0, 0, invalid("Invalid year: %s", year)
	}

	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return 0, 0, invalid("Invalid month: %s", month)
	}

	return y, m, nil
}

func newGetMonthlyConsumptionHandler(log logging.Logger, db database.ConsumptionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deviceID, err := idParam(r, "deviceId")
		if err != nil {
			fail(w, log, err, "")
			return
		}

		year, month, err := yearAndMonth(r)
		if err != nil {
			fail(w, log, err, "")
			return
		}

		days, err := db.GetMonthlyConsumption(r.Context(), deviceID, year, month)
		if err != nil {
			fail(w, log, err, "")
			return
		}

		writeOK(w, "", days)
	}
}

func newGetClassTotalsHandler(log logging.Logger, db database.ConsumptionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		classID, err := idParam(r, "classId")
		if err != nil {
			fail(w, log, err, "")
			return
		}

		start, end, err := dateRange(r)
		if err != nil {
			fail(w, log, err, "")
			return
		}

		totals, err := db.GetClassTotals(r.Context(), classID, start, end)
		if err != nil {
			fail(w, log, err, "")
			return
		}

		writeOK(w, "", totals)
	}
}

func newGetHourlyClassConsumptionHandler(log logging.Logger, db database.ConsumptionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		classID, err := idParam(r, "classId")
		if err != nil {
			fail(w, log, err, "")
			return
		}

		date, err := requireDate(r, "date", "date query parameter is required")
		if err != nil {
			fail(w, log, err, "")
			return
		}

		rows, err := db.GetHourlyClassConsumption(r.Context(), classID, date)
		if err != nil {
			fail(w, log, err, "")
			return
		}

		writeOK(w, "", hourlyByType(rows))
	}
}

//hourlyByType turns per hour and device type sums into one chart point per hour
func hourlyByType(rows []database.HourlyTypeTotal) []hourlyPoint {
	points := []hourlyPoint{}
	index := map[string]int{}

	for _, row := range rows {
		idx, ok := index[row.HourStart]
		if !ok {
			idx = len(points)
			index[row.HourStart] = idx
			points = append(points, hourlyPoint{Time: row.HourStart})
		}

		p := &points[idx]
		switch strings.ToUpper(row.DeviceType) {
		case models.DeviceTypeAC:
			p.AC += row.TotalConsumption
		case models.DeviceTypeLamp:
			p.Lamp += row.TotalConsumption
		default:
			other := row.TotalConsumption
			if p.Other != nil {
				other += *p.Other
			}
			p.Other = &other
		}
	}

	return points
}

func newIngestReadingHandler(log logging.Logger, svc *ingestion.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reading := ingestion.Reading{}
		if err := decodeBody(r, &reading); err != nil {
			fail(w, log, err, "")
			return
		}

		result, err := svc.Ingest(r.Context(), reading)
		if err != nil {
			fail(w, log, err, "Device")
			return
		}

		writeCreated(w, "Real-time consumption data recorded successfully", result)
	}
}

func newIngestBulkHandler(log logging.Logger, svc *ingestion.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := struct {
			Data            []json.RawMessage `json:"data"`
			ConsumptionData []json.RawMessage `json:"consumptionData"`
		}{}
		if err := decodeBody(r, &req); err != nil {
			fail(w, log, err, "")
			return
		}

		items := req.Data
		if len(items) == 0 {
			items = req.ConsumptionData
		}

		if len(items) == 0 {
			fail(w, log, invalid("Data must be a non-empty array"), "")
			return
		}

		result := svc.IngestBulk(r.Context(), items)

		message := fmt.Sprintf("Processed %d records", len(result.Results))
		if len(result.Errors) > 0 {
			message = fmt.Sprintf("%s, %d failed", message, len(result.Errors))
		}

		body := envelope{
			Success: len(result.Errors) == 0,
			Message: message,
			Data:    result.Results,
		}
		if len(result.Errors) > 0 {
			body.Errors = result.Errors
		}

		status := http.StatusCreated
		if len(result.Results) == 0 {
			status = http.StatusBadRequest
		}

		writeJSON(w, status, body)
	}
}

func newCreateHourlyConsumptionHandler(log logging.Logger, db database.Datastore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := struct {
			DeviceID        uint             `json:"device_id"`
			Consumption     ingestion.Number `json:"consumption"`
			ConsumptionDate string           `json:"consumption_date"`
			HourStart       string           `json:"hour_start"`
			HourEnd         string           `json:"hour_end"`
			Temperature     ingestion.Number `json:"temperature"`
			Humidity        ingestion.Number `json:"humidity"`
			Notes           string           `json:"notes"`
		}{}
		if err := decodeBody(r, &req); err != nil {
			fail(w, log, err, "")
			return
		}

		if req.DeviceID == 0 || !req.Consumption.Valid || req.ConsumptionDate == "" || req.HourStart == "" || req.HourEnd == "" {
			fail(w, log, invalid("device_id, consumption, consumption_date, hour_start, and hour_end are required"), "")
			return
		}

		if _, err := db.GetDeviceFromID(r.Context(), req.DeviceID); err != nil {
			fail(w, log, err, "Device")
			return
		}

		row, err := db.UpsertConsumption(r.Context(), &models.DeviceConsumption{
			DeviceID:        req.DeviceID,
			Consumption:     req.Consumption.Value,
			ConsumptionDate: req.ConsumptionDate,
			HourStart:       req.HourStart,
			HourEnd:         req.HourEnd,
			Temperature:     req.Temperature.Ptr(),
			Humidity:        req.Humidity.Ptr(),
			Notes:           req.Notes,
		}, false)
		if err != nil {
			fail(w, log, err, "")
			return
		}

		writeCreated(w, "Consumption data created successfully", row)
	}
}

func newDeleteConsumptionHandler(log logging.Logger, db database.ConsumptionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			fail(w, log, err, "")
			return
		}

		if err = db.DeleteConsumption(r.Context(), id); err != nil {
			fail(w, log, err, "Consumption record")
			return
		}

		writeOK(w, "Consumption data deleted successfully", nil)
	}
}

func classReport(r *http.Request, db database.Datastore) (export.ClassReport, error) {
	report := export.ClassReport{}

	classID, err := idParam(r, "classId")
	if err != nil {
		return report, err
	}

	report.StartDate, report.EndDate, err = dateRange(r)
	if err != nil {
		return report, err
	}

	class, err := db.GetClassFromID(r.Context(), classID)
	if err != nil {
		return report, err
	}
	report.ClassName = class.Name

	if report.Totals, err = db.GetClassTotals(r.Context(), classID, report.StartDate, report.EndDate); err != nil {
		return report, err
	}

	report.Readings, err = db.GetClassConsumption(r.Context(), classID, report.StartDate, report.EndDate)
	return report, err
}

func newExportClassConsumptionHandler(log logging.Logger, db database.Datastore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := classReport(r, db)
		if err != nil {
			fail(w, log, err, "Class")
			return
		}

		content, err := export.Workbook(report)
		if err != nil {
			fail(w, log, err, "")
			return
		}

		w.Header().Set("Content-Type", export.ContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.FileName()))
		w.WriteHeader(http.StatusOK)
		w.Write(content)
	}
}

func newArchiveClassConsumptionHandler(log logging.Logger, db database.Datastore, archiver Archiver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := classReport(r, db)
		if err != nil {
			fail(w, log, err, "Class")
			return
		}

		content, err := export.Workbook(report)
		if err != nil {
			fail(w, log, err, "")
			return
		}

		key, err := archiver.Archive(r.Context(), report.FileName(), content)
		if err != nil {
			fail(w, log, err, "")
			return
		}

		writeCreated(w, "Report archived successfully", map[string]string{"key": key})
	}
}
