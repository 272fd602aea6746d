package application

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi"

	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/application/ingestion"
	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/logging"
	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/repositories/database"
	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/repositories/models"
)

var deviceColumns = map[string]string{
	"class_id":          "class_id",
	"name":              "device_name",
	"device_name":       "device_name",
	"type":              "device_type",
	"device_type":       "device_type",
	"brand":             "brand",
	"model":             "model",
	"power_rating":      "power_rating",
	"efficiency_rating": "efficiency_rating",
	"installation_date": "installation_date",
	"warranty_expiry":   "warranty_expiry",
	"notes":             "notes",
	"device_eui":        "device_eui",
	"application_type":  "application_type",
	"location":          "location",
	"status":            "status",
	"iot_status":        "iot_status",
}

type deviceRequest struct {
	ClassID          uint     `json:"class_id"`
	Name             string   `json:"name"`
	DeviceName       string   `json:"device_name"`
	Type             string   `json:"type"`
	DeviceType       string   `json:"device_type"`
	Brand            string   `json:"brand"`
	Model            string   `json:"model"`
	PowerRating      float64  `json:"power_rating"`
	EfficiencyRating string   `json:"efficiency_rating"`
	InstallationDate *string  `json:"installation_date"`
	WarrantyExpiry   *string  `json:"warranty_expiry"`
	Notes            string   `json:"notes"`
	DeviceEUI        string   `json:"device_eui"`
	ApplicationType  string   `json:"application_type"`
	Location         string   `json:"location"`
	DeviceSecret     string   `json:"device_secret"`
	Status           string   `json:"status"`
	CurrentTemp      *float64 `json:"current_temperature"`
}

//deviceName and deviceType prefer the IoT field names over the legacy ones
func (req deviceRequest) deviceName() string {
	return firstNonBlank(req.DeviceName, req.Name)
}

func (req deviceRequest) deviceType() string {
	return firstNonBlank(req.DeviceType, req.Type)
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

//withTodaysConsumption attaches the hourly rows recorded today to every device
func withTodaysConsumption(ctx context.Context, db database.ConsumptionStore, loc *time.Location, devices []models.Device) error {
	ids := make([]uint, 0, len(devices))
	for _, d := range devices {
		ids = append(ids, d.ID)
	}

	rows, err := db.GetConsumptionForDevices(ctx, ids, time.Now().In(loc).Format(models.DateLayout))
	if err != nil {
		return err
	}

	byDevice := map[uint][]models.DeviceConsumption{}
	for _, row := range rows {
		byDevice[row.DeviceID] = append(byDevice[row.DeviceID], row)
	}

	for idx := range devices {
		devices[idx].Consumption = byDevice[devices[idx].ID]
		if devices[idx].Consumption == nil {
			devices[idx].Consumption = []models.DeviceConsumption{}
		}
	}

	return nil
}

type deviceLister func(r *http.Request) ([]models.Device, error)

func newListDevicesHandler(log logging.Logger, db database.Datastore, loc *time.Location, list deviceLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		devices, err := list(r)
		if err == nil {
			err = withTodaysConsumption(r.Context(), db, loc, devices)
		}
		if err != nil {
			fail(w, log, err, "")
			return
		}

		writeOK(w, "", devices)
	}
}

func newGetDevicesHandler(log logging.Logger, db database.Datastore, loc *time.Location) http.HandlerFunc {
	return newListDevicesHandler(log, db, loc, func(r *http.Request) ([]models.Device, error) {
		return db.GetDevices(r.Context())
	})
}

func newGetDevicesByClassHandler(log logging.Logger, db database.Datastore, loc *time.Location) http.HandlerFunc {
	return newListDevicesHandler(log, db, loc, func(r *http.Request) ([]models.Device, error) {
		classID, err := idParam(r, "classId")
		if err != nil {
			return nil, err
		}
		return db.GetDevicesByClass(r.Context(), classID)
	})
}

func newGetDevicesByTypeHandler(log logging.Logger, db database.DeviceStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		devices, err := db.GetDevicesByType(r.Context(), chi.URLParam(r, "type"))
		if err != nil {
			fail(w, log, err, "")
			return
		}

		writeOK(w, "", devices)
	}
}

type deviceFinder func(r *http.Request) (*models.Device, error)

func newFindDeviceHandler(log logging.Logger, db database.Datastore, loc *time.Location, find deviceFinder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		device, err := find(r)
		if err != nil {
			fail(w, log, err, "Device")
			return
		}

		devices := []models.Device{*device}
		if err = withTodaysConsumption(r.Context(), db, loc, devices); err != nil {
			fail(w, log, err, "")
			return
		}

		writeOK(w, "", devices[0])
	}
}

func newGetDeviceHandler(log logging.Logger, db database.Datastore, loc *time.Location) http.HandlerFunc {
	return newFindDeviceHandler(log, db, loc, func(r *http.Request) (*models.Device, error) {
		id, err := idParam(r, "id")
		if err != nil {
			return nil, err
		}
		return db.GetDeviceFromID(r.Context(), id)
	})
}

func newGetDeviceByEUIHandler(log logging.Logger, db database.Datastore, loc *time.Location) http.HandlerFunc {
	return newFindDeviceHandler(log, db, loc, func(r *http.Request) (*models.Device, error) {
		eui := chi.URLParam(r, "eui")
		device, err := db.GetDeviceFromEUI(r.Context(), eui)
		if err == database.ErrNotFound {
			return nil, &ingestion.NotFoundError{Reason: fmt.Sprintf("Device with EUI %s not found", eui)}
		}
		return device, err
	})
}

func newCreateDeviceHandler(log logging.Logger, db database.Datastore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := deviceRequest{}
		if err := decodeBody(r, &req); err != nil {
			fail(w, log, err, "")
			return
		}

		if req.ClassID == 0 || req.deviceName() == "" || req.deviceType() == "" || req.PowerRating == 0 {
			fail(w, log, invalid("class_id, name (or device_name), type (or device_type), and power_rating are required"), "")
			return
		}

		if _, err := db.GetClassFromID(r.Context(), req.ClassID); err != nil {
			fail(w, log, err, "Class")
			return
		}

		device := &models.Device{
			ClassID:          req.ClassID,
			DeviceName:       req.deviceName(),
			DeviceType:       req.deviceType(),
			Brand:            req.Brand,
			Model:            req.Model,
			PowerRating:      req.PowerRating,
			EfficiencyRating: req.EfficiencyRating,
			InstallationDate: req.InstallationDate,
			WarrantyExpiry:   req.WarrantyExpiry,
			Notes:            req.Notes,
			ApplicationType:  req.ApplicationType,
			Location:         req.Location,
			DeviceSecret:     req.DeviceSecret,
			Status:           req.Status,
			CurrentTemp:      req.CurrentTemp,
		}
		if eui := strings.TrimSpace(req.DeviceEUI); eui != "" {
			device.DeviceEUI = &eui
		}
		if device.Status == "" {
			device.Status = models.DeviceStatusActive
		} else if !models.IsValidDeviceStatus(device.Status) {
			fail(w, log, invalidDeviceStatus(), "")
			return
		}

		device, err := db.CreateDevice(r.Context(), device)
		if err != nil {
			fail(w, log, err, "")
			return
		}

		writeCreated(w, "Device created successfully", device)
	}
}

func newUpdateDeviceHandler(log logging.Logger, db database.Datastore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			fail(w, log, err, "")
			return
		}

		body := map[string]interface{}{}
		if err = decodeBody(r, &body); err != nil {
			fail(w, log, err, "")
			return
		}

		// the IoT field names win when a client sends both
		for legacy, iot := range map[string]string{"name": "device_name", "type": "device_type"} {
			if _, ok := body[iot]; ok {
				delete(body, legacy)
			}
		}

		fields := pick(body, deviceColumns)

		if eui, ok := fields["device_eui"].(string); ok && strings.TrimSpace(eui) == "" {
			fields["device_eui"] = nil
		}

		if status, ok := fields["status"]; ok {
			if s, isString := status.(string); !isString || !models.IsValidDeviceStatus(s) {
				fail(w, log, invalidDeviceStatus(), "")
				return
			}
		}

		if classID, ok := fields["class_id"].(float64); ok {
			if _, err = db.GetClassFromID(r.Context(), uint(classID)); err != nil {
				fail(w, log, err, "Class")
				return
			}
		}

		device, err := db.UpdateDevice(r.Context(), id, fields)
		if err != nil {
			fail(w, log, err, "Device")
			return
		}

		writeOK(w, "Device updated successfully", device)
	}
}

func invalidDeviceStatus() error {
	return invalid("Invalid status. Must be: active, idle, offline, or maintenance")
}

func newUpdateDeviceStatusHandler(log logging.Logger, db database.DeviceStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			fail(w, log, err, "")
			return
		}

		req := struct {
			Status string `json:"status"`
		}{}
		if err = decodeBody(r, &req); err != nil {
			fail(w, log, err, "")
			return
		}

		if !models.IsValidDeviceStatus(req.Status) {
			fail(w, log, invalidDeviceStatus(), "")
			return
		}

		if _, err = db.UpdateDevice(r.Context(), id, map[string]interface{}{"status": req.Status}); err != nil {
			fail(w, log, err, "Device")
			return
		}

		writeOK(w, "Device status updated successfully", map[string]interface{}{"id": id, "status": req.Status})
	}
}

func newUpdateDeviceReadingHandler(log logging.Logger, db database.DeviceStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			fail(w, log, err, "")
			return
		}

		req := struct {
			Power       ingestion.Number `json:"power"`
			Temperature ingestion.Number `json:"temperature"`
		}{}
		if err = decodeBody(r, &req); err != nil {
			fail(w, log, err, "")
			return
		}

		if !req.Power.Valid {
			fail(w, log, invalid("Power reading is required"), "")
			return
		}

		if _, err = db.GetDeviceFromID(r.Context(), id); err != nil {
			fail(w, log, err, "Device")
			return
		}

		err = db.UpdateDeviceReading(r.Context(), id, req.Power.Value, req.Temperature.Ptr(), time.Now())
		if err != nil {
			fail(w, log, err, "Device")
			return
		}

		writeOK(w, "Device reading updated successfully", nil)
	}
}

func newDeleteDeviceHandler(log logging.Logger, db database.DeviceStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			fail(w, log, err, "")
			return
		}

		if err = db.DeleteDevice(r.Context(), id); err != nil {
			fail(w, log, err, "Device")
			return
		}

		writeOK(w, "Device deleted successfully", nil)
	}
}
