package application

import (
	"net/http"
	"strconv"
	"time"

	"gorm.io/datatypes"

	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/logging"
	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/repositories/database"
	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/repositories/models"
)

func alertFilter(r *http.Request) (database.AlertFilter, error) {
	query := r.URL.Query()

	filter := database.AlertFilter{
		Type:     query.Get("type"),
		Severity: query.Get("severity"),
		Status:   query.Get("status"),
	}

	if raw := query.Get("readStatus"); raw != "" {
		read, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, invalid("readStatus must be true or false")
		}
		filter.ReadStatus = &read
	}

	return filter, nil
}

func newGetAlertsHandler(log logging.Logger, db database.AlertStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := alertFilter(r)
		if err != nil {
			fail(w, log, err, "")
			return
		}

		alerts, err := db.GetAlerts(r.Context(), filter)
		if err != nil {
			fail(w, log, err, "")
			return
		}

		writeOK(w, "", alerts)
	}
}

func newGetAlertHandler(log logging.Logger, db database.AlertStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			fail(w, log, err, "")
			return
		}

		alert, err := db.GetAlertFromID(r.Context(), id)
		if err != nil {
			fail(w, log, err, "Alert")
			return
		}

		writeOK(w, "", alert)
	}
}

func newGetAlertsByDeviceHandler(log logging.Logger, db database.AlertStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deviceID, err := idParam(r, "deviceId")
		if err != nil {
			fail(w, log, err, "")
			return
		}

		alerts, err := db.GetAlertsByDevice(r.Context(), deviceID)
		if err != nil {
			fail(w, log, err, "")
			return
		}

		writeOK(w, "", alerts)
	}
}

func newGetAlertsByClassHandler(log logging.Logger, db database.AlertStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		classID, err := idParam(r, "classId")
		if err != nil {
			fail(w, log, err, "")
			return
		}

		alerts, err := db.GetAlertsByClass(r.Context(), classID)
		if err != nil {
			fail(w, log, err, "")
			return
		}

		writeOK(w, "", alerts)
	}
}

func newCreateAlertHandler(log logging.Logger, db database.Datastore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := struct {
			DeviceID *uint          `json:"device_id"`
			ClassID  *uint          `json:"class_id"`
			Type     string         `json:"type"`
			Title    string         `json:"title"`
			Message  string         `json:"message"`
			Severity string         `json:"severity"`
			Metadata datatypes.JSON `json:"metadata"`
		}{}
		if err := decodeBody(r, &req); err != nil {
			fail(w, log, err, "")
			return
		}

		if req.Type == "" || req.Title == "" || req.Message == "" || req.Severity == "" {
			fail(w, log, invalid("type, title, message, and severity are required"), "")
			return
		}

		if !models.IsValidSeverity(req.Severity) {
			fail(w, log, invalid("Invalid severity. Must be: critical, high, medium, low, or info"), "")
			return
		}

		if req.DeviceID != nil {
			if _, err := db.GetDeviceFromID(r.Context(), *req.DeviceID); err != nil {
				fail(w, log, err, "Device")
				return
			}
		}

		if req.ClassID != nil {
			if _, err := db.GetClassFromID(r.Context(), *req.ClassID); err != nil {
				fail(w, log, err, "Class")
				return
			}
		}

		if string(req.Metadata) == "null" {
			req.Metadata = nil
		}

		alert, err := db.CreateAlert(r.Context(), &models.Alert{
			DeviceID: req.DeviceID,
			ClassID:  req.ClassID,
			Type:     req.Type,
			Title:    req.Title,
			Message:  req.Message,
			Severity: req.Severity,
			Status:   models.AlertStatusActive,
			Metadata: req.Metadata,
		})
		if err != nil {
			fail(w, log, err, "")
			return
		}

		writeCreated(w, "Alert created successfully", alert)
	}
}

func newUpdateAlertHandler(log logging.Logger, db database.AlertStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			fail(w, log, err, "")
			return
		}

		req := struct {
			Status     *string `json:"status"`
			ReadStatus *bool   `json:"read_status"`
			Message    *string `json:"message"`
		}{}
		if err = decodeBody(r, &req); err != nil {
			fail(w, log, err, "")
			return
		}

		fields := map[string]interface{}{}
		if req.Status != nil {
			fields["status"] = *req.Status
			if *req.Status == models.AlertStatusResolved {
				fields["resolved_at"] = time.Now()
			} else {
				fields["resolved_at"] = nil
			}
		}
		if req.ReadStatus != nil {
			fields["read_status"] = *req.ReadStatus
		}
		if req.Message != nil {
			fields["message"] = *req.Message
		}

		alert, err := db.UpdateAlert(r.Context(), id, fields)
		if err != nil {
			fail(w, log, err, "Alert")
			return
		}

		writeOK(w, "Alert updated successfully", alert)
	}
}

func newMarkAlertAsReadHandler(log logging.Logger, db database.AlertStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			fail(w, log, err, "")
			return
		}

		if err = db.MarkAlertAsRead(r.Context(), id); err != nil {
			fail(w, log, err, "Alert")
			return
		}

		writeOK(w, "Alert marked as read", nil)
	}
}

func newMarkAllAlertsAsReadHandler(log logging.Logger, db database.AlertStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := database.AlertFilter{
			Type:     r.URL.Query().Get("type"),
			Severity: r.URL.Query().Get("severity"),
		}

		updated, err := db.MarkAllAlertsAsRead(r.Context(), filter)
		if err != nil {
			fail(w, log, err, "")
			return
		}

		writeOK(w, "All alerts marked as read", map[string]int64{"updated": updated})
	}
}

func newCountUnreadAlertsHandler(log logging.Logger, db database.AlertStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := db.CountUnreadAlerts(r.Context())
		if err != nil {
			fail(w, log, err, "")
			return
		}

		writeOK(w, "", map[string]int64{"unreadCount": count})
	}
}

func newGetAlertSummaryHandler(log logging.Logger, db database.AlertStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := db.GetAlertSummary(r.Context())
		if err != nil {
			fail(w, log, err, "")
			return
		}

		writeOK(w, "", summary)
	}
}

func newDeleteAlertHandler(log logging.Logger, db database.AlertStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			fail(w, log, err, "")
			return
		}

		if err = db.DeleteAlert(r.Context(), id); err != nil {
			fail(w, log, err, "Alert")
			return
		}

		writeOK(w, "Alert deleted successfully", nil)
	}
}
