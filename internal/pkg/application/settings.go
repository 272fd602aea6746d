package application

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi"

	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/logging"
	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/repositories/database"
	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/repositories/models"
)

var userSettingColumns = map[string]string{
	"timezone":              "timezone",
	"language":              "language",
	"theme":                 "theme",
	"email_notifications":   "email_notifications",
	"sms_notifications":     "sms_notifications",
	"push_notifications":    "push_notifications",
	"alert_severity":        "alert_severity",
	"consumption_threshold": "consumption_threshold",
	"temperature_threshold": "temperature_threshold",
	"cost_threshold":        "cost_threshold",
	"two_factor":            "two_factor",
	"session_timeout":       "session_timeout",
	"auto_logout":           "auto_logout",
}

type settingRequest struct {
	Key      string          `json:"key"`
	Value    json.RawMessage `json:"value"`
	DataType string          `json:"dataType"`
}

//rawValue turns a JSON value into the text stored for a setting. Strings are unquoted,
//anything else is kept as its JSON text.
func rawValue(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	s := ""
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	return string(raw)
}

//checkSettingValue verifies that value can be read as dataType
func checkSettingValue(value, dataType string) error {
	switch dataType {
	case models.SettingTypeString:
		return nil
	case models.SettingTypeNumber:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return invalid("Value %q is not a number", value)
		}
	case models.SettingTypeBoolean:
		if value != "true" && value != "false" {
			return invalid("Value %q is not a boolean", value)
		}
	case models.SettingTypeJSON:
		if !json.Valid([]byte(value)) {
			return invalid("Value is not valid JSON")
		}
	default:
		return invalid("Invalid dataType. Must be: string, number, boolean, or json")
	}
	return nil
}

func newGetSettingsHandler(log logging.Logger, db database.SettingStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		settings, err := db.GetSettings(r.Context())
		if err != nil {
			fail(w, log, err, "")
			return
		}

		writeOK(w, "", settings)
	}
}

func newGetSettingHandler(log logging.Logger, db database.SettingStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setting, err := db.GetSetting(r.Context(), chi.URLParam(r, "key"))
		if err != nil {
			fail(w, log, err, "Setting")
			return
		}

		writeOK(w, "", setting)
	}
}

func newCreateSettingHandler(log logging.Logger, db database.SettingStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := settingRequest{}
		if err := decodeBody(r, &req); err != nil {
			fail(w, log, err, "")
			return
		}

		value := rawValue(req.Value)
		if strings.TrimSpace(req.Key) == "" || value == "" {
			fail(w, log, invalid("Missing required fields: key and value"), "")
			return
		}

		if req.DataType == "" {
			req.DataType = models.SettingTypeString
		}

		if err := checkSettingValue(value, req.DataType); err != nil {
			fail(w, log, err, "")
			return
		}

		setting, err := db.SaveSetting(r.Context(), &models.Setting{
			SettingKey:   req.Key,
			SettingValue: value,
			DataType:     req.DataType,
		})
		if err != nil {
			fail(w, log, err, "")
			return
		}

		writeCreated(w, "Setting saved successfully", setting)
	}
}

func newUpdateSettingHandler(log logging.Logger, db database.SettingStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")

		req := settingRequest{}
		if err := decodeBody(r, &req); err != nil {
			fail(w, log, err, "")
			return
		}

		value := rawValue(req.Value)
		if value == "" {
			fail(w, log, invalid("Missing required field: value"), "")
			return
		}

		existing, err := db.GetSetting(r.Context(), key)
		if err != nil {
			fail(w, log, err, "Setting")
			return
		}

		var setting *models.Setting

		if req.DataType != "" && req.DataType != existing.DataType {
			if err = checkSettingValue(value, req.DataType); err != nil {
				fail(w, log, err, "")
				return
			}
			setting, err = db.SaveSetting(r.Context(), &models.Setting{
				SettingKey:   key,
				SettingValue: value,
				DataType:     req.DataType,
			})
		} else {
			if err = checkSettingValue(value, existing.DataType); err != nil {
				fail(w, log, err, "")
				return
			}
			setting, err = db.UpdateSettingValue(r.Context(), key, value)
		}

		if err != nil {
			fail(w, log, err, "Setting")
			return
		}

		writeOK(w, "Setting updated successfully", setting)
	}
}

func newDeleteSettingHandler(log logging.Logger, db database.SettingStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.DeleteSetting(r.Context(), chi.URLParam(r, "key")); err != nil {
			fail(w, log, err, "Setting")
			return
		}

		writeOK(w, "Setting deleted successfully", nil)
	}
}

func newGetUserSettingsHandler(log logging.Logger, db database.SettingStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		settings, err := db.GetUserSettings(r.Context(), chi.URLParam(r, "userId"))
		if err != nil {
			fail(w, log, err, "User settings")
			return
		}

		writeOK(w, "", settings)
	}
}

func newUpdateUserSettingsHandler(log logging.Logger, db database.SettingStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{}
		if err := decodeBody(r, &body); err != nil {
			fail(w, log, err, "")
			return
		}

		fields := pick(body, userSettingColumns)
		if len(fields) == 0 {
			fail(w, log, invalid("No settings provided"), "")
			return
		}

		if severity, ok := fields["alert_severity"].(string); ok && !models.IsValidSeverity(severity) {
			fail(w, log, invalid("Invalid alert_severity. Must be: critical, high, medium, low, or info"), "")
			return
		}

		settings, err := db.SaveUserSettings(r.Context(), chi.URLParam(r, "userId"), fields)
		if err != nil {
			fail(w, log, err, "")
			return
		}

		writeOK(w, "User settings updated successfully", settings)
	}
}
