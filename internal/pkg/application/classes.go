package application

import (
	"net/http"
	"strings"

	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/logging"
	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/repositories/database"
	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/repositories/models"
)

var classColumns = map[string]string{
	"name":        "name",
	"description": "description",
	"location":    "location",
	"building":    "building",
	"floor":       "floor",
	"area":        "area",
	"capacity":    "capacity",
	"status":      "status",
}

type classRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Location    string   `json:"location"`
	Building    string   `json:"building"`
	Floor       string   `json:"floor"`
	Area        *float64 `json:"area"`
	Capacity    *int     `json:"capacity"`
	Status      string   `json:"status"`
}

func newGetClassesHandler(log logging.Logger, db database.ClassStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		classes, err := db.GetClasses(r.Context())
		if err != nil {
			fail(w, log, err, "")
			return
		}

		writeOK(w, "", classes)
	}
}

func newGetClassHandler(log logging.Logger, db database.ClassStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			fail(w, log, err, "")
			return
		}

		class, err := db.GetClassFromID(r.Context(), id)
		if err != nil {
			fail(w, log, err, "Class")
			return
		}

		writeOK(w, "", class)
	}
}

func newCreateClassHandler(log logging.Logger, db database.ClassStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := classRequest{}
		if err := decodeBody(r, &req); err != nil {
			fail(w, log, err, "")
			return
		}

		if strings.TrimSpace(req.Name) == "" {
			fail(w, log, invalid("Name is required"), "")
			return
		}

		class := &models.Class{
			Name:        req.Name,
			Description: req.Description,
			Location:    req.Location,
			Building:    req.Building,
			Floor:       req.Floor,
			Area:        req.Area,
			Capacity:    req.Capacity,
			Status:      req.Status,
		}
		if class.Status == "" {
			class.Status = models.ClassStatusActive
		}

		class, err := db.CreateClass(r.Context(), class)
		if err != nil {
			fail(w, log, err, "")
			return
		}

		writeCreated(w, "Class created successfully", class)
	}
}

func newUpdateClassHandler(log logging.Logger, db database.ClassStore) http.HandlerFunc {
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

		class, err := db.UpdateClass(r.Context(), id, pick(body, classColumns))
		if err != nil {
			fail(w, log, err, "Class")
			return
		}

		writeOK(w, "Class updated successfully", class)
	}
}

func newDeleteClassHandler(log logging.Logger, db database.ClassStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			fail(w, log, err, "")
			return
		}

		if err = db.DeleteClass(r.Context(), id); err != nil {
			fail(w, log, err, "Class")
			return
		}

		writeOK(w, "Class deleted successfully", nil)
	}
}
