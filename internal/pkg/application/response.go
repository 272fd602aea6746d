package application

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"

	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/application/ingestion"
	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/logging"
	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/repositories/database"
	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/repositories/models"
)

//envelope is the body of every API response
type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Errors  interface{} `json:"errors,omitempty"`
}

type validationError struct {
	reason string
}

func (e *validationError) Error() string {
	return e.reason
}

func invalid(format string, args ...interface{}) error {
	return &validationError{reason: fmt.Sprintf(format, args...)}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeOK(w http.ResponseWriter, message string, data interface{}) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: message, Data: data})
}

func writeCreated(w http.ResponseWriter, message string, data interface{}) {
	writeJSON(w, http.StatusCreated, envelope{Success: true, Message: message, Data: data})
}

//fail maps err to a status code and writes it as an unsuccessful envelope. A bare
//database.ErrNotFound is reported as "<what> not found".
func fail(w http.ResponseWriter, log logging.Logger, err error, what string) {
	status := http.StatusInternalServerError
	message := err.Error()

	var ve *validationError
	var ive *ingestion.ValidationError

	switch {
	case errors.As(err, &ve), errors.As(err, &ive):
		status = http.StatusBadRequest
	case errors.Is(err, database.ErrNotFound):
		status = http.StatusNotFound
		if err == database.ErrNotFound && what != "" {
			message = what + " not found"
		}
	default:
		log.Errorf("request failed: %s", message)
	}

	writeJSON(w, status, envelope{Success: false, Message: message})
}

//decodeBody reads a JSON request body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v interface{}) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return invalid("Invalid request body: %s", err.Error())
}

func idParam(r *http.Request, name string) (uint, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, invalid("Invalid %s: %s", name, raw)
	}
	return uint(id), nil
}

func dateQuery(r *http.Request, name string) (string, error) {
	value := r.URL.Query().Get(name)
	if value == "" {
		return "", nil
	}
	if _, err := time.Parse(models.DateLayout, value); err != nil {
		return "", invalid("%s must be a date formatted as YYYY-MM-DD", name)
	}
	return value, nil
}

//pick copies the listed keys of a decoded JSON object, renaming them to their column names
func pick(body map[string]interface{}, columns map[string]string) map[string]interface{} {
	fields := map[string]interface{}{}
	for key, value := range body {
		if column, ok := columns[key]; ok {
			fields[column] = value
		}
	}
	return fields
}
