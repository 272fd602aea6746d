package application

import (
	"context"
	"net/http"
	"time"

	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/logging"
)

//Pinger reports whether a backing service is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

type healthStatus struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Message   string `json:"message"`
	Database  string `json:"database"`
}

//newHealthHandler reports liveness. It answers 200 even when the database is down
//and reports the database state in the body instead.
func newHealthHandler(log logging.Logger, db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := healthStatus{
			Status:    "OK",
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Message:   "Energy Dashboard API is running",
			Database:  "up",
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			log.Warnf("health check could not reach the database: %s", err.Error())
			status.Database = "down"
		}

		writeJSON(w, http.StatusOK, status)
	}
}
