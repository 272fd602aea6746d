package application

import (
	"compress/flate"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/rs/cors"

	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/application/ingestion"
	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/cache"
	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/config"
	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/logging"
	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/repositories/database"
)

//Services bundles everything the request handlers depend on. LiveFeed, Cache and
//Archiver are optional and the routes using them are left out when they are nil.
type Services struct {
	DB        database.Datastore
	Ingestion *ingestion.Service
	Location  *time.Location
	LiveFeed  http.Handler
	Cache     cache.KV
	CacheTTL  time.Duration
	Archiver  Archiver
}

//RequestRouter wraps the chi router that serves the energy dashboard API
type RequestRouter struct {
	impl *chi.Mux
}

//Get accepts a pattern that should be routed to the handlerFn on a GET request
func (router *RequestRouter) Get(pattern string, handlerFn http.HandlerFunc) {
	router.impl.Get(pattern, handlerFn)
}

//ServeHTTP lets the router act as an http.Handler
func (router *RequestRouter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	router.impl.ServeHTTP(w, r)
}

func routeNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, envelope{Success: false, Message: "Route not found"})
}

func allowedOrigins(frontendURL string) []string {
	origins := []string{}
	for _, origin := range strings.Split(frontendURL, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		origins = append(origins, "*")
	}
	return origins
}

func newRequestRouter(log logging.Logger, cfg config.Service) *RequestRouter {
	router := &RequestRouter{impl: chi.NewRouter()}

	router.impl.Use(cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg.FrontendURL),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		Debug:            false,
	}).Handler)

	router.impl.Use(middleware.RequestID)
	router.impl.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: log, NoColor: true}))
	router.impl.Use(middleware.Recoverer)

	router.impl.NotFound(routeNotFound)
	router.impl.MethodNotAllowed(routeNotFound)

	return router
}

func createRequestRouter(log logging.Logger, cfg config.Service, svc Services) *RequestRouter {
	router := newRequestRouter(log, cfg)
	db := svc.DB

	loc := svc.Location
	if loc == nil {
		loc = time.UTC
	}

	// responses of the aggregate endpoints are cached when a cache is configured
	aggregates := chi.Middlewares{}
	writes := chi.Middlewares{}
	if svc.Cache != nil {
		aggregates = append(aggregates, cache.Responses(svc.Cache, svc.CacheTTL, log))
		writes = append(writes, cache.Invalidate(svc.Cache, log))
	}

	router.Get("/health", newHealthHandler(log, db))

	prefix := "/" + strings.Trim(cfg.APIPrefix, "/")

	router.impl.Route(prefix, func(r chi.Router) {
		// websocket upgrades need the plain response writer and must bypass the compressor
		if svc.LiveFeed != nil {
			r.Handle("/ws/readings", svc.LiveFeed)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.NewCompressor(flate.DefaultCompression, "application/json").Handler)
			r.Use(writes...)

			r.Route("/classes", func(r chi.Router) {
				r.Get("/", newGetClassesHandler(log, db))
				r.Post("/", newCreateClassHandler(log, db))
				r.Get("/{id}", newGetClassHandler(log, db))
				r.Put("/{id}", newUpdateClassHandler(log, db))
				r.Delete("/{id}", newDeleteClassHandler(log, db))
			})

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", newGetDevicesHandler(log, db, loc))
				r.Post("/", newCreateDeviceHandler(log, db))
				r.Get("/class/{classId}", newGetDevicesByClassHandler(log, db, loc))
				r.Get("/type/{type}", newGetDevicesByTypeHandler(log, db))
				r.Get("/eui/{eui}", newGetDeviceByEUIHandler(log, db, loc))
				r.Get("/{id}", newGetDeviceHandler(log, db, loc))
				r.Put("/{id}", newUpdateDeviceHandler(log, db))
				r.Patch("/{id}/status", newUpdateDeviceStatusHandler(log, db))
				r.Patch("/{id}/reading", newUpdateDeviceReadingHandler(log, db))
				r.Delete("/{id}", newDeleteDeviceHandler(log, db))
			})

			r.Route("/consumption", func(r chi.Router) {
				r.Get("/device/{deviceId}", newGetDeviceConsumptionHandler(log, db))
				r.Get("/class/{classId}", newGetClassConsumptionHandler(log, db))
				r.With(aggregates...).Get("/daily/{deviceId}", newGetDailyConsumptionHandler(log, db))
				r.With(aggregates...).Get("/monthly/{deviceId}", newGetMonthlyConsumptionHandler(log, db))
				r.With(aggregates...).Get("/total/class/{classId}", newGetClassTotalsHandler(log, db))
				r.With(aggregates...).Get("/hourly/class/{classId}", newGetHourlyClassConsumptionHandler(log, db))
				r.Get("/export/class/{classId}", newExportClassConsumptionHandler(log, db))
				if svc.Archiver != nil {
					r.Post("/export/class/{classId}/archive", newArchiveClassConsumptionHandler(log, db, svc.Archiver))
				}
				r.Post("/", newIngestReadingHandler(log, svc.Ingestion))
				r.Post("/bulk", newIngestBulkHandler(log, svc.Ingestion))
				r.Post("/hourly", newCreateHourlyConsumptionHandler(log, db))
				r.Delete("/{id}", newDeleteConsumptionHandler(log, db))
			})

			r.Route("/alerts", func(r chi.Router) {
				r.Get("/", newGetAlertsHandler(log, db))
				r.Post("/", newCreateAlertHandler(log, db))
				r.Get("/count/unread", newCountUnreadAlertsHandler(log, db))
				r.Get("/summary/stats", newGetAlertSummaryHandler(log, db))
				r.Patch("/read/all", newMarkAllAlertsAsReadHandler(log, db))
				r.Get("/device/{deviceId}", newGetAlertsByDeviceHandler(log, db))
				r.Get("/class/{classId}", newGetAlertsByClassHandler(log, db))
				r.Get("/{id}", newGetAlertHandler(log, db))
				r.Put("/{id}", newUpdateAlertHandler(log, db))
				r.Patch("/{id}/read", newMarkAlertAsReadHandler(log, db))
				r.Delete("/{id}", newDeleteAlertHandler(log, db))
			})

			r.Route("/settings", func(r chi.Router) {
				r.Get("/", newGetSettingsHandler(log, db))
				r.Post("/", newCreateSettingHandler(log, db))
				r.Get("/user/{userId}", newGetUserSettingsHandler(log, db))
				r.Put("/user/{userId}", newUpdateUserSettingsHandler(log, db))
				r.Get("/{key}", newGetSettingHandler(log, db))
				r.Put("/{key}", newUpdateSettingHandler(log, db))
				r.Delete("/{key}", newDeleteSettingHandler(log, db))
			})
		})
	})

	return router
}

//CreateRouterAndStartServing sets up the REST router and starts serving incoming requests
func CreateRouterAndStartServing(log logging.Logger, cfg config.Service, svc Services) {
	router := createRequestRouter(log, cfg, svc)

	port := cfg.Port
	if port == "" {
		port = "5002"
	}

	log.Infof("Starting energy-dashboard on port %s.\n", port)
	log.Fatal(http.ListenAndServe(":"+port, router.impl))
}
