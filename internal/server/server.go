package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"sparqlbench/api/benchapi"
	"sparqlbench/internal/worker"
	"sparqlbench/internal/worker/benchtask"
	"sparqlbench/internal/worker/runner"
	"sparqlbench/pkg/logging"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Handler struct {
	runner *runner.Runner
	log    *zap.SugaredLogger

	Metrics *prometheus.Registry
}

type okResponse struct {
	Status string
}

var ok = okResponse{Status: "ok"}

func NewHandler(w *runner.Runner, log *zap.SugaredLogger) *Handler {
	return &Handler{
		runner: w,
		log:    logging.OrNop(log),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", routeListHandler(r, h.log))
	r.Get("/status", statusHandler(h.log, func(ctx context.Context) (benchapi.APIWorkerStatus, error) {
		return h.runner.Status(ctx), nil
	}))
	r.Get("/healthz", statusHandler(h.log, func(ctx context.Context) (benchapi.StatusCode, error) {
		return h.runner.Healthcheck(ctx)
	}))

	work := chi.NewRouter()
	work.Post("/stop", statusHandler(h.log, func(ctx context.Context) (okResponse, error) {
		return ok, h.runner.CancelActive(ctx)
	}))
	r.Mount("/work", work)

	work.Mount("/sparql", h.sparqlRoutes())
}

func (h *Handler) sparqlRoutes() chi.Router {
	taskFactory := benchtask.NewFactory(h.runner.Config, h.log)
	if h.Metrics != nil {
		taskFactory = taskFactory.WithMetrics(h.Metrics)
	}
	return benchWorkRouter(h, taskFactory)
}

func benchWorkRouter[T any, F worker.TaskFactory[T]](h *Handler, factory F) chi.Router {
	worker := runner.NewBenchmarkWorker(h.runner, factory)
	router := chi.NewRouter()
	router.Post("/prepare", requHandler(h.log, func(ctx context.Context, requ T) (okResponse, error) {
		return ok, worker.Prepare(ctx, requ)
	}))
	router.Post("/cleanup", statusHandler(h.log, func(ctx context.Context) (okResponse, error) {
		return ok, worker.Cleanup(ctx)
	}))
	router.Post("/run", requHandler(h.log, func(ctx context.Context, requ T) (okResponse, error) {
		return ok, worker.Run(ctx, requ)
	}))

	router.Get("/", routeListHandler(router, h.log))
	return router
}

func routeListHandler(router chi.Routes, log *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type routePath struct {
			Method string `json:"method"`
			Path   string `json:"path"`
		}

		var routes []routePath
		err := chi.Walk(router, func(method, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
			routes = append(routes, routePath{Method: method, Path: route})
			return nil
		})

		type response struct {
			Routes []routePath `json:"routes"`
		}
		writeResponse(w, log, response{Routes: routes}, err)
	}
}

func statusHandler[O any](log *zap.SugaredLogger, fn func(context.Context) (O, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()

		resp, err := fn(r.Context())
		writeResponse(w, log, resp, err)
	}
}

func requHandler[I any, O any](log *zap.SugaredLogger, fn func(ctx context.Context, w I) (O, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()

		var requ I

		if r.ContentLength != 0 {
			if ct := r.Header.Get("Content-Type"); ct != "application/json" {
				writeError(w, log, benchapi.ErrorBadRequest(fmt.Errorf("invalid content type: %s", ct)))
				return
			}

			if err := json.NewDecoder(r.Body).Decode(&requ); err != nil {
				writeError(w, log, benchapi.ErrorBadRequest(fmt.Errorf("failed to decode request: %w", err)))
				return
			}
		}

		resp, err := fn(r.Context(), requ)
		writeResponse(w, log, resp, err)
	}
}

func writeResponse[T any](w http.ResponseWriter, log *zap.SugaredLogger, resp T, err error) {
	if err != nil {
		writeError(w, log, err)
		return
	}

	enc, err := json.Marshal(resp)
	if err != nil {
		writeError(w, log, fmt.Errorf("failed to marshal response: %w", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(enc)
}

func writeError(w http.ResponseWriter, log *zap.SugaredLogger, err error) {
	log.Errorf("Error: %v", err)

	enc, _ := json.Marshal(map[string]string{"error": getDisplayError(err).Error()})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(getErrorStatusCode(err))
	w.Write(enc)
}
