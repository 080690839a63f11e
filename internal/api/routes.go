package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vrewcraft/backend/internal/config"
	"github.com/vrewcraft/backend/internal/engine"
	"github.com/vrewcraft/backend/internal/media"
	"github.com/vrewcraft/backend/internal/store"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))
	if cfg.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))
	}
	if cfg.Hub != nil {
		r.Get("/ws", wsHandler(cfg))
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/upload", uploadHandler(cfg))
		r.Get("/metadata", metadataHandler(cfg))
		r.Post("/operations/trim", trimHandler(cfg))
		r.Post("/operations/split", splitHandler(cfg))
		r.Get("/operations", listOperationsHandler(cfg))
		r.Get("/operations/{id}", getOperationHandler(cfg))
	})

	// Direct artifact retrieval under the public prefix.
	if cfg.Store != nil {
		prefix := cfg.PublicPrefix
		fileServer := http.StripPrefix(prefix+"/", http.FileServer(http.Dir(cfg.Store.Root())))
		r.Handle(prefix+"/*", fileServer)
	}

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:  "ok",
			Service: "vrewcraft-backend",
			Version: config.Version,
			UptimeS: int64(time.Since(cfg.StartTime).Seconds()),
		}
		if cfg.Doctor != nil {
			resp.Tools = cfg.Doctor.Get(r.Context())
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func uploadHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadBytes)
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid multipart body", "BAD_REQUEST")
			return
		}

		file, header, err := r.FormFile("video")
		if err != nil {
			WriteError(w, http.StatusBadRequest, "video field is required", "BAD_REQUEST")
			return
		}
		defer file.Close()

		mf, err := cfg.Store.Save(file, header.Filename)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to store upload", "INTERNAL_ERROR")
			return
		}

		WriteJSON(w, http.StatusCreated, FileToResponse(*mf))
	}
}

func metadataHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename := r.URL.Query().Get("filename")
		if filename == "" {
			WriteError(w, http.StatusBadRequest, "filename is required", "BAD_REQUEST")
			return
		}

		if _, err := cfg.Store.Stat(filename); err != nil {
			writeOperationError(w, err)
			return
		}

		meta, err := cfg.Prober.Probe(r.Context(), cfg.Store.Path(filename))
		if err != nil {
			writeOperationError(w, err)
			return
		}

		WriteJSON(w, http.StatusOK, MetadataResponse{
			Duration: meta.Duration,
			Width:    meta.Width,
			Height:   meta.Height,
			Codec:    meta.Codec,
			Bitrate:  meta.Bitrate,
		})
	}
}

func trimHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TrimRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Filename == "" {
			WriteError(w, http.StatusBadRequest, "filename is required", "BAD_REQUEST")
			return
		}

		submitOperation(cfg, w, r, engine.Request{
			Kind:     engine.KindTrim,
			Input:    req.Filename,
			Start:    req.Start,
			Duration: req.Duration,
			End:      req.End,
		})
	}
}

func splitHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SplitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Filename == "" {
			WriteError(w, http.StatusBadRequest, "filename is required", "BAD_REQUEST")
			return
		}

		submitOperation(cfg, w, r, engine.Request{
			Kind:       engine.KindSplit,
			Input:      req.Filename,
			SplitPoint: req.SplitPoint,
		})
	}
}

// submitOperation awaits full completion before responding; progress events
// on the websocket are the only interim visibility.
func submitOperation(cfg ServerConfig, w http.ResponseWriter, r *http.Request, req engine.Request) {
	start := time.Now()
	result, err := cfg.Engine.Submit(r.Context(), req)

	if cfg.Metrics != nil {
		status := "succeeded"
		if err != nil {
			status = "failed"
		}
		cfg.Metrics.OperationsTotal.WithLabelValues(string(req.Kind), status).Inc()
		cfg.Metrics.OperationDuration.WithLabelValues(string(req.Kind)).Observe(time.Since(start).Seconds())
	}

	if err != nil {
		writeOperationError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, ResultToResponse(result))
}

func listOperationsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Journal == nil {
			WriteJSON(w, http.StatusOK, HistoryResponse{Operations: []HistoryEntryResponse{}})
			return
		}

		ops, err := cfg.Journal.List(r.Context(), 50)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list operations", "INTERNAL_ERROR")
			return
		}

		resp := HistoryResponse{Operations: make([]HistoryEntryResponse, len(ops))}
		for i, op := range ops {
			resp.Operations[i] = OperationToHistoryEntry(op)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getOperationHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Journal == nil {
			WriteError(w, http.StatusNotFound, "operation not found", "NOT_FOUND")
			return
		}

		op, err := cfg.Journal.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to load operation", "INTERNAL_ERROR")
			return
		}
		if op == nil {
			WriteError(w, http.StatusNotFound, "operation not found", "NOT_FOUND")
			return
		}

		WriteJSON(w, http.StatusOK, OperationToHistoryEntry(op))
	}
}

// writeOperationError maps the engine's error taxonomy onto HTTP statuses.
// Typed errors are matched before the ErrNotFound sentinel: a finalize
// ProcessingError wraps ErrNotFound for a missing output file, and that is
// a server-side failure, not a bad filename from the client.
func writeOperationError(w http.ResponseWriter, err error) {
	var invalid *engine.InvalidOperationError
	var probeErr *media.ProbeError
	var procErr *engine.ProcessingError

	switch {
	case errors.As(err, &invalid):
		WriteError(w, http.StatusBadRequest, invalid.Error(), "INVALID_OPERATION")
	case errors.As(err, &procErr):
		WriteError(w, http.StatusInternalServerError, procErr.Error(), "PROCESSING_FAILED")
	case errors.As(err, &probeErr):
		WriteError(w, http.StatusUnprocessableEntity, probeErr.Error(), "PROBE_FAILED")
	case errors.Is(err, store.ErrNotFound):
		WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
	default:
		WriteError(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}
