package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/username/tradelink/src/logger"
	"github.com/username/tradelink/src/models"
	"github.com/username/tradelink/src/parsers"
	"github.com/username/tradelink/src/processors"
	"github.com/username/tradelink/src/security/validation"
	"github.com/username/tradelink/src/services"
	"github.com/username/tradelink/src/utils"
)

const (
	defaultRunListLimit = 50
	maxRunListLimit     = 500
)

type ReconcileHandler struct {
	service       services.ReconcileService
	maxUploadSize int64
}

func NewReconcileHandler(service services.ReconcileService, maxUploadSize int64) *ReconcileHandler {
	return &ReconcileHandler{
		service:       service,
		maxUploadSize: maxUploadSize,
	}
}

// HandleReconcile accepts either a multipart upload ("file" plus optional "format")
// or a raw JSON/CSV request body, and responds with the run report.
func (h *ReconcileHandler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	opts, err := optionsFromQuery(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var (
		input  io.Reader
		format string
	)
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
			logger.L.Warn("Failed to parse multipart form or request too large", "error", err, "limit", h.maxUploadSize)
			utils.SendJSONError(w, fmt.Sprintf("Failed to parse form or request too large (max %d MB)", h.maxUploadSize/(1024*1024)), http.StatusBadRequest)
			return
		}
		file, fileHeader, err := r.FormFile("file")
		if err != nil {
			logger.L.Warn("Failed to retrieve file from request", "error", err)
			utils.SendJSONError(w, "Failed to retrieve file from request. Ensure 'file' field is used.", http.StatusBadRequest)
			return
		}
		defer file.Close()

		format = r.FormValue("format")
		if format == "" {
			format = parsers.FormatFromFilename(fileHeader.Filename)
		}
		if format == "" {
			format = "json"
		}

		clientContentType := fileHeader.Header.Get("Content-Type")
		if err := validation.ValidateClientContentType(clientContentType, format); err != nil {
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		detectedContentType, err := validation.ValidateFileContentByMagicBytes(file)
		if err != nil {
			logger.L.Warn("Server-side file content validation failed", "filename", fileHeader.Filename, "error", err)
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.L.Info("File content validated by magic bytes", "filename", fileHeader.Filename, "clientType", clientContentType, "detectedType", detectedContentType)
		input = file
	} else {
		format = r.URL.Query().Get("format")
		if format == "" {
			format = "json"
			if mediaType == "text/csv" || mediaType == "application/csv" {
				format = "csv"
			}
		}
		input = r.Body
	}

	run, err := h.service.ReconcileFile(r.Context(), input, format, opts)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytesErr):
			utils.SendJSONError(w, fmt.Sprintf("Request body too large (max %d MB)", h.maxUploadSize/(1024*1024)), http.StatusRequestEntityTooLarge)
		case errors.Is(err, services.ErrParsingFailed):
			logger.L.Warn("Reconcile request failed due to parsing errors", "format", format, "error", err)
			utils.SendJSONError(w, fmt.Sprintf("Error parsing %s input: %v", format, err), http.StatusBadRequest)
		case errors.Is(err, processors.ErrInvalidThreshold):
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		default:
			logger.L.Error("Internal error processing reconcile request", "error", err)
			utils.SendJSONError(w, "An internal error occurred while reconciling. Please try again later.", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Location", "/api/runs/"+run.ID)
	utils.WriteJSON(w, http.StatusCreated, services.NewReport(*run))
}

// HandleListRuns serves the ids of stored runs, newest first. ?limit= caps the list.
func (h *ReconcileHandler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 || v > maxRunListLimit {
			utils.SendJSONError(w, fmt.Sprintf("limit must be between 1 and %d", maxRunListLimit), http.StatusBadRequest)
			return
		}
		limit = v
	}

	ids, err := h.service.ListRuns(r.Context(), limit)
	if err != nil {
		logger.L.Error("Error listing runs", "error", err)
		utils.SendJSONError(w, "An internal error occurred while listing runs.", http.StatusInternalServerError)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string][]string{"runs": ids})
}

func (h *ReconcileHandler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	utils.WriteJSON(w, http.StatusOK, services.NewReport(*run))
}

// HandleGetRunTrades serves the ordered trade list with ETag support, as JSON or as CSV (?format=csv).
func (h *ReconcileHandler) HandleGetRunTrades(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	trades := run.Trades
	if trades == nil {
		trades = []models.TradeRecord{}
	}

	currentETag, etagErr := utils.GenerateETag(trades)
	if etagErr != nil {
		logger.L.Error("Failed to generate ETag for trades", "runID", run.ID, "error", etagErr)
	}

	w.Header().Set("Cache-Control", "no-cache, private")

	if etagErr == nil && currentETag != "" {
		quotedETag := fmt.Sprintf("\"%s\"", currentETag)
		w.Header().Set("ETag", quotedETag)
		clientETag := r.Header.Get("If-None-Match")
		for _, cETag := range strings.Split(clientETag, ",") {
			if strings.TrimSpace(cETag) == quotedETag {
				logger.L.Debug("ETag match for trades", "runID", run.ID, "etag", currentETag)
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
	}

	if strings.EqualFold(r.URL.Query().Get("format"), "csv") {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"trades-%s.csv\"", run.ID))
		if err := services.WriteTradesCSV(w, trades); err != nil {
			logger.L.Error("Error writing CSV trades", "runID", run.ID, "error", err)
		}
		return
	}
	utils.WriteJSON(w, http.StatusOK, trades)
}

func (h *ReconcileHandler) HandleGetRunSummary(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	utils.WriteJSON(w, http.StatusOK, run.Summary)
}

func (h *ReconcileHandler) HandleGetRunUnusable(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	unusable := run.Unusable
	if unusable == nil {
		unusable = []models.UnusableObservation{}
	}
	utils.WriteJSON(w, http.StatusOK, unusable)
}

func (h *ReconcileHandler) loadRun(w http.ResponseWriter, r *http.Request) (*models.ReconciliationRun, bool) {
	id := r.PathValue("id")
	if id == "" {
		utils.SendJSONError(w, "run id required", http.StatusBadRequest)
		return nil, false
	}
	run, err := h.service.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrRunNotFound) {
			utils.SendJSONError(w, fmt.Sprintf("run %s not found", id), http.StatusNotFound)
			return nil, false
		}
		logger.L.Error("Error loading run", "runID", id, "error", err)
		utils.SendJSONError(w, "An internal error occurred while loading the run.", http.StatusInternalServerError)
		return nil, false
	}
	return run, true
}

// optionsFromQuery reads the optional threshold and kind overrides.
func optionsFromQuery(r *http.Request) (services.ReconcileOptions, error) {
	var opts services.ReconcileOptions
	q := r.URL.Query()
	if raw := q.Get("threshold"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return opts, fmt.Errorf("invalid threshold %q", raw)
		}
		opts.Threshold = &v
	}
	if raw := q.Get("kind"); raw != "" {
		kind := models.Kind(strings.ToLower(raw))
		if !kind.Valid() {
			return opts, fmt.Errorf("invalid kind %q", raw)
		}
		opts.Kind = kind
	}
	return opts, nil
}
