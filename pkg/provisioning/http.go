package provisioning

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/naccdata/identifier-provisioning/pkg/common/logger"
	"github.com/naccdata/identifier-provisioning/pkg/common/models"
	"github.com/naccdata/identifier-provisioning/pkg/identifiers"
)

type HTTPHandler struct {
	service *Service
	maxBody int64
}

func NewHTTPHandler(service *Service, maxBody int64) *HTTPHandler {
	return &HTTPHandler{service: service, maxBody: maxBody}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/provision", h.handleProvision).Methods(http.MethodPost)
	router.HandleFunc("/identifiers/{naccid}", h.handleGetIdentifier).Methods(http.MethodGet)
	router.HandleFunc("/identifiers", h.handleListIdentifiers).Methods(http.MethodGet)
	router.HandleFunc("/transfers/pending", h.handleListPending).Methods(http.MethodGet)
}

func (h *HTTPHandler) handleProvision(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}

	var req models.BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Log.WithError(err).Warn("invalid provisioning payload")
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Records) == 0 {
		http.Error(w, "batch contains no records", http.StatusBadRequest)
		return
	}

	resp := h.service.ProcessBatch(r.Context(), req)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *HTTPHandler) handleGetIdentifier(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	naccid := vars["naccid"]

	if !identifiers.IsValidNACCID(naccid) {
		http.Error(w, "invalid NACCID", http.StatusBadRequest)
		return
	}

	record, err := h.service.GetIdentifier(r.Context(), naccid)
	if err != nil {
		if errors.Is(err, identifiers.ErrNotFound) {
			http.Error(w, "identifier not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to fetch identifier")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(record)
}

func (h *HTTPHandler) handleListIdentifiers(w http.ResponseWriter, r *http.Request) {
	adcid, err := strconv.Atoi(r.URL.Query().Get("adcid"))
	if err != nil || adcid <= 0 {
		http.Error(w, "adcid query parameter is required", http.StatusBadRequest)
		return
	}

	records, err := h.service.ListIdentifiers(r.Context(), adcid)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list identifiers")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}

func (h *HTTPHandler) handleListPending(w http.ResponseWriter, r *http.Request) {
	adcid := 0
	if raw := r.URL.Query().Get("adcid"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "invalid adcid query parameter", http.StatusBadRequest)
			return
		}
		adcid = parsed
	}

	pending, err := h.service.ListPendingTransfers(r.Context(), adcid)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list pending transfers")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(pending)
}
