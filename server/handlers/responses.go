package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strconv"

	"github.com/mj-112358/winkfinal/api/stores"
	"github.com/mj-112358/winkfinal/models"
	services "github.com/mj-112358/winkfinal/service"
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Println("Error encoding response:", err)
	}
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var cfgErr *models.ConfigError
	switch {
	case errors.As(err, &cfgErr),
		errors.Is(err, models.ErrInvalidWeekKey),
		errors.Is(err, services.ErrInvalidQuery):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrZoneNotFound),
		errors.Is(err, services.ErrAnnotationNotFound),
		errors.Is(err, stores.ErrUnknownStore):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrNoBaseline):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		log.Println("Internal error:", err)
		writeJSON(w, status, ErrorResponse{Error: "internal server error"})
		return
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: message})
}

func decodeBody(r *http.Request, out interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func parseArgBool(vals url.Values, name string) bool {
	v, _ := strconv.ParseBool(vals.Get(name))
	return v
}

// Ping handles GET /ping
func Ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "pong"})
}
