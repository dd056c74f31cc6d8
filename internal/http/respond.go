package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Clark-Hu/workshop-market/internal/apperr"
)

const maxRequestBody = 1 << 20 // 1 MiB

type envelope struct {
	Success bool        `json:"success"`
	Count   *int        `json:"count,omitempty"`
	Data    interface{} `json:"data"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			s.logger.Warn("failed to encode response", zap.Error(err))
		}
	}
}

func (s *Server) respondData(w http.ResponseWriter, status int, data interface{}) {
	s.respondJSON(w, status, envelope{Success: true, Data: data})
}

func (s *Server) respondList(w http.ResponseWriter, data interface{}, count int) {
	s.respondJSON(w, http.StatusOK, envelope{Success: true, Count: &count, Data: data})
}

// respondError writes the error body for err. Unclassified errors become 500
// and are logged with their cause.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperr.As(err)
	if appErr.Status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	s.respondJSON(w, appErr.Status, errorResponse{Success: false, Error: appErr.Message})
}

func (s *Server) respondDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	var syntaxError *json.SyntaxError
	var typeError *json.UnmarshalTypeError
	var maxBytesError *http.MaxBytesError
	switch {
	case errors.As(err, &syntaxError):
		s.respondError(w, r, apperr.Validation("Malformed JSON payload"))
	case errors.As(err, &typeError):
		s.respondError(w, r, apperr.Validation(fmt.Sprintf("Invalid value for field %s", typeError.Field)))
	case errors.As(err, &maxBytesError):
		s.respondError(w, r, apperr.New(http.StatusRequestEntityTooLarge, apperr.CodeBadRequest, "Request body too large"))
	case errors.Is(err, io.EOF):
		s.respondError(w, r, apperr.Validation("Request body cannot be empty"))
	default:
		s.respondError(w, r, apperr.BadRequest("Unable to parse request body"))
	}
}
