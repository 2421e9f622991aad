package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/mind-engage/mindengage-quiz/internal/grading"
	"github.com/mind-engage/mindengage-quiz/internal/quiz"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report json names, not Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type errorBody struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorClass names the error family; it doubles as a metrics label.
func errorClass(err error) (int, string) {
	var ve *grading.ValidationError
	var vv validator.ValidationErrors
	switch {
	case errors.As(err, &ve), errors.As(err, &vv):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, quiz.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, grading.ErrMisconfigured):
		return http.StatusConflict, "configuration"
	}
	return http.StatusInternalServerError, "internal"
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, class := errorClass(err)
	body := errorBody{Error: class, Message: err.Error()}

	var ve *grading.ValidationError
	var vv validator.ValidationErrors
	switch {
	case errors.As(err, &ve):
		body.Message = "invalid request"
		body.Fields = ve.Fields
	case errors.As(err, &vv):
		body.Message = "invalid request"
		body.Fields = map[string]string{}
		for _, fe := range vv {
			body.Fields[fe.Namespace()[strings.Index(fe.Namespace(), ".")+1:]] = fe.Tag()
		}
	case status == http.StatusInternalServerError:
		slog.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()), "err", err)
		body.Message = "internal error"
	case status == http.StatusConflict:
		slog.WarnContext(r.Context(), "misconfigured question",
			"path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "err", err)
	}
	writeJSON(w, status, body)
}

func badJSON(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: "validation", Message: "bad json: " + err.Error()})
}

// decode reads a JSON body into dst and runs struct validation.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		badJSON(w, err)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, r, err)
		return false
	}
	return true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}
