package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"parcel-dispatch/internal/apperr"
	"parcel-dispatch/internal/auth"
	"parcel-dispatch/internal/domain"
	"parcel-dispatch/internal/logx"
)

const (
	bodyLimit = 1 << 20
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report json names in validation messages
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func reqID(ctx context.Context) string {
	if id := middleware.GetReqID(ctx); id != "" {
		return id
	}
	return "-"
}

type dataResponse struct {
	Data any `json:"data"`
}

type errResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeJSON(logger logx.Logger, w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		logger.Warn("json encode error", logx.String("req_id", reqID(r.Context())), logx.Any("err", err))
	}
}

func writeData(logger logx.Logger, w http.ResponseWriter, r *http.Request, status int, v any) {
	writeJSON(logger, w, r, status, dataResponse{Data: v})
}

func writeError(logger logx.Logger, w http.ResponseWriter, r *http.Request, status int, kind, msg string) {
	logger.Debug("http error",
		logx.String("req_id", reqID(r.Context())),
		logx.Int("status", status),
		logx.String("kind", kind),
		logx.String("msg", msg),
	)
	writeJSON(logger, w, r, status, errResponse{Error: msg, Kind: kind})
}

// writeAppError maps a service error onto the response status by its kind.
func writeAppError(logger logx.Logger, w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := statusOf(kind)
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			logx.String("req_id", reqID(r.Context())),
			logx.String("method", r.Method),
			logx.String("path", r.URL.Path),
			logx.Any("err", err),
		)
	}
	writeError(logger, w, r, status, kind, apperr.Message(err))
}

func statusOf(kind string) int {
	switch kind {
	case "not_found":
		return http.StatusNotFound
	case "conflict", "unavailable":
		return http.StatusConflict
	case "forbidden":
		return http.StatusForbidden
	case "invalid_transition":
		return http.StatusUnprocessableEntity
	case "invalid_input":
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func decodeJSON[T any](logger logx.Logger, w http.ResponseWriter, r *http.Request, dst *T) bool {
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		writeError(logger, w, r, http.StatusBadRequest, "invalid_input", "invalid json")
		return false
	}
	if err := dec.Decode(new(struct{})); err != io.EOF {
		writeError(logger, w, r, http.StatusBadRequest, "invalid_input", "invalid json: trailing data")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(logger, w, r, http.StatusBadRequest, "invalid_input", validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return "invalid input"
	}
	fe := errs[0]
	// drop the request type name
	_, field, _ := strings.Cut(fe.Namespace(), ".")
	if fe.Param() != "" {
		return fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s", field, fe.Tag())
}

func idFromURL(r *http.Request, name string) (int64, error) {
	idStr := chi.URLParam(r, name)
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

// request resolves the caller and the delivery id of a /deliveries/{id} route.
func request(logger logx.Logger, w http.ResponseWriter, r *http.Request) (domain.Actor, int64, bool) {
	actor, ok := actorOf(logger, w, r)
	if !ok {
		return actor, 0, false
	}
	id, err := idFromURL(r, "id")
	if err != nil {
		writeError(logger, w, r, http.StatusBadRequest, "invalid_input", "invalid id")
		return actor, 0, false
	}
	return actor, id, true
}

func actorOf(logger logx.Logger, w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		writeError(logger, w, r, http.StatusUnauthorized, "unauthorized", "missing credentials")
	}
	return actor, ok
}
