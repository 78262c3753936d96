package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bgunnarsson/sqlrest/internal/catalog"
	"github.com/bgunnarsson/sqlrest/internal/db"
	"github.com/bgunnarsson/sqlrest/internal/value"
)

// flushEvery is how many streamed rows are written between flushes.
const flushEvery = 64

type errorBody struct {
	Error   string `json:"error"`
	Name    string `json:"name,omitempty"`
	Message string `json:"message"`
}

func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	h, err := s.pool.Lease(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	names, err := catalog.Tables(r.Context(), h)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer func() { _ = names.Close() }()

	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	writeArray(w, func(emit func() error) error {
		for name, err := range names.All() {
			if err != nil {
				return err
			}
			if err := emit(); err != nil {
				return err
			}
			if err := enc.Encode(name); err != nil {
				return err
			}
		}
		return nil
	}, s.streamFailed(r))
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "table")
	h, err := s.pool.Lease(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer func() { _ = h.Release() }()

	schema, ok, err := s.tables.Describe(r.Context(), h.Conn(), name)
	if err == nil && !ok {
		err = db.TableNotFound(name)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, schema)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "table")
	h, err := s.pool.Lease(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rows, err := s.tables.Stream(r.Context(), h, name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	// the lease stays checked out until the last row is written
	defer func() { _ = rows.Close() }()

	w.Header().Set("Content-Type", "application/json")
	flusher, _ := w.(http.Flusher)
	n := 0
	writeArray(w, func(emit func() error) error {
		for row, err := range rows.All() {
			if err != nil {
				return err
			}
			b, err := row.MarshalJSON()
			if err != nil {
				return err
			}
			if err := emit(); err != nil {
				return err
			}
			if _, err := w.Write(b); err != nil {
				return err
			}
			n++
			if flusher != nil && n%flushEvery == 0 {
				flusher.Flush()
			}
		}
		return nil
	}, s.streamFailed(r))
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "table")
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "body_too_large", Message: err.Error()})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_body", Message: err.Error()})
		return
	}
	payload, err := value.Parse(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_json", Message: err.Error()})
		return
	}

	h, err := s.pool.Lease(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer func() { _ = h.Release() }()

	row, err := s.tables.Insert(r.Context(), h.Conn(), name, payload)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, row)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "table")
	id := parseID(chi.URLParam(r, "id"))

	h, err := s.pool.Lease(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer func() { _ = h.Release() }()

	if err := s.tables.Delete(r.Context(), h.Conn(), name, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseID binds integer path segments as numbers and anything else as text.
func parseID(raw string) value.Value {
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return value.IntValue(i)
	}
	return value.StringValue(raw)
}

// writeArray writes a JSON array whose elements are produced by fill. emit
// must be called before each element. A failure after the status line has
// been sent can only be logged.
func writeArray(w http.ResponseWriter, fill func(emit func() error) error, failed func(error)) {
	first := true
	emit := func() error {
		sep := ","
		if first {
			sep, first = "[", false
		}
		_, err := io.WriteString(w, sep)
		return err
	}
	if err := fill(emit); err != nil {
		failed(err)
		return
	}
	if first {
		_, _ = io.WriteString(w, "[")
	}
	_, _ = io.WriteString(w, "]\n")
}

func (s *Server) streamFailed(r *http.Request) func(error) {
	return func(err error) {
		s.logger.Error("stream aborted", "path", r.URL.Path, "error", err)
		panic(http.ErrAbortHandler)
	}
}

func statusFor(err error) int {
	switch db.KindOf(err) {
	case db.KindTableNotFound:
		return http.StatusNotFound
	case db.KindConstraint:
		return http.StatusConflict
	case db.KindPoolExhausted:
		return http.StatusServiceUnavailable
	case db.KindMissingValue, db.KindExpectingObject, db.KindUnsupportedValue,
		db.KindNoPrimaryKey, db.KindCompositePrimaryKey:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorBody{Error: db.KindOf(err).String(), Message: err.Error()}
	var e *db.Error
	if errors.As(err, &e) {
		body.Name = e.Name
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
