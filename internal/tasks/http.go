package tasks

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

type errResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func RegisterRoutes(r chi.Router, repo Repository, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	r.Get("/api/tasks", listTasks(repo, logger))
	r.Post("/api/tasks", createTask(repo, logger))
	r.Get("/api/tasks/{id:[0-9]+}", getTask(repo, logger))
	r.Put("/api/tasks/{id:[0-9]+}", updateTask(repo, logger))
	r.Delete("/api/tasks/{id:[0-9]+}", deleteTask(repo, logger))
}

func listTasks(repo Repository, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tasks, err := repo.List(r.Context())
		if err != nil {
			fail(w, r, logger, "list", err)
			return
		}
		writeJSON(w, http.StatusOK, tasks)
	}
}

func getTask(repo Repository, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := taskID(w, r)
		if !ok {
			return
		}
		t, err := repo.Get(r.Context(), id)
		if err != nil {
			fail(w, r, logger, "get", err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

func createTask(repo Repository, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fields, err := decodeObject(r.Body)
		if err != nil {
			fail(w, r, logger, "create", err)
			return
		}

		in, fieldErr := decodeNewTask(fields)
		// title and priority are reported before any other malformed field
		if _, err := in.normalize(); err != nil {
			fail(w, r, logger, "create", err)
			return
		}
		if fieldErr != nil {
			fail(w, r, logger, "create", fieldErr)
			return
		}

		t, err := repo.Create(r.Context(), in)
		if err != nil {
			fail(w, r, logger, "create", err)
			return
		}
		logger.Info("task_created",
			slog.Int64("id", t.ID),
			slog.String("req_id", chimw.GetReqID(r.Context())),
		)
		writeJSON(w, http.StatusCreated, t)
	}
}

func updateTask(repo Repository, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fields, err := decodeObject(r.Body)
		if err != nil {
			fail(w, r, logger, "update", err)
			return
		}
		id, ok := taskID(w, r)
		if !ok {
			return
		}

		p, fieldErr := decodePatch(fields)
		if fieldErr != nil {
			// existence, then title and priority, win over a malformed field
			cur, err := repo.Get(r.Context(), id)
			if err == nil {
				_, err = p.Apply(cur)
			}
			if err == nil {
				err = fieldErr
			}
			fail(w, r, logger, "update", err)
			return
		}

		t, err := repo.Update(r.Context(), id, p)
		if err != nil {
			fail(w, r, logger, "update", err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

func deleteTask(repo Repository, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := taskID(w, r)
		if !ok {
			return
		}
		if err := repo.Delete(r.Context(), id); err != nil {
			fail(w, r, logger, "delete", err)
			return
		}
		logger.Info("task_deleted",
			slog.Int64("id", id),
			slog.String("req_id", chimw.GetReqID(r.Context())),
		)
		writeJSON(w, http.StatusOK, messageResponse{Message: "Task deleted successfully"})
	}
}

// fail maps err to a status code. Store errors are logged and their text is
// returned to the client.
func fail(w http.ResponseWriter, r *http.Request, logger *slog.Logger, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("store_error",
			slog.String("op", op),
			slog.String("error", err.Error()),
			slog.String("req_id", chimw.GetReqID(r.Context())),
		)
	}
	writeJSON(w, status, errResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case IsClientError(err):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// taskID parses the {id} path segment. The route pattern only admits digits,
// so a failure here means the value overflows and cannot name a task.
func taskID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errResponse{Error: ErrNotFound.Error()})
		return 0, false
	}
	return id, true
}

// decodeObject reads a non-empty JSON object. Anything else, including an
// empty body, is ErrNoData.
func decodeObject(body io.Reader) (map[string]json.RawMessage, error) {
	dec := json.NewDecoder(body)
	var fields map[string]json.RawMessage
	if err := dec.Decode(&fields); err != nil || len(fields) == 0 {
		return nil, ErrNoData
	}
	// the object must be the whole body
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, ErrNoData
	}
	return fields, nil
}

// decodeNewTask never fails on title or priority: a wrong type there leaves
// the field empty so validation reports it. Other malformed fields come back
// as a *FieldError.
func decodeNewTask(fields map[string]json.RawMessage) (NewTask, error) {
	var in NewTask
	if raw, ok := fields["title"]; ok {
		_ = json.Unmarshal(raw, &in.Title)
	}
	if raw, ok := fields["priority"]; ok {
		_ = json.Unmarshal(raw, &in.Priority)
	}

	var desc, due Optional[string]
	for _, f := range []struct {
		name string
		dst  *Optional[string]
	}{
		{"description", &desc},
		{"due_date", &due},
	} {
		raw, ok := fields[f.name]
		if !ok {
			continue
		}
		if err := f.dst.UnmarshalJSON(raw); err != nil {
			return in, &FieldError{Field: f.name, Err: err}
		}
	}
	in.Description = desc.Value
	in.DueDate = due.Value
	return in, nil
}

// decodePatch records every field that is present. A priority of the wrong
// type is kept as an invalid value so Patch.Apply reports it in order; any
// other malformed field is left unset and the first one comes back as a
// *FieldError.
func decodePatch(fields map[string]json.RawMessage) (Patch, error) {
	var (
		p        Patch
		fieldErr error
	)
	for _, f := range []struct {
		name string
		dst  json.Unmarshaler
	}{
		{"title", &p.Title},
		{"description", &p.Description},
		{"priority", &p.Priority},
		{"due_date", &p.DueDate},
		{"status", &p.Status},
	} {
		raw, ok := fields[f.name]
		if !ok {
			continue
		}
		err := f.dst.UnmarshalJSON(raw)
		if err == nil {
			continue
		}
		if f.name == "priority" {
			p.Priority = Some(Priority(raw))
			continue
		}
		if fieldErr == nil {
			fieldErr = &FieldError{Field: f.name, Err: err}
		}
	}
	return p, fieldErr
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
