// Package student contains all HTTP handlers related to the Student resource.
//
// Every handler is built by a factory that receives its dependencies and
// returns the http.HandlerFunc the router needs:
//
//	router.HandleFunc("POST /api/students", student.New(store))
//
// New(store) runs once at startup; the returned closure runs on every
// request.
package student

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/aanand-mishra/students-registry/internal/http/middleware"
	"github.com/aanand-mishra/students-registry/internal/storage"
	"github.com/aanand-mishra/students-registry/internal/types"
	"github.com/aanand-mishra/students-registry/internal/utils/response"
)

// ─────────────────────────────────────────────────────────────────────────────
// New handles POST /api/students
// Registers a student from the JSON request body.
//
// Request body (JSON):
//
//	{ "id": 1, "name": "Ana", "lastName": "Gomez", "bornPlace": "Medellin",
//	  "degree": "CS", "place": "ROBLEDO", "scoreAdmision": 450 }
//
// Success response (201 Created): the stored student.
//
// Error responses:
//
//	400 Bad Request  — empty body, malformed JSON, unknown campus, or failed validation
//	500 Internal     — storage fault
//
// ─────────────────────────────────────────────────────────────────────────────
func New(store storage.Storage) http.HandlerFunc {
	return create(store, http.StatusCreated)
}

// Save handles POST /save, the registration form's legacy endpoint.
// Same as New but answers 200 OK.
func Save(store storage.Storage) http.HandlerFunc {
	return create(store, http.StatusOK)
}

func create(store storage.Storage, okStatus int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := middleware.Logger(r.Context())
		log.Info("creating a student")

		var student types.Student
		err := json.NewDecoder(r.Body).Decode(&student)
		if errors.Is(err, io.EOF) {
			response.WriteJSON(w, http.StatusBadRequest,
				response.GeneralError(errors.New("request body is empty")))
			return
		}
		if err != nil {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		if err := types.Validate(student); err != nil {
			var validateErrs validator.ValidationErrors
			if errors.As(err, &validateErrs) {
				response.WriteJSON(w, http.StatusBadRequest,
					response.ValidationError(validateErrs))
				return
			}
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		saved, err := store.Save(r.Context(), student)
		if err != nil {
			log.Error("error saving student",
				slog.Int64("id", student.ID),
				slog.String("error", err.Error()))
			writeStorageError(w, err)
			return
		}

		log.Info("student created", slog.Int64("id", saved.ID))
		response.WriteJSON(w, okStatus, saved)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// GetByID handles GET /api/students/{id}
//
// Success response (200 OK): the student.
//
// Error responses:
//
//	400 Bad Request  — id is not a valid integer
//	404 Not Found    — no student with that id
//	500 Internal     — storage fault
//
// ─────────────────────────────────────────────────────────────────────────────
func GetByID(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		find(store, w, r, r.PathValue("id"), http.StatusNotFound)
	}
}

// Search handles GET /search?id={id}, the registration form's legacy
// lookup endpoint. The form reads 400 as "no such student", so a missing
// record answers 400 here instead of 404.
func Search(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		find(store, w, r, r.URL.Query().Get("id"), http.StatusBadRequest)
	}
}

func find(store storage.Storage, w http.ResponseWriter, r *http.Request, id string, notFoundStatus int) {
	log := middleware.Logger(r.Context())
	log.Info("getting a student", slog.String("id", id))

	intID, ok := parseID(w, id)
	if !ok {
		return
	}

	student, err := store.FindByID(r.Context(), intID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			log.Info("student does not exist", slog.Int64("id", intID))
			response.WriteJSON(w, notFoundStatus, response.GeneralError(storage.ErrNotFound))
			return
		}
		log.Error("error getting student",
			slog.Int64("id", intID),
			slog.String("error", err.Error()))
		writeStorageError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, student)
}

// GetList handles GET /api/students
// Returns a JSON array of all live students, [] when there are none.
func GetList(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := middleware.Logger(r.Context())
		log.Info("getting all students")

		students, err := store.List(r.Context())
		if err != nil {
			log.Error("error getting students", slog.String("error", err.Error()))
			writeStorageError(w, err)
			return
		}
		if students == nil {
			students = []types.Student{}
		}

		response.WriteJSON(w, http.StatusOK, students)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Delete handles DELETE /api/students/{id}
//
// Success response (200 OK):
//
//	{ "status": "deleted" }
//
// Error responses:
//
//	400 Bad Request  — invalid id
//	404 Not Found    — no student with that id
//	500 Internal     — storage fault
//
// ─────────────────────────────────────────────────────────────────────────────
func Delete(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		remove(store, w, r, r.PathValue("id"))
	}
}

// DeleteByQuery handles DELETE /delete?id={id}, the registration form's
// legacy delete endpoint. Responses match Delete.
func DeleteByQuery(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		remove(store, w, r, r.URL.Query().Get("id"))
	}
}

func remove(store storage.Storage, w http.ResponseWriter, r *http.Request, id string) {
	log := middleware.Logger(r.Context())
	log.Info("deleting a student", slog.String("id", id))

	intID, ok := parseID(w, id)
	if !ok {
		return
	}

	if err := store.Delete(r.Context(), intID); err != nil {
		log.Error("error deleting student",
			slog.Int64("id", intID),
			slog.String("error", err.Error()))
		writeStorageError(w, err)
		return
	}

	log.Info("student deleted", slog.Int64("id", intID))
	response.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func parseID(w http.ResponseWriter, id string) (int64, bool) {
	intID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		response.WriteJSON(w, http.StatusBadRequest,
			response.GeneralError(errors.New("invalid id: must be an integer")))
		return 0, false
	}
	return intID, true
}

// writeStorageError maps storage outcomes to status codes. Faults are
// reported without their cause so internals do not leak to clients.
func writeStorageError(w http.ResponseWriter, err error) {
	var validateErrs validator.ValidationErrors
	switch {
	case errors.Is(err, storage.ErrNotFound):
		response.WriteJSON(w, http.StatusNotFound, response.GeneralError(storage.ErrNotFound))
	case errors.As(err, &validateErrs):
		response.WriteJSON(w, http.StatusBadRequest, response.ValidationError(validateErrs))
	default:
		response.WriteJSON(w, http.StatusInternalServerError,
			response.GeneralError(errors.New("internal storage error")))
	}
}
