package student

import (
	"net/http"

	"github.com/aanand-mishra/students-registry/internal/storage"
)

// Register adds the student routes to router.
//
// Route table:
//
//	POST   /api/students        → register a student
//	GET    /api/students        → list all students
//	GET    /api/students/{id}   → get one student by id
//	DELETE /api/students/{id}   → delete a student
//	POST   /save                → register (registration form)
//	GET    /search?id={id}      → get one student (registration form)
//	DELETE /delete?id={id}      → delete a student (registration form)
func Register(router *http.ServeMux, store storage.Storage) {
	router.HandleFunc("POST /api/students", New(store))
	router.HandleFunc("GET /api/students", GetList(store))
	router.HandleFunc("GET /api/students/{id}", GetByID(store))
	router.HandleFunc("DELETE /api/students/{id}", Delete(store))

	router.HandleFunc("POST /save", Save(store))
	router.HandleFunc("GET /search", Search(store))
	router.HandleFunc("DELETE /delete", DeleteByQuery(store))
}
