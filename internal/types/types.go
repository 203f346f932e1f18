// Package types holds the shared data structures (models) used across
// the application. Keeping them in one place prevents import cycles:
// handlers, storage backends, and the cache can all import types without
// depending on each other.
package types

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Person is the base identity of every record.
//
// ID is assigned by the caller and must be non-zero. The text fields are
// free-form but must fit on a single line of the backing file.
type Person struct {
	ID        int64  `json:"id"        validate:"required"`
	Name      string `json:"name"      validate:"required,singleline"`
	LastName  string `json:"lastName"  validate:"required,singleline"`
	BornPlace string `json:"bornPlace" validate:"required,singleline"`
}

// Student is a Person enrolled in a degree at one campus.
//
// Person is embedded, so its fields are promoted both in Go
// (student.Name) and in JSON ({"id":1,"name":"Ana",...}).
type Student struct {
	Person

	Degree string `json:"degree" validate:"required,singleline"`

	// Campus travels as "place" on the wire to stay compatible with
	// existing clients of the registration form.
	Campus Campus `json:"place" validate:"required,campus"`

	ScoreAdmision int `json:"scoreAdmision"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Campus
// ─────────────────────────────────────────────────────────────────────────────

// Campus is one of the university's fixed set of campuses. It is stored
// and transmitted by its enumerated name.
type Campus string

const (
	CampusCiudadUniversitaria Campus = "CIUDAD_UNIVERSITARIA"
	CampusRobledo             Campus = "ROBLEDO"
	CampusAreaDeLaSalud       Campus = "AREA_DE_LA_SALUD"
	CampusOriente             Campus = "ORIENTE"
	CampusUraba               Campus = "URABA"
	CampusBajoCauca           Campus = "BAJO_CAUCA"
	CampusMagdalenaMedio      Campus = "MAGDALENA_MEDIO"
	CampusNorte               Campus = "NORTE"
	CampusNordeste            Campus = "NORDESTE"
	CampusOccidente           Campus = "OCCIDENTE"
	CampusSuroeste            Campus = "SUROESTE"
)

// Campuses lists every valid campus in declaration order.
var Campuses = []Campus{
	CampusCiudadUniversitaria,
	CampusRobledo,
	CampusAreaDeLaSalud,
	CampusOriente,
	CampusUraba,
	CampusBajoCauca,
	CampusMagdalenaMedio,
	CampusNorte,
	CampusNordeste,
	CampusOccidente,
	CampusSuroeste,
}

// ErrUnknownCampus is returned when a name is not one of Campuses.
var ErrUnknownCampus = errors.New("unknown campus")

// ParseCampus converts an enumerated name into a Campus. The match is
// exact: "robledo" or " ROBLEDO" are rejected.
func ParseCampus(s string) (Campus, error) {
	c := Campus(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCampus, s)
	}
	return c, nil
}

// Valid reports whether c is one of the enumerated campuses.
func (c Campus) Valid() bool {
	for _, known := range Campuses {
		if c == known {
			return true
		}
	}
	return false
}

func (c Campus) String() string { return string(c) }

// MarshalText implements encoding.TextMarshaler.
func (c Campus) MarshalText() ([]byte, error) {
	return []byte(c), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, so decoding JSON with
// an unknown campus fails early. An empty value decodes to the zero Campus
// and is reported later by validation as a missing field.
func (c *Campus) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*c = ""
		return nil
	}
	parsed, err := ParseCampus(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// validate is safe for concurrent use and caches struct metadata, so one
// instance is shared by the whole process.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON names ("lastName", "place") so messages
	// match what API clients actually send.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// campus: the value must be one of the enumerated names.
	_ = v.RegisterValidation("campus", func(fl validator.FieldLevel) bool {
		return Campus(fl.Field().String()).Valid()
	})

	// singleline: no tab, CR, or LF. Those characters are the field and
	// record separators of the flat-file format.
	_ = v.RegisterValidation("singleline", func(fl validator.FieldLevel) bool {
		return !strings.ContainsAny(fl.Field().String(), "\t\r\n")
	})

	return v
}

// Validate checks that every required field of s is present and that the
// record can be stored as one line. On failure the returned error is a
// validator.ValidationErrors.
func Validate(s Student) error {
	return validate.Struct(s)
}
