package flatfile

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aanand-mishra/students-registry/internal/types"
)

// format of a record line (fields separated by a single tab):
// <id> <name> <lastName> <bornPlace> <degree> <campus> <scoreAdmision>
//
// format of a tombstone line:
// <id> -
const (
	delimiter     = "\t"
	tombstoneMark = "-"
	recordFields  = 7
)

var errMalformedLine = errors.New("malformed line")

// line is one parsed line of the data file.
type line struct {
	id        int64
	tombstone bool
	student   types.Student
}

func formatRecord(s types.Student) string {
	return strings.Join([]string{
		strconv.FormatInt(s.ID, 10),
		s.Name,
		s.LastName,
		s.BornPlace,
		s.Degree,
		s.Campus.String(),
		strconv.Itoa(s.ScoreAdmision),
	}, delimiter)
}

func formatTombstone(id int64) string {
	return strconv.FormatInt(id, 10) + delimiter + tombstoneMark
}

// parseLine decodes a line without its trailing newline.
func parseLine(s string) (line, error) {
	fields := strings.Split(s, delimiter)

	id, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return line{}, fmt.Errorf("%w: invalid id %q", errMalformedLine, fields[0])
	}

	if len(fields) == 2 && fields[1] == tombstoneMark {
		return line{id: id, tombstone: true}, nil
	}
	if len(fields) != recordFields {
		return line{}, fmt.Errorf("%w: expected %d fields, got %d", errMalformedLine, recordFields, len(fields))
	}

	campus, err := types.ParseCampus(fields[5])
	if err != nil {
		return line{}, fmt.Errorf("%w: %w", errMalformedLine, err)
	}
	score, err := strconv.Atoi(fields[6])
	if err != nil {
		return line{}, fmt.Errorf("%w: invalid score %q", errMalformedLine, fields[6])
	}

	return line{
		id: id,
		student: types.Student{
			Person: types.Person{
				ID:        id,
				Name:      fields[1],
				LastName:  fields[2],
				BornPlace: fields[3],
			},
			Degree:        fields[4],
			Campus:        campus,
			ScoreAdmision: score,
		},
	}, nil
}
