package export

import (
	"io"
	"strings"

	"github.com/filmforge/academy/internal/studio"
)

// CallSheetXLSX writes cs as a workbook with Overview, Scenes, Cast and Crew
// sheets.
func CallSheetXLSX(out io.Writer, cs studio.CallSheet) error {
	w, err := newWorkbook()
	if err != nil {
		return err
	}
	defer w.close()

	if err := w.keyValue("Overview", [][2]string{
		{"Production", cs.Production},
		{"Date", cs.Date},
		{"General call", cs.CallTime},
		{"Location", cs.Location},
		{"Notes", cs.Notes},
	}); err != nil {
		return err
	}

	scenes := make([][]any, len(cs.Scenes))
	for i, s := range cs.Scenes {
		scenes[i] = []any{s.Number, s.Description, s.Pages, strings.Join(s.Cast, ", ")}
	}
	if err := w.sheet("Scenes", []string{"Scene", "Description", "Pages", "Cast"}, scenes); err != nil {
		return err
	}

	cast := make([][]any, len(cs.Cast))
	for i, c := range cs.Cast {
		cast[i] = []any{c.Name, c.Role, c.CallTime}
	}
	if err := w.sheet("Cast", []string{"Name", "Role", "Call"}, cast); err != nil {
		return err
	}

	crew := make([][]any, len(cs.Crew))
	for i, c := range cs.Crew {
		crew[i] = []any{c.Name, c.Department, c.CallTime}
	}
	if err := w.sheet("Crew", []string{"Name", "Department", "Call"}, crew); err != nil {
		return err
	}

	if err := w.props(cs.Production+" call sheet", "FilmForge Studio"); err != nil {
		return err
	}
	return w.writeTo(out)
}
