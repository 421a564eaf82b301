package trace

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"

	"github.com/Masterminds/sprig"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*.txt
var templateFS embed.FS

var reportTemplate = template.Must(template.New("base").
	Funcs(sprig.TxtFuncMap()).
	Funcs(template.FuncMap{"title": title}).
	ParseFS(templateFS, "templates/*.txt"))

// title replaces sprig's title, which is built on the deprecated strings.Title.
// A Caser keeps state, so each call gets its own.
func title(s string) string {
	return cases.Title(language.English).String(s)
}

type reportData struct {
	Name        string
	TickRate    int
	Frames      int
	Max         int
	PeakPercent float32
	MeanPercent float32
	Stats       Stats
}

// Report renders a plain text summary of the trace.
func (t *Trace) Report(name string) (string, error) {
	s, err := t.Stats()
	if err != nil {
		return "", err
	}
	data := reportData{
		Name:        name,
		TickRate:    t.TickRate,
		Frames:      t.Frames,
		Max:         t.Max(),
		PeakPercent: s.Peak * 100,
		MeanPercent: s.Mean * 100,
		Stats:       s,
	}
	var buf bytes.Buffer
	if err := reportTemplate.ExecuteTemplate(&buf, "report", data); err != nil {
		return "", fmt.Errorf(`could not execute template "report": %v`, err)
	}
	return buf.String(), nil
}
