package esign

import (
	"bytes"
	"sort"
	"text/template"
)

var termTemplate = template.Must(template.New("term").Parse(`{{.Title}}

The undersigned accepts responsibility for the equipment described below.

{{range .Fields}}{{.Key}}: {{.Value}}
{{end}}
Signature: ______________________________
`))

// TemplateRenderer renders transfer terms as plain-text documents. The
// provider converts them for display; no local PDF toolchain is required.
type TemplateRenderer struct{}

func (TemplateRenderer) RenderTransferTerm(title string, fields map[string]string) ([]byte, error) {
	type kv struct{ Key, Value string }
	ordered := make([]kv, 0, len(fields))
	for k, v := range fields {
		ordered = append(ordered, kv{Key: k, Value: v})
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Key < ordered[j].Key })

	var buf bytes.Buffer
	err := termTemplate.Execute(&buf, struct {
		Title  string
		Fields []kv
	}{Title: title, Fields: ordered})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
