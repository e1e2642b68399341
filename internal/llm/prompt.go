// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"bytes"
	"text/template"
)

// classifyPromptTmpl is sent for one or more scraped pages. Each page comes
// with a bounded preview and a sample of its outbound links.
var classifyPromptTmpl = template.Must(template.New("classify").Parse(`You classify web pages reached while trying to obtain the full text of academic works.

For each page choose exactly one classification:
- full_text: the page contains the complete body of the work.
- abstract_with_pdf: the page shows only an abstract or landing page, and a link to the full-text PDF is present. Put that link in pdf_url.
- paywall: the full text requires a subscription, purchase, or institutional login.
- non_academic: the page is not an academic work (error pages, blogs, news, storefronts).

Also report a confidence between 0.0 and 1.0, the work's title and authors if visible, and one sentence of reasoning.
Use an empty string for pdf_url when no PDF link is present. Never invent a link that is not in the page or link list.
{{range .Pages}}
=== PAGE {{.ID}} ===
URL: {{.URL}}
{{- if .DOI}}
Known DOI: {{.DOI}}
{{- end}}
Links:
{{- range .Links}}
- {{.}}
{{- end}}
Content preview:
{{.Preview}}
{{end}}`))

// metadataPromptTmpl asks for bibliographic metadata of converted documents.
var metadataPromptTmpl = template.Must(template.New("metadata").Parse(`Extract bibliographic metadata from the beginning of each academic document below.

For each document return its id, title, authors (in order, as written), publication year (0 if unknown), DOI (empty if none is printed), and abstract (empty if none).
Copy text exactly as it appears. Do not guess values that are not in the text.
{{range .Documents}}
=== DOCUMENT {{.ID}} ===
{{.Head}}
{{end}}`))

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
