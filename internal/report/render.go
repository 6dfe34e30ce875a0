package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Format is an export format.
type Format string

const (
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
	FormatJSON     Format = "json"
)

// Formats lists every supported format.
var Formats = []Format{FormatMarkdown, FormatHTML, FormatJSON}

// ParseFormat accepts a format name or a common alias.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "md", "markdown":
		return FormatMarkdown, nil
	case "html", "htm":
		return FormatHTML, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown report format %q (want one of md, html, json)", s)
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatJSON:
		return "application/json"
	default:
		return "text/markdown; charset=utf-8"
	}
}

var funcs = template.FuncMap{
	"upper": strings.ToUpper,
	"check": func(done bool) string {
		if done {
			return "Done"
		}
		return "Pending"
	},
}

var markdownTemplate = template.Must(template.New("report").Funcs(funcs).Parse(`# Mission Report

| | |
|---|---|
| Mission ID | ` + "`{{ .MissionID }}`" + ` |
| Goal | {{ .Goal }} |
| Status | {{ upper (print .Status) }} |
| Completed Steps | {{ .StepsCompleted }}/{{ .TotalSteps }} |
{{- with .FinalPosition }}
| Final Position | ({{ .X }}, {{ .Y }}) |
{{- end }}
| Waypoints | {{ .Waypoints }} |
| Generated | {{ .GeneratedAt.Format "2006-01-02 15:04:05 UTC" }} |

## Mission Steps
{{ range .Steps }}
- **Step {{ .Number }}: {{ .Action }}**{{ with .Description }} - {{ . }}{{ end }}{{ with .Target }} (target ({{ .X }}, {{ .Y }})){{ end }} - {{ check .Completed }}
{{- else }}
_No steps planned._
{{- end }}
{{- if .OmittedSteps }}
- _{{ .OmittedSteps }} more steps omitted_
{{- end }}

## Mission Logs
{{ if .OmittedLogs }}
_{{ .OmittedLogs }} earlier entries omitted._
{{ end }}
{{- range .Logs }}
- ` + "`{{ .Timestamp }}`" + ` **{{ .Agent }}** [{{ .Level }}] {{ .Message }}
{{- else }}
_No log entries._
{{- end }}
{{- with .Photos }}

## Rover Photos
{{ range . }}
- Sol {{ .Sol }}, {{ .Camera }}: {{ .URL }}
{{- end }}
{{- end }}
{{- with .Picture }}

## Astronomy Picture of the Day

**{{ .Title }}**{{ with .Date }} ({{ . }}){{ end }}

{{ .Explanation }}
{{ with .ImageURL }}
![{{ $.Picture.Title }}]({{ . }})
{{ end }}
{{- end }}
`))

// RenderMarkdown renders doc as Markdown.
func RenderMarkdown(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := markdownTemplate.Execute(&buf, doc); err != nil {
		return nil, fmt.Errorf("failed to render markdown report: %w", err)
	}
	return buf.Bytes(), nil
}

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Table),
	goldmark.WithRendererOptions(html.WithXHTML()),
)

// RenderHTML renders doc as a standalone HTML page.
func RenderHTML(doc *Document) ([]byte, error) {
	src, err := RenderMarkdown(doc)
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	if err := markdown.Convert(src, &body); err != nil {
		return nil, fmt.Errorf("failed to render html report: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\"/>\n<title>Mission Report ")
	buf.WriteString(template.HTMLEscapeString(doc.MissionID))
	buf.WriteString("</title>\n</head>\n<body>\n")
	buf.Write(body.Bytes())
	buf.WriteString("</body>\n</html>\n")
	return buf.Bytes(), nil
}

// RenderJSON renders doc as indented JSON.
func RenderJSON(doc *Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to render json report: %w", err)
	}
	return append(data, '\n'), nil
}

// Render renders doc in format f.
func Render(doc *Document, f Format) ([]byte, error) {
	switch f {
	case FormatMarkdown:
		return RenderMarkdown(doc)
	case FormatHTML:
		return RenderHTML(doc)
	case FormatJSON:
		return RenderJSON(doc)
	}
	return nil, fmt.Errorf("unknown report format %q", f)
}
