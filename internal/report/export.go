package report

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/suPer8Hu/journal-platform/internal/markdown"
)

type ExportFormat string

const (
	FormatMarkdown ExportFormat = "md"
	FormatDoc      ExportFormat = "doc"
)

func ParseExportFormat(s string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(s))) {
	case FormatMarkdown, "markdown", "":
		return FormatMarkdown, nil
	case FormatDoc, "word":
		return FormatDoc, nil
	}
	return "", fmt.Errorf("%w: unsupported export format %q", ErrValidation, s)
}

// Export is a rendered report file.
type Export struct {
	FileName    string
	ContentType string
	Body        []byte
}

var docTemplate = template.Must(template.New("doc").Parse(`<html xmlns:o='urn:schemas-microsoft-com:office:office' xmlns:w='urn:schemas-microsoft-com:office:word' xmlns='http://www.w3.org/TR/REC-html40'>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body style="font-family: Arial, sans-serif; padding: 40px;">
<div style="border-bottom: 2px solid #000; padding-bottom: 20px; margin-bottom: 20px;">
<h1 style="text-transform: uppercase; margin: 0; font-size: 24pt;">{{.Title}}</h1>
<p style="margin: 10px 0 0 0; color: #666; font-size: 14pt;"><strong>{{.CompanyName}}</strong></p>
<div style="margin-top: 20px; font-size: 11pt;">
<p><strong>Intern:</strong> {{.UserName}}</p>
<p><strong>Role:</strong> {{.UserRole}}</p>
<p><strong>Period:</strong> {{.Start}} - {{.End}}</p>
</div>
</div>
<div style="line-height: 1.6;">
{{.Body}}
</div>
<p style="margin-top: 40px; color: #999; font-size: 8pt;">{{.FooterText}}</p>
</body>
</html>
`))

func (r *Report) ExportAs(f ExportFormat) (*Export, error) {
	p := r.Period.Data()
	name := "Weekly-Report-" + orDefault(&p.Start, "Report")
	content := markdown.CleanUp(r.Content)

	switch f {
	case FormatMarkdown:
		return &Export{
			FileName:    name + ".md",
			ContentType: "text/markdown; charset=utf-8",
			Body:        []byte(content),
		}, nil
	case FormatDoc:
		body, err := markdown.RenderHTML(content)
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		// Word detects UTF-8 from the BOM.
		buf.WriteString("\ufeff")
		err = docTemplate.Execute(&buf, map[string]any{
			"Title":       r.Title,
			"CompanyName": r.CompanyName,
			"UserName":    r.UserName,
			"UserRole":    r.UserRole,
			"Start":       orDefault(&p.Start, "N/A"),
			"End":         orDefault(&p.End, "N/A"),
			"FooterText":  r.FooterText,
			"Body":        template.HTML(body),
		})
		if err != nil {
			return nil, err
		}
		return &Export{
			FileName:    name + ".doc",
			ContentType: "application/msword",
			Body:        buf.Bytes(),
		}, nil
	}
	return nil, fmt.Errorf("%w: unsupported export format %q", ErrValidation, f)
}
