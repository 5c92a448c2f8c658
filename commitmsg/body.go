package commitmsg

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/valyala/fasttemplate"
)

// DefaultBodyTemplate is the pull request body layout.
// Placeholders are {{NAME}}; unknown ones are kept.
const DefaultBodyTemplate = `## Change Description
{{DESCRIPTION}}

## Files
{{FILES}}

## Trace Information
- Submitter: {{SUBMITTER}}
- Submission Time: {{TIME}}
- Files: {{FILE_COUNT}}
- ` + ContentHashKey + `: {{CONTENT_HASH}}
`

// File is one uploaded file listed in the body.
type File struct {
	Path string
	Size int64
}

// BodyParams holds the values substituted into the
// pull request body.
type BodyParams struct {
	// Template overrides DefaultBodyTemplate when set.
	Template string
	// Description is the user's commit message.
	Description string
	Files       []File
	AuthorName  string
	AuthorEmail string
	Time        time.Time
	ContentHash string
}

// Body renders the pull request body.
func Body(p BodyParams) string {
	tpl := p.Template
	if tpl == "" {
		tpl = DefaultBodyTemplate
	}

	var files strings.Builder

	for _, f := range p.Files {
		files.WriteString("- `")
		files.WriteString(f.Path)
		files.WriteString("` (")
		files.WriteString(humanize.IBytes(uint64(max(f.Size, 0))))
		files.WriteString(")\n")
	}

	submitter := p.AuthorName
	if p.AuthorEmail != "" {
		submitter += " <" + p.AuthorEmail + ">"
	}

	stamps := map[string]any{
		"DESCRIPTION":  strings.TrimSpace(p.Description),
		"FILES":        strings.TrimRight(files.String(), "\n"),
		"FILE_COUNT":   humanize.Comma(int64(len(p.Files))),
		"SUBMITTER":    strings.TrimSpace(submitter),
		"TIME":         p.Time.UTC().Format(time.RFC3339),
		"CONTENT_HASH": p.ContentHash,
	}

	return fasttemplate.ExecuteStringStd(tpl, "{{", "}}", stamps)
}
