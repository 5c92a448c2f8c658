package report

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"
	"github.com/goccy/go-yaml"
)

// Format selects the rendering of a report.
type Format string

// Supported formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ErrUnknownFormat indicates an unsupported format
// name.
var ErrUnknownFormat = errors.New("unknown output format")

// ParseFormat resolves a format name. An empty name
// selects text.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf(
			"%w: %q (want text, json or yaml)",
			ErrUnknownFormat, name,
		)
	}
}

// encode writes v as JSON or YAML. It returns false
// for the text format so callers render text
// themselves.
func encode(w io.Writer, format Format, v any) (bool, error) {
	const errCtx = "encoding report"

	var (
		buf []byte
		err error
	)

	switch format {
	case FormatJSON:
		buf, err = json.MarshalIndent(v, "", "  ")
		buf = append(buf, '\n')
	case FormatYAML:
		buf, err = yaml.Marshal(v)
	case FormatText, "":
		return false, nil
	default:
		return true, fmt.Errorf(
			"%s: %w: %q", errCtx, ErrUnknownFormat, format,
		)
	}

	if err != nil {
		return true, fmt.Errorf("%s: %w", errCtx, err)
	}

	if _, err := w.Write(buf); err != nil {
		return true, fmt.Errorf("%s: %w", errCtx, err)
	}

	return true, nil
}

// printer accumulates the first write error so text
// renderers can print line by line.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) linef(format string, args ...any) {
	if p.err != nil {
		return
	}

	_, p.err = fmt.Fprintf(p.w, format+"\n", args...)
}
