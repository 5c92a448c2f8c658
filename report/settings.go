package report

import (
	"io"
	"strings"

	"github.com/byte4ever/vkt/config"
)

// Settings renders configuration values grouped by
// section, as they would appear in the file.
func Settings(
	w io.Writer,
	format Format,
	path string,
	settings []config.Setting,
) error {
	if done, err := encode(w, format, settings); done {
		return err
	}

	p := &printer{w: w}
	p.linef("# %s", path)

	section := ""

	for _, s := range settings {
		sec, key, _ := strings.Cut(s.Key, ".")
		if sec != section {
			section = sec
			p.linef("[%s]", sec)
		}

		p.linef("  %s = %s", key, s.Value)
	}

	return p.err
}
