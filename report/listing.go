package report

import (
	"io"

	"github.com/dustin/go-humanize"

	"github.com/byte4ever/vkt/fetch"
	"github.com/byte4ever/vkt/forge"
)

// Entries renders a remote listing. Directories carry
// a trailing slash; recursive listings print full
// paths, flat ones print names.
func Entries(
	w io.Writer,
	format Format,
	entries []forge.RemoteEntry,
	recursive bool,
) error {
	if entries == nil {
		entries = []forge.RemoteEntry{}
	}

	if done, err := encode(w, format, entries); done {
		return err
	}

	p := &printer{w: w}

	for _, e := range entries {
		name := e.Name()
		if recursive {
			name = e.Path
		}

		if e.IsDir() {
			p.linef("%s/", name)

			continue
		}

		if e.Size > 0 {
			p.linef("%s\t%s", name, humanize.IBytes(uint64(e.Size)))

			continue
		}

		p.linef("%s", name)
	}

	return p.err
}

// Downloads renders the per-file results of a get.
func Downloads(w io.Writer, format Format, results []fetch.Result) error {
	if results == nil {
		results = []fetch.Result{}
	}

	if done, err := encode(w, format, results); done {
		return err
	}

	p := &printer{w: w}

	if len(results) == 0 {
		p.linef("Nothing to download.")

		return p.err
	}

	var (
		saved int
		total uint64
	)

	for _, r := range results {
		if !r.OK() {
			p.linef("  FAILED %s: %s", r.RemotePath, r.Error)

			continue
		}

		saved++
		total += uint64(max(r.Size, 0))

		if r.Unchanged {
			p.linef("  unchanged %s (%s)", r.LocalPath, r.Digest)

			continue
		}

		p.linef(
			"  saved %s -> %s (%s)",
			r.RemotePath, r.LocalPath,
			humanize.IBytes(uint64(max(r.Size, 0))),
		)
	}

	p.linef(
		"Downloaded %s of %s file(s), %s.",
		humanize.Comma(int64(saved)),
		humanize.Comma(int64(len(results))),
		humanize.IBytes(total),
	)

	return p.err
}
