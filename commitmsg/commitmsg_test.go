package commitmsg_test

import (
	"strings"
	"testing"
	"time"

	"github.com/byte4ever/vkt/commitmsg"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hash = "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"

func TestCompose_with_signoff(t *testing.T) {
	t.Parallel()

	msg := commitmsg.Compose(commitmsg.Params{
		Message:     "feat: add debug script",
		Signoff:     true,
		AuthorName:  "Dev",
		AuthorEmail: "dev@example.com",
		ContentHash: hash,
	})

	assert.Equal(
		t,
		"feat: add debug script\n\n"+
			"Signed-off-by: Dev <dev@example.com>\n"+
			"X-Content-Hash: "+hash+"\n",
		msg,
	)

	assert.Less(
		t,
		strings.Index(msg, "Signed-off-by"),
		strings.Index(msg, "X-Content-Hash"),
	)
}

func TestCompose_without_signoff(t *testing.T) {
	t.Parallel()

	msg := commitmsg.Compose(commitmsg.Params{
		Message:     "fix: typo\n\nlonger body\n\n",
		ContentHash: hash,
	})

	assert.Equal(
		t,
		"fix: typo\n\nlonger body\n\nX-Content-Hash: "+hash+"\n",
		msg,
	)
	assert.NotContains(t, msg, "Signed-off-by")
}

func TestCompose_keeps_message_verbatim(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		message string
	}{
		{name: "no newline", message: "feat: x"},
		{name: "one newline", message: "feat: x\n"},
		{name: "blank line", message: "feat: x\n\n"},
		{name: "extra blank lines", message: "feat: x\n\n\n"},
		{name: "trailing spaces", message: "feat: x  \n\tbody "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			msg := commitmsg.Compose(commitmsg.Params{
				Message:     tt.message,
				ContentHash: hash,
			})

			body, ok := strings.CutSuffix(msg, "X-Content-Hash: "+hash+"\n")
			require.True(t, ok)
			assert.True(t, strings.HasPrefix(body, tt.message))
			assert.True(t, strings.HasSuffix(body, "\n\n"))
			assert.LessOrEqual(t, len(body)-len(tt.message), 2)

			h, ok := commitmsg.ExtractContentHash(msg)
			require.True(t, ok)
			assert.Equal(t, hash, h)
		})
	}
}

func TestExtractTrailers_roundtrip(t *testing.T) {
	t.Parallel()

	msg := commitmsg.Compose(commitmsg.Params{
		Message:     "feat: x\n\nbody",
		Signoff:     true,
		AuthorName:  "Dev",
		AuthorEmail: "dev@example.com",
		ContentHash: hash,
	})

	got := commitmsg.ExtractTrailers(msg)

	require.Equal(t, []commitmsg.Trailer{
		{Key: "Signed-off-by", Value: "Dev <dev@example.com>"},
		{Key: "X-Content-Hash", Value: hash},
	}, got)

	h, ok := commitmsg.ExtractContentHash(msg)
	require.True(t, ok)
	assert.Equal(t, hash, h)
}

func TestExtractTrailers_no_trailer_block(t *testing.T) {
	t.Parallel()

	assert.Empty(t, commitmsg.ExtractTrailers("just a regular commit message"))
	assert.Empty(t, commitmsg.ExtractTrailers("subject\n\nnot a trailer line"))

	_, ok := commitmsg.ExtractContentHash("subject\n\nSigned-off-by: A <a@b.c>")
	assert.False(t, ok)
}

func TestBranchName(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	tests := []struct {
		name    string
		message string
		want    string
	}{
		{
			name:    "conventional type dropped",
			message: "feat: Add debug script",
			want:    "feat/add-debug-script-20260304050607",
		},
		{
			name:    "scope and bang dropped",
			message: "fix(net)!: Retry on 502",
			want:    "feat/retry-on-502-20260304050607",
		},
		{
			name:    "slashes and punctuation collapse",
			message: "feat/fix: something/bug!!",
			want:    "feat/feat-fix-something-bug-20260304050607",
		},
		{
			name:    "subject line only",
			message: "docs: readme\n\nbody text",
			want:    "feat/readme-20260304050607",
		},
		{
			name:    "empty slug falls back",
			message: "chore: ???",
			want:    "feat/submit-20260304050607",
		},
		{
			name:    "truncated",
			message: strings.Repeat("abcde ", 20),
			want: "feat/abcde-abcde-abcde-abcde-abcde-abcde-abcd" +
				"-20260304050607",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, commitmsg.BranchName(tt.message, ts))
		})
	}
}

func TestBranchName_deterministic_and_utc(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+2", 2*60*60)
	ts := time.Date(2026, 1, 1, 2, 0, 0, 0, loc)

	a := commitmsg.BranchName("feat: same", ts)
	b := commitmsg.BranchName("feat: same", ts)

	assert.Equal(t, a, b)
	assert.Equal(t, "feat/same-20260101000000", a)
}

func TestTitle(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "[VKT] feat: x", commitmsg.Title("[VKT]", "feat: x\n\nbody"))
	assert.Equal(t, "feat: x", commitmsg.Title("  ", "feat: x"))
}

func TestBody(t *testing.T) {
	t.Parallel()

	body := commitmsg.Body(commitmsg.BodyParams{
		Description: "feat: add debug script",
		Files: []commitmsg.File{
			{Path: "scripts/debug.sh", Size: 4200},
		},
		AuthorName:  "Dev",
		AuthorEmail: "dev@example.com",
		Time:        time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
		ContentHash: hash,
	})

	assert.Contains(t, body, "## Change Description\nfeat: add debug script\n")
	assert.Contains(t, body, "- `scripts/debug.sh` (4.1 KiB)")
	assert.Contains(t, body, "## Trace Information")
	assert.Contains(t, body, "- Submitter: Dev <dev@example.com>")
	assert.Contains(t, body, "- Submission Time: 2026-03-04T05:06:07Z")
	assert.Contains(t, body, "- Files: 1")
	assert.Contains(t, body, "X-Content-Hash: "+hash)
}

func TestBody_custom_template_keeps_unknown(t *testing.T) {
	t.Parallel()

	body := commitmsg.Body(commitmsg.BodyParams{
		Template:    "{{DESCRIPTION}} {{UNKNOWN}}",
		Description: "hi",
	})

	assert.Equal(t, "hi {{UNKNOWN}}", body)
}
