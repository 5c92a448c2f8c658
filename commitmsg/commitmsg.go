package commitmsg

import (
	"regexp"
	"strings"
	"time"
)

// Trailer keys written by Compose.
const (
	SignoffKey     = "Signed-off-by"
	ContentHashKey = "X-Content-Hash"
)

// Params holds the inputs of Compose.
type Params struct {
	// Message is the user's commit message, kept
	// verbatim apart from trailing blank lines.
	Message string
	// Signoff adds a Signed-off-by trailer for the
	// author.
	Signoff     bool
	AuthorName  string
	AuthorEmail string
	// ContentHash is the aggregate digest of the
	// submitted content.
	ContentHash string
}

// Trailer is one "Key: value" line of the trailer
// block.
type Trailer struct {
	Key   string
	Value string
}

// Compose returns the full commit message: the user's
// message byte for byte, a blank line, then the
// trailers. Only the newlines missing to form that
// blank line are added.
func Compose(p Params) string {
	var sb strings.Builder

	sb.WriteString(p.Message)

	switch {
	case strings.HasSuffix(p.Message, "\n\n"):
	case strings.HasSuffix(p.Message, "\n"):
		sb.WriteString("\n")
	default:
		sb.WriteString("\n\n")
	}

	if p.Signoff {
		sb.WriteString(SignoffKey)
		sb.WriteString(": ")
		sb.WriteString(p.AuthorName)
		sb.WriteString(" <")
		sb.WriteString(p.AuthorEmail)
		sb.WriteString(">\n")
	}

	sb.WriteString(ContentHashKey)
	sb.WriteString(": ")
	sb.WriteString(p.ContentHash)
	sb.WriteByte('\n')

	return sb.String()
}

// ExtractTrailers returns the trailers of the last
// paragraph of msg in order. A last paragraph holding
// any line that is not "Key: value" is not a trailer
// block and yields nil.
func ExtractTrailers(msg string) []Trailer {
	paras := strings.Split(
		strings.TrimRight(msg, "\n"), "\n\n",
	)
	if len(paras) < 2 {
		return nil
	}

	var trailers []Trailer

	last := strings.TrimLeft(paras[len(paras)-1], "\n")

	for _, line := range strings.Split(last, "\n") {
		key, value, ok := strings.Cut(line, ": ")
		if !ok || key == "" || strings.ContainsAny(key, " \t") {
			return nil
		}

		trailers = append(trailers, Trailer{
			Key:   key,
			Value: strings.TrimSpace(value),
		})
	}

	return trailers
}

// ExtractContentHash returns the X-Content-Hash
// trailer value of msg.
func ExtractContentHash(msg string) (string, bool) {
	for _, tr := range ExtractTrailers(msg) {
		if tr.Key == ContentHashKey {
			return tr.Value, true
		}
	}

	return "", false
}

const (
	branchPrefix   = "feat/"
	slugMaxLen     = 40
	slugFallback   = "submit"
	branchTSFormat = "20060102150405"
)

var (
	conventionalType = regexp.MustCompile(`^\w+(\([^)]*\))?!?:\s*`)
	nonAlnum         = regexp.MustCompile(`[^a-z0-9]+`)
)

// BranchName derives a branch name from the first line
// of message and ts:
//
//	feat/<slug>-<YYYYMMDDHHMMSS>
//
// The slug drops a leading conventional-commit type,
// lowercases, collapses non-alphanumeric runs to "-"
// and keeps at most 40 characters. The timestamp is in
// UTC. Identical inputs give identical names.
func BranchName(message string, ts time.Time) string {
	return branchPrefix + Slug(message) + "-" +
		ts.UTC().Format(branchTSFormat)
}

// Slug returns the branch slug of message.
func Slug(message string) string {
	subject, _, _ := strings.Cut(
		strings.TrimSpace(message), "\n",
	)

	s := conventionalType.ReplaceAllString(subject, "")
	s = nonAlnum.ReplaceAllString(strings.ToLower(s), "-")
	s = strings.Trim(s, "-")

	if len(s) > slugMaxLen {
		s = strings.TrimRight(s[:slugMaxLen], "-")
	}

	if s == "" {
		return slugFallback
	}

	return s
}

// Title returns the pull request title: the subject
// line of message, preceded by prefix when set.
func Title(prefix string, message string) string {
	subject, _, _ := strings.Cut(
		strings.TrimSpace(message), "\n",
	)

	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return subject
	}

	return prefix + " " + subject
}
