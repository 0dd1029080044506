package markdown

import "strings"

// Block is a region of a note delimited by two marker lines whose content is
// owned by the program. Everything outside the markers belongs to the user.
type Block struct {
	Start string
	End   string
}

// Replace swaps the block's content in body for generated, appending a new
// block after the user's text when none exists yet.
func (b Block) Replace(body, generated string) string {
	rendered := b.Start + "\n" + generated + "\n" + b.End
	if from, to, ok := b.locate(body); ok {
		return body[:from] + rendered + body[to:]
	}

	switch {
	case strings.TrimSpace(body) == "":
		return rendered + "\n"
	case strings.HasSuffix(body, "\n"):
		return body + "\n" + rendered + "\n"
	default:
		return body + "\n\n" + rendered + "\n"
	}
}

// Content returns what sits between the markers, without the marker lines.
func (b Block) Content(body string) (string, bool) {
	from, to, ok := b.locate(body)
	if !ok {
		return "", false
	}
	inner := body[from+len(b.Start) : to-len(b.End)]
	return strings.Trim(inner, "\n"), true
}

func (b Block) locate(body string) (int, int, bool) {
	from := strings.Index(body, b.Start)
	if from < 0 {
		return 0, 0, false
	}
	rel := strings.Index(body[from+len(b.Start):], b.End)
	if rel < 0 {
		return 0, 0, false
	}
	return from, from + len(b.Start) + rel + len(b.End), true
}
