// Package contextual renders retrieved history into hidden prompt context.
// Pure string assembly: no I/O, tolerant of nil and empty input.
package contextual

import (
	"fmt"
	"strings"

	"github.com/mindmend/backend/internal/model/chat"
)

// pastLimit caps how many retrieved turns are surfaced in the prompt.
const pastLimit = 3

const pastHeader = "Relevant past moments:"

// PastContext renders the most recent turns of the retrieved history as a
// newline-joined block under a fixed header. Empty or nil input yields "".
func PastContext(records []chat.Record) string {
	if len(records) == 0 {
		return ""
	}

	limit := pastLimit
	if len(records) < limit {
		limit = len(records)
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(pastHeader)
	for _, rec := range records[:limit] {
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("[%s] %s: %s", rec.Timestamp.Format("2006-01-02"), rec.Role, rec.Content))
	}
	return b.String()
}

// NamePrefix returns the bracketed hidden instruction naming the user, or ""
// when no name is known.
func NamePrefix(userName string) string {
	if strings.TrimSpace(userName) == "" {
		return ""
	}
	return fmt.Sprintf("[Context: User's name is %s. Use their name naturally in conversation when appropriate.]\n\n", userName)
}
