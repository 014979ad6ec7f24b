package orchestrator

import "strings"

const (
	StatusPending    = "pending"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
	StatusBlocked    = "blocked"
	StatusCancelled  = "cancelled"
	StatusDeferred   = "deferred"
)

var statusAliases = map[string]string{
	"IN_PROGRESS": StatusInProgress,
	"INPROGRESS":  StatusInProgress,
	"IN-PROGRESS": StatusInProgress,
	"DOING":       StatusInProgress,
	"COMPLETED":   StatusCompleted,
	"DONE":        StatusCompleted,
	"PENDING":     StatusPending,
	"TODO":        StatusPending,
	"BLOCKED":     StatusBlocked,
	"CANCELLED":   StatusCancelled,
	"DEFERRED":    StatusDeferred,
}

// NormalizeStatus maps stored status spellings to the lower-case
// vocabulary the dashboard uses. Unknown values are lower-cased.
func NormalizeStatus(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if v, ok := statusAliases[strings.ToUpper(s)]; ok {
		return v
	}
	return strings.ToLower(s)
}

// rawStatuses returns the upper-case stored spellings that normalize to
// the same value as status.
func rawStatuses(status string) []string {
	want := NormalizeStatus(status)
	var out []string
	for raw, norm := range statusAliases {
		if norm == want {
			out = append(out, raw)
		}
	}
	if len(out) == 0 {
		out = append(out, strings.ToUpper(strings.TrimSpace(status)))
	}
	return out
}

// statusIn returns "UPPER(col) IN (?,...)" with its bind values.
func statusIn(col, status string) (string, []any) {
	raws := rawStatuses(status)
	args := make([]any, len(raws))
	for i, r := range raws {
		args[i] = r
	}
	return "UPPER(" + col + ") IN (" + placeholders(len(raws)) + ")", args
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}
