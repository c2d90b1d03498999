package notify

import (
	"sort"
	"time"

	"github.com/alejandrodnm/dovault/internal/domain"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04")
}

// formatSigned renders a non-positive payoff at decimals.
func formatSigned(v int64, decimals uint8) string {
	if v >= 0 {
		return domain.FormatAmount(uint64(v), decimals)
	}
	return "-" + domain.FormatAmount(domain.AbsInt64(v), decimals)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
