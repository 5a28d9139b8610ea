package dynamo

import (
	"time"

	"github.com/Assamir/kiro-demo-sub001/internal/core"
)

// Calendar dates are stored as YYYY-MM-DD strings so DynamoDB range and
// filter expressions compare them lexicographically.

func formatDate(t time.Time) string {
	return core.DateOnly(t).Format(dateLayout)
}

func parseDate(s string) time.Time {
	t, _ := time.Parse(dateLayout, s)
	return t
}
