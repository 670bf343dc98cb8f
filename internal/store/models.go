package store

import (
	"fmt"
	"strings"
	"time"
)

func toUnixMilli(t time.Time) int64 {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().UnixMilli()
}

func fromUnixMilli(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// Format renders an entry as a single line: "2006-01-02 15:04:05 INFO message {fields}".
func (e Entry) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s", e.Time.Format("2006-01-02 15:04:05"), strings.ToUpper(e.Level), e.Message)
	if e.Fields != "" && e.Fields != "{}" {
		b.WriteByte(' ')
		b.WriteString(e.Fields)
	}
	return b.String()
}
