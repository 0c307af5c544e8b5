package progress

import (
	"fmt"
	"time"
)

// Summary is the final job report printed at Finalizing.
type Summary struct {
	Duration      time.Duration
	SchemaCount   int
	TableCount    int
	DataBytes     int64
	BytesWritten  int64
}

// Render formats the summary the way the Reporter's progress line is
// boxed, using the DONE style.
func (s Summary) Render() string {
	ratio := 1.0
	if s.BytesWritten > 0 {
		ratio = float64(s.DataBytes) / float64(s.BytesWritten)
	}
	var throughput float64
	if s.Duration > 0 {
		throughput = float64(s.DataBytes) / s.Duration.Seconds()
	}
	body := fmt.Sprintf(
		"dump complete in %s\n%d schemas, %d tables\n%s raw, %s written (%.2fx compression)\n%s/s throughput",
		s.Duration.Round(time.Second), s.SchemaCount, s.TableCount,
		humanBytes(s.DataBytes), humanBytes(s.BytesWritten), ratio, humanBytes(int64(throughput)),
	)
	return boxFor("DONE").Render(body)
}
