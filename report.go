package twitter

import (
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Stats summarizes a collection run.
type Stats struct {
	Total    int
	Newest   time.Time
	Oldest   time.Time
	Likes    int
	Retweets int
}

// ComputeStats aggregates records. Order does not matter.
func ComputeStats(records []PostRecord) Stats {
	var s Stats
	for i, r := range records {
		s.Total++
		s.Likes += r.Likes
		s.Retweets += r.Retweets
		if i == 0 || r.CreatedAt.After(s.Newest) {
			s.Newest = r.CreatedAt
		}
		if i == 0 || r.CreatedAt.Before(s.Oldest) {
			s.Oldest = r.CreatedAt
		}
	}
	return s
}

// WriteSummary renders the collection stats as a table.
func WriteSummary(w io.Writer, account string, records []PostRecord) {
	s := ComputeStats(records)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Collection Stats: @" + account)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRow(table.Row{"Total posts", s.Total})
	if s.Total > 0 {
		t.AppendRow(table.Row{"Date range", s.Oldest.Format(time.DateOnly) + " to " + s.Newest.Format(time.DateOnly)})
	} else {
		t.AppendRow(table.Row{"Date range", "-"})
	}
	t.AppendRow(table.Row{"Total likes", s.Likes})
	t.AppendRow(table.Row{"Total retweets", s.Retweets})
	t.SetStyle(table.StyleRounded)
	t.Render()
}
