package render

import (
	"fmt"
	"io"
	"time"

	"github.com/coral-mesh/netwatch/internal/monitor"
)

// ConnectionRow is one record as shown to the user.
type ConnectionRow struct {
	PID        int32  `header:"PID" json:"pid"`
	Process    string `header:"Process" json:"process"`
	RemoteIP   string `header:"Remote IP" json:"remote_ip"`
	RemotePort uint32 `header:"Port" json:"remote_port"`
	Domain     string `header:"Domain" json:"domain"`
	State      string `json:"state"`
	Suspicious bool   `header:"Suspicious" json:"suspicious"`
}

// Flagged implements Flagger.
func (r ConnectionRow) Flagged() bool { return r.Suspicious }

// Rows converts records, keeping their order. With onlySuspicious set the
// unflagged ones are dropped.
func Rows(records []monitor.Record, onlySuspicious bool) []ConnectionRow {
	rows := make([]ConnectionRow, 0, len(records))
	for _, rec := range records {
		if onlySuspicious && !rec.Suspicious {
			continue
		}
		rows = append(rows, ConnectionRow{
			PID:        rec.PID,
			Process:    rec.ProcessName,
			RemoteIP:   rec.RemoteIP,
			RemotePort: rec.RemotePort,
			Domain:     rec.Domain,
			State:      rec.State.String(),
			Suspicious: rec.Suspicious,
		})
	}
	return rows
}

// cycleDocument is the JSON shape of one cycle.
type cycleDocument struct {
	Cycle          int             `json:"cycle"`
	ScannedAt      time.Time       `json:"scanned_at"`
	DurationMS     int64           `json:"duration_ms"`
	NewConnections int             `json:"new_connections"`
	ResolvedIPs    int             `json:"resolved_ips"`
	Suspicious     int             `json:"suspicious"`
	Fingerprint    string          `json:"fingerprint"`
	Connections    []ConnectionRow `json:"connections"`
}

// Options configures a CycleWriter.
type Options struct {
	Format         OutputFormat
	OnlySuspicious bool
	Color          bool
}

// CycleWriter prints one block per scan cycle.
type CycleWriter struct {
	w         io.Writer
	opts      Options
	formatter Formatter
}

// NewCycleWriter creates a CycleWriter writing to w.
func NewCycleWriter(w io.Writer, opts Options) (*CycleWriter, error) {
	if opts.Format == "" {
		opts.Format = FormatTable
	}
	formatter, err := NewFormatter(opts.Format, opts.Color)
	if err != nil {
		return nil, err
	}
	return &CycleWriter{w: w, opts: opts, formatter: formatter}, nil
}

// Write prints res. Tables get a timestamped header and a timing footer.
// JSON emits one document per cycle and CSV only the rows.
func (c *CycleWriter) Write(res *monitor.Result) error {
	rows := Rows(res.Records, c.opts.OnlySuspicious)

	switch c.opts.Format {
	case FormatJSON:
		return c.formatter.Format(cycleDocument{
			Cycle:          res.Cycle,
			ScannedAt:      res.ScannedAt,
			DurationMS:     res.Duration.Milliseconds(),
			NewConnections: res.NewConnections,
			ResolvedIPs:    res.ResolvedIPs,
			Suspicious:     res.SuspiciousCount(),
			Fingerprint:    fmt.Sprintf("%016x", res.Fingerprint),
			Connections:    rows,
		}, c.w)
	case FormatCSV:
		return c.formatter.Format(rows, c.w)
	}

	if _, err := fmt.Fprintf(c.w, "\n[+] Analyzing Connections @ %s\n", res.ScannedAt.Format("15:04:05")); err != nil {
		return err
	}
	if err := c.formatter.Format(rows, c.w); err != nil {
		return err
	}
	_, err := fmt.Fprintf(c.w, "\n[i] Scan completed in %.2f seconds (%d connections, %d new, %d suspicious)\n",
		res.Duration.Seconds(), len(res.Records), res.NewConnections, res.SuspiciousCount())
	return err
}
