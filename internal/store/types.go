package store

import "time"

// Run kinds.
const (
	KindScan  = "scan"
	KindClean = "clean"
)

// Run is one invocation of scan or clean.
type Run struct {
	ID         string
	Kind       string
	StartedAt  time.Time
	FinishedAt time.Time
	ReportPath string
	AuditLog   string
	Strategy   string // scan only
	Days       int    // scan only
	Found      int    // stale directories found (scan) or eligible (clean)
	Succeeded  int
	Failed     int
	Bytes      int64 // reclaimable (scan) or freed (clean)
	State      string
}

// Outcome mirrors one audit log line of a clean run.
type Outcome struct {
	RunID   string
	Seq     int
	Path    string
	Success bool
	Reason  string
	Bytes   int64
}
