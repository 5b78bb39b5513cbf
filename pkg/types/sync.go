package types

import "time"

// Sync result statuses
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// FolderStats counts what happened to one folder during a run.
type FolderStats struct {
	Folder  string `json:"folder"`
	Fetched int    `json:"fetched"`
	Created int    `json:"created"`
	Updated int    `json:"updated"`
	Failed  int    `json:"failed"`
	Error   string `json:"error,omitempty"`
}

// SyncResult is the outcome of one server's sync.
type SyncResult struct {
	ServerID    int64         `json:"server_id"`
	Owner       string        `json:"owner"`
	Server      string        `json:"server"`
	Status      string        `json:"status"`
	Message     string        `json:"message"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Folders     []FolderStats `json:"folders,omitempty"`
	Err         error         `json:"-"`
}

// OK reports whether the server synced successfully.
func (r *SyncResult) OK() bool {
	return r.Status == StatusSuccess
}

// RunReport aggregates the results of one sync run.
type RunReport struct {
	RunID      string       `json:"run_id"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Results    []SyncResult `json:"results"`
}

// Failed returns the number of servers that did not sync.
func (r *RunReport) Failed() int {
	n := 0
	for i := range r.Results {
		if !r.Results[i].OK() {
			n++
		}
	}
	return n
}

// Scope selects the servers a run covers. The zero value covers every
// server; Owner narrows to one owner and Server (with Owner) to one server.
type Scope struct {
	Owner  string
	Server string
}

// Single reports whether the scope names exactly one server.
func (s Scope) Single() bool {
	return s.Server != ""
}
