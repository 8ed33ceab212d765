package models

// Status is the terminal state of one instrument in a download run.
type Status string

const (
	StatusWritten  Status = "written"
	StatusNoData   Status = "no_data"
	StatusRejected Status = "rejected"
	StatusFailed   Status = "failed"
)

func (s Status) String() string {
	return string(s)
}

// Outcome records how one instrument finished. Outcomes are append-only and
// never retried; the reporting layer decides what to do with them.
type Outcome struct {
	Instrument Instrument `json:"instrument"`
	Status     Status     `json:"status"`
	Detail     string     `json:"detail,omitempty"`
}
