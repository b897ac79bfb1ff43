package types

// JobStatus is the lifecycle state of an audit job. Transitions move forward
// only (pending → crawling → processing → completed), except that failed is
// reachable from any non-terminal state.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobCrawling   JobStatus = "crawling"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether no further transition may follow.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// StatusEvent is one progress update published on a job's status channel.
// Status collapses the job lifecycle into the three states clients care
// about: processing, completed, failed.
type StatusEvent struct {
	Message string `json:"message"`
	Status  string `json:"status"`
	Count   int    `json:"count,omitempty"`
}

// Event status values seen by subscribers.
const (
	EventProcessing = "processing"
	EventCompleted  = "completed"
	EventFailed     = "failed"
)
