package domain

import (
	"fmt"
	"sync"
	"time"
)

// JobState is a pipeline state
type JobState string

const (
	JobQueued      JobState = "queued"
	JobSearching   JobState = "searching"
	JobFetching    JobState = "fetching"
	JobTranscoding JobState = "transcoding"
	JobSending     JobState = "sending"
	JobDone        JobState = "done"
	JobFailed      JobState = "failed"
)

// IsTerminal reports whether no further transition is possible
func (s JobState) IsTerminal() bool {
	return s == JobDone || s == JobFailed
}

// Searching may end in Done when results are listed for selection
// instead of downloaded.
var jobTransitions = map[JobState][]JobState{
	JobQueued:      {JobSearching, JobFetching},
	JobSearching:   {JobFetching, JobDone},
	JobFetching:    {JobTranscoding, JobSending},
	JobTranscoding: {JobSending},
	JobSending:     {JobDone},
}

// CanTransition reports whether from -> to is legal
func CanTransition(from, to JobState) bool {
	if from.IsTerminal() {
		return false
	}
	if to == JobFailed {
		return true
	}
	for _, next := range jobTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SourceKind is where the media comes from
type SourceKind string

const (
	SourceQuery      SourceKind = "query"
	SourceURL        SourceKind = "url"
	SourceAttachment SourceKind = "attachment"
)

// Source identifies the job input
type Source struct {
	Kind       SourceKind
	Query      string
	URL        string
	Title      string // known title, e.g. from a selected search item
	Attachment *Attachment
}

// Describe returns a short human-readable label
func (s Source) Describe() string {
	switch s.Kind {
	case SourceQuery:
		return "query " + s.Query
	case SourceURL:
		if s.Title != "" {
			return s.Title
		}
		return s.URL
	case SourceAttachment:
		if s.Attachment != nil {
			return string(s.Attachment.Kind) + " attachment"
		}
	}
	return string(s.Kind)
}

// JobMode selects how a query source is handled
type JobMode string

const (
	ModeList   JobMode = "list"   // search and present results for selection
	ModeBest   JobMode = "best"   // search and download the top result
	ModeDirect JobMode = "direct" // URL or attachment, no search
)

// Output describes what the job must deliver
type Output struct {
	AudioOnly bool
	Quality   Quality
	Format    Format
	Bitrate   string // e.g. "192k", audio targets only
	Caption   string
}

// Job is one acquisition unit of work. State is guarded because the admin
// API reads it while the job goroutine advances it.
type Job struct {
	ID        string
	ChatID    Identity
	Requester Identity
	Source    Source
	Mode      JobMode
	Output    Output
	StartedAt time.Time

	mu     sync.Mutex
	state  JobState
	reason string
}

// NewJob creates a job in Queued state
func NewJob(id string, chatID, requester Identity, src Source, mode JobMode, out Output) *Job {
	return &Job{
		ID:        id,
		ChatID:    chatID,
		Requester: requester,
		Source:    src,
		Mode:      mode,
		Output:    out,
		StartedAt: time.Now(),
		state:     JobQueued,
	}
}

// State returns the current state
func (j *Job) State() JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Reason returns the failure reason, empty unless Failed
func (j *Job) Reason() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.reason
}

// Transition moves the job to the next state
func (j *Job) Transition(to JobState) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !CanTransition(j.state, to) {
		return fmt.Errorf("illegal job transition %s -> %s", j.state, to)
	}
	j.state = to
	return nil
}

// Fail moves the job to Failed. Failing a terminal job is a no-op.
func (j *Job) Fail(reason string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.IsTerminal() {
		return
	}
	j.state = JobFailed
	j.reason = reason
}

// JobSnapshot is a read-only view of a job
type JobSnapshot struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id"`
	Requester string    `json:"requester"`
	Source    string    `json:"source"`
	State     JobState  `json:"state"`
	StartedAt time.Time `json:"started_at"`
}

// Snapshot captures the job for display
func (j *Job) Snapshot() JobSnapshot {
	return JobSnapshot{
		ID:        j.ID,
		ChatID:    string(j.ChatID),
		Requester: string(j.Requester),
		Source:    j.Source.Describe(),
		State:     j.State(),
		StartedAt: j.StartedAt,
	}
}
