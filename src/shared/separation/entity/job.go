package separationentity

import (
	"fmt"

	"github.com/veedubyou/stem-splitter/src/shared/lib/cerr"
	"github.com/veedubyou/stem-splitter/src/shared/separation/errors"
)

type Status string

const (
	// PendingStatus is a job that has not passed validation yet
	PendingStatus   Status = ""
	ValidatedStatus Status = "validated"
	InvokedStatus   Status = "invoked"
	RelocatedStatus Status = "relocated"
	SucceededStatus Status = "succeeded"
	FailedStatus    Status = "failed"
)

var nextStatuses = map[Status][]Status{
	PendingStatus:   {ValidatedStatus, FailedStatus},
	ValidatedStatus: {InvokedStatus, FailedStatus},
	InvokedStatus:   {RelocatedStatus, FailedStatus},
	RelocatedStatus: {SucceededStatus, FailedStatus},
}

func (s Status) IsTerminal() bool {
	return s == SucceededStatus || s == FailedStatus
}

func (s Status) canTransitionTo(next Status) bool {
	for _, allowed := range nextStatuses[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Paths are the filesystem locations derived from one request.
type Paths struct {
	InputPath       string
	BaseName        string
	SubNamespace    string
	ToolOutputPath  string
	FinalOutputPath string
}

func (p Paths) NeedsRelocation() bool {
	return p.SubNamespace != ""
}

type JobError struct {
	Kind   separationerrors.Kind `json:"kind"`
	Detail string                `json:"detail"`
}

// Job is the in-flight record of a single request. It lives only as long as
// the request and moves through its statuses monotonically.
type Job struct {
	ID        string
	Request   SeparationRequest
	ModelName string
	Paths
	Status    Status
	StemFiles []string
	Downloads []StemDownload
	Error     *JobError
}

func NewJob(id string, request SeparationRequest) *Job {
	return &Job{
		ID:        id,
		Request:   request,
		ModelName: request.ModelName,
		Status:    PendingStatus,
	}
}

func (j *Job) Transition(next Status) error {
	if next == FailedStatus {
		return cerr.Field("job_id", j.ID).Error("Failed status must be set through Fail")
	}

	if !j.Status.canTransitionTo(next) {
		return separationerrors.New(separationerrors.UnexpectedError,
			fmt.Sprintf("Invalid job transition: %q -> %q", j.Status, next))
	}

	j.Status = next
	return nil
}

func (j *Job) Validated(paths Paths) error {
	j.Paths = paths
	return j.Transition(ValidatedStatus)
}

func (j *Job) Succeed(stemFiles []string, downloads []StemDownload) error {
	if err := j.Transition(SucceededStatus); err != nil {
		return err
	}

	j.StemFiles = stemFiles
	j.Downloads = downloads
	return nil
}

// Fail is a no-op once the job is terminal, the first outcome sticks.
func (j *Job) Fail(err error) {
	if j.Status.IsTerminal() {
		return
	}

	j.Status = FailedStatus
	j.Error = &JobError{
		Kind:   separationerrors.KindOf(err),
		Detail: err.Error(),
	}
}

func (j *Job) Result() Result {
	return Result{
		Status:       SuccessStatus,
		JobID:        j.ID,
		OutputFolder: j.FinalOutputPath,
		Stems:        j.StemFiles,
		Downloads:    j.Downloads,
	}
}
