package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/apex/log"
	"github.com/rabbitmq/amqp091-go"
	"github.com/veedubyou/stem-splitter/src/shared/lib/cerr"
	"github.com/veedubyou/stem-splitter/src/shared/lib/rabbitmq"
	"github.com/veedubyou/stem-splitter/src/shared/separation/entity"
	"github.com/veedubyou/stem-splitter/src/shared/separation/errors"
)

const (
	SucceededType string = "separation_succeeded"
	FailedType    string = "separation_failed"
)

type JobFinishedMessage struct {
	JobID        string                `json:"job_id"`
	Filename     string                `json:"filename"`
	ModelName    string                `json:"model_name"`
	OutputFolder string                `json:"output_folder,omitempty"`
	Stems        []string              `json:"stems,omitempty"`
	ErrorKind    separationerrors.Kind `json:"error_kind,omitempty"`
	ErrorDetail  string                `json:"error_detail,omitempty"`
}

const publishTimeout = 10 * time.Second

// Notifier announces finished jobs on the queue. A Notifier without a
// publisher drops every event.
type Notifier struct {
	publisher rabbitmq.Publisher
}

func NewNotifier(publisher rabbitmq.Publisher) Notifier {
	return Notifier{publisher: publisher}
}

func (n Notifier) Enabled() bool {
	return n.publisher != nil
}

// JobFinished never fails the job: a publish error is only logged.
func (n Notifier) JobFinished(ctx context.Context, job *separationentity.Job) {
	if !n.Enabled() {
		return
	}

	logger := log.WithFields(log.Fields{
		"jobID":  job.ID,
		"status": job.Status,
	})

	msg, err := jobFinishedPublishing(job)
	if err != nil {
		logger.WithError(err).Error("Failed to build job finished event")
		return
	}

	// the request may already be cancelled, the event should still go out
	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := n.publisher.Publish(publishCtx, msg); err != nil {
		logger.WithError(err).Error("Failed to publish job finished event")
		return
	}

	logger.Debug("Published job finished event")
}

func jobFinishedPublishing(job *separationentity.Job) (amqp091.Publishing, error) {
	if !job.Status.IsTerminal() {
		return amqp091.Publishing{}, cerr.Field("job_id", job.ID).
			Field("status", job.Status).
			Error("Job has not finished")
	}

	message := JobFinishedMessage{
		JobID:     job.ID,
		Filename:  job.Request.Filename,
		ModelName: job.ModelName,
	}

	msgType := SucceededType
	if job.Status == separationentity.SucceededStatus {
		message.OutputFolder = job.FinalOutputPath
		message.Stems = job.StemFiles
	} else {
		msgType = FailedType
		if job.Error != nil {
			message.ErrorKind = job.Error.Kind
			message.ErrorDetail = job.Error.Detail
		}
	}

	body, err := json.Marshal(message)
	if err != nil {
		return amqp091.Publishing{}, cerr.Field("job_id", job.ID).Wrap(err).Error("Failed to marshal job finished message")
	}

	return amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Type:         msgType,
		MessageId:    job.ID,
		Body:         body,
	}, nil
}
