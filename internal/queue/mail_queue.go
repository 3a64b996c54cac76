package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/SeakMengs/AutoSign/internal/config"
	"github.com/SeakMengs/AutoSign/internal/mailer"
	"github.com/SeakMengs/AutoSign/internal/model"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type MailConsumerContext struct {
	Config *config.Config
	Logger *zap.SugaredLogger
	Mailer mailer.Client
}

type MailJobPayload struct {
	OutboxID     string                  `json:"outbox_id"`
	ToEmail      string                  `json:"to_email"`
	ToName       string                  `json:"to_name"`
	TemplateFile mailer.MailTemplateFile `json:"template_file"`
	Data         json.RawMessage         `json:"data"`
	CreatedAt    string                  `json:"created_at"`
	Try          int                     `json:"try" default:"0"`
}

func NewMailJobFromOutbox(msg model.OutboxMessage) MailJobPayload {
	data := json.RawMessage(msg.Payload)
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}

	return MailJobPayload{
		OutboxID:     msg.ID,
		ToEmail:      msg.ToEmail,
		ToName:       msg.ToName,
		TemplateFile: mailer.MailTemplateFile(msg.TemplateFile),
		Data:         data,
		CreatedAt:    msg.CreatedAt.Format(time.RFC3339),
	}
}

// MailJobHandler reports whether a failed job is worth another try.
type MailJobHandler func(ctx context.Context, jobPayload MailJobPayload, app *MailConsumerContext) (bool, error)

// SendMailJob renders and sends the job. Payloads that cannot be decoded,
// templates that fail to render and 4xx rejections from the provider are not retried.
func SendMailJob(ctx context.Context, jobPayload MailJobPayload, app *MailConsumerContext) (bool, error) {
	data, err := mailer.DecodeTemplateData(jobPayload.TemplateFile, jobPayload.Data)
	if err != nil {
		return false, err
	}

	status, err := app.Mailer.Send(jobPayload.TemplateFile, jobPayload.ToName, jobPayload.ToEmail, data)
	if err != nil {
		if errors.Is(err, mailer.ErrRender) {
			return false, err
		}
		permanent := status >= http.StatusBadRequest && status < http.StatusInternalServerError
		return !permanent, err
	}
	return false, nil
}

func (r *RabbitMQ) ConsumeMailJob(ctx context.Context, handler MailJobHandler, maxWorker int, app *MailConsumerContext) error {
	msgs, err := r.Consume(QueueMail)
	if err != nil {
		return fmt.Errorf("failed to start consuming mail jobs: %w", err)
	}

	for i := 0; i < maxWorker; i++ {
		go func(workerNumber int) {
			runMailWorker(ctx, r, workerNumber, msgs, handler, app)
		}(i + 1)
	}

	return nil
}

func runMailWorker(ctx context.Context, publisher Publisher, workerNumber int, msgs <-chan amqp091.Delivery, handler MailJobHandler, app *MailConsumerContext) {
	for {
		select {
		case <-ctx.Done():
			app.Logger.Infof("[Mail Worker %d] Shutting down", workerNumber)
			return
		case msg, ok := <-msgs:
			if !ok {
				app.Logger.Infof("[Mail Worker %d] Message channel closed", workerNumber)
				return
			}
			processMailJob(ctx, publisher, workerNumber, msg, handler, app)
		}
	}
}

func processMailJob(ctx context.Context, publisher Publisher, workerNumber int, msg amqp091.Delivery, handler MailJobHandler, app *MailConsumerContext) {
	if msg.Body == nil {
		app.Logger.Warnf("[Mail Worker %d] Received empty message body", workerNumber)
		nack(app, msg)
		return
	}

	var jobPayload MailJobPayload
	if err := json.Unmarshal(msg.Body, &jobPayload); err != nil {
		app.Logger.Warnf("[Mail Worker %d] Invalid payload: %v", workerNumber, err)
		nack(app, msg)
		return
	}

	workerPrefix := fmt.Sprintf("[Mail Worker %d: Retry %d]", workerNumber, jobPayload.Try)

	shouldRequeue, err := handler(ctx, jobPayload, app)
	if err != nil {
		app.Logger.Errorf("%s Handler error processing mail job %s for recipient: %s, template: %s: %v",
			workerPrefix, jobPayload.OutboxID, jobPayload.ToEmail, jobPayload.TemplateFile, err)

		if !shouldRequeue || jobPayload.Try >= MAX_QUEUE_RETRY {
			app.Logger.Errorf("%s Dropping mail job %s for recipient: %s, template: %s (retry: %d, shouldRequeue: %v)",
				workerPrefix, jobPayload.OutboxID, jobPayload.ToEmail, jobPayload.TemplateFile, jobPayload.Try, shouldRequeue)
			nack(app, msg)
			return
		}

		requeueMailJob(ctx, publisher, workerPrefix, msg, jobPayload, app)
		return
	}

	app.Logger.Infof("%s Successfully processed mail job %s for recipient: %s, template: %s",
		workerPrefix, jobPayload.OutboxID, jobPayload.ToEmail, jobPayload.TemplateFile)
	if err := msg.Ack(false); err != nil {
		app.Logger.Errorf("%s Failed to ack mail job %s: %v", workerPrefix, jobPayload.OutboxID, err)
	}
}

func nack(app *MailConsumerContext, msg amqp091.Delivery) {
	if err := msg.Nack(false, false); err != nil {
		app.Logger.Errorf("Failed to nack delivery %d: %v", msg.DeliveryTag, err)
	}
}

// requeueMailJob publishes a copy with Try bumped, then acks the original.
func requeueMailJob(ctx context.Context, publisher Publisher, workerPrefix string, msg amqp091.Delivery, jobPayload MailJobPayload, app *MailConsumerContext) {
	jobPayload.Try++
	payloadBytes, err := json.Marshal(jobPayload)
	if err != nil {
		app.Logger.Errorf("%s Failed to marshal mail payload for requeue: %v", workerPrefix, err)
		nack(app, msg)
		return
	}

	if err := publisher.Publish(ctx, QueueMail, payloadBytes); err != nil {
		app.Logger.Errorf("%s Failed to requeue mail job for recipient: %s, template: %s: %v",
			workerPrefix, jobPayload.ToEmail, jobPayload.TemplateFile, err)
		nack(app, msg)
		return
	}

	app.Logger.Infof("%s Requeued mail job for recipient: %s, template: %s",
		workerPrefix, jobPayload.ToEmail, jobPayload.TemplateFile)
	if err := msg.Ack(false); err != nil {
		app.Logger.Errorf("%s Failed to ack requeued mail job: %v", workerPrefix, err)
	}
}
