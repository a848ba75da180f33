package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/your-org/facegroup/internal/facegroup"
	"github.com/your-org/facegroup/internal/models"
	"github.com/your-org/facegroup/internal/observability"
)

// ErrConfirmFailed is returned when a subscription handshake could not be
// completed.
var ErrConfirmFailed = errors.New("subscription confirmation failed")

// Payload kinds reported in Result.
const (
	KindConfirmation = "confirmation"
	KindNotification = "notification"
	KindStorageEvent = "storage_event"
	KindUnsupported  = "unsupported"
)

// Record outcomes, also used as metric labels.
const (
	OutcomeCreated           = "created"
	OutcomeFiltered          = "filtered"
	OutcomeAlreadyProcessed  = "already_processed"
	OutcomeDuplicate         = "duplicate"
	OutcomeNoFace            = "no_face"
	OutcomeLookupFailed      = "lookup_failed"
	OutcomeDetectionFailed   = "detection_failed"
	OutcomePersistenceFailed = "persistence_failed"
)

// Result summarizes one invocation.
type Result struct {
	Kind    string              `json:"kind"`
	Created []models.FaceRecord `json:"created,omitempty"`
	Skipped int                 `json:"skipped"`
	// Duplicates counts records dropped because a concurrent invocation
	// stored the same image first. They are also counted in Skipped.
	Duplicates int `json:"duplicates"`
	Failed     int `json:"failed"`
}

type Options struct {
	Filter       RecordFilter
	CollectionID string
	// CallTimeout bounds each matcher and store call.
	CallTimeout    time.Duration
	ConfirmTimeout time.Duration
}

// Pipeline turns storage notifications into face records. It is safe for
// concurrent use; records within one payload are processed in order.
type Pipeline struct {
	matcher   facegroup.Matcher
	store     facegroup.Store
	grouper   *facegroup.Grouper
	confirmer Confirmer
	notifier  facegroup.Notifier
	opts      Options
	now       func() time.Time
}

// NewPipeline wires the pipeline. notifier may be nil.
func NewPipeline(matcher facegroup.Matcher, store facegroup.Store, grouper *facegroup.Grouper,
	confirmer Confirmer, notifier facegroup.Notifier, opts Options) *Pipeline {
	return &Pipeline{
		matcher:   matcher,
		store:     store,
		grouper:   grouper,
		confirmer: confirmer,
		notifier:  notifier,
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Handle processes one raw payload: a subscription confirmation, a
// notification envelope wrapping a storage event, or a bare storage event.
// Errors are returned only for malformed input (wrapping
// facegroup.ErrMalformedPayload) or a failed handshake (ErrConfirmFailed);
// record-level failures are logged and counted in the Result.
func (p *Pipeline) Handle(ctx context.Context, payload []byte) (Result, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return Result{}, fmt.Errorf("%w: empty body", facegroup.ErrMalformedPayload)
	}

	if models.IsRawStorageEvent(payload) {
		var evt models.StorageEvent
		if err := json.Unmarshal(payload, &evt); err != nil {
			return Result{}, fmt.Errorf("%w: decode storage event: %v", facegroup.ErrMalformedPayload, err)
		}
		if evt.Records == nil {
			return Result{}, fmt.Errorf("%w: storage event has no Records", facegroup.ErrMalformedPayload)
		}
		observability.NotificationsReceived.WithLabelValues(KindStorageEvent).Inc()
		res := p.HandleEvent(ctx, evt)
		res.Kind = KindStorageEvent
		return res, nil
	}

	var env models.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Result{}, fmt.Errorf("%w: decode envelope: %v", facegroup.ErrMalformedPayload, err)
	}

	switch env.Type {
	case models.EnvelopeSubscriptionConfirmation:
		observability.NotificationsReceived.WithLabelValues(KindConfirmation).Inc()
		return Result{Kind: KindConfirmation}, p.confirm(ctx, env)

	case models.EnvelopeNotification:
		observability.NotificationsReceived.WithLabelValues(KindNotification).Inc()
		evt, err := decodeMessage(env.Message)
		if errors.Is(err, facegroup.ErrUnsupportedEvent) {
			slog.Info("ignoring storage test event", "message_id", env.MessageID)
			return Result{Kind: KindUnsupported}, nil
		}
		if err != nil {
			return Result{}, err
		}
		res := p.HandleEvent(ctx, evt)
		res.Kind = KindNotification
		return res, nil

	case models.EnvelopeUnsubscribeConfirmation:
		observability.NotificationsReceived.WithLabelValues(KindUnsupported).Inc()
		slog.Warn("notification subscription removed", "topic", env.TopicArn, "message_id", env.MessageID)
		return Result{Kind: KindUnsupported}, nil

	case "":
		return Result{}, fmt.Errorf("%w: missing envelope Type", facegroup.ErrMalformedPayload)

	default:
		observability.NotificationsReceived.WithLabelValues(KindUnsupported).Inc()
		slog.Info("ignoring unsupported envelope", "type", env.Type, "message_id", env.MessageID)
		return Result{Kind: KindUnsupported}, nil
	}
}

func (p *Pipeline) confirm(ctx context.Context, env models.Envelope) error {
	if env.SubscribeURL == "" {
		return fmt.Errorf("%w: subscription confirmation without SubscribeURL", facegroup.ErrMalformedPayload)
	}
	if p.opts.ConfirmTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.ConfirmTimeout)
		defer cancel()
	}
	slog.Info("confirming subscription", "topic", env.TopicArn)
	if err := p.confirmer.Confirm(ctx, env.SubscribeURL); err != nil {
		slog.Error("subscription confirmation failed", "topic", env.TopicArn, "error", err)
		return fmt.Errorf("%w: %v", ErrConfirmFailed, err)
	}
	slog.Info("subscription confirmed", "topic", env.TopicArn)
	return nil
}

// decodeMessage parses the storage event carried as a JSON string inside a
// notification envelope.
func decodeMessage(msg string) (models.StorageEvent, error) {
	var evt models.StorageEvent
	if msg == "" {
		return evt, fmt.Errorf("%w: notification without Message", facegroup.ErrMalformedPayload)
	}
	if err := json.Unmarshal([]byte(msg), &evt); err != nil {
		return evt, fmt.Errorf("%w: decode message: %v", facegroup.ErrMalformedPayload, err)
	}
	if evt.Event == "s3:TestEvent" {
		return evt, facegroup.ErrUnsupportedEvent
	}
	if evt.Records == nil {
		return evt, fmt.Errorf("%w: message has no Records", facegroup.ErrMalformedPayload)
	}
	return evt, nil
}

// HandleEvent processes every record of a decoded storage event. A failing
// record never stops its siblings.
func (p *Pipeline) HandleEvent(ctx context.Context, evt models.StorageEvent) Result {
	var res Result
	for _, rec := range evt.Records {
		outcome, face := p.processRecord(ctx, rec)
		observability.RecordsProcessed.WithLabelValues(outcome).Inc()

		switch outcome {
		case OutcomeCreated:
			res.Created = append(res.Created, *face)
		case OutcomeLookupFailed, OutcomeDetectionFailed, OutcomePersistenceFailed:
			res.Failed++
		case OutcomeDuplicate:
			res.Duplicates++
			res.Skipped++
		default:
			res.Skipped++
		}
	}
	return res
}

func (p *Pipeline) processRecord(ctx context.Context, rec models.StorageRecord) (string, *models.FaceRecord) {
	key, reason := p.opts.Filter.Check(rec)
	if reason != "" {
		slog.Info("skipping record", "reason", reason, "source", rec.EventSource,
			"bucket", rec.S3.Bucket.Name, "key", key)
		return OutcomeFiltered, nil
	}

	existing, err := p.withTimeout(ctx, func(ctx context.Context) ([]models.FaceRecord, error) {
		return p.store.Scan(ctx, facegroup.Filter{ImageRef: key})
	})
	if err != nil {
		slog.Error("idempotency check failed", "key", key, "error", err)
		return OutcomeLookupFailed, nil
	}
	if len(existing) > 0 {
		slog.Info("image already processed", "key", key, "face_id", existing[0].FaceID)
		return OutcomeAlreadyProcessed, nil
	}

	start := time.Now()
	var faceID string
	var found bool
	err = p.call(ctx, func(ctx context.Context) error {
		var err error
		faceID, found, err = p.matcher.Detect(ctx, key)
		return err
	})
	if err != nil {
		slog.Error("face detection failed", "key", key,
			"error", fmt.Errorf("%w: %v", facegroup.ErrDetectionFailed, err))
		return OutcomeDetectionFailed, nil
	}
	if !found {
		slog.Info("skipping record", "key", key, "reason", facegroup.ErrNoFaceDetected.Error())
		return OutcomeNoFace, nil
	}
	observability.StageDuration.WithLabelValues("index").Observe(time.Since(start).Seconds())

	var assignment facegroup.Assignment
	err = p.call(ctx, func(ctx context.Context) error {
		var err error
		assignment, err = p.grouper.Assign(ctx, faceID)
		return err
	})
	if err != nil {
		slog.Error("grouping failed", "key", key, "face_id", faceID, "error", err)
		p.forget(ctx, faceID)
		return OutcomeDetectionFailed, nil
	}

	face := models.FaceRecord{
		FaceID:       faceID,
		GroupID:      assignment.GroupID,
		ImageRef:     key,
		CollectionID: p.opts.CollectionID,
		CreatedAt:    p.now(),
	}
	err = p.call(ctx, func(ctx context.Context) error {
		return p.store.Put(ctx, face)
	})
	if errors.Is(err, facegroup.ErrDuplicateImage) {
		slog.Info("image processed concurrently, dropping duplicate face", "key", key, "face_id", faceID)
		p.forget(ctx, faceID)
		return OutcomeDuplicate, nil
	}
	if err != nil {
		slog.Error("persist face failed", "key", key, "face_id", faceID,
			"error", fmt.Errorf("%w: %v", facegroup.ErrPersistenceFailed, err))
		p.forget(ctx, faceID)
		return OutcomePersistenceFailed, nil
	}

	observability.FacesIndexed.Inc()
	if assignment.Fresh {
		observability.GroupsCreated.Inc()
	}
	slog.Info("face indexed", "key", key, "face_id", faceID, "group_id", face.GroupID,
		"matched_face_id", assignment.MatchedFaceID, "similarity", assignment.Similarity)

	p.notify(ctx, face)
	return OutcomeCreated, &face
}

// call runs fn under the per-call timeout.
func (p *Pipeline) call(ctx context.Context, fn func(context.Context) error) error {
	if p.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.CallTimeout)
		defer cancel()
	}
	return fn(ctx)
}

func (p *Pipeline) withTimeout(ctx context.Context, fn func(context.Context) ([]models.FaceRecord, error)) ([]models.FaceRecord, error) {
	var out []models.FaceRecord
	err := p.call(ctx, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}

// forget drops a face the matcher indexed but that has no stored record.
func (p *Pipeline) forget(ctx context.Context, faceID string) {
	f, ok := p.matcher.(facegroup.Forgetter)
	if !ok {
		return
	}
	if err := p.call(ctx, func(ctx context.Context) error { return f.Forget(ctx, faceID) }); err != nil {
		slog.Warn("forget orphaned face", "face_id", faceID, "error", err)
	}
}

func (p *Pipeline) notify(ctx context.Context, face models.FaceRecord) {
	if p.notifier == nil {
		return
	}
	evt := models.FaceEvent{
		Type:         models.FaceEventIndexed,
		CollectionID: face.CollectionID,
		GroupID:      face.GroupID,
		Faces:        []models.FaceRecord{face},
		Timestamp:    face.CreatedAt,
	}
	if err := p.notifier.PublishFaceEvent(ctx, evt); err != nil {
		slog.Warn("publish face event", "face_id", face.FaceID, "error", err)
	}
}
