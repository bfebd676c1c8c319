package syncer

import (
	"context"
	"strings"
	"sync"

	apperrors "github.com/dreamspy/mnemo/internal/errors"
	"github.com/dreamspy/mnemo/internal/models"
	"github.com/dreamspy/mnemo/internal/store"
	"github.com/dreamspy/mnemo/internal/tracing"
	"github.com/dreamspy/mnemo/pkg/mnemo"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// Notifier receives the queue length after every store mutation.
type Notifier interface {
	Refresh(ctx context.Context) int
}

// Engine drains the offline queue against the remote API. One drain
// pass attempts every eligible item in FIFO order; a connectivity
// failure halts the pass (the whole batch is presumed unreachable),
// while an application failure marks only that item and moves on.
type Engine struct {
	store  *store.Store
	client mnemo.Client
	logger *logrus.Logger
	badge  Notifier

	// Serializes drains: overlapping triggers (startup, online
	// transition, manual sync) coalesce into the pass already running.
	inFlight sync.Mutex
}

func New(st *store.Store, client mnemo.Client, badge Notifier, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}
	return &Engine{
		store:  st,
		client: client,
		badge:  badge,
		logger: logger,
	}
}

// Drain runs one drain pass. It returns immediately when another pass
// is already in flight, when no token is configured, or when the queue
// is empty — in all three cases without side effects.
func (e *Engine) Drain(ctx context.Context) error {
	if !e.inFlight.TryLock() {
		e.logger.Debug("Drain already in flight, coalescing trigger")
		return nil
	}
	defer e.inFlight.Unlock()

	if !e.client.HasToken() {
		e.logger.Debug("No API token configured, skipping drain")
		return nil
	}

	items, err := e.store.Load(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	ctx, span := tracing.StartSpan(ctx, "queue.drain",
		attribute.Int("queue.length", len(items)),
	)
	defer span.End()

	e.logger.WithField("pending", len(items)).Info("Draining offline queue")

	var synced, failed int
	for i := range items {
		item := &items[i]
		if !item.Eligible() {
			continue
		}

		item.Status = models.StatusSyncing
		item.Error = ""
		if err := e.store.UpdateItem(ctx, item); err != nil {
			e.logger.WithError(err).WithField("item", item.ID).Error("Failed to persist syncing status")
		}
		e.refreshBadge(ctx)

		replayErr := e.replay(ctx, item)
		if replayErr == nil {
			if err := e.store.Remove(ctx, item.ID); err != nil {
				e.logger.WithError(err).WithField("item", item.ID).Error("Failed to remove synced item")
			}
			e.refreshBadge(ctx)
			synced++
			e.logger.WithFields(logrus.Fields{
				"item": item.ID,
				"kind": item.Kind,
			}).Info("Queue item synced")
			continue
		}

		if apperrors.IsConnectivity(replayErr) {
			// The network is unreachable; later items would fail the
			// same way, so the whole pass stops here.
			item.Status = models.StatusPending
			item.Error = ""
			if err := e.store.UpdateItem(ctx, item); err != nil {
				e.logger.WithError(err).WithField("item", item.ID).Error("Failed to revert item to pending")
			}
			e.refreshBadge(ctx)
			tracing.RecordError(ctx, replayErr)
			tracing.AddSpanAttributes(ctx,
				attribute.Int("queue.synced", synced),
				attribute.Int("queue.failed", failed),
			)
			e.logger.WithField("item", item.ID).Warn("Connectivity failure, halting drain")
			return nil
		}

		item.Status = models.StatusFailed
		item.Error = replayErr.Error()
		if err := e.store.UpdateItem(ctx, item); err != nil {
			e.logger.WithError(err).WithField("item", item.ID).Error("Failed to persist failed status")
		}
		e.refreshBadge(ctx)
		failed++
		e.logger.WithFields(logrus.Fields{
			"item":  item.ID,
			"kind":  item.Kind,
			"error": replayErr.Error(),
		}).Warn("Queue item rejected by API, continuing")
	}

	tracing.AddSpanAttributes(ctx,
		attribute.Int("queue.synced", synced),
		attribute.Int("queue.failed", failed),
	)
	return nil
}

// replay executes the kind-specific protocol for one item.
func (e *Engine) replay(ctx context.Context, item *models.QueueItem) error {
	ctx, span := tracing.StartSpan(ctx, "queue.replay",
		attribute.String("item.id", item.ID),
		attribute.String("item.kind", string(item.Kind)),
	)
	defer span.End()

	switch item.Kind {
	case models.OperationEvent:
		ev, err := item.EventPayload()
		if err != nil {
			return err
		}
		_, err = e.client.PostEvent(ctx, ev)
		return err

	case models.OperationDiary:
		p, err := item.DecodeDiaryPayload()
		if err != nil {
			return err
		}
		_, err = e.client.SaveDiary(ctx, p.Date, p.Answers)
		return err

	case models.OperationDiaryBulk:
		p, err := item.DecodeDiaryBulkPayload()
		if err != nil {
			return err
		}
		parsed, err := e.client.ParseText(ctx, p.RawText, p.Questions)
		if err != nil {
			return err
		}
		merged := MergeAnswers(p.ScaleAnswers, parsed)
		_, err = e.client.SaveDiary(ctx, p.Date, merged)
		return err

	default:
		return apperrors.Application(0, "unknown operation kind: "+string(item.Kind))
	}
}

// MergeAnswers combines scale answers with server-parsed text answers.
// A parsed value wins only when non-empty; scale answers are never
// overwritten by an empty parse result.
func MergeAnswers(scale map[string]int, parsed map[string]string) map[string]interface{} {
	merged := make(map[string]interface{}, len(scale)+len(parsed))
	for k, v := range scale {
		merged[k] = v
	}
	for k, v := range parsed {
		if strings.TrimSpace(v) != "" {
			merged[k] = v
		}
	}
	return merged
}

func (e *Engine) refreshBadge(ctx context.Context) {
	if e.badge != nil {
		e.badge.Refresh(ctx)
	}
}
