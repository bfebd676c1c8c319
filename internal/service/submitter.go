package service

import (
	"context"
	"strings"
	"time"

	"github.com/dreamspy/mnemo/internal/constants"
	apperrors "github.com/dreamspy/mnemo/internal/errors"
	"github.com/dreamspy/mnemo/internal/models"
	"github.com/dreamspy/mnemo/internal/store"
	"github.com/dreamspy/mnemo/internal/syncer"
	"github.com/dreamspy/mnemo/pkg/mnemo"
	"github.com/dreamspy/mnemo/pkg/mnemo/types"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Submitter is the live submission path. Each user action is validated
// locally, attempted directly against the API, and enqueued for later
// replay only when the network itself was unreachable. Application
// failures are surfaced to the caller and never enqueued: retrying a
// rejected payload unchanged would just be rejected again.
type Submitter struct {
	store  *store.Store
	client mnemo.Client
	badge  *Badge
	logger *logrus.Logger
}

func NewSubmitter(st *store.Store, client mnemo.Client, badge *Badge, logger *logrus.Logger) *Submitter {
	return &Submitter{
		store:  st,
		client: client,
		badge:  badge,
		logger: logger,
	}
}

// SubmitEvent logs one event. It returns queued=true when the event was
// deferred to the offline queue instead of delivered.
func (s *Submitter) SubmitEvent(ctx context.Context, eventType, text string, metrics map[string]float64) (queued bool, err error) {
	text = strings.TrimSpace(text)
	if eventType == "" {
		return false, apperrors.Validation("event type is required")
	}
	if text == "" {
		return false, apperrors.Validation("text is required")
	}
	if !s.client.HasToken() {
		return false, apperrors.Validation("no API token configured")
	}
	if metrics == nil {
		metrics = map[string]float64{}
	}

	event := &types.Event{
		ID:              uuid.NewString(),
		ClientTimestamp: clientTimestamp(),
		Type:            eventType,
		Text:            text,
		Metrics:         metrics,
		Meta:            types.Meta{Version: constants.EventSchemaVersion},
	}

	_, err = s.client.PostEvent(ctx, event)
	if err == nil {
		return false, nil
	}
	if !apperrors.IsConnectivity(err) {
		return false, err
	}

	return s.enqueue(ctx, models.OperationEvent, event)
}

// SaveDiary saves a fully-answered diary entry for the given date.
func (s *Submitter) SaveDiary(ctx context.Context, date string, answers map[string]interface{}) (queued bool, err error) {
	if err := validateDate(date); err != nil {
		return false, err
	}
	if len(answers) == 0 {
		return false, apperrors.Validation("answers are required")
	}
	if !s.client.HasToken() {
		return false, apperrors.Validation("no API token configured")
	}

	_, err = s.client.SaveDiary(ctx, date, answers)
	if err == nil {
		return false, nil
	}
	if !apperrors.IsConnectivity(err) {
		return false, err
	}

	payload := models.DiaryPayload{Date: date, Answers: answers}
	return s.enqueue(ctx, models.OperationDiary, payload)
}

// SaveDiaryBulk saves a diary entry whose free text still needs
// server-side parsing. The live path parses, merges, and saves; when
// the network is unreachable at either remote step the raw payload is
// enqueued as-is — never the parse output, so parsing happens exactly
// once, at replay.
func (s *Submitter) SaveDiaryBulk(ctx context.Context, date, rawText string, scaleAnswers map[string]int, questions []types.Question) (queued bool, err error) {
	if err := validateDate(date); err != nil {
		return false, err
	}
	rawText = strings.TrimSpace(rawText)
	if rawText == "" && len(scaleAnswers) == 0 {
		return false, apperrors.Validation("diary entry is empty")
	}
	if !s.client.HasToken() {
		return false, apperrors.Validation("no API token configured")
	}

	payload := models.DiaryBulkPayload{
		Date:         date,
		ScaleAnswers: scaleAnswers,
		RawText:      rawText,
		Questions:    questions,
	}

	parsed, err := s.client.ParseText(ctx, rawText, questions)
	if err != nil {
		if apperrors.IsConnectivity(err) {
			return s.enqueue(ctx, models.OperationDiaryBulk, payload)
		}
		return false, err
	}

	merged := syncer.MergeAnswers(scaleAnswers, parsed)
	_, err = s.client.SaveDiary(ctx, date, merged)
	if err == nil {
		return false, nil
	}
	if !apperrors.IsConnectivity(err) {
		return false, err
	}
	return s.enqueue(ctx, models.OperationDiaryBulk, payload)
}

func (s *Submitter) enqueue(ctx context.Context, kind models.OperationKind, payload interface{}) (bool, error) {
	item, err := s.store.Append(ctx, kind, payload)
	if err != nil {
		return false, err
	}
	if s.badge != nil {
		s.badge.Refresh(ctx)
	}
	s.logger.WithFields(logrus.Fields{
		"item": item.ID,
		"kind": kind,
	}).Info("Network unreachable, queued for later sync")
	return true, nil
}

func validateDate(date string) error {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return apperrors.Validation("date must be YYYY-MM-DD")
	}
	return nil
}

// clientTimestamp formats the submission time the way the API stores
// it: UTC, second precision, trailing Z.
func clientTimestamp() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05Z")
}
