package stream

import (
	"errors"
	"fmt"

	"github.com/jmehdipour/match-stream/internal/model"
)

// UnknownMatchID stands in when neither image carries a key; the event is still
// processed so the audit trail records that something happened.
const UnknownMatchID = "unknown"

// ErrMissingEventKind marks a record whose delivery metadata has no event name.
// Such records are skipped, never failed.
var ErrMissingEventKind = errors.New("record missing event kind")

// Normalize turns a raw change record into a ChangeEvent. Unrecognized (but present)
// event kinds are passed through; deciding what to do with them is the handler's job.
func Normalize(r Record) (model.ChangeEvent, error) {
	if r.EventName == "" {
		return model.ChangeEvent{}, ErrMissingEventKind
	}

	kind, _ := model.ParseEventKind(r.EventName)
	ev := model.ChangeEvent{
		Kind:           kind,
		EventID:        r.EventID,
		SequenceNumber: r.Change.SequenceNumber,
	}

	after, err := decodeMatch(r.Change.NewImage)
	if err != nil {
		return model.ChangeEvent{}, fmt.Errorf("new image: %w", err)
	}
	before, err := decodeMatch(r.Change.OldImage)
	if err != nil {
		return model.ChangeEvent{}, fmt.Errorf("old image: %w", err)
	}
	ev.After, ev.Before = after, before

	ev.MatchID = firstNonEmpty(after.MatchID(), before.MatchID(), UnknownMatchID)
	if after != nil {
		ev.NewStatus = after.Status
		ev.UserID = after.UserID
		ev.JobID = after.JobID
	}
	if before != nil {
		ev.OldStatus = before.Status
		ev.UserID = firstNonEmpty(ev.UserID, before.UserID)
		ev.JobID = firstNonEmpty(ev.JobID, before.JobID)
	}
	return ev, nil
}

func decodeMatch(image map[string]AttributeValue) (*model.MatchRecord, error) {
	if image == nil {
		return nil, nil
	}
	attrs, err := DecodeImage(image)
	if err != nil {
		return nil, err
	}
	return &model.MatchRecord{
		PK:         stringAttr(attrs, "pk"),
		SK:         stringAttr(attrs, "sk"),
		UserID:     stringAttr(attrs, "userId"),
		JobID:      stringAttr(attrs, "jobId"),
		Status:     stringAttr(attrs, "status"),
		CreatedAt:  stringAttr(attrs, "createdAt"),
		UpdatedAt:  stringAttr(attrs, "updatedAt"),
		Attributes: attrs,
	}, nil
}

// stringAttr reads a string attribute; other types are treated as absent.
func stringAttr(attrs map[string]any, name string) string {
	s, _ := attrs[name].(string)
	return s
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
