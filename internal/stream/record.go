package stream

import (
	"encoding/json"
	"fmt"
)

// Record is one entry of the Match store change feed, in the feed's own JSON shape.
type Record struct {
	EventID        string       `json:"eventID,omitempty"`
	EventName      string       `json:"eventName,omitempty"`
	EventSource    string       `json:"eventSource,omitempty"`
	EventSourceARN string       `json:"eventSourceARN,omitempty"`
	Change         StreamRecord `json:"dynamodb"`
}

// StreamRecord carries the keys and the before/after images of the changed item.
type StreamRecord struct {
	ApproximateCreationDateTime float64                   `json:"ApproximateCreationDateTime,omitempty"`
	Keys                        map[string]AttributeValue `json:"Keys,omitempty"`
	NewImage                    map[string]AttributeValue `json:"NewImage,omitempty"`
	OldImage                    map[string]AttributeValue `json:"OldImage,omitempty"`
	SequenceNumber              string                    `json:"SequenceNumber,omitempty"`
	SizeBytes                   int64                     `json:"SizeBytes,omitempty"`
	StreamViewType              string                    `json:"StreamViewType,omitempty"`
}

// Event is the envelope a batch is delivered in.
type Event struct {
	Records []Record `json:"Records"`
}

// DecodeEvent parses a {"Records":[...]} envelope.
func DecodeEvent(data []byte) ([]Record, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("decode stream event: %w", err)
	}
	return ev.Records, nil
}

// DecodeRecord parses a single change record, as carried by one transport message.
func DecodeRecord(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("decode stream record: %w", err)
	}
	return r, nil
}

// DecodePayload accepts either a single record or a {"Records":[...]} envelope,
// so recorded events can be replayed through a transport unchanged.
func DecodePayload(data []byte) ([]Record, error) {
	var envelope struct {
		Records json.RawMessage `json:"Records"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode stream payload: %w", err)
	}
	if envelope.Records != nil {
		return DecodeEvent(data)
	}
	r, err := DecodeRecord(data)
	if err != nil {
		return nil, err
	}
	return []Record{r}, nil
}
