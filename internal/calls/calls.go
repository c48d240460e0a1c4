package calls

import (
	"encoding/json"
	"time"
)

// Sentiment is the analysed tone of a call. The set is open ended; the
// analytics pipeline may introduce new values before the console learns
// about them.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Status is the lifecycle state of a call.
type Status string

const (
	StatusRinging    Status = "ringing"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// CallRecord is one call as reported by the API. Known fields are typed;
// everything else the server sends survives in Extra.
type CallRecord struct {
	ID              string
	CallerNumber    string
	Sentiment       Sentiment
	Status          Status
	StartedAt       time.Time
	CreatedAt       time.Time
	DurationSeconds float64

	Extra map[string]any
}

// Active reports whether the call is still in flight.
func (r *CallRecord) Active() bool {
	return r.Status == StatusRinging || r.Status == StatusInProgress
}

func (r *CallRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.ID, _ = raw["id"].(string)
	r.CallerNumber, _ = raw["caller_number"].(string)

	if sentiment, ok := raw["sentiment"].(string); ok {
		r.Sentiment = Sentiment(sentiment)
	}
	if status, ok := raw["status"].(string); ok {
		r.Status = Status(status)
	}

	r.StartedAt = timeField(raw, "started_at")
	r.CreatedAt = timeField(raw, "created_at")

	if duration, ok := raw["duration_seconds"].(float64); ok {
		r.DurationSeconds = duration
	}

	for name, value := range raw {
		switch name {
		case "id", "caller_number", "sentiment", "status", "started_at", "created_at", "duration_seconds":
			continue
		}
		if r.Extra == nil {
			r.Extra = make(map[string]any)
		}
		r.Extra[name] = value
	}

	return nil
}

// timeField parses an RFC 3339 timestamp out of raw, returning the zero
// time when the field is absent, null, or unparseable.
func timeField(raw map[string]any, name string) time.Time {
	value, ok := raw[name].(string)
	if !ok {
		return time.Time{}
	}

	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}

	return parsed
}
