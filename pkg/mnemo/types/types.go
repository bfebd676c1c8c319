package types

// Meta carries the payload schema version tag.
type Meta struct {
	Version int `json:"version"`
}

// Event is the record submitted to POST /events. The ID and client
// timestamp are assigned on the device at composition time so that a
// deferred replay sends exactly what a live submission would have sent.
type Event struct {
	ID              string             `json:"id"`
	ClientTimestamp string             `json:"client_timestamp"`
	Type            string             `json:"type"`
	Text            string             `json:"text"`
	Metrics         map[string]float64 `json:"metrics"`
	Meta            Meta               `json:"meta"`
}

// EventStored is the server's echo of an accepted event.
type EventStored struct {
	ID              string             `json:"id"`
	ClientTimestamp string             `json:"client_timestamp"`
	ReceivedAt      string             `json:"received_at"`
	Type            string             `json:"type"`
	Text            string             `json:"text"`
	Metrics         map[string]float64 `json:"metrics"`
	Meta            Meta               `json:"meta"`
}

// Question identifies a diary question for server-side text parsing.
type Question struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// DiaryRequest is the body of POST /diary. Answer values are either
// scale integers or free text, keyed by question.
type DiaryRequest struct {
	Date    string                 `json:"date"`
	Answers map[string]interface{} `json:"answers"`
}

// DiaryEntry is a stored diary entry as returned by the API.
type DiaryEntry struct {
	ID      string                 `json:"id"`
	Date    string                 `json:"date"`
	Answers map[string]interface{} `json:"answers"`
	SavedAt string                 `json:"saved_at"`
	Meta    Meta                   `json:"meta"`
}

// ParseTextRequest is the body of POST /diary/parse-text.
type ParseTextRequest struct {
	RawText   string     `json:"raw_text"`
	Questions []Question `json:"questions"`
}

// ParseTextResponse maps question keys to parsed answer text. Keys the
// parser found nothing for may be absent or empty.
type ParseTextResponse struct {
	Answers map[string]string `json:"answers"`
}

// DiarySummary is the response of GET /diary/{date}/summary.
type DiarySummary struct {
	Summary string `json:"summary"`
}

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	Question string `json:"question"`
}

// QueryResponse is the answer to a natural-language query.
type QueryResponse struct {
	Answer string `json:"answer"`
}

// EventFilter selects events for GET /events. Either Date or the
// From/To pair is set, not both.
type EventFilter struct {
	Date string
	From string
	To   string
}

// ErrorResponse is the API's failure body shape.
type ErrorResponse struct {
	Detail string `json:"detail"`
}
