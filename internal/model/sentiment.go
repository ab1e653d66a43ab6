package model

import "time"

// Sentiment is the label the inference collaborator assigns to a text.
// The enumeration is fixed — the classifier may only ever hand back one
// of these three values.
type Sentiment string

const (
	SentimentPositive Sentiment = "POSITIVE"
	SentimentNegative Sentiment = "NEGATIVE"
	SentimentNeutral  Sentiment = "NEUTRAL"
)

// rawLabels maps the underlying model's raw output classes to sentiments.
// The twitter-roberta sentiment model emits LABEL_0/1/2 rather than
// human-readable names; some deployments already remap server-side, so
// the canonical names are accepted too.
var rawLabels = map[string]Sentiment{
	"LABEL_0":  SentimentNegative,
	"LABEL_1":  SentimentNeutral,
	"LABEL_2":  SentimentPositive,
	"NEGATIVE": SentimentNegative,
	"NEUTRAL":  SentimentNeutral,
	"POSITIVE": SentimentPositive,
}

// SentimentFromLabel remaps a raw classifier label to a Sentiment.
//
// ok is false for labels outside the known set; callers decide the
// fallback policy (the service logs the anomaly and records NEUTRAL).
func SentimentFromLabel(label string) (Sentiment, bool) {
	s, ok := rawLabels[label]
	if !ok {
		return SentimentNeutral, false
	}
	return s, true
}

// SentimentEntry is one recorded classification: who asked, what they
// submitted, and what the model said. Entries are immutable once written.
type SentimentEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Text      string    `json:"text"`
	Sentiment Sentiment `json:"sentiment"`
	Timestamp time.Time `json:"timestamp"`
}
