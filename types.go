package twitter

import "time"

// PostRecord is a normalized post collected from the target account's
// timeline. Field order is the key order of the records file.
type PostRecord struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	Likes     int       `json:"likes"`
	Retweets  int       `json:"retweets"`
	URL       string    `json:"url"`
}

// PostURL is a canonical single-post URL of the form
// https://<host>/<account>/status/<id>.
type PostURL string

// FineTuningEntry is one line of the fine-tuning JSONL file.
type FineTuningEntry struct {
	Text     string             `json:"text"`
	Metadata FineTuningMetadata `json:"metadata"`
}

// FineTuningMetadata carries the source post of an entry.
type FineTuningMetadata struct {
	ID         string     `json:"id"`
	CreatedAt  time.Time  `json:"created_at"`
	Engagement Engagement `json:"engagement"`
	URL        string     `json:"url"`
}

// Engagement is the like and retweet count at collection time.
type Engagement struct {
	Likes    int `json:"likes"`
	Retweets int `json:"retweets"`
}

// Profile is the subset of account metadata used for progress reporting.
type Profile struct {
	Username      string
	ExpectedCount int
}

// RawRecord is a post as yielded by the platform client, before filtering
// and normalization.
type RawRecord struct {
	ID        string
	Text      string
	CreatedAt time.Time
	Likes     int
	Retweets  int
	IsRepost  bool
}

// StatusURL builds the canonical post URL for id under account.
func StatusURL(host, account, id string) string {
	return "https://" + host + "/" + account + "/status/" + id
}

// normalizeRecord converts a raw record into a PostRecord. The URL is always
// derived from the id and the configured account.
func normalizeRecord(raw RawRecord, host, account string) PostRecord {
	return PostRecord{
		ID:        raw.ID,
		Text:      raw.Text,
		CreatedAt: raw.CreatedAt,
		Likes:     max(raw.Likes, 0),
		Retweets:  max(raw.Retweets, 0),
		URL:       StatusURL(host, account, raw.ID),
	}
}
