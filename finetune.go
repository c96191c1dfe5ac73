package twitter

import (
	"encoding/json"
	"fmt"
	"io"
)

// ToFineTuningFormat projects records onto fine-tuning entries, one per
// record, in input order.
func ToFineTuningFormat(records []PostRecord) ([]FineTuningEntry, error) {
	entries := make([]FineTuningEntry, 0, len(records))
	for i, r := range records {
		if r.ID == "" || r.URL == "" {
			return nil, fmt.Errorf("%w: record %d: missing id or url", ErrMalformedRecord, i)
		}
		entries = append(entries, FineTuningEntry{
			Text: r.Text,
			Metadata: FineTuningMetadata{
				ID:        r.ID,
				CreatedAt: r.CreatedAt,
				Engagement: Engagement{
					Likes:    r.Likes,
					Retweets: r.Retweets,
				},
				URL: r.URL,
			},
		})
	}
	return entries, nil
}

// WriteFineTuning writes entries as JSON lines.
func WriteFineTuning(path string, entries []FineTuningEntry) error {
	return writeFileAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		for _, e := range entries {
			if err := enc.Encode(e); err != nil {
				return err
			}
		}
		return nil
	})
}

// TransformAndPersist converts records and writes the fine-tuning file.
func TransformAndPersist(path string, records []PostRecord) ([]FineTuningEntry, error) {
	entries, err := ToFineTuningFormat(records)
	if err != nil {
		return nil, err
	}
	if err := WriteFineTuning(path, entries); err != nil {
		return nil, err
	}
	return entries, nil
}
