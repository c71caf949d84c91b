package model

import "time"

// URLMapping is the persisted short code -> original URL record.
type URLMapping struct {
	ShortCode    string     `db:"short_code" json:"shortCode"`
	OriginalURL  string     `db:"original_url" json:"originalUrl"`
	Clicks       int64      `db:"clicks" json:"clicks"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	LastAccessed *time.Time `db:"last_accessed" json:"lastAccessed"`
}
