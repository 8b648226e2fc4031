package entity

import "time"

// Analysis is the persisted record of a finished analysis, owned by a user.
type Analysis struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	VideoID    string    `json:"video_id"`
	MP4Path    string    `json:"mp4_path"`
	ResultJSON string    `json:"result_json"`
	ConfUsed   float64   `json:"conf_used"`
	StrideUsed int       `json:"stride_used"`
	CreatedAt  time.Time `json:"created_at"`
}

// Post is a published analysis visible in the feed.
type Post struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	VideoID     string    `json:"video_id"`
	MP4Path     string    `json:"mp4_path"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}
