package models

import "time"

// Post is the aggregate the service revolves around. Comments have no
// identity of their own: they live and die with their parent post and are
// serialized with it as a single JSON document.
type Post struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	File      string    `json:"file,omitempty"`
	Likes     int64     `json:"likes"`
	Comments  []Comment `json:"comments"`
	IsFlagged bool      `json:"isFlagged"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

// Comment text is classified once at creation; the verdict is immutable
// afterwards.
type Comment struct {
	Text      string `json:"text"`
	IsFlagged bool   `json:"isFlagged"`
	Username  string `json:"username"`
}
