package models

import "time"

// PostEvent is one append-only row of a post's history.
type PostEvent struct {
	ID         string    `db:"id" json:"id"`
	PostID     string    `db:"post_id" json:"post_id"`
	Action     string    `db:"action" json:"action"`
	FromStatus Status    `db:"from_status" json:"from_status"`
	ToStatus   Status    `db:"to_status" json:"to_status"`
	Attempt    int       `db:"attempt" json:"attempt"`
	Note       string    `db:"note" json:"note"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
