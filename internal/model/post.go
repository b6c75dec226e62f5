package model

import (
	"time"

	"github.com/google/uuid"
)

// Post carries a denormalized likes count. The count is maintained with
// atomic store-level increments so it always equals the number of like rows.
type Post struct {
	ID         uuid.UUID `db:"id" json:"id"`
	DoctorID   uuid.UUID `db:"doctor_id" json:"doctor_id"`
	Content    string    `db:"content" json:"content"`
	ImageURL   string    `db:"image_url" json:"image_url,omitempty"`
	LikesCount int       `db:"likes_count" json:"likes_count"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Like is a (post, user) pair; uniqueness is enforced at the storage layer.
type Like struct {
	PostID    uuid.UUID `db:"post_id" json:"post_id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type Comment struct {
	ID        uuid.UUID `db:"id" json:"id"`
	PostID    uuid.UUID `db:"post_id" json:"post_id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type CreatePostRequest struct {
	Content  string `json:"content" binding:"required,max=5000"`
	ImageURL string `json:"image_url" binding:"omitempty,url"`
}

type AddCommentRequest struct {
	Content string `json:"content" binding:"required,max=1000"`
}
