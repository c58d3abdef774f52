package domain

import "time"

// Thread is a top-level forum post. Private threads are visible only to
// admins and users with private access. Deletion is a soft delete so the
// audit trail keeps referencing real rows.
type Thread struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	AuthorID  int64     `json:"author_id"`
	Author    string    `json:"author,omitempty"`
	IsPrivate bool      `json:"is_private"`
	IsDeleted bool      `json:"-"`
	Views     int64     `json:"views"`
	CreatedAt time.Time `json:"created_at"`

	// ReplyCount is populated on admin listings only.
	ReplyCount int64 `json:"reply_count,omitempty"`
}

// NewThread creates a thread owned by authorID.
func NewThread(title, body string, authorID int64, isPrivate bool) *Thread {
	return &Thread{
		Title:     title,
		Body:      body,
		AuthorID:  authorID,
		IsPrivate: isPrivate,
		CreatedAt: time.Now().UTC(),
	}
}

// Reply is a response within a thread. Visibility is inherited from the
// parent thread.
type Reply struct {
	ID        int64     `json:"id"`
	ThreadID  int64     `json:"thread_id"`
	AuthorID  int64     `json:"author_id"`
	Author    string    `json:"author,omitempty"`
	Text      string    `json:"text"`
	IsDeleted bool      `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// NewReply creates a reply to threadID owned by authorID.
func NewReply(threadID, authorID int64, text string) *Reply {
	return &Reply{
		ThreadID:  threadID,
		AuthorID:  authorID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
}

// Content length bounds enforced before storage.
const (
	ThreadTitleMinLen = 5
	ThreadTitleMaxLen = 200
	ThreadBodyMinLen  = 10
	ThreadBodyMaxLen  = 50000
	ReplyMinLen       = 1
	ReplyMaxLen       = 10000
)
