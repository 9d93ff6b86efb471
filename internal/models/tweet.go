package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// ErrEmptyMessage is returned by the constructors when a tweet or comment has no text.
var ErrEmptyMessage = errors.New("message is required")

// Like is a single like on a tweet. It only exists embedded in its Tweet.
type Like struct {
	ID        string    `json:"id" bson:"id"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	TweetID   string    `json:"tweet_id" bson:"tweet_id"`
}

// Comment is a single comment on a tweet. It only exists embedded in its Tweet.
type Comment struct {
	ID        string    `json:"id" bson:"id"`
	Message   string    `json:"message" bson:"message"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	TweetID   string    `json:"tweet_id" bson:"tweet_id"`
}

// Likes is stored as a JSON column on the tweet row.
type Likes []Like

// Comments is stored as a JSON column on the tweet row.
type Comments []Comment

// Tweet is the aggregate root: the message plus its embedded likes and comments.
// Version is bumped on every replace and is used for conditional writes.
type Tweet struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(64)"`
	OwnerID   string    `json:"owner_id" gorm:"index;type:varchar(64)"`
	CreatedAt time.Time `json:"created_at"`
	Message   string    `json:"message" gorm:"type:text"`
	Likes     Likes     `json:"likes" gorm:"type:text"`
	Comments  Comments  `json:"comments" gorm:"type:text"`
	Version   int64     `json:"-" gorm:"not null;default:0"`
}

// NewTweet builds an unpersisted tweet owned by ownerID with no likes or comments.
func NewTweet(ownerID, message string) (*Tweet, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}
	return &Tweet{
		OwnerID:   ownerID,
		CreatedAt: time.Now().UTC(),
		Message:   message,
		Likes:     Likes{},
		Comments:  Comments{},
	}, nil
}

// NewLike builds a like for tweetID with a fresh id.
func NewLike(tweetID string) Like {
	return Like{
		ID:        newSubID(),
		CreatedAt: time.Now().UTC(),
		TweetID:   tweetID,
	}
}

// NewComment builds a comment for tweetID with a fresh id.
func NewComment(tweetID, message string) (Comment, error) {
	if strings.TrimSpace(message) == "" {
		return Comment{}, ErrEmptyMessage
	}
	return Comment{
		ID:        newSubID(),
		Message:   message,
		CreatedAt: time.Now().UTC(),
		TweetID:   tweetID,
	}, nil
}

func newSubID() string {
	return ulid.Make().String()
}

// AddLike appends like, regenerating its id if it collides with an existing one.
func (t *Tweet) AddLike(like Like) Like {
	for t.hasLike(like.ID) {
		like.ID = newSubID()
	}
	t.Likes = append(t.Likes, like)
	return like
}

// RemoveLike drops the like with the given id and reports whether anything changed.
func (t *Tweet) RemoveLike(id string) bool {
	kept := make(Likes, 0, len(t.Likes))
	for _, l := range t.Likes {
		if l.ID != id {
			kept = append(kept, l)
		}
	}
	removed := len(kept) != len(t.Likes)
	t.Likes = kept
	return removed
}

// AddComment appends comment, regenerating its id if it collides with an existing one.
func (t *Tweet) AddComment(comment Comment) Comment {
	for t.hasComment(comment.ID) {
		comment.ID = newSubID()
	}
	t.Comments = append(t.Comments, comment)
	return comment
}

// RemoveComment drops the comment with the given id and reports whether anything changed.
func (t *Tweet) RemoveComment(id string) bool {
	kept := make(Comments, 0, len(t.Comments))
	for _, c := range t.Comments {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	removed := len(kept) != len(t.Comments)
	t.Comments = kept
	return removed
}

func (t *Tweet) hasLike(id string) bool {
	for _, l := range t.Likes {
		if l.ID == id {
			return true
		}
	}
	return false
}

func (t *Tweet) hasComment(id string) bool {
	for _, c := range t.Comments {
		if c.ID == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy. Nil sub-collections come back empty.
func (t *Tweet) Clone() *Tweet {
	c := *t
	c.Likes = append(make(Likes, 0, len(t.Likes)), t.Likes...)
	c.Comments = append(make(Comments, 0, len(t.Comments)), t.Comments...)
	return &c
}

// Value implements driver.Valuer.
func (l Likes) Value() (driver.Value, error) {
	if l == nil {
		l = Likes{}
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *Likes) Scan(src any) error {
	if err := scanJSON(src, l); err != nil {
		return err
	}
	if *l == nil {
		*l = Likes{}
	}
	return nil
}

// Value implements driver.Valuer.
func (c Comments) Value() (driver.Value, error) {
	if c == nil {
		c = Comments{}
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (c *Comments) Scan(src any) error {
	if err := scanJSON(src, c); err != nil {
		return err
	}
	if *c == nil {
		*c = Comments{}
	}
	return nil
}

func scanJSON(src, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("cannot scan %T into JSON column", src)
	}
}
