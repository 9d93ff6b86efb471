package models

// Credentials is the body of register and login requests.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ChangePasswordRequest is the body of a password change.
type ChangePasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// TweetRequest is the body of a create-tweet call.
type TweetRequest struct {
	Message string `json:"message" validate:"required,max=280"`
}

// Tweet converts the request into an unpersisted Tweet owned by ownerID.
func (r TweetRequest) Tweet(ownerID string) (*Tweet, error) {
	return NewTweet(ownerID, r.Message)
}

// CommentRequest is the body of an add-comment call.
type CommentRequest struct {
	Message string `json:"message" validate:"required,max=280"`
}

// Comment converts the request into a Comment on tweetID.
func (r CommentRequest) Comment(tweetID string) (Comment, error) {
	return NewComment(tweetID, r.Message)
}
