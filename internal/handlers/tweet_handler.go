package handlers

import (
	"twitapp/internal/middleware"
	"twitapp/internal/models"
	"twitapp/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// TweetHandler handles HTTP requests for tweets, likes and comments.
type TweetHandler struct {
	service  *services.TweetService
	validate *validator.Validate
}

// NewTweetHandler creates a new TweetHandler.
func NewTweetHandler(service *services.TweetService) *TweetHandler {
	return &TweetHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the tweet routes. All of them need an authenticated caller.
func (h *TweetHandler) RegisterRoutes(router fiber.Router) {
	tweetRoutes := router.Group("/tweets")
	tweetRoutes.Post("/", h.HandleCreateTweet)
	tweetRoutes.Get("/", h.HandleListTweets)
	tweetRoutes.Get("/:id", h.HandleGetTweet)
	tweetRoutes.Delete("/:id", h.HandleDeleteTweet)
	tweetRoutes.Post("/:id/comment", h.HandleAddComment)
	tweetRoutes.Delete("/:tweet_id/comment/:comment_id", h.HandleRemoveComment)

	likeRoutes := router.Group("/likes")
	likeRoutes.Post("/:tweet_id", h.HandleAddLike)
	likeRoutes.Delete("/:tweet_id/:like_id", h.HandleRemoveLike)
}

// HandleCreateTweet creates a tweet owned by the caller.
func (h *TweetHandler) HandleCreateTweet(c *fiber.Ctx) error {
	var req models.TweetRequest
	if ok, err := bind(c, h.validate, &req); !ok {
		return err
	}

	tweet, err := h.service.CreateTweet(c.UserContext(), middleware.UserID(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(tweet)
}

// HandleListTweets lists the caller's tweets.
func (h *TweetHandler) HandleListTweets(c *fiber.Ctx) error {
	tweets, err := h.service.ListTweets(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(tweets)
}

// HandleGetTweet returns a single tweet with its likes and comments.
func (h *TweetHandler) HandleGetTweet(c *fiber.Ctx) error {
	tweet, err := h.service.GetTweet(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(tweet)
}

// HandleDeleteTweet deletes a tweet. Deleting a missing tweet reports zero deletions.
func (h *TweetHandler) HandleDeleteTweet(c *fiber.Ctx) error {
	n, err := h.service.DeleteTweet(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"deleted": n})
}

// HandleAddLike adds a like to a tweet.
func (h *TweetHandler) HandleAddLike(c *fiber.Ctx) error {
	tweet, err := h.service.AddLike(c.UserContext(), c.Params("tweet_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(tweet)
}

// HandleRemoveLike removes a like from a tweet.
func (h *TweetHandler) HandleRemoveLike(c *fiber.Ctx) error {
	tweet, err := h.service.RemoveLike(c.UserContext(), c.Params("tweet_id"), c.Params("like_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(tweet)
}

// HandleAddComment adds a comment to a tweet.
func (h *TweetHandler) HandleAddComment(c *fiber.Ctx) error {
	var req models.CommentRequest
	if ok, err := bind(c, h.validate, &req); !ok {
		return err
	}

	tweet, err := h.service.AddComment(c.UserContext(), c.Params("id"), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(tweet)
}

// HandleRemoveComment removes a comment from a tweet.
func (h *TweetHandler) HandleRemoveComment(c *fiber.Ctx) error {
	tweet, err := h.service.RemoveComment(c.UserContext(), c.Params("tweet_id"), c.Params("comment_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(tweet)
}
