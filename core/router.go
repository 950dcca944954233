package core

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewRouter constructs the Gin engine with routes wired. Read endpoints are
// open; every mutation and the unpublished listing sit behind the bearer
// gate.
func NewRouter(cfg Config, auth *Authenticator, db *pgxpool.Pool) *gin.Engine {
	r := gin.Default()

	r.Use(OriginRefererMiddleware(cfg))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	postRepo := NewPgPostRepository(db)
	tagRepo := NewPgTagRepository(db)
	commentRepo := NewPgCommentRepository(db)
	importer := NewContentImporter(postRepo, tagRepo)
	gate := RequireAuth(auth)

	api := r.Group("/api")

	authn := api.Group("/authentication")
	{
		authn.POST("/login", func(c *gin.Context) {
			var req struct {
				Username string `json:"username"`
				Password string `json:"password"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
				return
			}

			outcome := auth.Dispatch(c.Request.Context(), StrategyLogin, Credentials{
				Username: req.Username,
				Password: req.Password,
			})
			if outcome.Fault != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "authentication backend error")
				return
			}
			if !outcome.Success {
				status := http.StatusUnauthorized
				if errors.Is(outcome.Failure, ErrTooManyAttempts) {
					status = http.StatusTooManyRequests
				}
				respondError(c, status, failureCode(outcome.Failure), "username or password is incorrect")
				return
			}

			c.JSON(http.StatusOK, gin.H{
				"token": outcome.Token,
				"user":  outcome.Claim,
			})
		})

		authn.POST("/signup", func(c *gin.Context) {
			var req struct {
				Username             string `json:"username"`
				Password             string `json:"password"`
				PasswordConfirmation string `json:"password_confirmation"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
				return
			}

			outcome := auth.Dispatch(c.Request.Context(), StrategySignup, Credentials{
				Username:             req.Username,
				Password:             req.Password,
				PasswordConfirmation: req.PasswordConfirmation,
			})
			if outcome.Fault != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to create user")
				return
			}
			if !outcome.Success {
				switch {
				case errors.Is(outcome.Failure, ErrDuplicateUsername):
					respondError(c, http.StatusConflict, "USERNAME_TAKEN", outcome.Failure.Error())
				case errors.Is(outcome.Failure, ErrValidation):
					respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", outcome.Failure.Error())
				default:
					respondError(c, http.StatusBadRequest, failureCode(outcome.Failure), outcome.Failure.Error())
				}
				return
			}

			c.JSON(http.StatusCreated, gin.H{"user": outcome.Claim})
		})

		authn.GET("/check-token", func(c *gin.Context) {
			token, err := ExtractBearerToken(c.GetHeader("Authorization"))
			if err != nil {
				respondError(c, http.StatusBadRequest, "MALFORMED_HEADER", err.Error())
				return
			}
			outcome := auth.Dispatch(c.Request.Context(), StrategyBearer, Credentials{Token: token})
			if outcome.Fault != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "authentication backend error")
				return
			}
			if !outcome.Success {
				respondError(c, http.StatusUnauthorized, failureCode(outcome.Failure), outcome.Failure.Error())
				return
			}
			c.JSON(http.StatusOK, gin.H{"user": outcome.Claim})
		})
	}

	posts := api.Group("/posts")
	{
		posts.GET("/all", func(c *gin.Context) {
			list, err := postRepo.ListPublished(c.Request.Context())
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch posts")
				return
			}
			c.JSON(http.StatusOK, gin.H{"post_list": list})
		})

		posts.GET("/unpublished", gate, func(c *gin.Context) {
			list, err := postRepo.ListUnpublished(c.Request.Context())
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch posts")
				return
			}
			c.JSON(http.StatusOK, gin.H{"post_list": list})
		})

		posts.GET("/:post_id", func(c *gin.Context) {
			id, ok := paramID(c, "post_id")
			if !ok {
				return
			}
			post, err := postRepo.Get(c.Request.Context(), id)
			if err != nil {
				if errors.Is(err, ErrPostNotFound) {
					respondError(c, http.StatusNotFound, "NOT_FOUND", "post not found")
					return
				}
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch post")
				return
			}
			comments, err := commentRepo.ListByPost(c.Request.Context(), id)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch comments")
				return
			}
			c.JSON(http.StatusOK, gin.H{"post": post, "comment_list": comments})
		})

		posts.POST("/new-post", gate, func(c *gin.Context) {
			claim, _ := CurrentClaim(c)
			in, ok := bindPostInput(c)
			if !ok {
				return
			}
			in.AuthorID = claim.ID
			post, err := postRepo.Create(c.Request.Context(), in)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to create post")
				return
			}
			c.JSON(http.StatusCreated, gin.H{"post": post})
		})

		posts.PUT("/:post_id", gate, func(c *gin.Context) {
			id, ok := paramID(c, "post_id")
			if !ok {
				return
			}
			claim, _ := CurrentClaim(c)
			in, ok := bindPostInput(c)
			if !ok {
				return
			}
			in.AuthorID = claim.ID
			post, err := postRepo.Update(c.Request.Context(), id, in)
			if err != nil {
				if errors.Is(err, ErrPostNotFound) {
					respondError(c, http.StatusNotFound, "NOT_FOUND", "post not found")
					return
				}
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to update post")
				return
			}
			c.JSON(http.StatusOK, gin.H{"post": post})
		})

		posts.DELETE("/:post_id", gate, func(c *gin.Context) {
			id, ok := paramID(c, "post_id")
			if !ok {
				return
			}
			if err := postRepo.Delete(c.Request.Context(), id); err != nil {
				if errors.Is(err, ErrPostNotFound) {
					respondError(c, http.StatusNotFound, "NOT_FOUND", "post not found")
					return
				}
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to delete post")
				return
			}
			c.Status(http.StatusNoContent)
		})

		posts.GET("/:post_id/comments", func(c *gin.Context) {
			id, ok := paramID(c, "post_id")
			if !ok {
				return
			}
			comments, err := commentRepo.ListByPost(c.Request.Context(), id)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch comments")
				return
			}
			c.JSON(http.StatusOK, gin.H{"comment_list": comments})
		})

		posts.POST("/:post_id/new-comment", func(c *gin.Context) {
			id, ok := paramID(c, "post_id")
			if !ok {
				return
			}
			var req struct {
				Author string `json:"author"`
				Text   string `json:"text"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
				return
			}
			if req.Author == "" || req.Text == "" {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "author and text are required")
				return
			}
			if _, err := postRepo.Get(c.Request.Context(), id); err != nil {
				if errors.Is(err, ErrPostNotFound) {
					respondError(c, http.StatusNotFound, "NOT_FOUND", "post not found")
					return
				}
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch post")
				return
			}
			comment, err := commentRepo.Create(c.Request.Context(), id, req.Author, req.Text)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to create comment")
				return
			}
			c.JSON(http.StatusCreated, gin.H{"comment": comment})
		})

		posts.GET("/:post_id/comments/:comment_id", func(c *gin.Context) {
			postID, ok := paramID(c, "post_id")
			if !ok {
				return
			}
			commentID, ok := paramID(c, "comment_id")
			if !ok {
				return
			}
			comment, err := commentRepo.Get(c.Request.Context(), commentID)
			if err != nil || comment.PostID != postID {
				if err != nil && !errors.Is(err, ErrCommentNotFound) {
					respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch comment")
					return
				}
				respondError(c, http.StatusNotFound, "NOT_FOUND", "comment not found")
				return
			}
			c.JSON(http.StatusOK, gin.H{"comment": comment})
		})

		posts.DELETE("/:post_id/comments/:comment_id", gate, func(c *gin.Context) {
			postID, ok := paramID(c, "post_id")
			if !ok {
				return
			}
			commentID, ok := paramID(c, "comment_id")
			if !ok {
				return
			}
			comment, err := commentRepo.Get(c.Request.Context(), commentID)
			if err != nil || comment.PostID != postID {
				if err != nil && !errors.Is(err, ErrCommentNotFound) {
					respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch comment")
					return
				}
				respondError(c, http.StatusNotFound, "NOT_FOUND", "comment not found")
				return
			}
			if err := commentRepo.Delete(c.Request.Context(), commentID); err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to delete comment")
				return
			}
			c.Status(http.StatusNoContent)
		})
	}

	tags := api.Group("/tag")
	{
		tags.GET("", func(c *gin.Context) {
			list, err := tagRepo.List(c.Request.Context())
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch tags")
				return
			}
			c.JSON(http.StatusOK, gin.H{"tag_list": list})
		})

		tags.GET("/:tag_id/posts", func(c *gin.Context) {
			id, ok := paramID(c, "tag_id")
			if !ok {
				return
			}
			tag, err := tagRepo.Get(c.Request.Context(), id)
			if err != nil {
				if errors.Is(err, ErrTagNotFound) {
					respondError(c, http.StatusNotFound, "NOT_FOUND", "tag not found")
					return
				}
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch tag")
				return
			}
			list, err := postRepo.ListByTag(c.Request.Context(), id)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch posts")
				return
			}
			c.JSON(http.StatusOK, gin.H{"tag": tag, "post_list": list})
		})

		tags.POST("/new-tag", gate, func(c *gin.Context) {
			var req struct {
				Name string `json:"name"`
			}
			if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "name is required")
				return
			}
			tag, err := tagRepo.Create(c.Request.Context(), req.Name)
			if err != nil {
				if errors.Is(err, ErrDuplicateTag) {
					respondError(c, http.StatusConflict, "CONFLICT", "tag already exists")
					return
				}
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to create tag")
				return
			}
			c.JSON(http.StatusCreated, gin.H{"tag": tag})
		})

		tags.PUT("/:tag_id", gate, func(c *gin.Context) {
			id, ok := paramID(c, "tag_id")
			if !ok {
				return
			}
			var req struct {
				Name string `json:"name"`
			}
			if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "name is required")
				return
			}
			tag, err := tagRepo.Update(c.Request.Context(), id, req.Name)
			if err != nil {
				switch {
				case errors.Is(err, ErrTagNotFound):
					respondError(c, http.StatusNotFound, "NOT_FOUND", "tag not found")
				case errors.Is(err, ErrDuplicateTag):
					respondError(c, http.StatusConflict, "CONFLICT", "tag already exists")
				default:
					respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to update tag")
				}
				return
			}
			c.JSON(http.StatusOK, gin.H{"tag": tag})
		})

		tags.DELETE("/:tag_id", gate, func(c *gin.Context) {
			id, ok := paramID(c, "tag_id")
			if !ok {
				return
			}
			if err := tagRepo.Delete(c.Request.Context(), id); err != nil {
				if errors.Is(err, ErrTagNotFound) {
					respondError(c, http.StatusNotFound, "NOT_FOUND", "tag not found")
					return
				}
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to delete tag")
				return
			}
			c.Status(http.StatusNoContent)
		})
	}

	api.POST("/content/import", gate, func(c *gin.Context) {
		claim, _ := CurrentClaim(c)
		data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportSize+1024))
		if err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "failed to read request body")
			return
		}
		doc, err := ParseContentDocument(data)
		if err != nil {
			respondError(c, http.StatusBadRequest, "INVALID_CONTENT_PACKAGE", err.Error())
			return
		}
		result, err := importer.Import(c.Request.Context(), doc, claim)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "import failed: "+err.Error())
			return
		}
		c.JSON(http.StatusCreated, result)
	})

	return r
}

// paramID parses a positive integer path parameter, answering 400 itself on
// bad input.
func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid "+name)
		return 0, false
	}
	return id, true
}

func bindPostInput(c *gin.Context) (PostCreateInput, bool) {
	var req struct {
		Title       string  `json:"title"`
		Content     string  `json:"content"`
		IsPublished bool    `json:"is_published"`
		Tags        []int64 `json:"tags"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
		return PostCreateInput{}, false
	}
	if req.Title == "" || req.Content == "" {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "title and content are required")
		return PostCreateInput{}, false
	}
	return PostCreateInput{
		Title:       req.Title,
		Content:     req.Content,
		IsPublished: req.IsPublished,
		TagIDs:      req.Tags,
	}, true
}
