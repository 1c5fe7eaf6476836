package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	errs "github.com/techagentng/quizchat/errors"
	"github.com/techagentng/quizchat/models"
	"github.com/techagentng/quizchat/server/response"
)

const uploadFolder = "posts"

func (s *Server) handleUploadFile() gin.HandlerFunc {
	return func(c *gin.Context) {
		fileHeader, ferr := c.FormFile("file")
		if ferr != nil {
			err := errs.Validation("missing or invalid file")
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		uploaded, err := s.MediaService.Upload(c.Request.Context(), fileHeader, uploadFolder)
		if err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		response.JSON(c, "file uploaded successfully", http.StatusOK, gin.H{
			"url":  uploaded.URL,
			"file": uploaded,
		}, nil)
	}
}

func (s *Server) handleUploadMultipleFiles() gin.HandlerFunc {
	return func(c *gin.Context) {
		form, ferr := c.MultipartForm()
		if ferr != nil {
			err := errs.Validation("invalid multipart form")
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		uploaded, err := s.MediaService.UploadMany(c.Request.Context(), form.File["files"], uploadFolder)
		if err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		urls := make([]string, 0, len(uploaded))
		for _, f := range uploaded {
			urls = append(urls, f.URL)
		}
		response.JSON(c, "files uploaded successfully", http.StatusOK, gin.H{
			"imageUrls": urls,
			"files":     uploaded,
		}, nil)
	}
}

func (s *Server) handleCreatePost() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.CreatePostRequest
		if err := decode(c, &req); err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		author, err := actorID(c, req.UserId, "userId")
		if err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		req.UserId = author

		post, err := s.PostService.CreatePost(c.Request.Context(), &req)
		if err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		response.JSON(c, "post created successfully", http.StatusCreated, post, nil)
	}
}

func (s *Server) handleGetPosts() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "10"))

		posts, err := s.PostService.GetPosts(c.Request.Context(), page, pageSize)
		if err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		response.JSON(c, "posts retrieved successfully", http.StatusOK, posts, nil)
	}
}

func (s *Server) handleGetPost() gin.HandlerFunc {
	return func(c *gin.Context) {
		post, err := s.PostService.GetPost(c.Request.Context(), c.Param("postId"))
		if err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		response.JSON(c, "post retrieved successfully", http.StatusOK, post, nil)
	}
}

func (s *Server) handleUpdatePost() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.UpdatePostRequest
		if err := decode(c, &req); err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		post, err := s.PostService.UpdatePost(c.Request.Context(), c.Param("postId"), &req)
		if err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		response.JSON(c, "post updated successfully", http.StatusOK, post, nil)
	}
}

func (s *Server) handleLikePost() gin.HandlerFunc {
	return s.likeHandler(true)
}

func (s *Server) handleUnlikePost() gin.HandlerFunc {
	return s.likeHandler(false)
}

func (s *Server) likeHandler(like bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := actorID(c, c.Query("userId"), "userId")
		if err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		postID := c.Query("postId")

		var res *models.LikePostResponse
		if like {
			res, err = s.PostService.LikePost(c.Request.Context(), postID, userID)
		} else {
			res, err = s.PostService.UnlikePost(c.Request.Context(), postID, userID)
		}
		if err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		message := "post unliked successfully"
		if like {
			message = "post liked successfully"
		}
		response.JSON(c, message, http.StatusOK, res, nil)
	}
}
