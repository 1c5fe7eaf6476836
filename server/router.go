package server

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) setupRouter() *gin.Engine {
	ginMode := os.Getenv("GIN_MODE")
	if ginMode == "test" {
		r := gin.New()
		s.defineRoutes(r)
		return r
	}

	r := gin.New()
	r.Use(requestLogger(s.Logger))
	r.Use(gin.Recovery())
	r.Use(collectMetrics())

	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if s.Config.AccessControlAllowOrigin != "" {
		corsConfig.AllowOrigins = []string{s.Config.AccessControlAllowOrigin}
	} else {
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	}
	r.Use(cors.New(corsConfig))
	r.MaxMultipartMemory = 32 << 20
	s.defineRoutes(r)

	return r
}

func (s *Server) defineRoutes(router *gin.Engine) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apirouter := router.Group("/api/v1")
	if s.Config.JWTSecret != "" {
		apirouter.Use(s.Authorize())
	}

	apirouter.GET("/ws", s.handleWebsocket())

	conversations := apirouter.Group("/conversation")
	conversations.POST("/group", s.handleCreateGroupConversation())
	conversations.POST("/create-group", s.handleCreateGroup())
	conversations.POST("/CreateConversation", s.handleCreateConversation())
	conversations.GET("/GetUserConversations", s.handleGetUserConversations())
	conversations.POST("/join", s.handleJoinConversation())
	conversations.GET("/:id", s.handleGetConversation())
	conversations.PUT("/:id", s.handleUpdateGroupInfo())
	conversations.DELETE("/:id", s.handleDeleteConversation())
	conversations.POST("/:id/add-members", s.handleAddMembers())
	conversations.DELETE("/:id/remove-member/:memberId", s.handleRemoveMember())
	conversations.POST("/:id/manage-admin", s.handleManageAdmin())
	conversations.POST("/:id/ban", s.handleBanMember())
	conversations.POST("/:id/unban", s.handleUnbanMember())
	conversations.POST("/:id/leave", s.handleLeaveConversation())

	messages := apirouter.Group("/message")
	messages.POST("/SendMessage", s.limitSendMessage(), s.handleSendMessage())
	messages.GET("", s.handleGetConversationMessages())
	messages.GET("/messages", s.handleGetChatMessages())
	messages.GET("/unread", s.handleGetUnreadMessages())
	messages.PUT("/:id/read", s.handleMarkAsRead())
	messages.PUT("/:id/pin", s.handlePinMessage())
	messages.DELETE("/:id", s.handleDeleteMessage())

	posts := apirouter.Group("/post")
	posts.POST("/upload", s.handleUploadFile())
	posts.POST("/upload-multiple", s.handleUploadMultipleFiles())
	posts.POST("", s.handleCreatePost())
	posts.GET("", s.handleGetPosts())
	posts.POST("/like", s.handleLikePost())
	posts.POST("/unlike", s.handleUnlikePost())
	posts.GET("/:postId", s.handleGetPost())
	posts.PUT("/:postId", s.handleUpdatePost())
}
