package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	errs "github.com/techagentng/quizchat/errors"
	"github.com/techagentng/quizchat/models"
	"github.com/techagentng/quizchat/server/response"
)

func (s *Server) handleSendMessage() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.SendMessageRequest
		if err := decode(c, &req); err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}

		claimed := req.SenderId
		if queryUser := c.Query("userId"); queryUser != "" {
			if claimed != "" && claimed != queryUser {
				err := errs.Forbidden("", "senderId does not match userId")
				response.JSON(c, "", err.Status, nil, err)
				return
			}
			claimed = queryUser
		}
		sender, err := actorID(c, claimed, "senderId")
		if err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		req.SenderId = sender

		msg, err := s.MessageService.SendMessage(c.Request.Context(), &req)
		if err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		response.JSON(c, "message sent successfully", http.StatusCreated, msg, nil)
	}
}

func (s *Server) handleGetChatMessages() gin.HandlerFunc {
	return func(c *gin.Context) {
		userA, userB := c.Query("userId1"), c.Query("userId2")
		if user, ok := authenticatedUser(c); ok && user != userA && user != userB {
			err := errs.Forbidden("", "the authenticated user must be one side of the conversation")
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		msgs, err := s.MessageService.GetChatMessages(c.Request.Context(), userA, userB)
		if err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		response.JSON(c, "messages retrieved successfully", http.StatusOK, msgs, nil)
	}
}

func (s *Server) handleGetConversationMessages() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, err := optionalActor(c, c.Query("userId"))
		if err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		msgs, err := s.MessageService.GetMessagesByConversation(c.Request.Context(), c.Query("conversationId"), actor)
		if err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		response.JSON(c, "messages retrieved successfully", http.StatusOK, msgs, nil)
	}
}

func (s *Server) handleGetUnreadMessages() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := actorID(c, c.Query("userId"), "userId")
		if err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		msgs, err := s.MessageService.GetUnreadMessages(c.Request.Context(), userID)
		if err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		response.JSON(c, "unread messages retrieved successfully", http.StatusOK, msgs, nil)
	}
}

func (s *Server) handleMarkAsRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, err := optionalActor(c, c.Query("userId"))
		if err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		if err := s.MessageService.MarkAsRead(c.Request.Context(), c.Param("id"), actor); err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		response.JSON(c, "message marked as read", http.StatusOK, nil, nil)
	}
}

func (s *Server) handlePinMessage() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.PinMessageRequest
		if err := decode(c, &req); err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		actor, err := optionalActor(c, c.Query("userId"))
		if err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		if err := s.MessageService.PinMessage(c.Request.Context(), c.Param("id"), actor, req.IsPinned); err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		message := "message unpinned"
		if req.IsPinned {
			message = "message pinned"
		}
		response.JSON(c, message, http.StatusOK, nil, nil)
	}
}

func (s *Server) handleDeleteMessage() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, err := optionalActor(c, c.Query("userId"))
		if err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		if err := s.MessageService.DeleteMessage(c.Request.Context(), c.Param("id"), actor); err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
