package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	errs "github.com/techagentng/quizchat/errors"
	"github.com/techagentng/quizchat/models"
	"github.com/techagentng/quizchat/server/response"
)

func (s *Server) handleCreateGroupConversation() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.CreateGroupConversationRequest
		if err := decode(c, &req); err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		if req.CreatorID != "" {
			creator, err := actorID(c, req.CreatorID, "creatorId")
			if err != nil {
				response.JSON(c, "", err.Status, nil, err)
				return
			}
			req.CreatorID = creator
		}

		conv, err := s.ConversationService.CreateGroupWithMembers(c.Request.Context(), &req)
		if err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		response.JSON(c, "conversation created successfully", http.StatusCreated, models.GroupConversationResponse{
			ConversationID: conv.ID,
			Name:           conv.Name,
			Members:        conv.Members,
			Type:           conv.Type,
			CreatedAt:      conv.CreatedAt,
		}, nil)
	}
}

func (s *Server) handleCreateGroup() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.CreateGroupRequest
		if err := decode(c, &req); err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		creator, err := actorID(c, req.CreatorID, "creatorId")
		if err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		req.CreatorID = creator

		conv, err := s.ConversationService.CreateGroup(c.Request.Context(), &req)
		if err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		response.JSON(c, "group created successfully", http.StatusCreated, models.CreateGroupResponse{
			ConversationID: conv.ID,
			JoinCode:       conv.JoinCode,
		}, nil)
	}
}

func (s *Server) handleCreateConversation() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.CreateConversationRequest
		if err := decode(c, &req); err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		if user, ok := authenticatedUser(c); ok && user != req.UserId1 && user != req.UserId2 {
			err := errs.Forbidden("", "the authenticated user must be one side of the conversation")
			response.JSON(c, "", err.Status, nil, err)
			return
		}

		conv, err := s.ConversationService.CreateDirect(c.Request.Context(), req.UserId1, req.UserId2)
		if err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		response.JSON(c, "conversation retrieved successfully", http.StatusOK, conv, nil)
	}
}

func (s *Server) handleGetUserConversations() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := actorID(c, c.Query("userId"), "userId")
		if err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		convs, err := s.ConversationService.GetUserConversations(c.Request.Context(), userID)
		if err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		response.JSON(c, "conversations retrieved successfully", http.StatusOK, convs, nil)
	}
}

func (s *Server) handleGetConversation() gin.HandlerFunc {
	return func(c *gin.Context) {
		conv, err := s.ConversationService.GetConversation(c.Request.Context(), c.Param("id"))
		if err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		response.JSON(c, "conversation retrieved successfully", http.StatusOK, conv, nil)
	}
}

func (s *Server) handleAddMembers() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.AddMembersRequest
		if err := decode(c, &req); err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		requester, err := actorID(c, req.RequestedById, "requestedById")
		if err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}

		added, err := s.ConversationService.AddMembers(c.Request.Context(), c.Param("id"), requester, req.MemberIds)
		if err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		message := "members added successfully"
		if len(added) == 0 {
			message = "no new members to add"
		}
		response.JSON(c, message, http.StatusOK, models.AddMembersResponse{AddedMembers: added}, nil)
	}
}

func (s *Server) handleRemoveMember() gin.HandlerFunc {
	return func(c *gin.Context) {
		requester, err := actorID(c, c.Query("requestedById"), "requestedById")
		if err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		if err := s.ConversationService.RemoveMember(c.Request.Context(), c.Param("id"), requester, c.Param("memberId")); err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		response.JSON(c, "member removed successfully", http.StatusOK, nil, nil)
	}
}

func (s *Server) handleManageAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ManageAdminRequest
		if err := decode(c, &req); err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		requester, err := actorID(c, req.RequestedById, "requestedById")
		if err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}

		conv, err := s.ConversationService.ManageAdmin(c.Request.Context(), c.Param("id"), requester, req.UserId, req.IsAddAdmin)
		if err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		message := "admin revoked successfully"
		if req.IsAddAdmin {
			message = "admin granted successfully"
		}
		response.JSON(c, message, http.StatusOK, conv, nil)
	}
}

func (s *Server) handleUpdateGroupInfo() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.UpdateGroupInfoRequest
		if err := decode(c, &req); err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		requester, err := actorID(c, req.RequestedById, "requestedById")
		if err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		req.RequestedById = requester

		conv, err := s.ConversationService.UpdateProfile(c.Request.Context(), c.Param("id"), &req)
		if err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		response.JSON(c, "group updated successfully", http.StatusOK, conv, nil)
	}
}

func (s *Server) handleJoinConversation() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.JoinConversationRequest
		if err := decode(c, &req); err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		userID, err := actorID(c, req.UserId, "userId")
		if err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}

		conv, err := s.ConversationService.JoinByCode(c.Request.Context(), userID, req.JoinCode)
		if err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		response.JSON(c, "joined group successfully", http.StatusOK, conv, nil)
	}
}

func (s *Server) handleBanMember() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.MemberActionRequest
		if err := decode(c, &req); err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		requester, err := actorID(c, req.RequestedById, "requestedById")
		if err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		if err := s.ConversationService.BanMember(c.Request.Context(), c.Param("id"), requester, req.UserId); err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		response.JSON(c, "member banned successfully", http.StatusOK, nil, nil)
	}
}

func (s *Server) handleUnbanMember() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.MemberActionRequest
		if err := decode(c, &req); err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		requester, err := actorID(c, req.RequestedById, "requestedById")
		if err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		if err := s.ConversationService.UnbanMember(c.Request.Context(), c.Param("id"), requester, req.UserId); err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		response.JSON(c, "member unbanned successfully", http.StatusOK, nil, nil)
	}
}

func (s *Server) handleLeaveConversation() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.LeaveConversationRequest
		if err := decode(c, &req); err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		userID, err := actorID(c, req.UserId, "userId")
		if err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		if err := s.ConversationService.LeaveConversation(c.Request.Context(), c.Param("id"), userID); err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		response.JSON(c, "left group successfully", http.StatusOK, nil, nil)
	}
}

func (s *Server) handleDeleteConversation() gin.HandlerFunc {
	return func(c *gin.Context) {
		requester, err := actorID(c, c.Query("requestedById"), "requestedById")
		if err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		if err := s.ConversationService.DeleteConversation(c.Request.Context(), c.Param("id"), requester); err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		response.JSON(c, "conversation deleted successfully", http.StatusOK, nil, nil)
	}
}
