// Package policy decides who may change a conversation's membership.
// Every function is pure: it reads a conversation snapshot and never
// mutates it.
package policy

import "github.com/techagentng/quizchat/models"

// Denial is the reason a request was refused. The zero value means allowed.
type Denial string

const (
	Allowed             Denial = ""
	NotAdmin            Denial = "NOT_ADMIN"
	NotCreator          Denial = "NOT_CREATOR"
	CannotRemoveAdmin   Denial = "CANNOT_REMOVE_ADMIN"
	CannotRevokeCreator Denial = "CANNOT_REVOKE_CREATOR"
	NotAMember          Denial = "NOT_A_MEMBER"
	CapacityExceeded    Denial = "CAPACITY_EXCEEDED"
	NotGroup            Denial = "NOT_GROUP"
	Banned              Denial = "BANNED"
	AlreadyMember       Denial = "ALREADY_MEMBER"
	CannotBanAdmin      Denial = "CANNOT_BAN_ADMIN"
	CreatorCannotLeave  Denial = "CREATOR_CANNOT_LEAVE"
)

var messages = map[Denial]string{
	NotAdmin:            "only group admins can perform this action",
	NotCreator:          "only the group creator can manage admins",
	CannotRemoveAdmin:   "admins cannot be removed from the group",
	CannotRevokeCreator: "the group creator cannot lose admin status",
	NotAMember:          "user is not a member of this conversation",
	CapacityExceeded:    "group member limit reached",
	NotGroup:            "operation is only valid for group conversations",
	Banned:              "user is banned from this group",
	AlreadyMember:       "user is already a member of this group",
	CannotBanAdmin:      "admins cannot be banned",
	CreatorCannotLeave:  "the group creator cannot leave the group",
}

func (d Denial) Message() string {
	return messages[d]
}

func (d Denial) Denied() bool {
	return d != Allowed
}

func contains(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

func IsMember(conv *models.Conversation, userID string) bool {
	return contains(conv.Members, userID)
}

func IsAdmin(conv *models.Conversation, userID string) bool {
	return contains(conv.Admins, userID)
}

func IsCreator(conv *models.Conversation, userID string) bool {
	return conv.CreatorID != "" && conv.CreatorID == userID
}

func IsBanned(conv *models.Conversation, userID string) bool {
	return contains(conv.BannedMembers, userID)
}

// Addable returns the candidates that would actually join: ids already in
// the group, banned ids, blanks and repeats within the request are dropped.
func Addable(conv *models.Conversation, candidates []string) []string {
	seen := make(map[string]struct{}, len(candidates))
	added := []string{}
	for _, id := range candidates {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if IsMember(conv, id) || IsBanned(conv, id) {
			continue
		}
		added = append(added, id)
	}
	return added
}

// CanAddMembers checks the requester and capacity against the filtered
// candidate set and returns that set.
func CanAddMembers(conv *models.Conversation, requesterID string, candidates []string) ([]string, Denial) {
	if !conv.IsGroup() {
		return nil, NotGroup
	}
	if !IsAdmin(conv, requesterID) {
		return nil, NotAdmin
	}
	added := Addable(conv, candidates)
	if len(conv.Members)+len(added) > conv.MaxMembers {
		return nil, CapacityExceeded
	}
	return added, Allowed
}

func CanRemoveMember(conv *models.Conversation, requesterID, targetID string) Denial {
	if !conv.IsGroup() {
		return NotGroup
	}
	if !IsAdmin(conv, requesterID) {
		return NotAdmin
	}
	if IsAdmin(conv, targetID) {
		return CannotRemoveAdmin
	}
	return Allowed
}

func CanManageAdmin(conv *models.Conversation, requesterID string) Denial {
	if !conv.IsGroup() {
		return NotGroup
	}
	if !IsCreator(conv, requesterID) {
		return NotCreator
	}
	return Allowed
}

func CanGrantAdmin(conv *models.Conversation, requesterID, targetID string) Denial {
	if d := CanManageAdmin(conv, requesterID); d.Denied() {
		return d
	}
	if !IsMember(conv, targetID) {
		return NotAMember
	}
	return Allowed
}

// CanRevokeAdmin keeps the creator in admins for the group's whole life.
func CanRevokeAdmin(conv *models.Conversation, requesterID, targetID string) Denial {
	if d := CanManageAdmin(conv, requesterID); d.Denied() {
		return d
	}
	if IsCreator(conv, targetID) {
		return CannotRevokeCreator
	}
	return Allowed
}

func CanEditProfile(conv *models.Conversation, requesterID string) Denial {
	if !conv.IsGroup() {
		return NotGroup
	}
	if !IsAdmin(conv, requesterID) {
		return NotAdmin
	}
	return Allowed
}

func CanBanMember(conv *models.Conversation, requesterID, targetID string) Denial {
	if !conv.IsGroup() {
		return NotGroup
	}
	if !IsAdmin(conv, requesterID) {
		return NotAdmin
	}
	if IsAdmin(conv, targetID) {
		return CannotBanAdmin
	}
	return Allowed
}

func CanUnbanMember(conv *models.Conversation, requesterID string) Denial {
	if !conv.IsGroup() {
		return NotGroup
	}
	if !IsAdmin(conv, requesterID) {
		return NotAdmin
	}
	return Allowed
}

func CanJoin(conv *models.Conversation, userID string) Denial {
	if !conv.IsGroup() {
		return NotGroup
	}
	if IsBanned(conv, userID) {
		return Banned
	}
	if IsMember(conv, userID) {
		return AlreadyMember
	}
	if len(conv.Members)+1 > conv.MaxMembers {
		return CapacityExceeded
	}
	return Allowed
}

// CanLeave lets any member except the creator walk out.
func CanLeave(conv *models.Conversation, userID string) Denial {
	if !conv.IsGroup() {
		return NotGroup
	}
	if !IsMember(conv, userID) {
		return NotAMember
	}
	if IsCreator(conv, userID) {
		return CreatorCannotLeave
	}
	return Allowed
}

func CanDelete(conv *models.Conversation, requesterID string) Denial {
	if !conv.IsGroup() {
		return NotGroup
	}
	if !IsCreator(conv, requesterID) {
		return NotCreator
	}
	return Allowed
}
