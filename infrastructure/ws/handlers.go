package ws

import (
	"fitpulse-chat/domain"
	"fitpulse-chat/errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

type profileRequest struct {
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl"`
}

type createGroupRequest struct {
	Name    string          `json:"name"`
	Members []domain.UserID `json:"members"`
}

type addMemberRequest struct {
	UserID domain.UserID `json:"userId"`
}

type messagesResponse struct {
	Messages []domain.Message `json:"messages"`
	Cursor   *string          `json:"cursor,omitempty"`
}

func caller(c *fiber.Ctx) domain.UserID {
	id, _ := c.Locals(userIDLocal).(domain.UserID)
	return id
}

func parseBody(c *fiber.Ctx, v any) error {
	if err := c.BodyParser(v); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	return nil
}

// PUT /api/me
func (s *Server) syncProfile(c *fiber.Ctx) error {
	var body profileRequest
	if err := parseBody(c, &body); err != nil {
		return fail(c, err)
	}
	user, err := s.profiles.Sync(c.UserContext(), caller(c), body.Name, body.AvatarURL)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(user)
}

// POST /api/groups
func (s *Server) createGroup(c *fiber.Ctx) error {
	var body createGroupRequest
	if err := parseBody(c, &body); err != nil {
		return fail(c, err)
	}
	group, err := s.groups.Create(c.UserContext(), caller(c), body.Name, body.Members)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(group)
}

// POST /api/groups/:id/members
func (s *Server) addMember(c *fiber.Ctx) error {
	var body addMemberRequest
	if err := parseBody(c, &body); err != nil {
		return fail(c, err)
	}
	if body.UserID == "" {
		return fail(c, fmt.Errorf("%w: userId is required", errors.ErrInvalidPayload))
	}
	group, err := s.groups.AddMember(c.UserContext(), caller(c), domain.GroupID(c.Params("id")), body.UserID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(group)
}

// DELETE /api/groups/:id/members/:userId
func (s *Server) removeMember(c *fiber.Ctx) error {
	group, err := s.groups.RemoveMember(c.UserContext(), caller(c), domain.GroupID(c.Params("id")), domain.UserID(c.Params("userId")))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(group)
}

// GET /api/conversations/:id/messages?cursor=
func (s *Server) messages(c *fiber.Ctx) error {
	var cursor *string
	if raw := c.Query("cursor"); raw != "" {
		cursor = &raw
	}
	messages, next, err := s.history.Messages(c.UserContext(), caller(c), c.Params("id"), cursor)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(messagesResponse{Messages: messages, Cursor: next})
}

// GET /api/conversations/:id/search?q=
func (s *Server) search(c *fiber.Ctx) error {
	messages, err := s.history.Search(c.UserContext(), caller(c), c.Params("id"), c.Query("q"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(messagesResponse{Messages: messages})
}
