package delivery

import (
	"github.com/gofiber/fiber/v2"

	"supportchat-ws/internal/auth"
	"supportchat-ws/internal/domain"
)

// authRequired guards diagnostic endpoints with the same token check the
// WebSocket handshake uses. The verified identity is stored on the
// request context for the handlers behind it.
func (s *Server) authRequired(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		if header := c.Get(fiber.HeaderAuthorization); header != "" {
			token, _ = auth.BearerToken(header)
		}
	}
	identity, err := s.verifier.Verify(token)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "authentication required",
		})
	}
	c.Locals("identity", identity)
	return c.Next()
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":      "ok",
		"environment": s.cfg.Environment,
		"localOnly":   s.hub.LocalOnly(),
	})
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    s.hub.Stats(),
	})
}

// handleConversationPresence reports who is online in a conversation,
// read from the shared Redis bookkeeping so the answer covers every
// gateway process. Agents may inspect any conversation; customers only
// the ones they participate in.
func (s *Server) handleConversationPresence(c *fiber.Ctx) error {
	conversationID := c.Params("conversation_id")
	identity, _ := c.Locals("identity").(domain.Identity)
	if identity.Role != domain.RoleAgent {
		ok, err := s.gw.IsParticipant(c.Context(), conversationID, identity.UserID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": "failed to verify conversation membership",
			})
		}
		if !ok {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"success": false,
				"message": "not a participant of this conversation",
			})
		}
	}
	if s.presence == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"success": false,
			"message": "presence bookkeeping unavailable",
		})
	}
	members, err := s.presence.ConversationMembers(c.Context(), conversationID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "failed to read conversation presence",
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    members,
	})
}
