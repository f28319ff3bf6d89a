// Package stubserver is an in-memory emulation of the storefront backend:
// the /api REST surface plus the websocket chat channel with per-user
// rooms. It exists for local development and integration tests of the
// client engine; nothing here persists across restarts.
package stubserver

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"market-chat/internal/domain"
	"market-chat/internal/events"
	"market-chat/internal/transport/httpdto"
	"market-chat/internal/validator"
	"market-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type Server struct {
	log      *logger.Logger
	hub      *hub
	validate *validator.Validator
	upgrader websocket.Upgrader
	router   *gin.Engine

	mu        sync.Mutex
	nextID    int
	messages  []domain.Message
	wishlists map[int]map[int]struct{}
	deleted   map[int]struct{}
}

func New(log *logger.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		log:      log,
		hub:      newHub(),
		validate: validator.New(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		nextID:    1,
		wishlists: make(map[int]map[int]struct{}),
		deleted:   make(map[int]struct{}),
	}
	s.router = s.buildRouter()
	return s
}

// Handler exposes the stub as an http.Handler so tests can mount it on an
// httptest server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/ws", s.handleWS)
	r.GET("/api/conversations/:peer", s.handleConversation)
	r.POST("/api/change_password", s.handleChangePassword)
	r.POST("/api/upload_profile_picture", s.handleUploadProfilePicture)
	r.POST("/api/wishlist/add/:product", s.handleWishlistAdd)
	r.DELETE("/api/wishlist/remove/:product", s.handleWishlistRemove)
	r.DELETE("/api/wishlist/clear", s.handleWishlistClear)
	r.GET("/api/wishlist/check/:product", s.handleWishlistCheck)
	r.DELETE("/api/products/delete/:product", s.handleProductDelete)

	return r
}

// currentUser reads the acting user from the user_id query parameter. The
// real backend resolves this from the login session; the stub has no auth.
func currentUser(c *gin.Context) int {
	id, _ := strconv.Atoi(c.Query("user_id"))
	return id
}

func intParam(c *gin.Context, name string) int {
	id, _ := strconv.Atoi(c.Param(name))
	return id
}

func displayName(userID int) string {
	return fmt.Sprintf("student-%d", userID)
}

func (s *Server) handleConversation(c *gin.Context) {
	user := currentUser(c)
	peer := intParam(c, "peer")
	if user == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id required"})
		return
	}
	if user == peer {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot get conversation with yourself"})
		return
	}

	s.mu.Lock()
	history := make([]domain.Message, 0)
	for _, msg := range s.messages {
		if (msg.SenderID == user && msg.ReceiverID == peer) ||
			(msg.SenderID == peer && msg.ReceiverID == user) {
			entry := domain.Message{
				ID:         msg.ID,
				Content:    msg.Content,
				Timestamp:  msg.Timestamp,
				IsSender:   msg.SenderID == user,
				SenderName: displayName(msg.SenderID),
			}
			history = append(history, entry)
		}
	}
	s.mu.Unlock()

	c.JSON(http.StatusOK, history)
}

func (s *Server) handleChangePassword(c *gin.Context) {
	var req httpdto.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, httpdto.NewErrorResponse("Invalid request data"))
		return
	}
	if req.NewPassword != req.ConfirmPassword {
		c.JSON(http.StatusOK, httpdto.NewErrorResponse("New passwords do not match."))
		return
	}
	if len(req.NewPassword) < 8 {
		c.JSON(http.StatusOK, httpdto.NewErrorResponse("Password must be at least 8 characters long."))
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse("Password changed successfully!"))
}

func (s *Server) handleUploadProfilePicture(c *gin.Context) {
	file, err := c.FormFile("profile_picture")
	if err != nil {
		c.JSON(http.StatusOK, httpdto.NewErrorResponse("No file provided"))
		return
	}
	if file.Filename == "" {
		c.JSON(http.StatusOK, httpdto.NewErrorResponse("No file selected"))
		return
	}
	c.JSON(http.StatusOK, httpdto.ProfilePictureResponse{
		StatusResponse: httpdto.NewSuccessResponse("Profile picture updated successfully!"),
		NewImageURL:    "/uploads/" + time.Now().Format("20060102_150405_") + file.Filename,
	})
}

func (s *Server) handleWishlistAdd(c *gin.Context) {
	user, product := currentUser(c), intParam(c, "product")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.wishlists[user]; !ok {
		s.wishlists[user] = make(map[int]struct{})
	}
	if _, ok := s.wishlists[user][product]; ok {
		c.JSON(http.StatusOK, httpdto.NewErrorResponse("Item already in wishlist"))
		return
	}
	s.wishlists[user][product] = struct{}{}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse("Added to wishlist"))
}

func (s *Server) handleWishlistRemove(c *gin.Context) {
	user, product := currentUser(c), intParam(c, "product")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.wishlists[user][product]; !ok {
		c.JSON(http.StatusOK, httpdto.NewErrorResponse("Item not in wishlist"))
		return
	}
	delete(s.wishlists[user], product)
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse("Removed from wishlist"))
}

func (s *Server) handleWishlistClear(c *gin.Context) {
	user := currentUser(c)
	s.mu.Lock()
	delete(s.wishlists, user)
	s.mu.Unlock()
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse("Wishlist cleared"))
}

func (s *Server) handleWishlistCheck(c *gin.Context) {
	user, product := currentUser(c), intParam(c, "product")
	s.mu.Lock()
	_, exists := s.wishlists[user][product]
	s.mu.Unlock()
	c.JSON(http.StatusOK, httpdto.WishlistStatusResponse{InWishlist: exists})
}

func (s *Server) handleProductDelete(c *gin.Context) {
	product := intParam(c, "product")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, gone := s.deleted[product]; gone {
		c.JSON(http.StatusOK, httpdto.NewErrorResponse("Product not found"))
		return
	}
	s.deleted[product] = struct{}{}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse("Product deleted successfully"))
}

func (s *Server) handleWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	cl := newClient(conn)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cl.writeLoop(ctx)

	for {
		var env events.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			break
		}
		switch env.Event {
		case events.EventJoin:
			s.handleJoin(cl, env)
		case events.EventSendMessage:
			s.handleSendMessage(cl, env)
		default:
			cl.deliver(s.errorEnvelope(fmt.Sprintf("Unknown event: %s", env.Event)))
		}
	}

	s.hub.remove(cl)
	_ = conn.Close()
}

func (s *Server) handleJoin(cl *client, env events.Envelope) {
	var p events.JoinPayload
	if err := env.Decode(&p); err != nil || p.UserID == 0 {
		cl.deliver(s.errorEnvelope("Invalid join request"))
		return
	}
	s.hub.join(cl, p.UserID)
	s.log.Infof("user %d joined room user_%d", p.UserID, p.UserID)

	joined, _ := events.NewEnvelope(events.EventJoined, events.JoinedPayload{
		Room:   fmt.Sprintf("user_%d", p.UserID),
		UserID: p.UserID,
	})
	cl.deliver(joined)
}

func (s *Server) handleSendMessage(cl *client, env events.Envelope) {
	var p events.SendMessagePayload
	if err := env.Decode(&p); err != nil {
		cl.deliver(s.errorEnvelope("Invalid data format"))
		return
	}
	if errs := s.validate.ValidateStruct(p); len(errs) > 0 {
		cl.deliver(s.errorEnvelope(fmt.Sprintf("Missing required field: %s", errs[0].Field)))
		return
	}
	content := strings.TrimSpace(p.Content)
	if content == "" {
		cl.deliver(s.errorEnvelope("Message content cannot be empty"))
		return
	}
	if len(content) > 1000 {
		cl.deliver(s.errorEnvelope("Message too long (max 1000 characters)"))
		return
	}
	if p.SenderID == p.ReceiverID {
		cl.deliver(s.errorEnvelope("Cannot send message to yourself"))
		return
	}

	s.mu.Lock()
	msg := domain.Message{
		ID:         s.nextID,
		SenderID:   p.SenderID,
		ReceiverID: p.ReceiverID,
		Content:    content,
		Timestamp:  domain.Timestamp{Time: time.Now()},
	}
	s.nextID++
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	newMsg, _ := events.NewEnvelope(events.EventNewMessage, domain.Message{
		ID:         msg.ID,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		Content:    msg.Content,
		Timestamp:  msg.Timestamp,
		SenderName: displayName(msg.SenderID),
	})
	s.hub.emitToUser(p.ReceiverID, newMsg)

	sent, _ := events.NewEnvelope(events.EventMessageSent, domain.Message{
		ID:         msg.ID,
		ReceiverID: msg.ReceiverID,
		Content:    msg.Content,
		Timestamp:  msg.Timestamp,
	})
	s.hub.emitToUser(p.SenderID, sent)
}

func (s *Server) errorEnvelope(message string) events.Envelope {
	env, _ := events.NewEnvelope(events.EventError, events.ErrorPayload{Message: message})
	return env
}
