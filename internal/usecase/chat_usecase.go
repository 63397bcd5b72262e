package usecase

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"stompingground/internal/domain/entity"
	"stompingground/internal/domain/repository"
	"stompingground/internal/domain/service"
	"stompingground/internal/infrastructure/ratelimit"
	"stompingground/internal/infrastructure/websocket"
	"stompingground/pkg/errors"
	"stompingground/pkg/logger"
)

const maxMessageLength = 4000

type ChatUseCase struct {
	chatRepo    repository.ChatRepository
	userRepo    repository.UserRepository
	projector   *service.RecentMessageProjector
	seenTracker *SeenTracker
	wsManager   *websocket.Manager
	rateLimiter *ratelimit.RateLimiter
}

func NewChatUseCase(
	chatRepo repository.ChatRepository,
	userRepo repository.UserRepository,
	projector *service.RecentMessageProjector,
	seenTracker *SeenTracker,
	wsManager *websocket.Manager,
	rateLimiter *ratelimit.RateLimiter,
) *ChatUseCase {
	return &ChatUseCase{
		chatRepo:    chatRepo,
		userRepo:    userRepo,
		projector:   projector,
		seenTracker: seenTracker,
		wsManager:   wsManager,
		rateLimiter: rateLimiter,
	}
}

type CreateChatInput struct {
	Name           string   `json:"name"`
	ParticipantIDs []string `json:"participantIds" validate:"required,min=1"`
}

type SendMessageInput struct {
	Text string `json:"text" validate:"required"`
	// Optional client-supplied id; retries with the same id stay idempotent.
	MessageID string `json:"messageId,omitempty"`
}

// ChatListItem is the chat list view model: the chat plus, for two-person
// chats, the other participant's profile, and the viewer's preview row.
type ChatListItem struct {
	Chat          *entity.Chat               `json:"chat"`
	OtherUser     *entity.User               `json:"otherUser,omitempty"`
	RecentMessage *entity.RecentMessageEntry `json:"recentMessage,omitempty"`
}

// wsEvent mirrors the frame envelope the WebSocket layer speaks; the
// usecase marshals its own pushes so it never depends on the API layer.
type wsEvent struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	ChatID    string      `json:"chatId,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// CreateChat creates a conversation between the creator and the given
// participants. The creator is always a participant; duplicates are
// collapsed. The chat document, its seeded preview text, and every
// participant's recent-message row land in one atomic batch.
func (uc *ChatUseCase) CreateChat(ctx context.Context, creatorID string, input CreateChatInput) (*entity.Chat, error) {
	if allowed, wait := uc.rateLimiter.Allow(creatorID, "create_chat"); !allowed {
		return nil, errors.TooManyRequests("Too many chats created, try again in "+wait.Round(time.Second).String(), nil)
	}

	creator, err := uc.userRepo.GetByID(ctx, creatorID)
	if err != nil {
		return nil, err
	}

	participants := []string{creatorID}
	seen := map[string]bool{creatorID: true}
	for _, id := range input.ParticipantIDs {
		if id == "" || seen[id] {
			continue
		}
		if _, err := uc.userRepo.GetByID(ctx, id); err != nil {
			if errors.Is(err, "NOT_FOUND") {
				return nil, errors.BadRequest("Unknown participant: "+id, nil)
			}
			return nil, err
		}
		participants = append(participants, id)
		seen[id] = true
	}
	if len(participants) < 2 {
		return nil, errors.BadRequest("A chat needs at least one other participant", nil)
	}

	preview := service.MessagePreview{
		Text:            creator.Name + " started a new chat",
		SenderID:        creatorID,
		SenderName:      creator.Name,
		SenderAvatarURL: creator.AvatarURL,
		Timestamp:       time.Now(),
	}

	chat := &entity.Chat{
		Name:         input.Name,
		Participants: participants,
	}
	if err := uc.chatRepo.Create(ctx, chat, preview); err != nil {
		return nil, err
	}

	for _, userID := range participants {
		if userID == creatorID {
			continue
		}
		uc.push(userID, wsEvent{Type: "new_chat", Data: chat, ChatID: chat.ID, Timestamp: time.Now()})
	}

	return chat, nil
}

// SendMessage appends a message to a chat the sender participates in. The
// message, the chat's lastMessage/seenBy update, and the recipients' preview
// rows commit in a single batch; only then does the fan-out fire.
func (uc *ChatUseCase) SendMessage(ctx context.Context, senderID, chatID string, input SendMessageInput) (*entity.ChatMessage, error) {
	if allowed, wait := uc.rateLimiter.Allow(senderID, "send_message"); !allowed {
		return nil, errors.TooManyRequests("Sending too fast, try again in "+wait.Round(time.Second).String(), nil)
	}

	text := strings.TrimSpace(input.Text)
	if text == "" {
		return nil, errors.BadRequest("Message text is required", nil)
	}
	if len(text) > maxMessageLength {
		return nil, errors.BadRequest("Message text too long", nil)
	}

	chat, err := uc.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasParticipant(senderID) {
		return nil, errors.Forbidden("You are not a participant of this chat", nil)
	}

	sender, err := uc.userRepo.GetByID(ctx, senderID)
	if err != nil {
		return nil, err
	}

	message := &entity.ChatMessage{
		ID:       input.MessageID,
		ChatID:   chatID,
		SenderID: senderID,
		Text:     text,
	}
	preview := service.MessagePreview{
		Text:            text,
		SenderID:        senderID,
		SenderName:      sender.Name,
		SenderAvatarURL: sender.AvatarURL,
		Timestamp:       time.Now(),
	}
	if err := uc.chatRepo.CreateMessage(ctx, message, preview); err != nil {
		return nil, err
	}

	uc.broadcastToRoom(chatID, senderID, wsEvent{
		Type:      "new_message",
		Data:      message,
		ChatID:    chatID,
		Timestamp: time.Now(),
	})
	for _, userID := range chat.Participants {
		if userID == senderID {
			continue
		}
		uc.push(userID, wsEvent{Type: "chat_list_update", ChatID: chatID, Timestamp: time.Now()})
	}

	return message, nil
}

// GetChatByID returns one chat, restricted to its participants.
func (uc *ChatUseCase) GetChatByID(ctx context.Context, userID, chatID string) (*entity.Chat, error) {
	chat, err := uc.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasParticipant(userID) {
		return nil, errors.Forbidden("You are not a participant of this chat", nil)
	}
	return chat, nil
}

// GetUserChats lists a user's chats newest-first, pairing each with its
// recent-message preview row. A chat whose preview row has drifted or gone
// missing gets repaired in place from the chat's own last-message fields.
func (uc *ChatUseCase) GetUserChats(ctx context.Context, userID string, limit, offset int) ([]*ChatListItem, int64, error) {
	chats, total, err := uc.chatRepo.ListByUserID(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	entries, err := uc.chatRepo.ListRecentMessages(ctx, userID)
	if err != nil {
		logger.Warn("Failed to load recent message entries for %s: %v", userID, err)
		entries = nil
	}
	byChat := make(map[string]*entity.RecentMessageEntry, len(entries))
	for _, entry := range entries {
		byChat[entry.ChatID] = entry
	}

	items := make([]*ChatListItem, 0, len(chats))
	for _, chat := range chats {
		item := &ChatListItem{Chat: chat}

		if entry, ok := byChat[chat.ID]; ok {
			item.RecentMessage = entry
		} else {
			item.RecentMessage = uc.repairRecentEntry(ctx, userID, chat)
		}

		if len(chat.Participants) == 2 {
			otherID := chat.Participants[0]
			if otherID == userID {
				otherID = chat.Participants[1]
			}
			if other, err := uc.userRepo.GetByID(ctx, otherID); err == nil {
				item.OtherUser = other
			} else {
				logger.Warn("Failed to load participant %s for chat %s: %v", otherID, chat.ID, err)
			}
		}

		items = append(items, item)
	}

	return items, total, nil
}

// repairRecentEntry rebuilds a missing preview row from the chat summary.
// Best-effort: failures leave the row missing until the next write.
func (uc *ChatUseCase) repairRecentEntry(ctx context.Context, userID string, chat *entity.Chat) *entity.RecentMessageEntry {
	preview := service.MessagePreview{
		Text:      chat.LastMessage,
		Timestamp: chat.UpdatedAt,
	}
	if err := uc.projector.Project(ctx, chat.ID, []string{userID}, preview); err != nil {
		logger.Warn("Failed to repair recent entry for user %s chat %s: %v", userID, chat.ID, err)
		return nil
	}
	return &entity.RecentMessageEntry{
		ChatID:    chat.ID,
		Text:      chat.LastMessage,
		Timestamp: chat.UpdatedAt,
	}
}

// GetChatMessages lists a page of a chat's messages, oldest first, for
// participants only.
func (uc *ChatUseCase) GetChatMessages(ctx context.Context, userID, chatID string, limit, offset int) ([]*entity.ChatMessage, int64, error) {
	chat, err := uc.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return nil, 0, err
	}
	if !chat.HasParticipant(userID) {
		return nil, 0, errors.Forbidden("You are not a participant of this chat", nil)
	}
	return uc.chatRepo.ListMessages(ctx, chatID, limit, offset)
}

// DeleteChat removes the chat, its messages, and every participant's
// preview row. Any participant may delete.
func (uc *ChatUseCase) DeleteChat(ctx context.Context, userID, chatID string) error {
	chat, err := uc.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return err
	}
	if !chat.HasParticipant(userID) {
		return errors.Forbidden("You are not a participant of this chat", nil)
	}
	if err := uc.chatRepo.Delete(ctx, chatID); err != nil {
		return err
	}

	for _, participantID := range chat.Participants {
		if participantID == userID {
			continue
		}
		uc.push(participantID, wsEvent{Type: "chat_deleted", ChatID: chatID, Timestamp: time.Now()})
	}
	return nil
}

// MarkChatSeen validates access, then hands the flag write to the seen
// tracker. Invalid ids and non-participants surface errors; the write
// itself is fire-and-forget.
func (uc *ChatUseCase) MarkChatSeen(ctx context.Context, userID, chatID string) error {
	if allowed, _ := uc.rateLimiter.Allow(userID, "mark_seen"); !allowed {
		return nil
	}
	chat, err := uc.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return err
	}
	if !chat.HasParticipant(userID) {
		return errors.Forbidden("You are not a participant of this chat", nil)
	}
	uc.seenTracker.MarkChatSeen(ctx, chatID, userID)
	uc.broadcastToRoom(chatID, userID, wsEvent{
		Type:      "read_receipt",
		Data:      map[string]string{"userId": userID},
		ChatID:    chatID,
		Timestamp: time.Now(),
	})
	return nil
}

// MarkMessageSeen is the per-message counterpart of MarkChatSeen.
func (uc *ChatUseCase) MarkMessageSeen(ctx context.Context, userID, chatID, messageID string) error {
	if allowed, _ := uc.rateLimiter.Allow(userID, "mark_seen"); !allowed {
		return nil
	}
	chat, err := uc.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return err
	}
	if !chat.HasParticipant(userID) {
		return errors.Forbidden("You are not a participant of this chat", nil)
	}
	if _, err := uc.chatRepo.GetMessageByID(ctx, chatID, messageID); err != nil {
		return err
	}
	uc.seenTracker.MarkMessageSeen(ctx, chatID, messageID, userID)
	uc.broadcastToRoom(chatID, userID, wsEvent{
		Type:      "read_receipt",
		Data:      map[string]string{"userId": userID, "messageId": messageID},
		ChatID:    chatID,
		Timestamp: time.Now(),
	})
	return nil
}

// GetRecentMessages returns the raw projection rows for a user, newest
// first. Mostly a client bootstrap endpoint; the live view arrives over
// the chat-list watch.
func (uc *ChatUseCase) GetRecentMessages(ctx context.Context, userID string) ([]*entity.RecentMessageEntry, error) {
	return uc.chatRepo.ListRecentMessages(ctx, userID)
}

func (uc *ChatUseCase) push(userID string, event wsEvent) {
	if uc.wsManager == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Error("Failed to marshal push event: %v", err)
		return
	}
	uc.wsManager.SendToUser(userID, payload)
}

func (uc *ChatUseCase) broadcastToRoom(chatID, excludeUserID string, event wsEvent) {
	if uc.wsManager == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Error("Failed to marshal room event: %v", err)
		return
	}
	uc.wsManager.SendToChatRoom(chatID, payload, excludeUserID)
}
