package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"salon-chat/contract"
	"salon-chat/domain"
	"salon-chat/domain/event"
	"salon-chat/errors"

	"github.com/go-playground/validator/v10"
)

type IChatService interface {
	Send(ctx context.Context, session contract.Session, req domain.SendRequest) (domain.OutboundEnvelope, error)
	SendWithFiles(ctx context.Context, session contract.Session, req domain.SendRequest, files []domain.File) (domain.OutboundEnvelope, error)
}

// ChatService publishes outbound chat messages on a live session.
// Every failure is returned to the caller and emitted to the listeners as well.
type ChatService struct {
	log      *slog.Logger
	rooms    contract.RoomChecker
	uploader contract.AttachmentUploader
	emitter  contract.EventEmitter
	validate *validator.Validate
}

func NewChatService(log *slog.Logger, rooms contract.RoomChecker, uploader contract.AttachmentUploader, emitter contract.EventEmitter) *ChatService {
	return &ChatService{
		log:      log,
		rooms:    rooms,
		uploader: uploader,
		emitter:  emitter,
		validate: validator.New(),
	}
}

// Send does not wait for the server echo; the returned envelope is meant for optimistic display.
// Only a confirmed room deletion blocks the send, any other room check failure is logged and ignored.
func (s *ChatService) Send(ctx context.Context, session contract.Session, req domain.SendRequest) (domain.OutboundEnvelope, error) {
	if session == nil || !session.IsConnected() {
		return domain.OutboundEnvelope{}, s.fail(userOf(session), event.ConnectionErrorType, "not connected", errors.ErrConnection)
	}
	userID := session.UserID()

	if err := s.validate.Struct(req); err != nil {
		return domain.OutboundEnvelope{}, s.fail(userID, event.InvalidMessageType, err.Error(),
			fmt.Errorf("%w: %w", errors.ErrInvalidEnvelope, err))
	}

	if err := s.rooms.Exists(ctx, req.RoomID); err != nil {
		if errors.Is(err, errors.ErrRoomNotFound) {
			return domain.OutboundEnvelope{}, s.fail(userID, event.ChatRoomDeletedType, "chat room has been deleted",
				fmt.Errorf("%w: room %d", errors.ErrChatRoomDeleted, req.RoomID))
		}
		s.log.Warn("Room check failed, sending anyway", "user_id", userID, "room_id", req.RoomID, "error", err)
	}

	envelope := domain.NewOutboundEnvelope(req.RoomID, req.Body, req.SenderRole, userID, req.Attachments)
	body, err := json.Marshal(envelope)
	if err != nil {
		return domain.OutboundEnvelope{}, s.fail(userID, event.InvalidMessageType, err.Error(),
			fmt.Errorf("%w: %w", errors.ErrInvalidEnvelope, err))
	}

	if err := session.Publish(domain.SendDestination, domain.ContentTypeJSON, body); err != nil {
		return domain.OutboundEnvelope{}, s.fail(userID, event.ConnectionErrorType, "publish failed", err)
	}
	s.log.Debug("Message published", "user_id", userID, "room_id", req.RoomID, "photos", len(envelope.Attachments))
	return envelope, nil
}

// SendWithFiles uploads every file first and sends nothing if any upload fails.
func (s *ChatService) SendWithFiles(ctx context.Context, session contract.Session, req domain.SendRequest, files []domain.File) (domain.OutboundEnvelope, error) {
	if len(files) == 0 {
		return s.Send(ctx, session, req)
	}
	if session == nil || !session.IsConnected() {
		return domain.OutboundEnvelope{}, s.fail(userOf(session), event.ConnectionErrorType, "not connected", errors.ErrConnection)
	}
	refs, err := s.uploader.UploadMany(ctx, files, req.RoomID)
	if err != nil {
		return domain.OutboundEnvelope{}, err
	}
	req.Attachments = append(append([]domain.AttachmentRef(nil), req.Attachments...), refs...)
	return s.Send(ctx, session, req)
}

func (s *ChatService) fail(userID domain.UserID, errorType event.ErrorType, message string, err error) error {
	s.log.Error("Send failed", "user_id", userID, "type", errorType, "error", err)
	s.emitter.Emit(event.NewError(userID, errorType, message, err))
	return err
}

func userOf(session contract.Session) domain.UserID {
	if session == nil {
		return ""
	}
	return session.UserID()
}
