package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"

	"salon-chat/contract"
	"salon-chat/domain"
	"salon-chat/domain/event"
	"salon-chat/domain/mimetypes"
	"salon-chat/errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// MaxFileSize is the largest accepted attachment, inclusive.
const MaxFileSize = 10 * domain.MB

type IUploadService interface {
	contract.AttachmentUploader
	DeleteConversation(ctx context.Context, roomID domain.RoomID) error
}

// UploadService stores chat photos under the folder of their conversation.
type UploadService struct {
	log      *slog.Logger
	backend  contract.StorageBackend
	emitter  contract.EventEmitter
	validate *validator.Validate
}

func NewUploadService(log *slog.Logger, backend contract.StorageBackend, emitter contract.EventEmitter) *UploadService {
	return &UploadService{
		log:      log,
		backend:  backend,
		emitter:  emitter,
		validate: validator.New(),
	}
}

// UploadOne returns a reference built from the public URL and the declared name and size.
// The body must carry exactly the declared number of bytes.
func (s *UploadService) UploadOne(ctx context.Context, file domain.File, roomID domain.RoomID) (domain.AttachmentRef, error) {
	if err := s.validate.Struct(file); err != nil || file.Body == nil {
		if err == nil {
			err = fmt.Errorf("empty body")
		}
		return domain.AttachmentRef{}, s.fail(event.InvalidAttachmentType, err.Error(),
			fmt.Errorf("%w: %w", errors.ErrInvalidAttachment, err))
	}
	if file.Size > MaxFileSize {
		return domain.AttachmentRef{}, s.fail(event.FileTooLargeType,
			fmt.Sprintf("%s is %d bytes, the limit is %d", file.Name, file.Size, MaxFileSize),
			fmt.Errorf("%w: %s", errors.ErrFileTooLarge, file.Name))
	}

	data, err := readLimited(file.Body, MaxFileSize)
	switch {
	case errors.Is(err, errors.ErrFileTooLarge):
		return domain.AttachmentRef{}, s.fail(event.FileTooLargeType,
			fmt.Sprintf("%s is over the limit of %d bytes", file.Name, MaxFileSize),
			fmt.Errorf("%w: %s", errors.ErrFileTooLarge, file.Name))
	case err != nil:
		return domain.AttachmentRef{}, s.fail(event.InvalidAttachmentType, err.Error(),
			fmt.Errorf("%w: %w", errors.ErrInvalidAttachment, err))
	case int64(len(data)) != file.Size:
		return domain.AttachmentRef{}, s.fail(event.InvalidAttachmentType,
			fmt.Sprintf("%s declares %d bytes but carries %d", file.Name, file.Size, len(data)),
			fmt.Errorf("%w: size mismatch for %s", errors.ErrInvalidAttachment, file.Name))
	}

	detected := mimetypes.Detect(data)
	if !mimetypes.IsImage(detected) {
		return domain.AttachmentRef{}, s.fail(event.InvalidAttachmentType,
			fmt.Sprintf("%s is %s", file.Name, detected),
			fmt.Errorf("%w: %s", errors.ErrNotImage, detected))
	}

	key := roomID.AttachmentKey(uuid.NewString() + "_" + path.Base(file.Name))
	if err := s.backend.Upload(ctx, key, bytes.NewReader(data), file.Size, detected); err != nil {
		s.log.Error("Attachment upload failed", "room_id", roomID, "key", key, "error", err)
		return domain.AttachmentRef{}, err
	}
	s.log.Debug("Attachment uploaded", "room_id", roomID, "key", key, "size", file.Size)

	return domain.AttachmentRef{
		URL:       s.backend.PublicURL(key),
		FileName:  file.Name,
		SizeBytes: file.Size,
	}, nil
}

// UploadMany is all-or-nothing. Objects already stored when another upload fails are left in place.
func (s *UploadService) UploadMany(ctx context.Context, files []domain.File, roomID domain.RoomID) ([]domain.AttachmentRef, error) {
	return UploadConcurrently(ctx, files, roomID, s.UploadOne)
}

// DeleteConversation removes every photo of the conversation.
func (s *UploadService) DeleteConversation(ctx context.Context, roomID domain.RoomID) error {
	if err := s.backend.DeleteFolder(ctx, roomID.AttachmentPrefix()); err != nil {
		s.log.Error("Conversation cleanup failed", "room_id", roomID, "error", err)
		return err
	}
	s.log.Info("Conversation attachments deleted", "room_id", roomID)
	return nil
}

func (s *UploadService) fail(errorType event.ErrorType, message string, err error) error {
	s.log.Warn("Attachment rejected", "type", errorType, "error", err)
	s.emitter.Emit(event.NewError("", errorType, message, err))
	return err
}

// UploadConcurrently starts every upload at once and returns the references in input order.
// The first failure cancels the uploads still running and no reference is returned.
func UploadConcurrently(
	ctx context.Context,
	files []domain.File,
	roomID domain.RoomID,
	upload func(context.Context, domain.File, domain.RoomID) (domain.AttachmentRef, error),
) ([]domain.AttachmentRef, error) {
	refs := make([]domain.AttachmentRef, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, file := range files {
		g.Go(func() error {
			ref, err := upload(gctx, file, roomID)
			if err != nil {
				return err
			}
			refs[i] = ref
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return refs, nil
}

// readLimited reads the whole body and fails with errors.ErrFileTooLarge past limit bytes.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errors.ErrFileTooLarge
	}
	return data, nil
}
