package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"salon-chat/contract"
	"salon-chat/domain"
	"salon-chat/domain/event"
	"salon-chat/errors"
	"salon-chat/services"
)

// UploadClient sends attachments to the upload endpoint of the chat API.
type UploadClient struct {
	log        *slog.Logger
	baseURL    string
	httpClient *http.Client
	emitter    contract.EventEmitter
	headers    map[string]string
}

func NewUploadClient(log *slog.Logger, baseURL string, httpClient *http.Client, emitter contract.EventEmitter, headers map[string]string) *UploadClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &UploadClient{
		log:        log,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		emitter:    emitter,
		headers:    headers,
	}
}

// UploadOne checks the size ceiling locally before sending anything.
func (c *UploadClient) UploadOne(ctx context.Context, file domain.File, roomID domain.RoomID) (domain.AttachmentRef, error) {
	if file.Size > services.MaxFileSize {
		return domain.AttachmentRef{}, c.fail(event.FileTooLargeType, fmt.Errorf("%w: %s", errors.ErrFileTooLarge, file.Name))
	}
	if file.Body == nil {
		return domain.AttachmentRef{}, c.fail(event.InvalidAttachmentType, fmt.Errorf("%w: empty body", errors.ErrInvalidAttachment))
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := form.WriteField(FieldConversationID, strconv.FormatInt(int64(roomID), 10)); err != nil {
		return domain.AttachmentRef{}, err
	}
	part, err := form.CreateFormFile(FieldFile, file.Name)
	if err != nil {
		return domain.AttachmentRef{}, err
	}
	if _, err := io.Copy(part, io.LimitReader(file.Body, services.MaxFileSize+1)); err != nil {
		return domain.AttachmentRef{}, fmt.Errorf("read %s: %w", file.Name, err)
	}
	if err := form.Close(); err != nil {
		return domain.AttachmentRef{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat/upload", &body)
	if err != nil {
		return domain.AttachmentRef{}, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.AttachmentRef{}, fmt.Errorf("upload %s: %w", file.Name, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusRequestEntityTooLarge:
		return domain.AttachmentRef{}, c.fail(event.FileTooLargeType, fmt.Errorf("%w: %s", errors.ErrFileTooLarge, file.Name))
	case http.StatusBadRequest:
		return domain.AttachmentRef{}, c.fail(event.InvalidAttachmentType, fmt.Errorf("%w: %s", errors.ErrInvalidAttachment, file.Name))
	default:
		return domain.AttachmentRef{}, fmt.Errorf("upload %s: unexpected status %d", file.Name, resp.StatusCode)
	}

	var uploaded struct {
		FileURL string `json:"fileUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		return domain.AttachmentRef{}, fmt.Errorf("upload %s: decode response: %w", file.Name, err)
	}
	if uploaded.FileURL == "" {
		return domain.AttachmentRef{}, fmt.Errorf("upload %s: response has no fileUrl", file.Name)
	}
	return domain.AttachmentRef{URL: uploaded.FileURL, FileName: file.Name, SizeBytes: file.Size}, nil
}

func (c *UploadClient) UploadMany(ctx context.Context, files []domain.File, roomID domain.RoomID) ([]domain.AttachmentRef, error) {
	return services.UploadConcurrently(ctx, files, roomID, c.UploadOne)
}

func (c *UploadClient) fail(errorType event.ErrorType, err error) error {
	c.log.Warn("Attachment rejected", "type", errorType, "error", err)
	c.emitter.Emit(event.NewError("", errorType, err.Error(), err))
	return err
}
