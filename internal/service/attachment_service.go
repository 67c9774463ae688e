package service

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/actionlog-api/internal/dto"
	"github.com/noah-isme/actionlog-api/internal/models"
	"github.com/noah-isme/actionlog-api/internal/observability"
	"github.com/noah-isme/actionlog-api/internal/repository"
)

var (
	// ErrAttachmentTooLarge indicates the payload exceeded the configured limit.
	ErrAttachmentTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrAttachmentTypeNotAllowed indicates the detected MIME type is not permitted.
	ErrAttachmentTypeNotAllowed = errors.New("file type not allowed")
	// ErrAttachmentScanFailed indicates the archive inspection rejected the file.
	ErrAttachmentScanFailed = errors.New("file scanning failed")
)

var allowedAttachmentTypes = map[string]struct{}{
	"application/pdf": {},
	"application/zip": {},
	"text/plain":      {},
	"text/csv":        {},

	"application/msword":       {},
	"application/vnd.ms-excel": {},

	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   {},
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         {},
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": {},
}

// FileStorage abstracts attachment destinations.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// AttachmentService stores files against action logs.
type AttachmentService interface {
	Upload(ctx context.Context, actorID, actionLogID uint, file *multipart.FileHeader) (dto.AttachmentResponse, error)
	List(ctx context.Context, actorID, actionLogID uint) ([]dto.AttachmentResponse, error)
}

type attachmentService struct {
	storage     FileStorage
	attachments repository.AttachmentRepository
	logs        repository.ActionLogRepository
	directory   DirectoryService
	events      EventPublisher
	logger      zerolog.Logger
	maxSize     int64
	tracer      trace.Tracer
	now         func() time.Time
}

// NewAttachmentService constructs the attachment service. A nil storage disables uploads.
func NewAttachmentService(
	storage FileStorage,
	attachments repository.AttachmentRepository,
	logs repository.ActionLogRepository,
	directory DirectoryService,
	events EventPublisher,
	maxSizeMB int,
	logger zerolog.Logger,
) AttachmentService {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	if events == nil {
		events = NopEventPublisher()
	}
	return &attachmentService{
		storage:     storage,
		attachments: attachments,
		logs:        logs,
		directory:   directory,
		events:      events,
		logger:      logger.With().Str("component", "attachment_service").Logger(),
		maxSize:     int64(maxSizeMB) * 1024 * 1024,
		tracer:      otel.Tracer("github.com/noah-isme/actionlog-api/internal/service/attachment"),
		now:         time.Now,
	}
}

func (s *attachmentService) Upload(ctx context.Context, actorID, actionLogID uint, file *multipart.FileHeader) (dto.AttachmentResponse, error) {
	ctx, span := s.tracer.Start(ctx, "attachments.upload", trace.WithAttributes(
		attribute.Int64("action_log.id", int64(actionLogID)),
		attribute.Int64("upload.max_bytes", s.maxSize),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		observability.AttachmentLatency().Observe(time.Since(start).Seconds())
	}()

	if file == nil {
		span.SetStatus(codes.Error, "validation failed")
		return dto.AttachmentResponse{}, newValidationError("file", "is required")
	}
	span.SetAttributes(
		attribute.String("upload.original_name", strings.TrimSpace(file.Filename)),
		attribute.Int64("upload.request_size", file.Size),
	)

	actor, log, err := s.visibleLog(ctx, actorID, actionLogID)
	if err != nil {
		return dto.AttachmentResponse{}, err
	}
	if s.storage == nil {
		return dto.AttachmentResponse{}, fmt.Errorf("%w: attachment storage is not configured", ErrUnavailable)
	}

	if file.Size > s.maxSize {
		return dto.AttachmentResponse{}, s.reject(span, "size", ErrAttachmentTooLarge)
	}

	handle, err := file.Open()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "open failed")
		return dto.AttachmentResponse{}, newValidationError("file", "could not be read")
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return dto.AttachmentResponse{}, newValidationError("file", "could not be read")
	}
	if int64(buf.Len()) > s.maxSize {
		return dto.AttachmentResponse{}, s.reject(span, "size", ErrAttachmentTooLarge)
	}

	fileType := normalizeMime(mimetype.Detect(buf.Bytes()).String())
	span.SetAttributes(attribute.String("upload.detected_mime", fileType))
	if !isAllowedType(fileType) {
		return dto.AttachmentResponse{}, s.reject(span, "type", ErrAttachmentTypeNotAllowed)
	}
	if err := s.scan(buf.Bytes(), fileType); err != nil {
		return dto.AttachmentResponse{}, s.reject(span, "scan", err)
	}

	checksum := sha256.Sum256(buf.Bytes())
	name := sanitizeFileName(file.Filename, s.now())
	objectName := fmt.Sprintf("action-log-%d-%s", log.ID, name)

	url, err := s.storage.Upload(ctx, objectName, bytes.NewReader(buf.Bytes()))
	if err != nil {
		observability.AttachmentRejected().WithLabelValues("storage").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failed")
		return dto.AttachmentResponse{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	record := models.Attachment{
		ActionLogID:  log.ID,
		UploadedByID: actor.ID,
		FileName:     name,
		URL:          url,
		MimeType:     fileType,
		SizeBytes:    int64(buf.Len()),
		Checksum:     hex.EncodeToString(checksum[:]),
	}
	audit := &models.AuditEntry{
		ActorID:   actor.ID,
		ActorRole: actor.RoleName(),
		Action:    models.AuditActionAttach,
		Metadata: map[string]interface{}{
			"file_name": name,
			"mime_type": fileType,
			"checksum":  record.Checksum,
		},
		CreatedAt: s.now(),
	}
	if err := s.attachments.Create(ctx, &record, audit); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		return dto.AttachmentResponse{}, storageError(err, ErrActionLogNotFound)
	}
	record.UploadedBy = actor

	observability.AttachmentUploads().WithLabelValues(fileType).Inc()
	span.SetStatus(codes.Ok, "stored")

	s.events.Publish(ctx, WorkflowEvent{
		Type:        EventActionLogAttached,
		ActionLogID: log.ID,
		ActorID:     actor.ID,
		Status:      log.Status,
		Data:        map[string]interface{}{"attachment_id": record.ID, "file_name": name},
		OccurredAt:  s.now().UTC(),
	})
	s.logger.Info().Uint("action_log_id", log.ID).Uint("attachment_id", record.ID).Str("mime", fileType).Msg("attachment stored")

	return dto.NewAttachmentResponse(record), nil
}

func (s *attachmentService) List(ctx context.Context, actorID, actionLogID uint) ([]dto.AttachmentResponse, error) {
	if _, _, err := s.visibleLog(ctx, actorID, actionLogID); err != nil {
		return nil, err
	}
	attachments, err := s.attachments.ListByActionLog(ctx, actionLogID)
	if err != nil {
		return nil, storageError(err, ErrActionLogNotFound)
	}
	return dto.NewAttachmentResponseSlice(attachments), nil
}

func (s *attachmentService) visibleLog(ctx context.Context, actorID, actionLogID uint) (models.User, models.ActionLog, error) {
	actor, err := resolveActor(ctx, s.directory, actorID)
	if err != nil {
		return models.User{}, models.ActionLog{}, err
	}
	log, err := s.logs.GetByID(ctx, actionLogID)
	if err != nil {
		return models.User{}, models.ActionLog{}, storageError(err, ErrActionLogNotFound)
	}
	if !CanView(actor, log) {
		return models.User{}, models.ActionLog{}, ErrActionLogNotFound
	}
	return actor, log, nil
}

func (s *attachmentService) reject(span trace.Span, reason string, err error) error {
	observability.AttachmentRejected().WithLabelValues(reason).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, reason)
	return err
}

func (s *attachmentService) scan(payload []byte, mime string) error {
	if mime != "application/zip" {
		return nil
	}
	reader, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return ErrAttachmentScanFailed
	}
	var total uint64
	for _, f := range reader.File {
		total += f.UncompressedSize64
		if total > uint64(s.maxSize*20) {
			return fmt.Errorf("zip archive uncompressed size too large: %w", ErrAttachmentScanFailed)
		}
	}
	return nil
}

func sanitizeFileName(name string, now time.Time) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		base = fmt.Sprintf("attachment-%d", now.Unix())
	}
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = ".bin"
	}
	return base + ext
}

func normalizeMime(detected string) string {
	lower := strings.ToLower(strings.TrimSpace(detected))
	if idx := strings.Index(lower, ";"); idx >= 0 {
		lower = strings.TrimSpace(lower[:idx])
	}
	if lower == "application/x-zip-compressed" {
		return "application/zip"
	}
	return lower
}

func isAllowedType(mime string) bool {
	if strings.HasPrefix(mime, "image/") {
		return true
	}
	_, ok := allowedAttachmentTypes[mime]
	return ok
}
