package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/textproto"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/actionlog-api/internal/models"
	"github.com/noah-isme/actionlog-api/internal/repository"
)

type storageStub struct {
	uploaded bytes.Buffer
	name     string
	err      error
}

func (s *storageStub) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.uploaded.Reset()
	if _, err := s.uploaded.ReadFrom(reader); err != nil {
		return "", err
	}
	s.name = name
	return "https://cdn.example.com/" + name, nil
}

func newAttachmentFixture(t *testing.T, storage FileStorage, maxSizeMB int) (*workflowFixture, AttachmentService) {
	t.Helper()
	f := newWorkflowFixture(t)
	svc := NewAttachmentService(storage, repository.NewAttachmentRepository(f.db), f.logs, f.directory, nil, maxSizeMB, zerolog.Nop())
	return f, svc
}

func TestAttachmentRejectsSize(t *testing.T) {
	f, svc := newAttachmentFixture(t, &storageStub{}, 1)
	log := f.createLog(f.infraHead, f.days(2), f.economist)

	file := buildFileHeader(t, "report.pdf", bytes.Repeat([]byte("a"), 2*1024*1024))
	_, err := svc.Upload(context.Background(), f.economist.ID, log.ID, file)
	require.ErrorIs(t, err, ErrAttachmentTooLarge)
}

func TestAttachmentRejectsExecutables(t *testing.T) {
	f, svc := newAttachmentFixture(t, &storageStub{}, 5)
	log := f.createLog(f.infraHead, f.days(2), f.economist)

	elf := append([]byte{0x7F, 'E', 'L', 'F', 0x02, 0x01, 0x01}, bytes.Repeat([]byte{0}, 64)...)
	_, err := svc.Upload(context.Background(), f.economist.ID, log.ID, buildFileHeader(t, "tool.bin", elf))
	require.ErrorIs(t, err, ErrAttachmentTypeNotAllowed)
}

func TestAttachmentStoresAndAudits(t *testing.T) {
	storage := &storageStub{}
	f, svc := newAttachmentFixture(t, storage, 5)
	log := f.createLog(f.infraHead, f.days(2), f.economist)

	pngHeader := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	resp, err := svc.Upload(context.Background(), f.economist.ID, log.ID, buildFileHeader(t, "Site Photo.PNG", pngHeader))
	require.NoError(t, err)
	require.Equal(t, "site-photo.png", resp.FileName)
	require.Equal(t, "image/png", resp.MimeType)
	require.Contains(t, resp.URL, "site-photo.png")
	require.Len(t, resp.Checksum, 64)
	require.Equal(t, f.economist.ID, resp.UploadedBy.ID)
	require.Equal(t, pngHeader, storage.uploaded.Bytes())

	listed, err := svc.List(context.Background(), f.infraHead.ID, log.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	var audits []models.AuditEntry
	require.NoError(t, f.db.Where("action_log_id = ? AND action = ?", log.ID, models.AuditActionAttach).Find(&audits).Error)
	require.Len(t, audits, 1)
}

func TestAttachmentHonoursVisibilityAndStorage(t *testing.T) {
	f, svc := newAttachmentFixture(t, &storageStub{err: errors.New("cdn down")}, 5)
	log := f.createLog(f.infraHead, f.days(2), f.economist)
	pdf := []byte("%PDF-1.4\n%âãÏÓ\n1 0 obj\n<<>>\nendobj\n")

	_, err := svc.Upload(context.Background(), f.outsider.ID, log.ID, buildFileHeader(t, "memo.pdf", pdf))
	require.ErrorIs(t, err, ErrActionLogNotFound)

	_, err = svc.Upload(context.Background(), f.economist.ID, log.ID, buildFileHeader(t, "memo.pdf", pdf))
	require.ErrorIs(t, err, ErrUnavailable)

	_, err = svc.Upload(context.Background(), f.economist.ID, log.ID, nil)
	requireValidationField(t, err, "file")

	disabled := NewAttachmentService(nil, repository.NewAttachmentRepository(f.db), f.logs, f.directory, nil, 5, zerolog.Nop())
	_, err = disabled.Upload(context.Background(), f.economist.ID, log.ID, buildFileHeader(t, "memo.pdf", pdf))
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestSanitizeFileName(t *testing.T) {
	now := time.Unix(0, 0)
	require.Equal(t, "quarterly-report.pdf", sanitizeFileName("Quarterly Report.PDF", now))
	require.Equal(t, "attachment-0.bin", sanitizeFileName("???", now))
}

func buildFileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {"form-data; name=\"file\"; filename=\"" + filename + "\""},
		"Content-Type":        {"application/octet-stream"},
	})
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	reader := multipart.NewReader(body, writer.Boundary())
	form, err := reader.ReadForm(int64(len(content) + 1024))
	require.NoError(t, err)
	files := form.File["file"]
	require.Len(t, files, 1)
	return files[0]
}
