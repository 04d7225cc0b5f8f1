/**
 * @description
 * Member document handling. File bytes are streamed to and from the external
 * WebDAV file service; only metadata lives in PostgreSQL. Uploads go through
 * the optional Redis rate limiter.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/coopsuite/membership-service/internal/domain"
)

// ErrUploadRateLimited is returned when a member exceeds the upload budget.
var ErrUploadRateLimited = errors.New("document upload rate limit exceeded")

// UploadMemberDocument stores file content in WebDAV and records its metadata.
func (s *Service) UploadMemberDocument(ctx context.Context, memberID uuid.UUID, name, contentType string, size int64, content io.Reader) (*domain.Document, error) {
	if _, err := s.repo.FindMemberByID(ctx, memberID); err != nil {
		return nil, err
	}

	if s.consumeRateLimit(ctx, "document_upload", memberID.String(), s.uploadLimit) {
		return nil, ErrUploadRateLimited
	}

	doc := &domain.Document{
		ID:          uuid.New(),
		MemberID:    memberID,
		Name:        name,
		ContentType: contentType,
		Size:        size,
		UploadedAt:  time.Now().UTC(),
	}
	doc.StoragePath = fmt.Sprintf("members/%s/%s-%s", memberID, doc.ID, name)

	if err := s.documents.Put(ctx, doc.StoragePath, contentType, content); err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}
	if err := s.repo.CreateDocumentRecord(ctx, doc); err != nil {
		// Best effort cleanup of the orphaned file.
		if delErr := s.documents.Delete(ctx, doc.StoragePath); delErr != nil {
			log.Printf("level=error component=app msg=\"orphaned document left in webdav\" path=%s err=%v", doc.StoragePath, delErr)
		}
		return nil, fmt.Errorf("failed to record document metadata: %w", err)
	}
	return doc, nil
}

// GetMemberDocument returns document metadata and a reader over its content.
// The caller owns closing the reader.
func (s *Service) GetMemberDocument(ctx context.Context, docID uuid.UUID) (*domain.Document, io.ReadCloser, error) {
	doc, err := s.repo.FindDocumentByID(ctx, docID)
	if err != nil {
		return nil, nil, err
	}
	content, err := s.documents.Get(ctx, doc.StoragePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch document content: %w", err)
	}
	return doc, content, nil
}

// ListMemberDocuments returns a member's document metadata.
func (s *Service) ListMemberDocuments(ctx context.Context, memberID uuid.UUID) ([]domain.Document, error) {
	return s.repo.ListDocumentsByMember(ctx, memberID)
}

// DeleteMemberDocument removes the file and its metadata. Metadata goes first;
// a dangling WebDAV file is recoverable, a dangling metadata row is not.
func (s *Service) DeleteMemberDocument(ctx context.Context, docID uuid.UUID) error {
	doc, err := s.repo.FindDocumentByID(ctx, docID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteDocumentRecord(ctx, docID); err != nil {
		return err
	}
	if err := s.documents.Delete(ctx, doc.StoragePath); err != nil {
		log.Printf("level=warn component=app msg=\"document metadata deleted but webdav delete failed\" path=%s err=%v", doc.StoragePath, err)
	}
	return nil
}
