package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/coopsuite/membership-service/internal/domain"
	"github.com/coopsuite/membership-service/internal/store"
)

type documentStubRepo struct {
	*stubRepository

	docs      map[uuid.UUID]*domain.Document
	createErr error
}

func (r *documentStubRepo) CreateDocumentRecord(_ context.Context, doc *domain.Document) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.docs[doc.ID] = doc
	return nil
}

func (r *documentStubRepo) FindDocumentByID(_ context.Context, docID uuid.UUID) (*domain.Document, error) {
	doc, ok := r.docs[docID]
	if !ok {
		return nil, store.ErrDocumentNotFound
	}
	copied := *doc
	return &copied, nil
}

func (r *documentStubRepo) DeleteDocumentRecord(_ context.Context, docID uuid.UUID) error {
	if _, ok := r.docs[docID]; !ok {
		return store.ErrDocumentNotFound
	}
	delete(r.docs, docID)
	return nil
}

// memoryFileStore keeps uploaded files in a map and records deletions.
type memoryFileStore struct {
	files   map[string][]byte
	deleted []string
}

func newMemoryFileStore() *memoryFileStore {
	return &memoryFileStore{files: map[string][]byte{}}
}

func (f *memoryFileStore) Put(_ context.Context, path, _ string, content io.Reader) error {
	data, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	f.files[path] = data
	return nil
}

func (f *memoryFileStore) Get(_ context.Context, path string) (io.ReadCloser, error) {
	data, ok := f.files[path]
	if !ok {
		return nil, errors.New("not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *memoryFileStore) Delete(_ context.Context, path string) error {
	delete(f.files, path)
	f.deleted = append(f.deleted, path)
	return nil
}

// fixedLimiter always answers with a fixed consumed count.
type fixedLimiter struct {
	count int
}

func (l *fixedLimiter) ConsumeRateLimit(context.Context, string, string, int, time.Duration) (int, int, error) {
	return l.count, 30, nil
}

func newDocumentTestService(t *testing.T) (*Service, *documentStubRepo, *memoryFileStore, uuid.UUID) {
	t.Helper()
	repo := &documentStubRepo{stubRepository: newStubRepository(), docs: map[uuid.UUID]*domain.Document{}}
	member := &domain.Member{ID: uuid.New(), MemberNo: "M001", Status: domain.MemberStatusActive}
	repo.members[member.ID] = member
	files := newMemoryFileStore()
	return NewService(repo, &stubCerts{}, files, nil), repo, files, member.ID
}

func TestUploadMemberDocumentStoresFileAndMetadata(t *testing.T) {
	service, repo, files, memberID := newDocumentTestService(t)

	doc, err := service.UploadMemberDocument(context.Background(), memberID, "statutes.pdf", "application/pdf", 11, strings.NewReader("hello world"))
	if err != nil {
		t.Fatalf("expected document, got error: %v", err)
	}
	if doc.StoragePath == "" || !strings.Contains(doc.StoragePath, memberID.String()) {
		t.Errorf("storage path must be scoped to the member, got %q", doc.StoragePath)
	}
	if _, ok := files.files[doc.StoragePath]; !ok {
		t.Error("file content not stored")
	}
	if _, ok := repo.docs[doc.ID]; !ok {
		t.Error("document metadata not recorded")
	}
}

func TestUploadMemberDocumentCleansUpOnMetadataFailure(t *testing.T) {
	service, repo, files, memberID := newDocumentTestService(t)
	repo.createErr = errors.New("insert failed")

	if _, err := service.UploadMemberDocument(context.Background(), memberID, "a.pdf", "application/pdf", 1, strings.NewReader("x")); err == nil {
		t.Fatal("expected error when metadata insert fails")
	}
	if len(files.deleted) != 1 {
		t.Errorf("orphaned file must be deleted, deletions: %v", files.deleted)
	}
}

func TestUploadMemberDocumentEnforcesRateLimit(t *testing.T) {
	service, _, _, memberID := newDocumentTestService(t)
	service.SetRateLimiter(&fixedLimiter{count: 11}, 10, 0)

	if _, err := service.UploadMemberDocument(context.Background(), memberID, "a.pdf", "application/pdf", 1, strings.NewReader("x")); !errors.Is(err, ErrUploadRateLimited) {
		t.Errorf("expected ErrUploadRateLimited, got %v", err)
	}
}

func TestDeleteMemberDocumentRemovesMetadataFirst(t *testing.T) {
	service, repo, files, memberID := newDocumentTestService(t)
	doc, err := service.UploadMemberDocument(context.Background(), memberID, "a.pdf", "application/pdf", 1, strings.NewReader("x"))
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	if err := service.DeleteMemberDocument(context.Background(), doc.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, ok := repo.docs[doc.ID]; ok {
		t.Error("metadata row still present after delete")
	}
	if len(files.deleted) != 1 {
		t.Errorf("file not deleted from store, deletions: %v", files.deleted)
	}
}
