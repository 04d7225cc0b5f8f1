package api

import (
	"fmt"
	"io"
	"log"
	"net/http"
)

// maxUploadBytes caps document uploads at 25 MiB.
const maxUploadBytes = 25 << 20

// UploadDocumentHandler streams a multipart file upload to the document store.
func (h *Handlers) UploadDocumentHandler(w http.ResponseWriter, r *http.Request) {
	memberID, err := urlUUID(r, "memberID")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid member ID")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Expected multipart form with a 'file' field")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	doc, err := h.service.UploadMemberDocument(r.Context(), memberID, header.Filename, contentType, header.Size, file)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, doc)
}

// DownloadDocumentHandler streams a stored document back to the caller.
func (h *Handlers) DownloadDocumentHandler(w http.ResponseWriter, r *http.Request) {
	docID, err := urlUUID(r, "documentID")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid document ID")
		return
	}

	doc, content, err := h.service.GetMemberDocument(r.Context(), docID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	defer content.Close()

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Name))
	if doc.Size > 0 {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", doc.Size))
	}
	if _, err := io.Copy(w, content); err != nil {
		log.Printf("level=error component=api msg=\"document stream interrupted\" document_id=%s err=%v", docID, err)
	}
}

// ListDocumentsHandler returns a member's document metadata.
func (h *Handlers) ListDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	memberID, err := urlUUID(r, "memberID")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid member ID")
		return
	}
	docs, err := h.service.ListMemberDocuments(r.Context(), memberID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, docs)
}

// DeleteDocumentHandler removes a document and its metadata.
func (h *Handlers) DeleteDocumentHandler(w http.ResponseWriter, r *http.Request) {
	docID, err := urlUUID(r, "documentID")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid document ID")
		return
	}
	if err := h.service.DeleteMemberDocument(r.Context(), docID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
