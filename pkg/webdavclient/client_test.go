package webdavclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPutCreatesParentCollections(t *testing.T) {
	var requests []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.Method+" "+r.URL.Path)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "coop" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.Method {
		case "MKCOL":
			w.WriteHeader(http.StatusCreated)
		case http.MethodPut:
			w.WriteHeader(http.StatusCreated)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "coop", "secret")
	err := client.Put(context.Background(), "members/abc/doc.pdf", "application/pdf", strings.NewReader("content"))
	if err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	want := []string{
		"MKCOL /members",
		"MKCOL /members/abc",
		"PUT /members/abc/doc.pdf",
	}
	if len(requests) != len(want) {
		t.Fatalf("requests %v, want %v", requests, want)
	}
	for i := range want {
		if requests[i] != want[i] {
			t.Errorf("request %d: %q, want %q", i, requests[i], want[i])
		}
	}
}

func TestPutAcceptsExistingCollections(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "MKCOL" {
			// Collection already exists.
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(server.URL, "coop", "secret")
	if err := client.Put(context.Background(), "members/abc/doc.pdf", "", strings.NewReader("x")); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}
}

func TestGetReturnsContentAndNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "missing.pdf") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("file body"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "coop", "secret")

	body, err := client.Get(context.Background(), "members/abc/doc.pdf")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	defer body.Close()
	data, _ := io.ReadAll(body)
	if string(data) != "file body" {
		t.Errorf("Get body %q", data)
	}

	if _, err := client.Get(context.Background(), "members/abc/missing.pdf"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteMissingResource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, "coop", "secret")
	if err := client.Delete(context.Background(), "members/abc/doc.pdf"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestResourceURLEscapesSegments(t *testing.T) {
	client := NewClient("http://dav.local", "u", "p")
	got := client.resourceURL("members/ab c/report 2025.pdf")
	want := "http://dav.local/members/ab%20c/report%202025.pdf"
	if got != want {
		t.Errorf("resourceURL = %q, want %q", got, want)
	}
}
