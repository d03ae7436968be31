package extraction

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// fakeS3 accepts PutObject requests and remembers the object keys.
type fakeS3 struct {
	mu           sync.Mutex
	keys         []string
	contentTypes []string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusOK)
		return
	}
	io.Copy(io.Discard, r.Body)
	f.mu.Lock()
	f.keys = append(f.keys, strings.TrimPrefix(r.URL.Path, "/pages/"))
	f.contentTypes = append(f.contentTypes, r.Header.Get("Content-Type"))
	f.mu.Unlock()
	w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
	w.WriteHeader(http.StatusOK)
}

func TestBucketSinkPersist(t *testing.T) {
	fake := &fakeS3{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	u, _ := url.Parse(srv.URL)
	client, err := minio.New(u.Host, &minio.Options{
		Creds:        credentials.NewStaticV4("access", "secret", ""),
		Secure:       false,
		Region:       "us-east-1",
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	sink := (&BucketSink{Client: client, Bucket: "pages", Extension: "png", Workers: 2}).WithPrefix("job-1")
	if err := sink.Persist(context.Background(), fakeImages(3)); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	slices.Sort(fake.keys)
	want := []string{"job-1/0.png", "job-1/1.png", "job-1/2.png"}
	if !slices.Equal(fake.keys, want) {
		t.Errorf("Uploaded keys = %v, want %v", fake.keys, want)
	}
	for _, ct := range fake.contentTypes {
		if ct != "image/png" {
			t.Errorf("Expected content type image/png, got %q", ct)
		}
	}
}

func TestBucketSinkObjectKey(t *testing.T) {
	s := &BucketSink{Extension: "jpg"}
	if got := s.ObjectKey(4); got != "4.jpg" {
		t.Errorf("ObjectKey(4) = %s", got)
	}
	if got := s.WithPrefix("abc").ObjectKey(0); got != "abc/0.jpg" {
		t.Errorf("ObjectKey with prefix = %s", got)
	}
	if s.Prefix != "" {
		t.Error("WithPrefix must not modify the receiver")
	}
}
