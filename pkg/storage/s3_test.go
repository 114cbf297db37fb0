package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// apiError implements smithy.APIError for test assertions.
type apiError struct {
	code string
	msg  string
}

func (e *apiError) Error() string                 { return e.msg }
func (e *apiError) ErrorCode() string             { return e.code }
func (e *apiError) ErrorMessage() string          { return e.msg }
func (e *apiError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

var errNoSuchKey = &apiError{code: "NoSuchKey", msg: "no such key"}
var errNotFound = &apiError{code: "NotFound", msg: "not found"}

type mockObject struct {
	data        []byte
	contentType string
}

// mockS3 is a thread-safe in-memory S3 backend for testing.
type mockS3 struct {
	mu      sync.Mutex
	objects map[string]mockObject

	// Optional hooks to inject errors.
	getErr    error
	putErr    error
	deleteErr error
	headErr   error
}

func newMockS3() *mockS3 {
	return &mockS3{objects: make(map[string]mockObject)}
}

func (m *mockS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[*in.Key]
	if !ok {
		return nil, errNoSuchKey
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(bytes.NewReader(obj.data)),
	}, nil
}

func (m *mockS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	var ct string
	if in.ContentType != nil {
		ct = *in.ContentType
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[*in.Key] = mockObject{data: data, contentType: ct}
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if m.deleteErr != nil {
		return nil, m.deleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (m *mockS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if m.headErr != nil {
		return nil, m.headErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[*in.Key]; !ok {
		return nil, errNotFound
	}
	return &s3.HeadObjectOutput{}, nil
}

func newTestS3(t *testing.T) (*S3Store, *mockS3) {
	t.Helper()
	mock := newMockS3()
	store := NewS3(mock, "powerups", "")
	return store, mock
}

func TestS3PutAndGet(t *testing.T) {
	store, mock := newTestS3(t)
	ctx := context.Background()

	if err := store.Put(ctx, "audio/u/p/m.wav", []byte("RIFF...."), "audio/wav"); err != nil {
		t.Fatal(err)
	}
	got, err := store.Get(ctx, "audio/u/p/m.wav")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "RIFF...." {
		t.Fatalf("got %q", got)
	}
	if ct := mock.objects["audio/u/p/m.wav"].contentType; ct != "audio/wav" {
		t.Fatalf("content type = %q, want audio/wav", ct)
	}
}

func TestS3GetNotExist(t *testing.T) {
	store, _ := newTestS3(t)

	_, err := store.Get(context.Background(), "missing")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected os.ErrNotExist, got %v", err)
	}
}

func TestS3GetOtherError(t *testing.T) {
	mock := newMockS3()
	timeout := errors.New("network timeout")
	mock.getErr = timeout
	store := NewS3(mock, "bucket", "pfx")

	_, err := store.Get(context.Background(), "x")
	if errors.Is(err, os.ErrNotExist) {
		t.Fatal("should not be ErrNotExist for generic errors")
	}
	if !errors.Is(err, timeout) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestS3Exists(t *testing.T) {
	store, mock := newTestS3(t)
	ctx := context.Background()

	ok, err := store.Exists(ctx, "missing")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected false for missing key")
	}

	mock.mu.Lock()
	mock.objects["present"] = mockObject{data: []byte("data")}
	mock.mu.Unlock()

	ok, err = store.Exists(ctx, "present")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected true for existing key")
	}
}

func TestS3ExistsOtherError(t *testing.T) {
	mock := newMockS3()
	mock.headErr = errors.New("network failure")
	store := NewS3(mock, "bucket", "")

	if _, err := store.Exists(context.Background(), "x"); err == nil {
		t.Fatal("expected error")
	}
}

func TestS3DeleteIdempotent(t *testing.T) {
	store, mock := newTestS3(t)
	ctx := context.Background()

	if err := store.Delete(ctx, "ghost"); err != nil {
		t.Fatal(err)
	}

	mock.mu.Lock()
	mock.objects["tmp"] = mockObject{data: []byte("x")}
	mock.mu.Unlock()

	if err := store.Delete(ctx, "tmp"); err != nil {
		t.Fatal(err)
	}
	ok, err := store.Exists(ctx, "tmp")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("key should be gone after delete")
	}
}

func TestS3PutError(t *testing.T) {
	mock := newMockS3()
	failed := errors.New("upload failed")
	mock.putErr = failed
	store := NewS3(mock, "bucket", "")

	err := store.Put(context.Background(), "obj", []byte("data"), "")
	if !errors.Is(err, failed) {
		t.Fatalf("Put error = %v, want upload failed", err)
	}
}

func TestS3KeyPrefix(t *testing.T) {
	mock := newMockS3()
	store := NewS3(mock, "bucket", "my/prefix")

	if err := store.Put(context.Background(), "file.bin", []byte("content"), ""); err != nil {
		t.Fatal(err)
	}
	mock.mu.Lock()
	_, ok := mock.objects["my/prefix/file.bin"]
	mock.mu.Unlock()
	if !ok {
		t.Fatal("expected key with prefix my/prefix/file.bin")
	}
}

func TestS3PutOverwrites(t *testing.T) {
	store, _ := newTestS3(t)
	ctx := context.Background()

	store.Put(ctx, "f", []byte("long content here"), "")
	store.Put(ctx, "f", []byte("short"), "")

	got, _ := store.Get(ctx, "f")
	if string(got) != "short" {
		t.Fatalf("got %q, want %q", got, "short")
	}
}

func TestIsS3NotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"NoSuchKey", errNoSuchKey, true},
		{"NotFound", errNotFound, true},
		{"other api error", &apiError{code: "AccessDenied", msg: "denied"}, false},
		{"plain error", errors.New("timeout"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isS3NotFound(tt.err); got != tt.want {
				t.Fatalf("isS3NotFound(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
