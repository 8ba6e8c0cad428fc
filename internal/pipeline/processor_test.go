package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-pipeline-go/internal/chunker"
	"rag-pipeline-go/internal/model"
	"rag-pipeline-go/internal/repository"
	"rag-pipeline-go/pkg/extract"
	"rag-pipeline-go/pkg/tasks"
)

type fakeDocRepo struct {
	created []model.Document
}

func (f *fakeDocRepo) Create(doc *model.Document) error {
	f.created = append(f.created, *doc)
	return nil
}
func (f *fakeDocRepo) FindAll() ([]model.Document, error) { return f.created, nil }
func (f *fakeDocRepo) FindByDocID(string) (*model.Document, error) {
	return nil, repository.ErrDocumentNotFound
}

type fakeStore struct {
	objects map[string][]byte
}

func (s *fakeStore) Put(_ context.Context, name string, r io.Reader, _ int64, _ string) error {
	b, err := io.ReadAll(r)
	s.objects[name] = b
	return err
}
func (s *fakeStore) Get(_ context.Context, name string) (io.ReadCloser, error) {
	b, ok := s.objects[name]
	if !ok {
		return nil, errors.New("no such object")
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}
func (s *fakeStore) PresignedURL(context.Context, string, time.Duration) (string, error) {
	return "", nil
}

type countingReindexer struct{ calls int }

func (r *countingReindexer) Rebuild(context.Context, string) (int, error) {
	r.calls++
	return 3, nil
}

func newTestProcessor(t *testing.T, opts ...Option) (*Processor, string) {
	t.Helper()
	c, err := chunker.New(chunker.WithChunkSize(5), chunker.WithOverlap(2))
	require.NoError(t, err)
	chunksDir := filepath.Join(t.TempDir(), "chunks")
	return NewProcessor(extract.New(nil), c, repository.NewChunkRepository(chunksDir), t.TempDir(), opts...), chunksDir
}

func TestProcessLocalTextFile(t *testing.T) {
	docs := &fakeDocRepo{}
	p, chunksDir := newTestProcessor(t, WithDocumentRepository(docs))

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("w1 w2 w3 w4 w5 w6 w7 w8 w9 w10 w11 w12"), 0o644))

	res, err := p.Process(context.Background(), tasks.IngestTask{FileName: "notes.txt", LocalPath: path})
	require.NoError(t, err)
	assert.Len(t, res.DocID, 32)
	assert.Equal(t, 4, res.Chunks)
	assert.Equal(t, 1, res.Pages)

	chunks, err := repository.NewChunkRepository(chunksDir).LoadAll()
	require.NoError(t, err)
	require.Len(t, chunks, 4)
	assert.Equal(t, "notes.txt", chunks[0].Source)
	require.NotNil(t, chunks[0].Page)
	assert.Equal(t, 1, *chunks[0].Page)

	require.Len(t, docs.created, 1)
	assert.Equal(t, res.DocID, docs.created[0].DocID)
	assert.Equal(t, extract.TypeTXT, docs.created[0].FileType)
}

func TestProcessFromObjectStore(t *testing.T) {
	store := &fakeStore{objects: map[string][]byte{"uploads/d1/a.txt": []byte("alpha beta gamma")}}
	p, _ := newTestProcessor(t, WithObjectStore(store))

	res, err := p.Process(context.Background(), tasks.IngestTask{DocID: "d1", FileName: "a.txt", ObjectName: "uploads/d1/a.txt"})
	require.NoError(t, err)
	assert.Equal(t, "d1", res.DocID)
	assert.Equal(t, 1, res.Chunks)

	// 临时下载的文件在处理结束后被删除
	_, statErr := os.Stat(filepath.Join(p.uploadsDir, "d1_a.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestProcessWithoutSource(t *testing.T) {
	p, _ := newTestProcessor(t)
	_, err := p.Process(context.Background(), tasks.IngestTask{FileName: "missing.txt", LocalPath: "/nope/missing.txt"})
	assert.ErrorIs(t, err, ErrNoSource)
}

func TestProcessUnsupportedType(t *testing.T) {
	p, _ := newTestProcessor(t)
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b"), 0o644))

	_, err := p.Process(context.Background(), tasks.IngestTask{FileName: "data.csv", LocalPath: path})
	assert.ErrorIs(t, err, extract.ErrUnsupportedType)
}

func TestProcessTaskReindexes(t *testing.T) {
	r := &countingReindexer{}
	p, _ := newTestProcessor(t, WithReindexer(r))
	path := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("one two three"), 0o644))

	require.NoError(t, p.ProcessTask(context.Background(), tasks.IngestTask{FileName: "a.txt", LocalPath: path, Reindex: true}))
	assert.Equal(t, 1, r.calls)

	require.NoError(t, p.ProcessTask(context.Background(), tasks.IngestTask{FileName: "a.txt", LocalPath: path}))
	assert.Equal(t, 1, r.calls)
}

func TestNewDocID(t *testing.T) {
	a, b := NewDocID(), NewDocID()
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, "-")
}
