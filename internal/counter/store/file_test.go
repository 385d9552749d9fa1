package store

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/joho/godotenv"
	"github.com/smallbiznis/datasync/internal/counter/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFileStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "datasync.properties"))
	require.NoError(t, err)
	return s
}

func TestFileStoreArcDocIDMonotonicAcrossReopen(t *testing.T) {
	ctx := context.Background()
	s := newFileStore(t)

	var got []string
	for i := 0; i < 3; i++ {
		v, err := s.Next(ctx, domain.ArcDocID)
		require.NoError(t, err)
		got = append(got, v)
	}

	reopened, err := NewFileStore(s.Path())
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		v, err := reopened.Next(ctx, domain.ArcDocID)
		require.NoError(t, err)
		got = append(got, v)
	}

	assert.Equal(t, []string{
		"0000000000000001",
		"0000000000000002",
		"0000000000000003",
		"0000000000000004",
		"0000000000000005",
	}, got)
	for i := 1; i < len(got); i++ {
		assert.Len(t, got[i], domain.ArcDocIDWidth)
		assert.Greater(t, got[i], got[i-1])
	}
}

func TestFileStoreCountersAreIndependent(t *testing.T) {
	ctx := context.Background()
	s := newFileStore(t)

	dhr, err := s.Next(ctx, domain.DHRID)
	require.NoError(t, err)
	off1, err := s.Next(ctx, domain.Offset)
	require.NoError(t, err)
	off2, err := s.Next(ctx, domain.Offset)
	require.NoError(t, err)

	assert.Equal(t, "1", dhr)
	assert.Equal(t, "1", off1)
	assert.Equal(t, "2", off2)

	snap, err := s.Snapshot()
	require.NoError(t, err)
	assert.EqualValues(t, 1, snap[domain.DHRID])
	assert.EqualValues(t, 2, snap[domain.Offset])
	assert.EqualValues(t, 0, snap[domain.EventID])
}

func TestFileStorePreservesUnrelatedKeys(t *testing.T) {
	s := newFileStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte("smtp_server=mail.example.com\nstatus_id=41\n"), 0o644))

	v, err := s.Next(context.Background(), domain.StatusID)
	require.NoError(t, err)
	assert.Equal(t, "42", v)

	values, err := godotenv.Read(s.Path())
	require.NoError(t, err)
	assert.Equal(t, "mail.example.com", values["smtp_server"])
	assert.Equal(t, "42", values["status_id"])
}

func TestFileStoreKeepsUnownedLinesVerbatim(t *testing.T) {
	s := newFileStore(t)
	before := "# mail relay\n" +
		"smtp_password=abc$123\n" +
		"smtp_port=0465\n" +
		"greeting=\"hello world\"\n" +
		"\n" +
		"dhr_id=7\n" +
		"export region='kl'\n"
	require.NoError(t, os.WriteFile(s.Path(), []byte(before), 0o644))

	v, err := s.Next(context.Background(), domain.DHRID)
	require.NoError(t, err)
	assert.Equal(t, "8", v)

	raw, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, strings.Replace(before, "dhr_id=7\n", "dhr_id=8\n", 1), string(raw))

	v, err = s.Next(context.Background(), domain.Offset)
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	raw, err = os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "# mail relay\nsmtp_password=abc$123\nsmtp_port=0465\n"))
	assert.True(t, strings.HasSuffix(string(raw), "export region='kl'\noffset=1\n"))
}

func TestFileStoreConcurrentCallersGetUniqueValues(t *testing.T) {
	ctx := context.Background()
	s := newFileStore(t)

	const workers = 8
	const perWorker = 10

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[string]struct{}{}
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				v, err := s.Next(ctx, domain.EventID)
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				seen[v] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
	last, err := s.Next(ctx, domain.EventID)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(workers*perWorker+1), last)
}

func TestFileStoreSeparateInstancesShareFileLock(t *testing.T) {
	ctx := context.Background()
	a := newFileStore(t)
	b, err := NewFileStore(a.Path())
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan string, 40)
	for _, s := range []*FileStore{a, b} {
		wg.Add(1)
		go func(s *FileStore) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				v, err := s.Next(ctx, domain.DHRID)
				if assert.NoError(t, err) {
					results <- v
				}
			}
		}(s)
	}
	wg.Wait()
	close(results)

	seen := map[string]struct{}{}
	for v := range results {
		seen[v] = struct{}{}
	}
	assert.Len(t, seen, 40)
}

func TestFileStoreUnknownCounter(t *testing.T) {
	s := newFileStore(t)
	_, err := s.Next(context.Background(), "smtp_server")
	assert.ErrorIs(t, err, domain.ErrAllocation)
	assert.ErrorIs(t, err, domain.ErrUnknownCounter)
}

func TestFileStoreWriteFailureDoesNotAllocate(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	s, err := NewFileStore(filepath.Join(blocker, "datasync.properties"))
	require.NoError(t, err)

	_, err = s.Next(context.Background(), domain.DHRID)
	assert.ErrorIs(t, err, domain.ErrAllocation)
}

func TestFileStoreCorruptValue(t *testing.T) {
	s := newFileStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte("offset=abc\n"), 0o644))

	_, err := s.Next(context.Background(), domain.Offset)
	assert.ErrorIs(t, err, domain.ErrAllocation)

	raw, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, "offset=abc\n", string(raw))
}

func TestNewFileStoreRequiresPath(t *testing.T) {
	_, err := NewFileStore("  ")
	assert.Error(t, err)
}
