package upload

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"docchat/internal/api"
	"docchat/internal/api/apitest"
	"docchat/internal/model"
	"docchat/internal/notify"
	"docchat/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	fake     *apitest.Fake
	sessions *store.Store
	coord    *Coordinator
	tray     *notify.Tray
}

func newHarness(t *testing.T, maxBytes int64, existing ...model.Session) *harness {
	t.Helper()
	bus := notify.NewBus()
	tray := notify.NewTray(0)
	bus.Subscribe(tray.Listener())

	fake := apitest.NewFake(existing...)
	sessions := store.New(fake, bus)
	_, err := sessions.Refresh(context.Background())
	require.NoError(t, err)

	return &harness{
		fake:     fake,
		sessions: sessions,
		coord:    New(fake, sessions, bus, maxBytes),
		tray:     tray,
	}
}

func (h *harness) texts() []string {
	var out []string
	for _, toast := range h.tray.Active() {
		out = append(out, string(toast.Level)+": "+toast.Text)
	}
	return out
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestUploadSelectsNewSession(t *testing.T) {
	h := newHarness(t, 5<<20, apitest.Session("a"))
	path := writeFile(t, "report.txt", "quarterly numbers")

	res, err := h.coord.Upload(context.Background(), path)
	require.NoError(t, err)
	require.NotEmpty(t, res.SessionID)

	count := 0
	for _, s := range h.sessions.Sessions() {
		if s.ID == res.SessionID {
			count++
			assert.Equal(t, "report.txt", s.DocumentName)
		}
	}
	assert.Equal(t, 1, count)
	assert.Equal(t, res.SessionID, h.sessions.Active())
	assert.False(t, h.coord.InProgress())
	assert.Equal(t, []string{`info: Document "report.txt" uploaded successfully`}, h.texts())
}

// staleFirstList answers its first list request with the sessions that
// existed when the request arrived, once release is closed.
type staleFirstList struct {
	*apitest.Fake
	lists   atomic.Int32
	arrived chan struct{}
	release chan struct{}
}

func (c *staleFirstList) ListSessions(ctx context.Context) ([]model.Session, error) {
	list, err := c.Fake.ListSessions(ctx)
	if c.lists.Add(1) == 1 {
		close(c.arrived)
		<-c.release
	}
	return list, err
}

func TestUploadDuringSlowRefreshSelectsNewSession(t *testing.T) {
	ctx := context.Background()
	bus := notify.NewBus()
	tray := notify.NewTray(0)
	bus.Subscribe(tray.Listener())

	fake := apitest.NewFake(apitest.Session("a"))
	client := &staleFirstList{Fake: fake, arrived: make(chan struct{}), release: make(chan struct{})}
	sessions := store.New(client, bus)
	h := &harness{fake: fake, sessions: sessions, coord: New(client, sessions, bus, 5<<20), tray: tray}

	refreshed := make(chan error, 1)
	go func() {
		_, err := sessions.Refresh(ctx)
		refreshed <- err
	}()
	<-client.arrived

	res, err := h.coord.Upload(ctx, writeFile(t, "new.txt", "fresh"))
	require.NoError(t, err)

	close(client.release)
	assert.ErrorIs(t, <-refreshed, store.ErrSuperseded)

	count := 0
	for _, s := range sessions.Sessions() {
		if s.ID == res.SessionID {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.Equal(t, res.SessionID, sessions.Active())
	assert.Equal(t, 2, fake.Calls("list"))
	assert.Equal(t, []string{`info: Document "new.txt" uploaded successfully`}, h.texts())
}

func TestUploadServiceRejection(t *testing.T) {
	h := newHarness(t, 5<<20)
	h.fake.UploadErr = &api.ServiceError{Op: "upload", Status: http.StatusBadRequest, Message: "Unsupported file type"}
	path := writeFile(t, "tool.exe", "MZ")

	_, err := h.coord.Upload(context.Background(), path)
	require.Error(t, err)

	assert.Equal(t, []string{"error: Unsupported file type"}, h.texts())
	assert.Empty(t, h.sessions.Sessions())
	assert.Empty(t, h.sessions.Active())
}

func TestUploadTransportFailureUsesGenericText(t *testing.T) {
	h := newHarness(t, 0)
	h.fake.UploadErr = &api.TransportError{Op: "upload", Err: context.DeadlineExceeded}

	_, err := h.coord.Upload(context.Background(), writeFile(t, "a.pdf", "%PDF"))
	require.Error(t, err)
	assert.Equal(t, []string{"error: Upload failed"}, h.texts())
}

func TestUploadTooLargeIsRejectedLocally(t *testing.T) {
	h := newHarness(t, 5<<20)
	path := filepath.Join(t.TempDir(), "big.pdf")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(6<<20))
	require.NoError(t, f.Close())

	_, err = h.coord.Upload(context.Background(), path)
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Zero(t, h.fake.Calls("upload"))
	assert.Equal(t, []string{"error: File too large. Max size is 5MB"}, h.texts())
}

func TestUploadRequiresFile(t *testing.T) {
	h := newHarness(t, 0)

	_, err := h.coord.Upload(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrNoFile)

	_, err = h.coord.Upload(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, ErrNoFile)

	_, err = h.coord.Upload(context.Background(), filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	assert.Zero(t, h.fake.Calls("upload"))
}

type blockingSessions struct {
	onRefresh func()
}

func (b *blockingSessions) Reload(ctx context.Context) ([]model.Session, error) {
	b.onRefresh()
	return nil, errors.New("refresh failed")
}

func (b *blockingSessions) Select(ctx context.Context, id string) (*model.SessionDetail, error) {
	return nil, errors.New("select failed")
}

func TestSecondUploadIsRejectedWhileBusy(t *testing.T) {
	fake := apitest.NewFake()
	sessions := &blockingSessions{}
	coord := New(fake, sessions, notify.NewBus(), 0)
	path := writeFile(t, "a.txt", "x")

	var nested error
	sessions.onRefresh = func() {
		assert.True(t, coord.InProgress())
		_, nested = coord.Upload(context.Background(), path)
	}

	res, err := coord.Upload(context.Background(), path)
	require.NoError(t, err, "refresh and select failures do not fail the upload")
	assert.NotEmpty(t, res.SessionID)
	assert.ErrorIs(t, nested, ErrInProgress)
	assert.Equal(t, 1, fake.Calls("upload"))
	assert.False(t, coord.InProgress())
}
