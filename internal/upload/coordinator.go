// Package upload sends a local document to the service and brings the
// session list and selection up to date with the result.
package upload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"docchat/internal/api"
	"docchat/internal/model"
	"docchat/internal/notify"
	"docchat/pkg/logger"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

const source = "upload"

var (
	ErrNoFile     = errors.New("no file selected")
	ErrInProgress = errors.New("an upload is already in progress")
	ErrTooLarge   = errors.New("file too large")
)

// Sessions is the part of the session store an upload needs.
type Sessions interface {
	Reload(ctx context.Context) ([]model.Session, error)
	Select(ctx context.Context, id string) (*model.SessionDetail, error)
}

type Coordinator struct {
	api      api.Client
	sessions Sessions
	bus      *notify.Bus
	maxBytes int64
	busy     atomic.Bool
}

// New returns a coordinator rejecting files above maxBytes locally. Zero
// leaves the limit to the service.
func New(client api.Client, sessions Sessions, bus *notify.Bus, maxBytes int64) *Coordinator {
	return &Coordinator{
		api:      client,
		sessions: sessions,
		bus:      bus,
		maxBytes: maxBytes,
	}
}

func (c *Coordinator) InProgress() bool {
	return c.busy.Load()
}

// Upload sends the file at path. Once the service accepts it the list is
// refreshed and the new session selected; failures of those two steps are
// reported on the bus but do not fail the upload.
func (c *Coordinator) Upload(ctx context.Context, path string) (*model.UploadResult, error) {
	if strings.TrimSpace(path) == "" {
		c.bus.Fail(source, "Please select a file to upload", ErrNoFile)
		return nil, ErrNoFile
	}
	if !c.busy.CompareAndSwap(false, true) {
		c.bus.Fail(source, "An upload is already in progress", ErrInProgress)
		return nil, ErrInProgress
	}
	defer func() {
		c.busy.Store(false)
		c.bus.Changed(source)
	}()

	f, info, err := open(path)
	if err != nil {
		logger.Warnf("upload: %v", err)
		c.bus.Fail(source, fmt.Sprintf("Could not read %s", filepath.Base(path)), err)
		return nil, err
	}
	defer f.Close()

	if c.maxBytes > 0 && info.Size() > c.maxBytes {
		msg := fmt.Sprintf("File too large. Max size is %dMB", c.maxBytes/(1024*1024))
		logger.Infof("rejecting %s: %s exceeds %s", path, humanize.IBytes(uint64(info.Size())), humanize.IBytes(uint64(c.maxBytes)))
		c.bus.Fail(source, msg, ErrTooLarge)
		return nil, errors.Wrap(ErrTooLarge, msg)
	}

	name := filepath.Base(path)
	c.bus.Changed(source)
	logger.Infof("uploading %s (%s)", name, humanize.IBytes(uint64(info.Size())))

	result, err := c.api.Upload(ctx, name, f)
	if err != nil {
		logger.Warnf("upload %s: %v", name, err)
		c.bus.Fail(source, api.UserMessage(err, "Upload failed"), err)
		return nil, err
	}

	msg := result.Message
	if msg == "" {
		msg = fmt.Sprintf("Document %q uploaded successfully", name)
	}
	c.bus.Info(source, msg)

	if _, err := c.sessions.Reload(ctx); err != nil {
		logger.Warnf("refresh after uploading %s: %v", name, err)
	}
	if result.SessionID != "" {
		if _, err := c.sessions.Select(ctx, result.SessionID); err != nil {
			logger.Warnf("select uploaded session %s: %v", result.SessionID, err)
		}
	}
	return result, nil
}

func open(path string) (*os.File, os.FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "open %s", path)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, errors.Wrapf(err, "stat %s", path)
	}
	if info.IsDir() {
		f.Close()
		return nil, nil, errors.Wrapf(ErrNoFile, "%s is a directory", path)
	}
	return f, info, nil
}
