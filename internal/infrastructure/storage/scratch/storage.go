package scratch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/research-bot/internal/core/domain"
)

const copyBufferSize = 8 * 1024

var errEmptyBody = errors.New("empty body")

// Manager downloads remote files into a shared scratch directory. Every
// acquisition gets its own file name so concurrent runs never collide.
type Manager struct {
	basePath   string
	suffix     string
	httpClient *http.Client
}

type Options struct {
	Suffix     string
	HTTPClient *http.Client
}

func New(basePath string, options Options) (*Manager, error) {
	if basePath == "" {
		basePath = os.TempDir()
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	suffix := options.Suffix
	if suffix == "" {
		suffix = ".pdf"
	}
	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Manager{
		basePath:   basePath,
		suffix:     suffix,
		httpClient: httpClient,
	}, nil
}

func (m *Manager) Acquire(ctx context.Context, remoteURL, authToken string) (domain.ScratchFile, error) {
	if remoteURL == "" {
		return domain.ScratchFile{}, domain.WrapError(domain.ErrDownload, "acquire", errors.New("remote url is empty"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remoteURL, nil)
	if err != nil {
		return domain.ScratchFile{}, domain.WrapError(domain.ErrDownload, "create download request", err)
	}
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return domain.ScratchFile{}, domain.WrapError(domain.ErrDownload, "download", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		kind := domain.ErrDownload
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return domain.ScratchFile{}, domain.WrapError(kind, "download", fmt.Errorf("%w: status %s", domain.ErrUnauthorized, resp.Status))
		}
		return domain.ScratchFile{}, domain.WrapError(kind, "download", fmt.Errorf("status %s", resp.Status))
	}

	path := filepath.Join(m.basePath, uuid.NewString()+m.suffix)
	size, err := m.write(path, resp.Body)
	if err == nil && size == 0 {
		err = errEmptyBody
	}
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			slog.Warn("scratch_partial_cleanup_failed", "path", path, "error", rmErr)
		}
		if errors.Is(err, errEmptyBody) {
			return domain.ScratchFile{}, domain.WrapError(domain.ErrDownload, "download", err)
		}
		return domain.ScratchFile{}, domain.WrapError(domain.ErrDownload, "write scratch file", err)
	}

	slog.Info("scratch_file_acquired", "path", path, "bytes", size)
	return domain.ScratchFile{Path: path, Size: size}, nil
}

func (m *Manager) write(path string, body io.Reader) (int64, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}

	buf := make([]byte, copyBufferSize)
	size, err := io.CopyBuffer(f, body, buf)
	if err != nil {
		_ = f.Close()
		return 0, fmt.Errorf("write file: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("close file: %w", err)
	}
	return size, nil
}

// Release removes the file. It never fails: false means there was nothing to
// delete or the delete did not succeed, and the reason is logged.
func (m *Manager) Release(file domain.ScratchFile) bool {
	if file.Path == "" {
		return false
	}
	if err := os.Remove(file.Path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false
		}
		slog.Error("scratch_release_failed", "path", file.Path, "error", err)
		return false
	}
	slog.Debug("scratch_file_released", "path", file.Path)
	return true
}
