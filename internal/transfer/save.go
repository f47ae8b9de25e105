package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"os"
	"path/filepath"

	"github.com/sharefold/sharefold/internal/constants"
	"github.com/sharefold/sharefold/internal/diskspace"
	"github.com/sharefold/sharefold/internal/logging"
	"github.com/sharefold/sharefold/internal/models"
	"github.com/sharefold/sharefold/internal/progress"
	"github.com/sharefold/sharefold/internal/validation"
)

// ReporterFactory creates the progress reporter for one saved file once its
// size is known. It may return nil.
type ReporterFactory func(fileName, localPath string, size int64) progress.Reporter

// Saver writes a resolved retrieval location to a local directory. It is used
// by the command line; the browsing core stops at the resolved link.
type Saver struct {
	httpClient *nethttp.Client
	logger     *logging.Logger
}

// NewSaver creates a saver.
func NewSaver(httpClient *nethttp.Client, logger *logging.Logger) *Saver {
	if httpClient == nil {
		httpClient = nethttp.DefaultClient
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Saver{httpClient: httpClient, logger: logger.Component("save")}
}

// Save downloads link into destDir under the link's file name and returns the
// written path. The file appears only once it is complete.
func (s *Saver) Save(ctx context.Context, link *models.DownloadAuthorization, destDir string, newReporter ReporterFactory) (string, error) {
	if err := validation.ValidateFilename(link.FileName); err != nil {
		return "", err
	}
	dest := filepath.Join(destDir, link.FileName)
	if err := validation.ValidatePathInDirectory(dest, destDir); err != nil {
		return "", err
	}
	if info, err := os.Stat(destDir); err != nil || !info.IsDir() {
		return "", validation.New("directory", "%s is not a directory", destDir)
	}

	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodGet, link.DownloadURL, nil)
	if err != nil {
		return "", &TransferError{Err: err}
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", &TransferError{Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		te := &TransferError{StatusCode: resp.StatusCode}
		if msg := readSnippet(resp.Body); msg != "" {
			te.Err = errors.New(msg)
		}
		return "", te
	}

	size := resp.ContentLength
	if size > 0 {
		if err := diskspace.CheckAvailableSpace(dest, size, constants.DiskSpaceBufferPercent); err != nil {
			return "", err
		}
	}

	var reporter progress.Reporter = progress.NewNoOpProgress()
	if newReporter != nil {
		if r := newReporter(link.FileName, dest, size); r != nil {
			reporter = r
		}
	}
	reporter.Start(size, link.FileName)

	tmp, err := os.CreateTemp(destDir, "."+link.FileName+".*.part")
	if err != nil {
		reporter.Error(err)
		return "", err
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	buf := make([]byte, constants.TransferBufferSize)
	written, err := io.CopyBuffer(tmp, progress.NewProgressReader(resp.Body, size, reporter), buf)
	if err != nil {
		cleanup()
		te := &TransferError{Err: err}
		reporter.Error(te)
		return "", te
	}
	if size > 0 && written != size {
		cleanup()
		te := &TransferError{Err: fmt.Errorf("received %d of %d bytes", written, size)}
		reporter.Error(te)
		return "", te
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		reporter.Error(err)
		return "", err
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		reporter.Error(err)
		return "", err
	}

	reporter.Finish()
	s.logger.Info().Str("file", link.FileName).Int("version", link.VersionNumber).Int64("bytes", written).Str("path", dest).Msg("download saved")
	return dest, nil
}
