package transfer

import (
	"context"
	"errors"
	"io"
	nethttp "net/http"
	"strings"
	"sync"

	"github.com/sharefold/sharefold/internal/constants"
	"github.com/sharefold/sharefold/internal/events"
	httpclient "github.com/sharefold/sharefold/internal/http"
	"github.com/sharefold/sharefold/internal/logging"
	"github.com/sharefold/sharefold/internal/models"
	"github.com/sharefold/sharefold/internal/progress"
	"github.com/sharefold/sharefold/internal/validation"
)

// UploadState is the coordinator's lifecycle state.
type UploadState int

const (
	UploadIdle UploadState = iota
	UploadInFlight
	UploadSucceeded
	UploadFailed
)

func (s UploadState) String() string {
	switch s {
	case UploadIdle:
		return "idle"
	case UploadInFlight:
		return "in-flight"
	case UploadSucceeded:
		return "succeeded"
	case UploadFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// UploadStatus is a snapshot of the coordinator.
type UploadStatus struct {
	State    UploadState
	FileName string
	FolderID string
	Percent  int
	Err      error // UploadFailed only
}

// UploadResult describes a finished upload.
type UploadResult struct {
	FileName      string
	FolderID      string
	Size          int64
	VersionNumber int
	// RefreshErr is the error of the listing refresh that follows a
	// successful transfer. The upload itself succeeded either way.
	RefreshErr error
}

// UploadAuthorizer issues upload authorizations.
type UploadAuthorizer interface {
	RequestUploadAuthorization(ctx context.Context, req models.UploadAuthorizationRequest) (*models.UploadAuthorization, error)
}

// Refresher reloads the listing of a folder after an upload landed in it.
type Refresher interface {
	LoadForFolder(ctx context.Context, folderID string) error
}

// UploadCoordinator runs one upload at a time:
//
//	Idle -> InFlight -> Succeeded | Failed
//
// and back to InFlight on the next Upload. A second Upload while InFlight is
// rejected with ErrUploadInProgress; callers that want a queue build it on top.
type UploadCoordinator struct {
	authorizer UploadAuthorizer
	httpClient *nethttp.Client
	refresher  Refresher
	maxBytes   int64
	eventBus   *events.EventBus
	logger     *logging.Logger

	mu      sync.Mutex
	status  UploadStatus
	tracker *progress.BusProgress
}

// NewUploadCoordinator creates an idle coordinator. maxBytes outside
// (0, constants.MaxUploadSize] falls back to constants.MaxUploadSize.
// refresher may be nil.
func NewUploadCoordinator(authorizer UploadAuthorizer, httpClient *nethttp.Client, refresher Refresher, maxBytes int64, logger *logging.Logger, eventBus *events.EventBus) *UploadCoordinator {
	if maxBytes <= 0 || maxBytes > constants.MaxUploadSize {
		maxBytes = constants.MaxUploadSize
	}
	if httpClient == nil {
		httpClient = nethttp.DefaultClient
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &UploadCoordinator{
		authorizer: authorizer,
		httpClient: httpClient,
		refresher:  refresher,
		maxBytes:   maxBytes,
		eventBus:   eventBus,
		logger:     logger.Component("upload"),
	}
}

// MaxBytes returns the effective size ceiling.
func (c *UploadCoordinator) MaxBytes() int64 { return c.maxBytes }

// Status returns the current state.
func (c *UploadCoordinator) Status() UploadStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.status
	if st.State == UploadInFlight && c.tracker != nil {
		if p := c.tracker.Last(); p > 0 {
			st.Percent = p
		}
	}
	return st
}

// Validate runs the local checks Upload performs before any request.
func (c *UploadCoordinator) Validate(cand Candidate, folderID string) error {
	if folderID == "" {
		return validation.New("folderId", "a target folder is required")
	}
	if err := validation.ValidateFilename(cand.Name); err != nil {
		return err
	}
	if cand.Size < 0 {
		return validation.New("fileSize", "negative size %d", cand.Size)
	}
	if cand.Size > c.maxBytes {
		return validation.New("fileSize", "%s exceeds the %s upload limit",
			models.FormatSize(cand.Size), models.FormatSize(c.maxBytes))
	}
	if cand.Open == nil {
		return validation.New("file", "no content")
	}
	return nil
}

// Upload sends cand into folderID: it requests an authorization, streams the
// bytes straight to the object store and then refreshes the folder listing.
// reporter may be nil; progress is also published on the event bus.
//
// Any failure leaves the coordinator in UploadFailed, from which a new Upload
// starts from scratch. Nothing is retried.
func (c *UploadCoordinator) Upload(ctx context.Context, cand Candidate, folderID string, reporter progress.Reporter) (*UploadResult, error) {
	if err := c.Validate(cand, folderID); err != nil {
		return nil, err
	}

	tracker := progress.NewBusProgress(c.eventBus, cand.Name)
	if err := c.begin(cand.Name, folderID, tracker); err != nil {
		return nil, err
	}
	log := c.logger.With().Str("file", cand.Name).Str("folder", folderID).Int64("bytes", cand.Size).Logger()
	log.Info().Msg("upload started")

	auth, err := c.authorizer.RequestUploadAuthorization(ctx, models.UploadAuthorizationRequest{
		FolderID: folderID,
		FileName: cand.Name,
		FileSize: cand.Size,
	})
	if err != nil {
		log.Warn().Err(err).Msg("upload authorization refused")
		return nil, c.fail(err)
	}

	if err := c.send(ctx, auth, cand, progress.NewMulti(tracker, reporter)); err != nil {
		log.Warn().Err(err).Str("kind", httpclient.ErrorTypeName(httpclient.ClassifyError(err))).
			Str("url", logging.RedactURL(auth.UploadURL)).Msg("upload transfer failed")
		return nil, c.fail(err)
	}

	c.finish()
	log.Info().Int("version", auth.VersionNumber).Msg("upload succeeded")

	result := &UploadResult{
		FileName:      cand.Name,
		FolderID:      folderID,
		Size:          cand.Size,
		VersionNumber: auth.VersionNumber,
	}
	if c.refresher != nil {
		if err := c.refresher.LoadForFolder(ctx, folderID); err != nil {
			log.Warn().Err(err).Msg("listing refresh after upload failed")
			result.RefreshErr = err
		}
	}
	return result, nil
}

func (c *UploadCoordinator) begin(fileName, folderID string, tracker *progress.BusProgress) error {
	c.mu.Lock()
	if c.status.State == UploadInFlight {
		c.mu.Unlock()
		return ErrUploadInProgress
	}
	c.status = UploadStatus{State: UploadInFlight, FileName: fileName, FolderID: folderID}
	c.tracker = tracker
	c.mu.Unlock()

	c.eventBus.PublishUploadState(fileName, folderID, UploadInFlight.String(), 0, nil)
	return nil
}

func (c *UploadCoordinator) fail(err error) error {
	c.mu.Lock()
	st := c.status
	if c.tracker != nil {
		if p := c.tracker.Last(); p > st.Percent {
			st.Percent = p
		}
	}
	st.State = UploadFailed
	st.Err = err
	c.status = st
	c.tracker = nil
	c.mu.Unlock()

	c.eventBus.PublishUploadState(st.FileName, st.FolderID, UploadFailed.String(), st.Percent, err)
	return err
}

func (c *UploadCoordinator) finish() {
	c.mu.Lock()
	c.status.State = UploadSucceeded
	c.status.Percent = 100
	c.tracker = nil
	st := c.status
	c.mu.Unlock()

	c.eventBus.PublishUploadState(st.FileName, st.FolderID, UploadSucceeded.String(), 100, nil)
}

// send performs the direct transfer described by auth.
func (c *UploadCoordinator) send(ctx context.Context, auth *models.UploadAuthorization, cand Candidate, reporter progress.Reporter) error {
	content, err := cand.Open()
	if err != nil {
		return &TransferError{Err: err}
	}
	defer content.Close()

	reporter.Start(cand.Size, "Uploading "+cand.Name)

	var body io.Reader = nethttp.NoBody
	if cand.Size > 0 {
		body = progress.NewProgressReader(content, cand.Size, reporter)
	}
	method := auth.Method
	if method == "" {
		method = nethttp.MethodPut
	}
	req, err := nethttp.NewRequestWithContext(ctx, method, auth.UploadURL, body)
	if err != nil {
		reporter.Error(err)
		return &TransferError{Err: err}
	}
	req.ContentLength = cand.Size
	for k, v := range auth.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		reporter.Error(err)
		return &TransferError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		te := &TransferError{StatusCode: resp.StatusCode}
		if msg := readSnippet(resp.Body); msg != "" {
			te.Err = errors.New(msg)
		}
		reporter.Error(te)
		return te
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	reporter.Finish()
	return nil
}

// readSnippet returns the start of an object-store error body.
func readSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	return strings.TrimSpace(string(b))
}
