package transfer

import (
	"context"

	"github.com/sharefold/sharefold/internal/logging"
	"github.com/sharefold/sharefold/internal/models"
	"github.com/sharefold/sharefold/internal/validation"
)

// DownloadAuthorizer issues download authorizations.
type DownloadAuthorizer interface {
	RequestDownloadAuthorization(ctx context.Context, req models.DownloadAuthorizationRequest) (*models.DownloadAuthorization, error)
}

// DownloadLinkResolver exchanges (folder, file, version) for a short-lived
// retrieval URL. It never touches file bytes; opening or saving the URL is
// up to the caller.
type DownloadLinkResolver struct {
	authorizer DownloadAuthorizer
	logger     *logging.Logger
}

// NewDownloadLinkResolver creates a resolver.
func NewDownloadLinkResolver(authorizer DownloadAuthorizer, logger *logging.Logger) *DownloadLinkResolver {
	if logger == nil {
		logger = logging.Nop()
	}
	return &DownloadLinkResolver{authorizer: authorizer, logger: logger.Component("download")}
}

// Resolve requests a retrieval location. A zero version means latest.
func (r *DownloadLinkResolver) Resolve(ctx context.Context, folderID, fileName string, version int) (*models.DownloadAuthorization, error) {
	if folderID == "" {
		return nil, validation.New("folderId", "cannot be empty")
	}
	if fileName == "" {
		return nil, validation.New("fileName", "cannot be empty")
	}
	if version < 0 {
		return nil, validation.New("versionNumber", "must be positive, got %d", version)
	}

	link, err := r.authorizer.RequestDownloadAuthorization(ctx, models.DownloadAuthorizationRequest{
		FolderID:      folderID,
		FileName:      fileName,
		VersionNumber: version,
	})
	if err != nil {
		r.logger.Warn().Str("folder", folderID).Str("file", fileName).Int("version", version).Err(err).Msg("download authorization refused")
		return nil, err
	}
	if link.FileName == "" {
		link.FileName = fileName
	}
	r.logger.Debug().Str("file", fileName).Int("version", link.VersionNumber).
		Str("url", logging.RedactURL(link.DownloadURL)).Msg("download link resolved")
	return link, nil
}
