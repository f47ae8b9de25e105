package devserver

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"

	"github.com/sharefold/sharefold/internal/models"
)

// AzurePresigner issues blob SAS URLs signed with the account key.
type AzurePresigner struct {
	account   string
	container string
	cred      *azblob.SharedKeyCredential
	now       func() time.Time
}

// NewAzurePresigner builds a presigner for one container.
func NewAzurePresigner(c AzureConfig) (*AzurePresigner, error) {
	cred, err := azblob.NewSharedKeyCredential(c.Account, c.Key)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}
	return &AzurePresigner{
		account:   c.Account,
		container: c.Container,
		cred:      cred,
		now:       time.Now,
	}, nil
}

func (p *AzurePresigner) PresignUpload(_ context.Context, req ObjectRequest) (*models.UploadAuthorization, error) {
	u, err := p.sign(req, to.Ptr(sas.BlobPermissions{Create: true, Write: true}))
	if err != nil {
		return nil, err
	}
	return &models.UploadAuthorization{
		UploadURL: u,
		Method:    http.MethodPut,
		Headers:   map[string]string{"x-ms-blob-type": "BlockBlob"},
	}, nil
}

func (p *AzurePresigner) PresignDownload(_ context.Context, req ObjectRequest) (string, error) {
	return p.sign(req, to.Ptr(sas.BlobPermissions{Read: true}))
}

func (p *AzurePresigner) sign(req ObjectRequest, perms *sas.BlobPermissions) (string, error) {
	now := p.now().UTC()
	qp, err := sas.BlobSignatureValues{
		Protocol:      sas.ProtocolHTTPS,
		StartTime:     now.Add(-5 * time.Minute),
		ExpiryTime:    now.Add(req.Expiry),
		Permissions:   perms.String(),
		ContainerName: p.container,
		BlobName:      req.Key,
	}.SignWithSharedKey(p.cred)
	if err != nil {
		return "", fmt.Errorf("sign sas: %w", err)
	}
	blobURL := url.URL{
		Scheme:   "https",
		Host:     p.account + ".blob.core.windows.net",
		Path:     "/" + p.container + "/" + req.Key,
		RawQuery: qp.Encode(),
	}
	return blobURL.String(), nil
}
