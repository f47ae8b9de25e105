package devserver

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/sharefold/sharefold/internal/models"
)

// S3Presigner issues presigned PUT/GET URLs for an S3-compatible bucket.
type S3Presigner struct {
	bucket  string
	presign *s3.PresignClient
}

// NewS3Presigner builds a presigner. Static keys are used when set, otherwise
// the default AWS credential chain. A custom endpoint switches to path-style
// addressing (MinIO and friends).
func NewS3Presigner(ctx context.Context, c S3Config) (*S3Presigner, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(c.Region)}
	if c.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Presigner{bucket: c.Bucket, presign: s3.NewPresignClient(client)}, nil
}

func (p *S3Presigner) PresignUpload(ctx context.Context, req ObjectRequest) (*models.UploadAuthorization, error) {
	out, err := p.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(req.Key),
		ContentLength: aws.Int64(req.Size),
	}, s3.WithPresignExpires(req.Expiry))
	if err != nil {
		return nil, fmt.Errorf("presign put: %w", err)
	}
	return &models.UploadAuthorization{
		UploadURL: out.URL,
		Method:    out.Method,
		Headers:   transferHeaders(out.SignedHeader),
	}, nil
}

func (p *S3Presigner) PresignDownload(ctx context.Context, req ObjectRequest) (string, error) {
	out, err := p.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(req.Key),
	}, s3.WithPresignExpires(req.Expiry))
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return out.URL, nil
}

// transferHeaders keeps the signed headers a client must send itself. Host
// and Content-Length are set by the HTTP client.
func transferHeaders(h http.Header) map[string]string {
	out := make(map[string]string)
	for name, values := range h {
		switch http.CanonicalHeaderKey(name) {
		case "Host", "Content-Length":
			continue
		}
		if len(values) > 0 {
			out[name] = values[0]
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
