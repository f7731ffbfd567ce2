package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Ensures AzureUploader implements Uploader interface.
var _ Uploader = (*AzureUploader)(nil)

// Azure Blob store backed uploader
type AzureUploader struct {
	client *azblob.Client
	// signs download URLs
	cred *azblob.SharedKeyCredential
	// `container` in the storage account where files are saved
	container string
}

// `container` must be part of the storage account of `client` and `cred`
func NewAzureUploaderFromClient(
	client *azblob.Client,
	cred *azblob.SharedKeyCredential,
	container string,
) *AzureUploader {
	return &AzureUploader{
		client:    client,
		cred:      cred,
		container: container,
	}
}

func (u *AzureUploader) Upload(
	ctx context.Context,
	reader io.ReadSeeker,
	length int64,
	key string,
) error {
	ctx, span := tracer.Start(ctx, "AzureUploader.Upload", trace.WithAttributes(
		attribute.String("key", key),
		attribute.Int64("length", length),
	))
	defer span.End()

	_, err := u.client.UploadStream(ctx, u.container, key, reader, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upload reader")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "uploaded blob")
	return nil
}

func (u *AzureUploader) Exists(ctx context.Context, key string) (bool, error) {
	ctx, span := tracer.Start(ctx, "AzureUploader.Exists", trace.WithAttributes(
		attribute.String("key", key),
	))
	defer span.End()

	_, err := u.client.ServiceClient().
		NewContainerClient(u.container).
		NewBlobClient(key).
		GetProperties(ctx, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.ErrorCode == string(bloberror.BlobNotFound) {
			span.RecordError(nil)
			span.SetStatus(codes.Ok, "did not find blob")
			return false, nil
		}

		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to check blob exists")
		return false, err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "found blob")
	return true, nil
}

func (u *AzureUploader) StoreIdentifier(_ context.Context) (string, error) {
	return u.container, nil
}

func (u *AzureUploader) PresignedDownloadURL(
	ctx context.Context,
	key string,
	filename string,
	duration time.Duration,
) (string, error) {
	_, span := tracer.Start(ctx, "AzureUploader.PresignedDownloadURL", trace.WithAttributes(
		attribute.String("key", key),
		attribute.String("filename", filename),
		attribute.String("duration", duration.String()),
	))
	defer span.End()

	values := sas.BlobSignatureValues{
		Protocol:      sas.ProtocolHTTPSandHTTP,
		ExpiryTime:    time.Now().UTC().Add(duration),
		Permissions:   (&sas.BlobPermissions{Read: true}).String(),
		ContainerName: u.container,
		BlobName:      key,
	}
	if filename != "" {
		values.ContentDisposition = AttachmentDisposition(filename)
	}

	params, err := values.SignWithSharedKey(u.cred)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to sign blob url")
		return "", err
	}

	blobURL := u.client.ServiceClient().
		NewContainerClient(u.container).
		NewBlobClient(key).
		URL()

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "got presigned url")
	return fmt.Sprintf("%s?%s", blobURL, params.Encode()), nil
}
