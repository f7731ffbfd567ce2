package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Ensure AzureFetcher implements Fetcher interface.
var _ Fetcher = (*AzureFetcher)(nil)

var ErrBlobNotFound = errors.New("blob not found")

// Reads blobs out of a single container. The url passed to Fetch is the blob
// name.
type AzureFetcher struct {
	az        *azblob.Client
	container string
	// body reads resume this many times after a dropped connection
	readRetries int32
}

func NewAzureFetcherFromClient(client *azblob.Client, container string) *AzureFetcher {
	return &AzureFetcher{
		az:          client,
		container:   container,
		readRetries: 3,
	}
}

func (a *AzureFetcher) Fetch(ctx context.Context, blobName string) (io.ReadCloser, error) {
	ctx, span := tracer.Start(ctx, "AzureFetcher.Fetch", trace.WithAttributes(
		attribute.String("container", a.container),
		attribute.String("blob", blobName),
	))
	defer span.End()

	res, err := a.az.DownloadStream(ctx, a.container, blobName, nil)
	if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
		err = fmt.Errorf("%w: %s/%s", ErrBlobNotFound, a.container, blobName)
		span.RecordError(err)
		span.SetStatus(codes.Error, "blob does not exist")
		return nil, err
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to start blob download")
		return nil, err
	}

	if res.ContentLength != nil {
		span.SetAttributes(attribute.Int64("bytes", *res.ContentLength))
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "streaming blob")
	return res.NewRetryReader(ctx, &blob.RetryReaderOptions{MaxRetries: a.readRetries}), nil
}
