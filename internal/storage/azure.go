package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// AzureStorage maps buckets onto blob containers.
type AzureStorage struct {
	client *azblob.Client
}

func NewAzureStorage(connectionString string) (*AzureStorage, error) {
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("create azure blob client: %w", err)
	}
	return &AzureStorage{client: client}, nil
}

func (a *AzureStorage) Upload(ctx context.Context, bucket, path string, data io.Reader, contentType string) error {
	opts := &azblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType: &contentType,
		},
	}

	if _, err := a.client.UploadStream(ctx, bucket, path, data, opts); err != nil {
		return unavailable("upload", path, err)
	}
	return nil
}

func (a *AzureStorage) Download(ctx context.Context, bucket, path string) (io.ReadCloser, error) {
	resp, err := a.client.DownloadStream(ctx, bucket, path, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, ErrNotFound
		}
		return nil, unavailable("download", path, err)
	}
	return resp.Body, nil
}

func (a *AzureStorage) Delete(ctx context.Context, bucket, path string) error {
	if _, err := a.client.DeleteBlob(ctx, bucket, path, nil); err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return ErrNotFound
		}
		return unavailable("delete", path, err)
	}
	return nil
}

func (a *AzureStorage) Exists(ctx context.Context, bucket, path string) (bool, error) {
	blobClient := a.client.
		ServiceClient().
		NewContainerClient(bucket).
		NewBlobClient(path)

	if _, err := blobClient.GetProperties(ctx, nil); err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return false, nil
		}
		return false, unavailable("get properties", path, err)
	}
	return true, nil
}
