// Package azblob implements port.ObjectStorage on Azure Blob Storage.
package azblob

import (
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/rotisserie/eris"

	"claimflow/internal/config"
	"claimflow/internal/domain"
	"claimflow/internal/port"
)

type azblobClient struct {
	client *azblob.Client
}

// NewAzBlobClient creates a Blob Storage backed ObjectStorage. A connection
// string wins over the account URL, which authenticates with the default
// Azure credential chain.
func NewAzBlobClient(cfg *config.AzBlobConfig) (port.ObjectStorage, error) {
	if cfg.ConnectionString != "" {
		client, err := azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
		if err != nil {
			return nil, eris.Wrap(err, "azblob: create client from connection string")
		}
		return &azblobClient{client: client}, nil
	}
	if cfg.AccountURL == "" {
		return nil, eris.Wrap(domain.ErrMissingConfig, "azblob: connection string or account URL is required")
	}

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, eris.Wrap(err, "azblob: default credential")
	}
	client, err := azblob.NewClient(cfg.AccountURL, cred, nil)
	if err != nil {
		return nil, eris.Wrap(err, "azblob: create client")
	}
	return &azblobClient{client: client}, nil
}

// NewFromClient wraps an existing SDK client.
func NewFromClient(client *azblob.Client) port.ObjectStorage {
	return &azblobClient{client: client}
}

func (a *azblobClient) Upload(ctx context.Context, input port.UploadInput) (*port.UploadOutput, error) {
	if err := validateKey(input.Key); err != nil {
		return nil, err
	}

	opts := &azblob.UploadStreamOptions{}
	if input.ContentType != "" {
		opts.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: &input.ContentType}
	}

	resp, err := a.client.UploadStream(ctx, input.Bucket, input.Key, input.Body, opts)
	if err != nil {
		return nil, eris.Wrapf(err, "azblob: upload blob %s", input.Key)
	}

	out := &port.UploadOutput{Location: a.blobURL(input.Bucket, input.Key)}
	if resp.ETag != nil {
		out.ETag = string(*resp.ETag)
	}
	return out, nil
}

func (a *azblobClient) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	resp, err := a.client.DownloadStream(ctx, bucket, key, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, eris.Wrapf(domain.ErrInputNotFound, "azblob: %s/%s", bucket, key)
		}
		return nil, eris.Wrapf(err, "azblob: download blob %s", key)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "azblob: read blob %s", key)
	}
	return data, nil
}

func (a *azblobClient) List(ctx context.Context, bucket, prefix string) ([]port.ObjectInfo, error) {
	opts := &azblob.ListBlobsFlatOptions{}
	if prefix != "" {
		opts.Prefix = &prefix
	}

	var out []port.ObjectInfo
	pager := a.client.NewListBlobsFlatPager(bucket, opts)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			if bloberror.HasCode(err, bloberror.ContainerNotFound) {
				return nil, eris.Wrapf(domain.ErrInputNotFound, "azblob: container %s", bucket)
			}
			return nil, eris.Wrapf(err, "azblob: list %s", bucket)
		}
		if page.Segment == nil {
			continue
		}
		for _, item := range page.Segment.BlobItems {
			if item == nil || item.Name == nil {
				continue
			}
			info := port.ObjectInfo{Key: *item.Name}
			if p := item.Properties; p != nil {
				if p.ContentLength != nil {
					info.Size = *p.ContentLength
				}
				if p.LastModified != nil {
					info.LastModified = *p.LastModified
				}
			}
			out = append(out, info)
		}
	}
	return out, nil
}

func (a *azblobClient) Delete(ctx context.Context, bucket, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	_, err := a.client.DeleteBlob(ctx, bucket, key, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return eris.Wrapf(domain.ErrInputNotFound, "azblob: %s/%s", bucket, key)
		}
		return eris.Wrapf(err, "azblob: delete blob %s", key)
	}
	return nil
}

func (a *azblobClient) blobURL(container, key string) string {
	return strings.TrimRight(a.client.URL(), "/") + "/" + url.PathEscape(container) + "/" + key
}

func validateKey(key string) error {
	if key == "" {
		return eris.Wrap(domain.ErrInvalidInput, "azblob: empty blob key")
	}
	if strings.Contains(key, "..") {
		return eris.Wrapf(domain.ErrInvalidInput, "azblob: invalid blob key %q", key)
	}
	return nil
}
