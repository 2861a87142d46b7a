package adapter

import "context"

// BlobStore abstracts the object store the pipeline fetches sources from and
// publishes rendition trees to. Transport details (credentials, endpoints,
// multipart thresholds) live entirely behind this interface.
type BlobStore interface {
	// FetchObject downloads bucket/key into localPath and returns the number
	// of bytes written.
	FetchObject(ctx context.Context, bucket, key, localPath string) (int64, error)

	// UploadTree walks localDir and publishes every regular file under
	// bucket/prefix, preserving the relative layout. Returns the count of
	// uploaded files.
	UploadTree(ctx context.Context, bucket, prefix, localDir string) (int, error)
}
