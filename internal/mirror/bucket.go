package mirror

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

// IsBucketURL reports whether root names a bucket URL rather than a directory.
func IsBucketURL(root string) bool {
	return strings.Contains(root, "://")
}

// OpenBucket opens the local mirror rooted at root.
func OpenBucket(ctx context.Context, root string) (*blob.Bucket, error) {
	if IsBucketURL(root) {
		bkt, err := blob.OpenBucket(ctx, root)
		if err != nil {
			return nil, fmt.Errorf("open bucket %s: %w", root, err)
		}
		return bkt, nil
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve local root %s: %w", root, err)
	}

	bkt, err := fileblob.OpenBucket(abs, &fileblob.Options{
		CreateDir: true,
		NoTempDir: true,
		Metadata:  fileblob.MetadataDontWrite,
	})
	if err != nil {
		return nil, fmt.Errorf("open local root %s: %w", abs, err)
	}
	return bkt, nil
}
