package out

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	syncout "studysync/internal/modules/sync/port/out"
	apperrors "studysync/internal/platform/errors"
)

type objectInfo struct {
	Key        string
	Size       int64
	ModifiedAt time.Time
	// Prefix marks a common prefix rather than an object.
	Prefix bool
}

// objectClient is the slice of a bucket API the object transport needs.
// Missing keys are reported as apperrors.ErrNotFound.
type objectClient interface {
	ensureBucket(ctx context.Context) error
	// list returns objects and common prefixes directly under prefix.
	list(ctx context.Context, prefix string) ([]objectInfo, error)
	get(ctx context.Context, key string) ([]byte, error)
	put(ctx context.Context, key string, content []byte, contentType string) error
}

// ObjectTransport maps folders onto key prefixes in one bucket. A folder id
// is its full prefix including the trailing slash; a file id is its key.
// Folders exist only once something is written below them.
type ObjectTransport struct {
	client objectClient
	prefix string
	target string
}

func newObjectTransport(client objectClient, target, prefix string) *ObjectTransport {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &ObjectTransport{client: client, prefix: prefix, target: target}
}

func (t *ObjectTransport) RootFolder(ctx context.Context, name string) (string, error) {
	if err := t.client.ensureBucket(ctx); err != nil {
		return "", apperrors.Transport("ensure bucket", t.target, err)
	}
	if err := checkName(name); err != nil {
		return "", err
	}
	return t.prefix + name + "/", nil
}

func (t *ObjectTransport) EnsureFolder(_ context.Context, parentID, name string) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	return parentID + name + "/", nil
}

func (t *ObjectTransport) ListFolders(ctx context.Context, parentID string) ([]syncout.Entry, error) {
	return t.entries(ctx, parentID, true)
}

func (t *ObjectTransport) ListFiles(ctx context.Context, folderID string) ([]syncout.Entry, error) {
	return t.entries(ctx, folderID, false)
}

func (t *ObjectTransport) entries(ctx context.Context, prefix string, folders bool) ([]syncout.Entry, error) {
	objects, err := t.client.list(ctx, prefix)
	if err != nil {
		return nil, apperrors.Transport("list", t.target+"/"+prefix, err)
	}
	out := make([]syncout.Entry, 0, len(objects))
	for _, obj := range objects {
		if obj.Prefix != folders {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(obj.Key, prefix), "/")
		if name == "" || strings.Contains(name, "/") {
			continue
		}
		out = append(out, syncout.Entry{ID: obj.Key, Name: name, Size: obj.Size, ModifiedAt: obj.ModifiedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (t *ObjectTransport) Download(ctx context.Context, fileID string) ([]byte, error) {
	content, err := t.client.get(ctx, fileID)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: object %s", apperrors.ErrNotFound, fileID)
		}
		return nil, apperrors.Transport("get", t.target+"/"+fileID, err)
	}
	return content, nil
}

func (t *ObjectTransport) UploadJSON(ctx context.Context, folderID, name string, content []byte) (string, error) {
	return t.upload(ctx, folderID, name, content, "application/json")
}

func (t *ObjectTransport) UploadBytes(ctx context.Context, folderID, name string, content []byte) (string, error) {
	return t.upload(ctx, folderID, name, content, "application/octet-stream")
}

func (t *ObjectTransport) upload(ctx context.Context, folderID, name string, content []byte, contentType string) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	key := folderID + name
	if err := t.client.put(ctx, key, content, contentType); err != nil {
		return "", apperrors.Transport("put", t.target+"/"+key, err)
	}
	return key, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, apperrors.ErrNotFound)
}
