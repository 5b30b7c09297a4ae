package out

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	syncout "studysync/internal/modules/sync/port/out"
	apperrors "studysync/internal/platform/errors"
)

// FolderTransport keeps the remote tree in a directory, typically one that a
// file sync client mirrors between machines. Entry ids are slash-separated
// paths relative to the filesystem root.
type FolderTransport struct {
	fs billy.Filesystem
}

func NewFolderTransport(dir string) *FolderTransport {
	return NewFolderTransportFS(osfs.New(dir))
}

func NewFolderTransportFS(filesystem billy.Filesystem) *FolderTransport {
	return &FolderTransport{fs: filesystem}
}

func (t *FolderTransport) RootFolder(ctx context.Context, name string) (string, error) {
	return t.EnsureFolder(ctx, "", name)
}

func (t *FolderTransport) EnsureFolder(ctx context.Context, parentID, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := checkName(name); err != nil {
		return "", err
	}
	dir := path.Join(parentID, name)
	if err := t.fs.MkdirAll(dir, 0o755); err != nil {
		return "", apperrors.Transport("mkdir", dir, err)
	}
	return dir, nil
}

func (t *FolderTransport) ListFolders(ctx context.Context, parentID string) ([]syncout.Entry, error) {
	return t.list(ctx, parentID, true)
}

func (t *FolderTransport) ListFiles(ctx context.Context, folderID string) ([]syncout.Entry, error) {
	return t.list(ctx, folderID, false)
}

func (t *FolderTransport) list(ctx context.Context, dir string, folders bool) ([]syncout.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	infos, err := t.fs.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: folder %s", apperrors.ErrNotFound, dir)
		}
		return nil, apperrors.Transport("list", dir, err)
	}
	out := make([]syncout.Entry, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() != folders || strings.HasPrefix(info.Name(), ".") {
			continue
		}
		out = append(out, syncout.Entry{
			ID:         path.Join(dir, info.Name()),
			Name:       info.Name(),
			Size:       info.Size(),
			ModifiedAt: info.ModTime().UTC(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (t *FolderTransport) Download(ctx context.Context, fileID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content, err := util.ReadFile(t.fs, fileID)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: file %s", apperrors.ErrNotFound, fileID)
		}
		return nil, apperrors.Transport("read", fileID, err)
	}
	return content, nil
}

func (t *FolderTransport) UploadJSON(ctx context.Context, folderID, name string, content []byte) (string, error) {
	return t.UploadBytes(ctx, folderID, name, content)
}

// UploadBytes writes through a hidden temp file and renames it into place so
// readers never see a partial file.
func (t *FolderTransport) UploadBytes(ctx context.Context, folderID, name string, content []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := checkName(name); err != nil {
		return "", err
	}
	target := path.Join(folderID, name)
	tmp, err := util.TempFile(t.fs, folderID, "."+name+".tmp-")
	if err != nil {
		return "", apperrors.Transport("write", target, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = t.fs.Remove(tmpName)
		return "", apperrors.Transport("write", target, err)
	}
	if err := tmp.Close(); err != nil {
		_ = t.fs.Remove(tmpName)
		return "", apperrors.Transport("write", target, err)
	}
	if err := t.fs.Rename(tmpName, target); err != nil {
		_ = t.fs.Remove(tmpName)
		return "", apperrors.Transport("rename", target, err)
	}
	return target, nil
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: invalid entry name %q", apperrors.ErrInvalidInput, name)
	}
	return nil
}
