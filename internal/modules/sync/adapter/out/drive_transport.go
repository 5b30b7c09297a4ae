package out

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	syncout "studysync/internal/modules/sync/port/out"
	apperrors "studysync/internal/platform/errors"
)

const (
	driveFolderMime = "application/vnd.google-apps.folder"
	driveListFields = "nextPageToken, files(id, name, size, modifiedTime, mimeType)"
)

// DriveTransport stores the remote tree in Google Drive. Entry ids are Drive
// file ids.
type DriveTransport struct {
	files *drive.FilesService
}

func NewDriveTransport(ctx context.Context, credentialsFile string, opts ...option.ClientOption) (*DriveTransport, error) {
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	opts = append(opts, option.WithScopes(drive.DriveFileScope))
	srv, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive client: %w", err)
	}
	return &DriveTransport{files: srv.Files}, nil
}

func (t *DriveTransport) RootFolder(ctx context.Context, name string) (string, error) {
	return t.EnsureFolder(ctx, "root", name)
}

func (t *DriveTransport) EnsureFolder(ctx context.Context, parentID, name string) (string, error) {
	q := fmt.Sprintf("name = '%s' and '%s' in parents and mimeType = '%s' and trashed = false", driveQuote(name), driveQuote(parentID), driveFolderMime)
	found, err := t.query(ctx, q)
	if err != nil {
		return "", apperrors.Transport("find folder", name, err)
	}
	if len(found) > 0 {
		return found[0].ID, nil
	}
	created, err := t.files.Create(&drive.File{Name: name, MimeType: driveFolderMime, Parents: []string{parentID}}).
		Fields("id").Context(ctx).Do()
	if err != nil {
		return "", apperrors.Transport("create folder", name, err)
	}
	return created.Id, nil
}

func (t *DriveTransport) ListFolders(ctx context.Context, parentID string) ([]syncout.Entry, error) {
	q := fmt.Sprintf("'%s' in parents and mimeType = '%s' and trashed = false", driveQuote(parentID), driveFolderMime)
	entries, err := t.query(ctx, q)
	if err != nil {
		return nil, t.listError(parentID, err)
	}
	return entries, nil
}

func (t *DriveTransport) ListFiles(ctx context.Context, folderID string) ([]syncout.Entry, error) {
	q := fmt.Sprintf("'%s' in parents and mimeType != '%s' and trashed = false", driveQuote(folderID), driveFolderMime)
	entries, err := t.query(ctx, q)
	if err != nil {
		return nil, t.listError(folderID, err)
	}
	return entries, nil
}

func (t *DriveTransport) listError(id string, err error) error {
	if isDriveNotFound(err) {
		return fmt.Errorf("%w: folder %s", apperrors.ErrNotFound, id)
	}
	return apperrors.Transport("list", id, err)
}

func (t *DriveTransport) query(ctx context.Context, q string) ([]syncout.Entry, error) {
	var out []syncout.Entry
	call := t.files.List().Q(q).Fields(driveListFields).Spaces("drive").Context(ctx)
	for {
		page, err := call.Do()
		if err != nil {
			return nil, err
		}
		for _, f := range page.Files {
			entry := syncout.Entry{ID: f.Id, Name: f.Name, Size: f.Size}
			if ts, err := time.Parse(time.RFC3339, f.ModifiedTime); err == nil {
				entry.ModifiedAt = ts.UTC()
			}
			out = append(out, entry)
		}
		if page.NextPageToken == "" {
			return out, nil
		}
		call = call.PageToken(page.NextPageToken)
	}
}

func (t *DriveTransport) Download(ctx context.Context, fileID string) ([]byte, error) {
	resp, err := t.files.Get(fileID).Context(ctx).Download()
	if err != nil {
		if isDriveNotFound(err) {
			return nil, fmt.Errorf("%w: file %s", apperrors.ErrNotFound, fileID)
		}
		return nil, apperrors.Transport("download", fileID, err)
	}
	defer resp.Body.Close()
	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Transport("download", fileID, err)
	}
	return content, nil
}

func (t *DriveTransport) UploadJSON(ctx context.Context, folderID, name string, content []byte) (string, error) {
	return t.upload(ctx, folderID, name, content, "application/json")
}

func (t *DriveTransport) UploadBytes(ctx context.Context, folderID, name string, content []byte) (string, error) {
	return t.upload(ctx, folderID, name, content, "application/octet-stream")
}

// upload replaces the content of an existing file with the same name so the
// folder never holds two copies.
func (t *DriveTransport) upload(ctx context.Context, folderID, name string, content []byte, contentType string) (string, error) {
	q := fmt.Sprintf("name = '%s' and '%s' in parents and trashed = false", driveQuote(name), driveQuote(folderID))
	existing, err := t.query(ctx, q)
	if err != nil {
		return "", apperrors.Transport("find file", name, err)
	}
	media := googleapi.ContentType(contentType)
	if len(existing) > 0 {
		updated, err := t.files.Update(existing[0].ID, &drive.File{}).
			Media(bytes.NewReader(content), media).Fields("id").Context(ctx).Do()
		if err != nil {
			return "", apperrors.Transport("update", name, err)
		}
		return updated.Id, nil
	}
	created, err := t.files.Create(&drive.File{Name: name, Parents: []string{folderID}, MimeType: contentType}).
		Media(bytes.NewReader(content), media).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", apperrors.Transport("create", name, err)
	}
	return created.Id, nil
}

func driveQuote(value string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(value)
}

func isDriveNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
