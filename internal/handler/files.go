package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/jun/teledrive/internal/adapter"
	"github.com/jun/teledrive/internal/logging"
	"github.com/jun/teledrive/internal/metrics"
	"github.com/jun/teledrive/internal/model"
	"github.com/jun/teledrive/internal/session"
	"github.com/jun/teledrive/internal/staging"
	"github.com/jun/teledrive/internal/vfs"
)

const (
	DefaultPageSize  = 100
	DefaultScanLimit = 1000
)

// FileOptions tunes FileHandler.
type FileOptions struct {
	// UploadDir is where uploads are staged; empty means os.TempDir.
	UploadDir string
	// PageSize is the number of messages fetched per listing call.
	PageSize int
	// ScanLimit caps the messages summed by Storage.
	ScanLimit int
}

// FileHandler serves the virtual file system.
type FileHandler struct {
	provider adapter.StorageProvider
	sessions *session.Manager
	codec    vfs.Codec
	opts     FileOptions
}

// NewFileHandler creates a new FileHandler.
func NewFileHandler(provider adapter.StorageProvider, sessions *session.Manager, opts FileOptions) *FileHandler {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.ScanLimit <= 0 {
		opts.ScanLimit = DefaultScanLimit
	}
	return &FileHandler{
		provider: provider,
		sessions: sessions,
		codec:    vfs.DefaultCodec,
		opts:     opts,
	}
}

// getStorageAdapter opens the caller's storage.
func (h *FileHandler) getStorageAdapter(ctx context.Context, req events.APIGatewayProxyRequest) (adapter.StorageAdapter, error) {
	blob, err := GetSession(ctx, req, h.sessions)
	if err != nil {
		return nil, err
	}
	storage, err := h.provider.GetAdapter(ctx, blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errUnauthorized, err)
	}
	return storage, nil
}

// List returns the children of ?path found in one page of history.
func (h *FileHandler) List(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	storage, err := h.getStorageAdapter(ctx, req)
	if err != nil {
		return fail(ctx, "list", err), nil
	}

	dir := vfs.CleanDir(vfs.Path(req.QueryStringParameters["path"]))
	offsetID := 0
	if raw := req.QueryStringParameters["offsetId"]; raw != "" {
		offsetID, err = strconv.Atoi(raw)
		if err != nil || offsetID < 0 {
			return fail(ctx, "list", fmt.Errorf("%w: invalid offsetId %q", errBadRequest, raw)), nil
		}
	}

	page, err := storage.ListMessages(ctx, offsetID, h.opts.PageSize)
	if err != nil {
		return fail(ctx, "list", err), nil
	}
	listing := h.codec.List(page.Messages, dir)

	return jsonResponse(http.StatusOK, model.ListResponse{
		Success:      true,
		Files:        listing.Records,
		NextOffsetID: listing.NextOffsetID,
		HasMore:      page.HasMore,
	}), nil
}

// Upload stores the multipart "file" part under the "path" directory.
func (h *FileHandler) Upload(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	storage, err := h.getStorageAdapter(ctx, req)
	if err != nil {
		return fail(ctx, "upload", err), nil
	}

	form, err := h.readUpload(req)
	if err != nil {
		return fail(ctx, "upload", err), nil
	}
	defer form.file.Release()

	path, err := h.codec.JoinPath(form.dir, form.fileName)
	if err != nil {
		return fail(ctx, "upload", err), nil
	}
	caption, err := h.codec.Encode(path, vfs.KindFile)
	if err != nil {
		return fail(ctx, "upload", err), nil
	}

	metrics.RecordUpload(form.file.Size)
	msg, err := storage.SendFile(ctx, form.file.Path, form.fileName, caption)
	if err != nil {
		return fail(ctx, "upload", err), nil
	}
	logging.WithContext(ctx).Info("file uploaded",
		zap.Int("id", msg.ID),
		zap.String("path", string(path)),
		zap.Int64("size", form.file.Size),
	)

	return jsonResponse(http.StatusOK, model.UploadResponse{
		Success: true,
		Result:  h.recordFor(*msg, form.dir),
	}), nil
}

// recordFor renders a message as it would appear when listing dir.
func (h *FileHandler) recordFor(msg vfs.Message, dir vfs.Path) vfs.Record {
	if l := h.codec.List([]vfs.Message{msg}, dir); len(l.Records) == 1 {
		return l.Records[0]
	}
	return vfs.Record{ID: msg.ID, Size: msg.Size, Date: msg.Date, Caption: msg.Caption, Type: vfs.KindFile.String()}
}

type uploadForm struct {
	dir      vfs.Path
	fileName string
	file     *staging.File
}

// readUpload streams the file part to a staged temp file. On error no
// temp file is left behind.
func (h *FileHandler) readUpload(req events.APIGatewayProxyRequest) (form uploadForm, err error) {
	mediaType, params, err := mime.ParseMediaType(GetHeader(req, "Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		return form, fmt.Errorf("%w: expected multipart/form-data", errBadRequest)
	}
	body, err := requestBody(req)
	if err != nil {
		return form, err
	}

	defer func() {
		if err != nil {
			form.file.Release()
			form.file = nil
		}
	}()

	mr := multipart.NewReader(bytes.NewReader(body), params["boundary"])
	for {
		part, perr := mr.NextPart()
		if errors.Is(perr, io.EOF) {
			break
		}
		if perr != nil {
			return form, fmt.Errorf("%w: malformed multipart body: %v", errBadRequest, perr)
		}
		switch part.FormName() {
		case "path":
			v, rerr := io.ReadAll(io.LimitReader(part, 4096))
			if rerr != nil {
				return form, fmt.Errorf("%w: %v", errBadRequest, rerr)
			}
			form.dir = vfs.Path(v)
		case "file":
			if form.file != nil {
				return form, fmt.Errorf("%w: more than one file", errBadRequest)
			}
			form.fileName = part.FileName()
			f, serr := staging.Stage(h.opts.UploadDir, part)
			if serr != nil {
				return form, serr
			}
			form.file = f
		}
		part.Close()
	}

	if form.file == nil || form.fileName == "" {
		return form, fmt.Errorf("%w: file is required", errBadRequest)
	}
	form.dir = vfs.CleanDir(form.dir)
	return form, nil
}

// Delete removes a message.
func (h *FileHandler) Delete(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	storage, err := h.getStorageAdapter(ctx, req)
	if err != nil {
		return fail(ctx, "delete", err), nil
	}

	var body model.DeleteRequest
	if err := decodeJSON(req, &body); err != nil {
		return fail(ctx, "delete", err), nil
	}
	if body.ID <= 0 {
		return fail(ctx, "delete", fmt.Errorf("%w: id is required", errBadRequest)), nil
	}

	if err := storage.DeleteMessage(ctx, body.ID); err != nil {
		return fail(ctx, "delete", err), nil
	}
	return jsonResponse(http.StatusOK, model.Response{Success: true}), nil
}

// Edit replaces a message caption, renaming or moving the entry.
func (h *FileHandler) Edit(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	storage, err := h.getStorageAdapter(ctx, req)
	if err != nil {
		return fail(ctx, "edit", err), nil
	}

	var body model.EditRequest
	if err := decodeJSON(req, &body); err != nil {
		return fail(ctx, "edit", err), nil
	}
	if body.ID <= 0 {
		return fail(ctx, "edit", fmt.Errorf("%w: id is required", errBadRequest)), nil
	}
	decoded, ok := h.codec.Decode(body.NewCaption)
	if !ok {
		return fail(ctx, "edit", fmt.Errorf("%w: caption must start with %q", vfs.ErrInvalidPath, h.codec.Prefix)), nil
	}
	if err := h.codec.Validate(decoded.Path); err != nil {
		return fail(ctx, "edit", err), nil
	}

	if err := storage.EditCaption(ctx, body.ID, body.NewCaption); err != nil {
		return fail(ctx, "edit", err), nil
	}
	return jsonResponse(http.StatusOK, model.Response{Success: true}), nil
}

// Preview returns the JPEG thumbnail of a message.
func (h *FileHandler) Preview(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	storage, err := h.getStorageAdapter(ctx, req)
	if err != nil {
		return fail(ctx, "preview", err), nil
	}

	id, err := messageID(req)
	if err != nil {
		return fail(ctx, "preview", err), nil
	}

	var buf bytes.Buffer
	if err := storage.DownloadThumbnail(ctx, id, &buf); err != nil {
		return fail(ctx, "preview", err), nil
	}

	return events.APIGatewayProxyResponse{
		StatusCode:      http.StatusOK,
		Body:            base64.StdEncoding.EncodeToString(buf.Bytes()),
		IsBase64Encoded: true,
		Headers: map[string]string{
			"Content-Type":  "image/jpeg",
			"Cache-Control": "private, max-age=3600",
		},
	}, nil
}

// Download returns the attachment of a stored file. Folders and messages
// that are not stored files are refused.
func (h *FileHandler) Download(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	storage, err := h.getStorageAdapter(ctx, req)
	if err != nil {
		return fail(ctx, "download", err), nil
	}

	id, err := messageID(req)
	if err != nil {
		return fail(ctx, "download", err), nil
	}

	msg, err := storage.GetMessage(ctx, id)
	if err != nil {
		return fail(ctx, "download", err), nil
	}
	decoded, ok := h.codec.Decode(msg.Caption)
	if !ok || !msg.HasMedia {
		return fail(ctx, "download", fmt.Errorf("message %d: %w", id, adapter.ErrNotFound)), nil
	}
	if decoded.Kind == vfs.KindDirectory {
		return fail(ctx, "download", fmt.Errorf("%w: folders cannot be downloaded", errBadRequest)), nil
	}

	var buf bytes.Buffer
	if err := storage.DownloadFile(ctx, id, &buf); err != nil {
		return fail(ctx, "download", err), nil
	}

	name := path.Base(string(decoded.Path))
	contentType := mime.TypeByExtension(strings.ToLower(path.Ext(name)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": name})
	if disposition == "" {
		disposition = "attachment"
	}
	return events.APIGatewayProxyResponse{
		StatusCode:      http.StatusOK,
		Body:            base64.StdEncoding.EncodeToString(buf.Bytes()),
		IsBase64Encoded: true,
		Headers: map[string]string{
			"Content-Type":        contentType,
			"Content-Disposition": disposition,
			"Cache-Control":       "private, no-store",
		},
	}, nil
}

// messageID parses the {id} path parameter.
func messageID(req events.APIGatewayProxyRequest) (int, error) {
	raw := req.PathParameters["id"]
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", errBadRequest, raw)
	}
	return id, nil
}

// CreateFolder stores an empty placeholder message for a new directory.
func (h *FileHandler) CreateFolder(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	storage, err := h.getStorageAdapter(ctx, req)
	if err != nil {
		return fail(ctx, "create_folder", err), nil
	}

	var body model.CreateFolderRequest
	if err := decodeJSON(req, &body); err != nil {
		return fail(ctx, "create_folder", err), nil
	}
	path, err := h.codec.JoinPath(vfs.Path(body.CurrentPath), strings.TrimSpace(body.FolderName))
	if err != nil {
		return fail(ctx, "create_folder", err), nil
	}
	caption, err := h.codec.Encode(path, vfs.KindDirectory)
	if err != nil {
		return fail(ctx, "create_folder", err), nil
	}

	f, err := staging.Stage(h.opts.UploadDir, strings.NewReader(""))
	if err != nil {
		return fail(ctx, "create_folder", err), nil
	}
	defer f.Release()

	if _, err := storage.SendFile(ctx, f.Path, h.codec.Placeholder, caption); err != nil {
		return fail(ctx, "create_folder", err), nil
	}
	return jsonResponse(http.StatusOK, model.Response{Success: true, Message: "Folder created successfully"}), nil
}

// Storage estimates the bytes used by stored entries over the most recent
// ScanLimit messages.
func (h *FileHandler) Storage(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	storage, err := h.getStorageAdapter(ctx, req)
	if err != nil {
		return fail(ctx, "storage", err), nil
	}

	var (
		total    int64
		scanned  int
		offsetID int
	)
	for scanned < h.opts.ScanLimit {
		limit := min(DefaultPageSize, h.opts.ScanLimit-scanned)
		page, err := storage.ListMessages(ctx, offsetID, limit)
		if err != nil {
			return fail(ctx, "storage", err), nil
		}
		if len(page.Messages) == 0 {
			break
		}
		total += h.codec.TotalSize(page.Messages)
		scanned += len(page.Messages)
		offsetID = page.Messages[len(page.Messages)-1].ID
		if !page.HasMore {
			break
		}
	}

	return jsonResponse(http.StatusOK, model.StorageResponse{
		Success:     true,
		TotalSize:   total,
		Scanned:     scanned,
		Approximate: true,
	}), nil
}
