package telegram

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/telegram/uploader"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"

	"github.com/jun/teledrive/internal/adapter"
	"github.com/jun/teledrive/internal/vfs"
)

// Adapter implements adapter.StorageAdapter over one session. Every method
// opens its own connection.
type Adapter struct {
	provider *Provider
	session  []byte
}

func (a *Adapter) run(ctx context.Context, op string, f func(ctx context.Context, api *tg.Client) error) error {
	return a.provider.run(ctx, NewStorage(a.session), op, func(ctx context.Context, client *telegram.Client) error {
		return f(ctx, client.API())
	})
}

func (a *Adapter) ListMessages(ctx context.Context, offsetID, limit int) (adapter.Page, error) {
	if limit <= 0 {
		limit = 100
	}
	var page adapter.Page
	err := a.run(ctx, "list_messages", func(ctx context.Context, api *tg.Client) error {
		res, err := api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
			Peer:     self(),
			OffsetID: offsetID,
			Limit:    limit,
		})
		if err != nil {
			return fmt.Errorf("failed to get history: %w", err)
		}
		page = historyPage(res, limit)
		return nil
	})
	return page, err
}

func (a *Adapter) fetch(ctx context.Context, api *tg.Client, id int) (*tg.Message, error) {
	res, err := api.MessagesGetMessages(ctx, []tg.InputMessageClass{&tg.InputMessageID{ID: id}})
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	msg, ok := findMessage(res, id)
	if !ok {
		return nil, adapter.ErrNotFound
	}
	return msg, nil
}

func (a *Adapter) GetMessage(ctx context.Context, id int) (*vfs.Message, error) {
	var out vfs.Message
	err := a.run(ctx, "get_message", func(ctx context.Context, api *tg.Client) error {
		msg, err := a.fetch(ctx, api, id)
		if err != nil {
			return err
		}
		out = convert(msg)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *Adapter) SendFile(ctx context.Context, localPath, fileName, caption string) (*vfs.Message, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat upload: %w", err)
	}
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(fileName)))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	var out vfs.Message
	err = a.run(ctx, "send_file", func(ctx context.Context, api *tg.Client) error {
		up := uploader.NewUploader(api)
		var (
			file tg.InputFileClass
			err  error
		)
		if info.Size() == 0 {
			// Telegram rejects empty uploads; placeholders carry one byte.
			file, err = up.FromBytes(ctx, fileName, []byte{'\n'})
		} else {
			file, err = up.FromPath(ctx, localPath)
		}
		if err != nil {
			return fmt.Errorf("failed to upload file: %w", err)
		}

		updates, err := api.MessagesSendMedia(ctx, &tg.MessagesSendMediaRequest{
			Peer: self(),
			Media: &tg.InputMediaUploadedDocument{
				File:     file,
				MimeType: mimeType,
				Attributes: []tg.DocumentAttributeClass{
					&tg.DocumentAttributeFilename{FileName: fileName},
				},
			},
			Message:  caption,
			RandomID: rand.Int64(),
		})
		if err != nil {
			return fmt.Errorf("failed to send media: %w", err)
		}

		msg, ok := sentMessage(updates)
		if !ok {
			return fmt.Errorf("unexpected send response %T", updates)
		}
		out = convert(msg)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Short responses carry only the ID.
	out.Caption = caption
	out.HasMedia = true
	if out.Size == 0 {
		out.Size = info.Size()
	}
	if out.Date.IsZero() {
		out.Date = time.Now().UTC().Truncate(time.Second)
	}
	return &out, nil
}

func (a *Adapter) DeleteMessage(ctx context.Context, id int) error {
	return a.run(ctx, "delete_message", func(ctx context.Context, api *tg.Client) error {
		res, err := api.MessagesDeleteMessages(ctx, &tg.MessagesDeleteMessagesRequest{
			Revoke: true,
			ID:     []int{id},
		})
		if err != nil {
			return fmt.Errorf("failed to delete message: %w", err)
		}
		if res.PtsCount == 0 {
			return adapter.ErrNotFound
		}
		return nil
	})
}

func (a *Adapter) EditCaption(ctx context.Context, id int, caption string) error {
	return a.run(ctx, "edit_caption", func(ctx context.Context, api *tg.Client) error {
		_, err := api.MessagesEditMessage(ctx, &tg.MessagesEditMessageRequest{
			Peer:    self(),
			ID:      id,
			Message: caption,
		})
		switch {
		case err == nil, tgerr.Is(err, "MESSAGE_NOT_MODIFIED"):
			return nil
		case tgerr.Is(err, "MESSAGE_ID_INVALID"):
			return adapter.ErrNotFound
		default:
			return fmt.Errorf("failed to edit message: %w", err)
		}
	})
}

func (a *Adapter) DownloadThumbnail(ctx context.Context, id int, w io.Writer) error {
	return a.run(ctx, "download_thumbnail", func(ctx context.Context, api *tg.Client) error {
		msg, err := a.fetch(ctx, api, id)
		if err != nil {
			return err
		}
		loc, cached, err := thumbLocation(msg)
		if err != nil {
			return err
		}
		if cached != nil {
			_, err := w.Write(cached)
			return err
		}
		if _, err := downloader.NewDownloader().Download(api, loc).Stream(ctx, w); err != nil {
			return fmt.Errorf("failed to download thumbnail: %w", err)
		}
		return nil
	})
}

func (a *Adapter) DownloadFile(ctx context.Context, id int, w io.Writer) error {
	return a.run(ctx, "download_file", func(ctx context.Context, api *tg.Client) error {
		msg, err := a.fetch(ctx, api, id)
		if err != nil {
			return err
		}
		loc, ok := fileLocation(msg)
		if !ok {
			return adapter.ErrNotFound
		}
		if _, err := downloader.NewDownloader().Download(api, loc).Stream(ctx, w); err != nil {
			return fmt.Errorf("failed to download file: %w", err)
		}
		return nil
	})
}

// fileLocation resolves the full attachment of a message: the document
// itself, or the largest size of a photo.
func fileLocation(msg *tg.Message) (tg.InputFileLocationClass, bool) {
	media, ok := msg.GetMedia()
	if !ok {
		return nil, false
	}
	switch md := media.(type) {
	case *tg.MessageMediaDocument:
		doc, ok := md.Document.(*tg.Document)
		if !ok {
			return nil, false
		}
		return &tg.InputDocumentFileLocation{
			ID:            doc.ID,
			AccessHash:    doc.AccessHash,
			FileReference: doc.FileReference,
		}, true
	case *tg.MessageMediaPhoto:
		photo, ok := md.Photo.(*tg.Photo)
		if !ok {
			return nil, false
		}
		size, ok := largestSize(photo.Sizes)
		if !ok {
			return nil, false
		}
		return &tg.InputPhotoFileLocation{
			ID:            photo.ID,
			AccessHash:    photo.AccessHash,
			FileReference: photo.FileReference,
			ThumbSize:     size,
		}, true
	}
	return nil, false
}

// thumbLocation resolves the file location of the smallest thumbnail of a
// message's media, or its inline bytes for cached sizes.
func thumbLocation(msg *tg.Message) (tg.InputFileLocationClass, []byte, error) {
	media, ok := msg.GetMedia()
	if !ok {
		return nil, nil, adapter.ErrNoThumbnail
	}
	switch md := media.(type) {
	case *tg.MessageMediaDocument:
		doc, ok := md.Document.(*tg.Document)
		if !ok {
			return nil, nil, adapter.ErrNoThumbnail
		}
		t, ok := pickThumb(doc.Thumbs)
		if !ok {
			return nil, nil, adapter.ErrNoThumbnail
		}
		if t.Cached != nil {
			return nil, t.Cached, nil
		}
		return &tg.InputDocumentFileLocation{
			ID:            doc.ID,
			AccessHash:    doc.AccessHash,
			FileReference: doc.FileReference,
			ThumbSize:     t.Type,
		}, nil, nil
	case *tg.MessageMediaPhoto:
		photo, ok := md.Photo.(*tg.Photo)
		if !ok {
			return nil, nil, adapter.ErrNoThumbnail
		}
		t, ok := pickThumb(photo.Sizes)
		if !ok {
			return nil, nil, adapter.ErrNoThumbnail
		}
		if t.Cached != nil {
			return nil, t.Cached, nil
		}
		return &tg.InputPhotoFileLocation{
			ID:            photo.ID,
			AccessHash:    photo.AccessHash,
			FileReference: photo.FileReference,
			ThumbSize:     t.Type,
		}, nil, nil
	}
	return nil, nil, adapter.ErrNoThumbnail
}
