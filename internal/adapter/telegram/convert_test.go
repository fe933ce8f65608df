package telegram

import (
	"testing"
	"time"

	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jun/teledrive/internal/adapter"
	"github.com/jun/teledrive/internal/vfs"
)

func docMessage(id int, caption string, size int64, thumbs ...tg.PhotoSizeClass) *tg.Message {
	msg := &tg.Message{ID: id, Message: caption, Date: 1700000000}
	msg.SetMedia(&tg.MessageMediaDocument{
		Document: &tg.Document{ID: 77, AccessHash: 88, FileReference: []byte{1}, Size: size, Thumbs: thumbs},
	})
	return msg
}

func TestPickThumb(t *testing.T) {
	sizes := []tg.PhotoSizeClass{
		&tg.PhotoStrippedSize{Type: "i", Bytes: []byte{1, 2}},
		&tg.PhotoSize{Type: "m", W: 320, H: 320, Size: 9000},
		&tg.PhotoSize{Type: "s", W: 90, H: 90, Size: 1000},
		&tg.PhotoSizeProgressive{Type: "y", W: 1280, H: 1280, Sizes: []int{100, 2000}},
	}
	got, ok := pickThumb(sizes)
	require.True(t, ok)
	assert.Equal(t, "s", got.Type)
	assert.Nil(t, got.Cached)

	_, ok = pickThumb([]tg.PhotoSizeClass{&tg.PhotoStrippedSize{Type: "i"}})
	assert.False(t, ok, "stripped thumbnails are not JPEG files")

	got, ok = pickThumb([]tg.PhotoSizeClass{&tg.PhotoCachedSize{Type: "s", W: 10, H: 10, Bytes: []byte{0xff, 0xd8}}})
	require.True(t, ok)
	assert.Equal(t, []byte{0xff, 0xd8}, got.Cached)
}

func TestConvert(t *testing.T) {
	msg := docMessage(5, "filestore4u_/a.pdf", 1234, &tg.PhotoSize{Type: "s", W: 90, H: 90})
	got := convert(msg)
	assert.Equal(t, vfs.Message{
		ID:           5,
		Caption:      "filestore4u_/a.pdf",
		Size:         1234,
		Date:         time.Unix(1700000000, 0).UTC(),
		HasMedia:     true,
		HasThumbnail: true,
	}, got)

	text := convert(&tg.Message{ID: 6, Message: "hello world", Date: 1700000000})
	assert.False(t, text.HasMedia)
	assert.Equal(t, "hello world", text.Caption)

	photo := &tg.Message{ID: 7, Message: "filestore4u_/p.jpg"}
	photo.SetMedia(&tg.MessageMediaPhoto{Photo: &tg.Photo{Sizes: []tg.PhotoSizeClass{
		&tg.PhotoSize{Type: "s", W: 90, H: 90, Size: 500},
		&tg.PhotoSizeProgressive{Type: "y", W: 1280, H: 1280, Sizes: []int{100, 4000}},
	}}})
	p := convert(photo)
	assert.True(t, p.HasMedia)
	assert.True(t, p.HasThumbnail)
	assert.Equal(t, int64(4000), p.Size)

	svc := convert(&tg.MessageService{ID: 8})
	assert.Equal(t, 8, svc.ID)
	assert.False(t, svc.HasMedia)
}

func TestHistoryPage(t *testing.T) {
	slice := &tg.MessagesMessagesSlice{
		Count: 10,
		Messages: []tg.MessageClass{
			docMessage(9, "filestore4u_/a", 1),
			&tg.MessageService{ID: 8},
		},
	}
	page := historyPage(slice, 2)
	require.Len(t, page.Messages, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, 8, page.Messages[1].ID, "service messages keep their ID for the cursor")

	page = historyPage(slice, 100)
	assert.False(t, page.HasMore)

	page = historyPage(&tg.MessagesMessages{Messages: []tg.MessageClass{docMessage(1, "x", 1)}}, 1)
	assert.False(t, page.HasMore, "complete responses have no more history")

	page = historyPage(&tg.MessagesMessagesNotModified{}, 10)
	assert.NotNil(t, page.Messages)
	assert.Empty(t, page.Messages)
}

func TestFindMessage(t *testing.T) {
	res := &tg.MessagesMessages{Messages: []tg.MessageClass{&tg.MessageEmpty{ID: 3}}}
	_, ok := findMessage(res, 3)
	assert.False(t, ok, "deleted messages come back empty")

	res = &tg.MessagesMessages{Messages: []tg.MessageClass{docMessage(3, "x", 1)}}
	msg, ok := findMessage(res, 3)
	require.True(t, ok)
	assert.Equal(t, 3, msg.ID)
}

func TestSentMessage(t *testing.T) {
	full := &tg.Updates{Updates: []tg.UpdateClass{
		&tg.UpdateMessageID{ID: 42, RandomID: 1},
		&tg.UpdateNewMessage{Message: docMessage(42, "filestore4u_/a", 10)},
	}}
	msg, ok := sentMessage(full)
	require.True(t, ok)
	assert.Equal(t, 42, msg.ID)
	assert.Equal(t, int64(10), convert(msg).Size)

	idOnly := &tg.Updates{Updates: []tg.UpdateClass{&tg.UpdateMessageID{ID: 43}}}
	msg, ok = sentMessage(idOnly)
	require.True(t, ok)
	assert.Equal(t, 43, msg.ID)

	msg, ok = sentMessage(&tg.UpdateShortSentMessage{ID: 44, Date: 1700000000})
	require.True(t, ok)
	assert.Equal(t, 44, msg.ID)

	_, ok = sentMessage(&tg.UpdatesTooLong{})
	assert.False(t, ok)
}

func TestThumbLocation(t *testing.T) {
	loc, cached, err := thumbLocation(docMessage(1, "x", 1, &tg.PhotoSize{Type: "m", W: 320, H: 320}))
	require.NoError(t, err)
	assert.Nil(t, cached)
	assert.Equal(t, &tg.InputDocumentFileLocation{
		ID: 77, AccessHash: 88, FileReference: []byte{1}, ThumbSize: "m",
	}, loc)

	_, _, err = thumbLocation(docMessage(1, "x", 1))
	assert.ErrorIs(t, err, adapter.ErrNoThumbnail)

	_, _, err = thumbLocation(&tg.Message{ID: 2, Message: "text"})
	assert.ErrorIs(t, err, adapter.ErrNoThumbnail)
}

func TestFileLocation(t *testing.T) {
	loc, ok := fileLocation(docMessage(1, "filestore4u_/a.pdf", 10))
	require.True(t, ok)
	assert.Equal(t, &tg.InputDocumentFileLocation{ID: 77, AccessHash: 88, FileReference: []byte{1}}, loc)

	photo := &tg.Message{ID: 2}
	photo.SetMedia(&tg.MessageMediaPhoto{Photo: &tg.Photo{ID: 5, AccessHash: 6, Sizes: []tg.PhotoSizeClass{
		&tg.PhotoStrippedSize{Type: "i"},
		&tg.PhotoSize{Type: "s", W: 90, H: 90},
		&tg.PhotoSizeProgressive{Type: "y", W: 1280, H: 960},
		&tg.PhotoSize{Type: "m", W: 320, H: 240},
	}}})
	loc, ok = fileLocation(photo)
	require.True(t, ok)
	assert.Equal(t, "y", loc.(*tg.InputPhotoFileLocation).ThumbSize)

	_, ok = fileLocation(&tg.Message{ID: 3, Message: "text only"})
	assert.False(t, ok)
}
