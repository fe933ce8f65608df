// Package memory implements the storage facade for demo accounts and local
// development. Message history lives in a map, or in DynamoDB when a client
// is configured so that it survives restarts and Lambda cold starts.
package memory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jun/teledrive/internal/adapter"
	"github.com/jun/teledrive/internal/vfs"
)

const (
	maxDemoContentSize = 256 * 1024 // 256KB
	maxDemoItemCount   = 50
	demoItemTTL        = 24 * time.Hour

	// counterSuffix keys the per-user ID counter item. It has no user_id
	// attribute, so user scans never return it.
	counterSuffix = "#next_id"
)

// DynamoClient is the subset of *dynamodb.Client used by the memory adapter.
type DynamoClient interface {
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// MessageItem is the DynamoDB representation of a stored message.
type MessageItem struct {
	PK           string    `dynamodbav:"pk"`
	UserID       string    `dynamodbav:"user_id"`
	ID           int       `dynamodbav:"id"`
	Caption      string    `dynamodbav:"caption"`
	Size         int64     `dynamodbav:"size"`
	Date         time.Time `dynamodbav:"date"`
	MIMEType     string    `dynamodbav:"mime_type"`
	HasThumbnail bool      `dynamodbav:"has_thumbnail"`
	Content      []byte    `dynamodbav:"content"`
	TTL          int64     `dynamodbav:"ttl"`
}

func (it *MessageItem) message() vfs.Message {
	return vfs.Message{
		ID:           it.ID,
		Caption:      it.Caption,
		Size:         it.Size,
		Date:         it.Date,
		HasMedia:     true,
		HasThumbnail: it.HasThumbnail,
	}
}

// MemoryAdapter implements adapter.StorageAdapter.
// If client is nil, it uses an in-memory map (for tests).
// If client is set, it uses DynamoDB (for dev mode persistence).
type MemoryAdapter struct {
	client    DynamoClient
	tableName string
	userID    string

	now func() time.Time

	// Fallback for tests
	items map[int]*MessageItem
	seq   *atomic.Int64
	mu    sync.RWMutex
}

// NewMemoryAdapter creates an adapter for userID.
func NewMemoryAdapter(client DynamoClient, tableName, userID string) *MemoryAdapter {
	return newMemoryAdapter(client, tableName, userID, new(atomic.Int64), time.Now)
}

// newMemoryAdapter lets the provider share one ID sequence between its
// adapters, so an account dropped from memory can never hand out an ID
// that is still referenced.
func newMemoryAdapter(client DynamoClient, tableName, userID string, seq *atomic.Int64, now func() time.Time) *MemoryAdapter {
	return &MemoryAdapter{
		client:    client,
		tableName: tableName,
		userID:    userID,
		now:       now,
		items:     make(map[int]*MessageItem),
		seq:       seq,
	}
}

// expired reports whether the item outlived demoItemTTL. DynamoDB deletes
// expired items lazily, so both stores filter on read.
func (m *MemoryAdapter) expired(it *MessageItem) bool {
	return it.TTL != 0 && it.TTL <= m.now().Unix()
}

func (m *MemoryAdapter) pk(id int) string {
	return m.userID + "#" + strconv.Itoa(id)
}

// all returns every item of the user, newest first.
func (m *MemoryAdapter) all(ctx context.Context) ([]*MessageItem, error) {
	var items []*MessageItem
	if m.client == nil {
		m.mu.Lock()
		for id, it := range m.items {
			if m.expired(it) {
				delete(m.items, id)
				continue
			}
			cp := *it
			items = append(items, &cp)
		}
		m.mu.Unlock()
	} else {
		var startKey map[string]types.AttributeValue
		for {
			out, err := m.client.Scan(ctx, &dynamodb.ScanInput{
				TableName:        aws.String(m.tableName),
				FilterExpression: aws.String("user_id = :uid"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":uid": &types.AttributeValueMemberS{Value: m.userID},
				},
				ExclusiveStartKey: startKey,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to scan messages: %w", err)
			}
			var page []*MessageItem
			if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
				return nil, fmt.Errorf("failed to unmarshal messages: %w", err)
			}
			for _, it := range page {
				if !m.expired(it) {
					items = append(items, it)
				}
			}
			if len(out.LastEvaluatedKey) == 0 {
				break
			}
			startKey = out.LastEvaluatedKey
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID > items[j].ID })
	return items, nil
}

func (m *MemoryAdapter) ListMessages(ctx context.Context, offsetID, limit int) (adapter.Page, error) {
	if limit <= 0 {
		limit = 100
	}
	items, err := m.all(ctx)
	if err != nil {
		return adapter.Page{}, err
	}
	page := adapter.Page{Messages: []vfs.Message{}}
	for _, it := range items {
		if offsetID > 0 && it.ID >= offsetID {
			continue
		}
		if len(page.Messages) == limit {
			page.HasMore = true
			break
		}
		page.Messages = append(page.Messages, it.message())
	}
	return page, nil
}

func (m *MemoryAdapter) get(ctx context.Context, id int) (*MessageItem, error) {
	if m.client == nil {
		m.mu.RLock()
		defer m.mu.RUnlock()
		it, ok := m.items[id]
		if !ok || m.expired(it) {
			return nil, adapter.ErrNotFound
		}
		cp := *it
		return &cp, nil
	}

	out, err := m.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(m.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: m.pk(id)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	if out.Item == nil {
		return nil, adapter.ErrNotFound
	}
	var it MessageItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}
	if m.expired(&it) {
		return nil, adapter.ErrNotFound
	}
	return &it, nil
}

func (m *MemoryAdapter) GetMessage(ctx context.Context, id int) (*vfs.Message, error) {
	it, err := m.get(ctx, id)
	if err != nil {
		return nil, err
	}
	msg := it.message()
	return &msg, nil
}

func (m *MemoryAdapter) SendFile(ctx context.Context, localPath, fileName, caption string) (*vfs.Message, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, maxDemoContentSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(content) > maxDemoContentSize {
		return nil, fmt.Errorf("%w: file too large (max %d bytes)", adapter.ErrLimitExceeded, maxDemoContentSize)
	}

	items, err := m.all(ctx)
	if err != nil {
		return nil, err
	}
	if len(items) >= maxDemoItemCount {
		return nil, fmt.Errorf("%w: item limit reached for demo mode (max %d items)", adapter.ErrLimitExceeded, maxDemoItemCount)
	}

	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(fileName)))
	it := &MessageItem{
		UserID:       m.userID,
		Caption:      caption,
		Size:         int64(len(content)),
		Date:         m.now().UTC().Truncate(time.Second),
		MIMEType:     mimeType,
		HasThumbnail: mimeType == "image/jpeg" && len(content) > 0,
		Content:      content,
		TTL:          m.now().Add(demoItemTTL).Unix(),
	}

	if m.client == nil {
		m.mu.Lock()
		it.ID = int(m.seq.Add(1))
		it.PK = m.pk(it.ID)
		m.items[it.ID] = it
		m.mu.Unlock()
		msg := it.message()
		return &msg, nil
	}

	if it.ID, err = m.allocateID(ctx); err != nil {
		return nil, err
	}
	it.PK = m.pk(it.ID)
	av, err := attributevalue.MarshalMap(it)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	_, err = m.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(m.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(pk)"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}
	msg := it.message()
	return &msg, nil
}

// allocateID increments the user's counter item. IDs are never reused,
// even after the newest message is deleted.
func (m *MemoryAdapter) allocateID(ctx context.Context) (int, error) {
	out, err := m.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(m.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: m.userID + counterSuffix},
		},
		UpdateExpression:         aws.String("ADD next_id :one SET #ttl = :ttl"),
		ExpressionAttributeNames: map[string]string{"#ttl": "ttl"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
			":ttl": &types.AttributeValueMemberN{Value: strconv.FormatInt(m.now().Add(demoItemTTL).Unix(), 10)},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to allocate message id: %w", err)
	}
	var counter struct {
		NextID int `dynamodbav:"next_id"`
	}
	if err := attributevalue.UnmarshalMap(out.Attributes, &counter); err != nil {
		return 0, fmt.Errorf("failed to unmarshal message id: %w", err)
	}
	if counter.NextID <= 0 {
		return 0, fmt.Errorf("invalid message id %d", counter.NextID)
	}
	return counter.NextID, nil
}

func (m *MemoryAdapter) DeleteMessage(ctx context.Context, id int) error {
	if m.client == nil {
		m.mu.Lock()
		defer m.mu.Unlock()
		if it, ok := m.items[id]; !ok || m.expired(it) {
			return adapter.ErrNotFound
		}
		delete(m.items, id)
		return nil
	}

	_, err := m.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(m.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: m.pk(id)},
		},
		ConditionExpression: aws.String("attribute_exists(pk)"),
	})
	return mapConditionErr(err, "delete")
}

func (m *MemoryAdapter) EditCaption(ctx context.Context, id int, caption string) error {
	if m.client == nil {
		m.mu.Lock()
		defer m.mu.Unlock()
		it, ok := m.items[id]
		if !ok || m.expired(it) {
			return adapter.ErrNotFound
		}
		it.Caption = caption
		return nil
	}

	_, err := m.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(m.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: m.pk(id)},
		},
		UpdateExpression:    aws.String("SET caption = :caption"),
		ConditionExpression: aws.String("attribute_exists(pk)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":caption": &types.AttributeValueMemberS{Value: caption},
		},
	})
	return mapConditionErr(err, "edit")
}

func (m *MemoryAdapter) DownloadThumbnail(ctx context.Context, id int, w io.Writer) error {
	it, err := m.get(ctx, id)
	if err != nil {
		return err
	}
	if !it.HasThumbnail {
		return adapter.ErrNoThumbnail
	}
	_, err = w.Write(it.Content)
	return err
}

func (m *MemoryAdapter) DownloadFile(ctx context.Context, id int, w io.Writer) error {
	it, err := m.get(ctx, id)
	if err != nil {
		return err
	}
	_, err = w.Write(it.Content)
	return err
}

func mapConditionErr(err error, op string) error {
	if err == nil {
		return nil
	}
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return adapter.ErrNotFound
	}
	return fmt.Errorf("failed to %s message: %w", op, err)
}
