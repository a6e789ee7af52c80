package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"

	"github.com/fpang/pizero-camera/internal/analysis"
)

// DynamoDB key constants.
const (
	pkPrefix = "DEVICE#"
	skSeen   = "SEEN"
)

// DynamoAPI is the subset of *dynamodb.Client used by DynamoStore.
type DynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// DynamoStore implements SeenStore for one device.
type DynamoStore struct {
	client    DynamoAPI
	tableName string
	deviceID  string
	now       func() time.Time
}

// Compile-time interface checks.
var (
	_ SeenStore     = (*DynamoStore)(nil)
	_ analysis.Sink = (*DynamoStore)(nil)
	_ DynamoAPI     = (*dynamodb.Client)(nil)
)

// NewDynamoStore creates a DynamoStore writing the item for deviceID.
func NewDynamoStore(client DynamoAPI, tableName, deviceID string) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
		deviceID:  deviceID,
		now:       time.Now,
	}
}

// TableName returns the backing table.
func (s *DynamoStore) TableName() string {
	return s.tableName
}

func devicePK(deviceID string) string {
	return pkPrefix + deviceID
}

func (s *DynamoStore) key() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: devicePK(s.deviceID)},
		"SK": &types.AttributeValueMemberS{Value: skSeen},
	}
}

// PutSeen overwrites the device's item (full-item replacement).
func (s *DynamoStore) PutSeen(ctx context.Context, rec analysis.Record) error {
	seen := Summarize(s.deviceID, rec, s.now().Unix())
	item, err := attributevalue.MarshalMap(seen)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	for k, v := range s.key() {
		item[k] = v
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("PutItem PK=%s SK=%s: %w", devicePK(s.deviceID), skSeen, err)
	}

	log.Debug().
		Str("table", s.tableName).
		Str("imageKey", seen.ImageKey).
		Str("labels", strings.Join(seen.Labels, ",")).
		Msg("Last seen mirrored to DynamoDB")
	return nil
}

// GetSeen reads the device's item. Returns nil, nil if it does not exist.
func (s *DynamoStore) GetSeen(ctx context.Context) (*Seen, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key:       s.key(),
	})
	if err != nil {
		return nil, fmt.Errorf("GetItem PK=%s SK=%s: %w", devicePK(s.deviceID), skSeen, err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var seen Seen
	if err := attributevalue.UnmarshalMap(result.Item, &seen); err != nil {
		return nil, fmt.Errorf("unmarshal PK=%s SK=%s: %w", devicePK(s.deviceID), skSeen, err)
	}
	seen.DeviceID = s.deviceID
	return &seen, nil
}
