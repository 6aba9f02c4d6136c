package keystore

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/neboloop/bedrock-openai-gateway/internal/model"
)

// DynamoStore backs Store with three DynamoDB tables, matching the
// keyed layout spec.md §6 describes: api_keys[api_key], usage[api_key,
// timestamp], model_mapping[openai_model_id].
type DynamoStore struct {
	client        *dynamodb.Client
	apiKeysTable  string
	usageTable    string
	modelMapTable string
}

// NewDynamoStore wraps an already-configured dynamodb.Client. Table
// names are passed explicitly rather than hardcoded so dev/staging/prod
// can share one AWS account.
func NewDynamoStore(client *dynamodb.Client, apiKeysTable, usageTable, modelMapTable string) *DynamoStore {
	return &DynamoStore{
		client:        client,
		apiKeysTable:  apiKeysTable,
		usageTable:    usageTable,
		modelMapTable: modelMapTable,
	}
}

func (s *DynamoStore) GetAPIKey(ctx context.Context, apiKey string) (*model.ApiKeyRecord, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"api_key": apiKey})
	if err != nil {
		return nil, fmt.Errorf("keystore: marshal key: %w", err)
	}
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.apiKeysTable),
		Key:       key,
	})
	if err != nil {
		return nil, fmt.Errorf("keystore: get api key: %w", err)
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}
	var rec model.ApiKeyRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("keystore: unmarshal api key: %w", err)
	}
	return &rec, nil
}

func (s *DynamoStore) PutAPIKey(ctx context.Context, rec *model.ApiKeyRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("keystore: marshal api key: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.apiKeysTable),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("keystore: put api key: %w", err)
	}
	return nil
}

// DeleteAPIKey never issues a DynamoDB DeleteItem: the core soft-deletes
// by flipping is_active under a ConditionExpression that requires the
// item to already exist.
func (s *DynamoStore) DeleteAPIKey(ctx context.Context, apiKey string) error {
	key, err := attributevalue.MarshalMap(map[string]string{"api_key": apiKey})
	if err != nil {
		return fmt.Errorf("keystore: marshal key: %w", err)
	}
	falseVal, err := attributevalue.Marshal(false)
	if err != nil {
		return fmt.Errorf("keystore: marshal value: %w", err)
	}
	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.apiKeysTable),
		Key:                 key,
		UpdateExpression:    aws.String("SET is_active = :inactive"),
		ConditionExpression: aws.String("attribute_exists(api_key)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":inactive": falseVal,
		},
	})
	if err != nil {
		return fmt.Errorf("keystore: deactivate api key: %w", err)
	}
	return nil
}

func (s *DynamoStore) PutUsage(ctx context.Context, row *model.UsageRow) error {
	item, err := attributevalue.MarshalMap(row)
	if err != nil {
		return fmt.Errorf("keystore: marshal usage row: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.usageTable),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("keystore: put usage row: %w", err)
	}
	return nil
}

func (s *DynamoStore) QueryUsage(ctx context.Context, apiKey string, since time.Time) ([]model.UsageRow, error) {
	keyCond := "api_key = :k AND #ts >= :since"
	values, err := attributevalue.MarshalMap(map[string]any{
		":k":     apiKey,
		":since": since.Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("keystore: marshal query values: %w", err)
	}
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.usageTable),
		KeyConditionExpression:    aws.String(keyCond),
		ExpressionAttributeNames:  map[string]string{"#ts": "timestamp"},
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return nil, fmt.Errorf("keystore: query usage: %w", err)
	}
	rows := make([]model.UsageRow, 0, len(out.Items))
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &rows); err != nil {
		return nil, fmt.Errorf("keystore: unmarshal usage rows: %w", err)
	}
	return rows, nil
}

func (s *DynamoStore) GetModelMappings(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string)
	var startKey map[string]types.AttributeValue
	for {
		scan, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(s.modelMapTable),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("keystore: scan model mappings: %w", err)
		}
		var page []model.ModelMapping
		if err := attributevalue.UnmarshalListOfMaps(scan.Items, &page); err != nil {
			return nil, fmt.Errorf("keystore: unmarshal model mappings: %w", err)
		}
		for _, m := range page {
			out[m.OpenAIModelID] = m.UpstreamModelID
		}
		if len(scan.LastEvaluatedKey) == 0 {
			break
		}
		startKey = scan.LastEvaluatedKey
	}
	return out, nil
}

func (s *DynamoStore) PutModelMapping(ctx context.Context, openaiID, upstreamID string) error {
	item, err := attributevalue.MarshalMap(model.ModelMapping{
		OpenAIModelID:   openaiID,
		UpstreamModelID: upstreamID,
	})
	if err != nil {
		return fmt.Errorf("keystore: marshal model mapping: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.modelMapTable),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("keystore: put model mapping: %w", err)
	}
	return nil
}

func (s *DynamoStore) Ready(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.apiKeysTable),
	})
	if err != nil {
		return fmt.Errorf("keystore: table unreachable: %w", err)
	}
	return nil
}
