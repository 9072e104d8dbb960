package prefs

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoConfig selects the table a DynamoBackend uses.
type DynamoConfig struct {
	Region    string
	Endpoint  string
	TableName string
	Profile   string
}

// DynamoBackend stores one profile's preferences as a single DynamoDB item.
type DynamoBackend struct {
	client    *dynamodb.Client
	tableName string
	profile   string
	closed    atomic.Bool
}

// NewDynamoBackend creates a DynamoDB client and returns a DynamoBackend.
func NewDynamoBackend(ctx context.Context, cfg DynamoConfig) (*DynamoBackend, error) {
	var opts []func(*config.LoadOptions) error
	opts = append(opts, config.WithRegion(cfg.Region))
	if cfg.Endpoint != "" {
		opts = append(opts, config.WithBaseEndpoint(cfg.Endpoint))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &DynamoBackend{
		client:    dynamodb.NewFromConfig(awsCfg),
		tableName: cfg.TableName,
		profile:   cfg.Profile,
	}, nil
}

func (s *DynamoBackend) pk() string {
	return "PROFILE#" + s.profile
}

func (s *DynamoBackend) key() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: s.pk()},
	}
}

func (s *DynamoBackend) Get(ctx context.Context, keys []string) (map[string]string, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &s.tableName,
		Key:            s.key(),
		ConsistentRead: boolPtr(true),
	})
	if err != nil {
		return nil, fmt.Errorf("GetItem: %w", err)
	}
	all, err := unmarshalPrefs(out.Item)
	if err != nil {
		return nil, err
	}
	result := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := all[k]; ok {
			result[k] = v
		}
	}
	return result, nil
}

func (s *DynamoBackend) Set(ctx context.Context, kv map[string]string) error {
	if len(kv) == 0 {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339)

	// SET preferences.#k0 = :v0, ..., updatedAt = :now
	// if_not_exists keeps the map path valid for a profile written for the first time.
	exprNames := make(map[string]string, len(kv))
	exprValues := make(map[string]types.AttributeValue, len(kv)+2)
	updateExpr := "SET "
	i := 0
	for k, v := range kv {
		nameKey := fmt.Sprintf("#k%d", i)
		valKey := fmt.Sprintf(":v%d", i)
		exprNames[nameKey] = k
		exprValues[valKey] = &types.AttributeValueMemberS{Value: v}
		if i > 0 {
			updateExpr += ", "
		}
		updateExpr += fmt.Sprintf("preferences.%s = %s", nameKey, valKey)
		i++
	}
	updateExpr += ", updatedAt = :now"
	exprValues[":now"] = &types.AttributeValueMemberS{Value: now}

	if err := s.ensureItem(ctx, now); err != nil {
		return err
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       s.key(),
		UpdateExpression:          &updateExpr,
		ExpressionAttributeNames:  exprNames,
		ExpressionAttributeValues: exprValues,
	})
	if err != nil {
		return fmt.Errorf("UpdateItem: %w", err)
	}
	return nil
}

// ensureItem creates the profile item with an empty preferences map so that
// nested SET paths resolve.
func (s *DynamoBackend) ensureItem(ctx context.Context, now string) error {
	updateExpr := "SET preferences = if_not_exists(preferences, :empty), createdAt = if_not_exists(createdAt, :now)"
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        &s.tableName,
		Key:              s.key(),
		UpdateExpression: &updateExpr,
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":empty": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{}},
			":now":   &types.AttributeValueMemberS{Value: now},
		},
	})
	if err != nil {
		return fmt.Errorf("UpdateItem (init): %w", err)
	}
	return nil
}

func (s *DynamoBackend) Remove(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	exprNames := make(map[string]string, len(keys))
	updateExpr := "REMOVE "
	for i, k := range keys {
		nameKey := fmt.Sprintf("#k%d", i)
		exprNames[nameKey] = k
		if i > 0 {
			updateExpr += ", "
		}
		updateExpr += "preferences." + nameKey
	}

	// REMOVE on a missing preferences map is a ValidationException.
	if err := s.ensureItem(ctx, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                &s.tableName,
		Key:                      s.key(),
		UpdateExpression:         &updateExpr,
		ExpressionAttributeNames: exprNames,
	})
	if err != nil {
		return fmt.Errorf("UpdateItem (REMOVE): %w", err)
	}
	return nil
}

// DeleteProfile removes the whole item.
func (s *DynamoBackend) DeleteProfile(ctx context.Context) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &s.tableName,
		Key:       s.key(),
	})
	if err != nil {
		return fmt.Errorf("DeleteItem: %w", err)
	}
	return nil
}

func (s *DynamoBackend) Valid() bool {
	return !s.closed.Load()
}

// Close marks the backend unusable.
func (s *DynamoBackend) Close() error {
	s.closed.Store(true)
	return nil
}

// unmarshalPrefs extracts the preferences map from a DynamoDB item.
func unmarshalPrefs(item map[string]types.AttributeValue) (map[string]string, error) {
	prefsAttr, ok := item["preferences"]
	if !ok {
		return nil, nil
	}

	prefsMap, ok := prefsAttr.(*types.AttributeValueMemberM)
	if !ok {
		return nil, fmt.Errorf("preferences attribute is not a map")
	}

	result := make(map[string]string, len(prefsMap.Value))
	for k, v := range prefsMap.Value {
		sv, ok := v.(*types.AttributeValueMemberS)
		if !ok {
			continue
		}
		result[k] = sv.Value
	}
	return result, nil
}

func boolPtr(b bool) *bool { return &b }
