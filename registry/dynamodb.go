package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hupe1980/resdb/codec"
)

// DDBClient is the subset of the DynamoDB API the registry uses.
// *dynamodb.Client satisfies it; tests substitute a fake.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

var _ Registry = (*DynamoDBRegistry)(nil)

// DynamoDBRegistry stores run manifests in DynamoDB. Each registration
// writes a new, monotonically increasing version row guarded by a
// conditional put, so concurrent registrars cannot silently overwrite
// each other; Resolve reads the highest version.
//
// Table schema:
//   - Partition key: run_id (string)
//   - Sort key: version (number)
//
// Create the table with:
//
//	aws dynamodb create-table \
//	  --table-name resdb-runs \
//	  --attribute-definitions AttributeName=run_id,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=run_id,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type DynamoDBRegistry struct {
	client    DDBClient
	tableName string
	codec     codec.Codec
}

// NewDynamoDBRegistry creates a registry backed by the given table.
// Manifests are encoded with codec.Default.
func NewDynamoDBRegistry(client DDBClient, tableName string) *DynamoDBRegistry {
	return &DynamoDBRegistry{
		client:    client,
		tableName: tableName,
		codec:     codec.Default,
	}
}

// Resolve returns the keys of the latest registered manifest for a run.
func (r *DynamoDBRegistry) Resolve(ctx context.Context, runID string) ([]string, error) {
	version, data, err := r.latest(ctx, runID)
	if err != nil {
		return nil, err
	}
	if version == 0 {
		return nil, ErrNotFound
	}

	var m manifest
	if err := r.codec.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("registry: decode manifest for run %q: %w", runID, err)
	}
	return m.Keys, nil
}

// Register writes the next manifest version for a run. Returns
// ErrConcurrentModification when another registrar claimed the same
// version first.
func (r *DynamoDBRegistry) Register(ctx context.Context, runID string, keys []string) error {
	currentVersion, _, err := r.latest(ctx, runID)
	if err != nil {
		return err
	}
	newVersion := currentVersion + 1

	data, err := r.codec.Marshal(manifest{Keys: keys})
	if err != nil {
		return fmt.Errorf("registry: encode manifest for run %q: %w", runID, err)
	}

	// Conditional put: only succeed if this version doesn't exist yet.
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item: map[string]types.AttributeValue{
			"run_id":   &types.AttributeValueMemberS{Value: runID},
			"version":  &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", newVersion)},
			"manifest": &types.AttributeValueMemberB{Value: data},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrConcurrentModification
		}
		return fmt.Errorf("registry: commit version for run %q: %w", runID, err)
	}

	return nil
}

// Delete removes every version row of a run.
func (r *DynamoDBRegistry) Delete(ctx context.Context, runID string) error {
	var startKey map[string]types.AttributeValue
	for {
		resp, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.tableName),
			KeyConditionExpression: aws.String("run_id = :rid"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":rid": &types.AttributeValueMemberS{Value: runID},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return fmt.Errorf("registry: query versions for run %q: %w", runID, err)
		}

		for _, item := range resp.Items {
			versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
			if !ok {
				return errors.New("registry: invalid version attribute")
			}
			_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
				TableName: aws.String(r.tableName),
				Key: map[string]types.AttributeValue{
					"run_id":  &types.AttributeValueMemberS{Value: runID},
					"version": versionAttr,
				},
			})
			if err != nil {
				return fmt.Errorf("registry: delete version for run %q: %w", runID, err)
			}
		}

		if resp.LastEvaluatedKey == nil {
			return nil
		}
		startKey = resp.LastEvaluatedKey
	}
}

// latest returns the highest committed version and its manifest bytes,
// or version 0 when the run is unknown.
func (r *DynamoDBRegistry) latest(ctx context.Context, runID string) (uint64, []byte, error) {
	resp, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("run_id = :rid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":rid": &types.AttributeValueMemberS{Value: runID},
		},
		ScanIndexForward: aws.Bool(false), // descending
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, nil, fmt.Errorf("registry: query run %q: %w", runID, err)
	}

	if len(resp.Items) == 0 {
		return 0, nil, nil
	}

	item := resp.Items[0]
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, nil, errors.New("registry: invalid version attribute")
	}
	manifestAttr, ok := item["manifest"].(*types.AttributeValueMemberB)
	if !ok {
		return 0, nil, errors.New("registry: invalid manifest attribute")
	}

	var version uint64
	if _, err := fmt.Sscanf(versionAttr.Value, "%d", &version); err != nil {
		return 0, nil, fmt.Errorf("registry: parse version: %w", err)
	}

	return version, manifestAttr.Value, nil
}
