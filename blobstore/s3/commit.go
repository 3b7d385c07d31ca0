package s3

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hupe1980/bloomgo/blobstore"
)

// ErrConcurrentModification is returned when another writer committed a
// new version between read and write.
var ErrConcurrentModification = errors.New("concurrent modification detected")

// DDBClient is the interface for the DynamoDB operations the commit
// store uses.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// CommitStore wraps an S3 store with a DynamoDB commit log for one
// designated name, typically the catalog manifest. S3 lacks the
// compare-and-swap needed for safe concurrent manifest updates, so each
// Put of the commit name writes the payload to a versioned S3 key and
// then records the new version with a DynamoDB conditional write. Two
// writers racing on the same version leave one of them with
// ErrConcurrentModification instead of silently lost data.
//
// All other names pass straight through to the S3 store.
//
// Table schema:
//   - Partition key: scope (string), the s3://bucket/prefix of the store
//   - Sort key: version (number), monotonically increasing
//
// Create the table with:
//
//	aws dynamodb create-table \
//	  --table-name bloomgo-commits \
//	  --attribute-definitions AttributeName=scope,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=scope,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type CommitStore struct {
	store      *Store
	ddb        DDBClient
	table      string
	scope      string
	commitName string
}

// NewCommitStore wraps store so writes to commitName go through the
// DynamoDB commit log in the given table. scope is the partition key,
// typically "s3://bucket/prefix".
func NewCommitStore(store *Store, ddb DDBClient, table, scope, commitName string) *CommitStore {
	return &CommitStore{
		store:      store,
		ddb:        ddb,
		table:      table,
		scope:      scope,
		commitName: commitName,
	}
}

// Open resolves the commit name to its latest committed version and
// opens that; other names open directly.
func (s *CommitStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	if name != s.commitName {
		return s.store.Open(ctx, name)
	}
	version, target, err := s.latest(ctx)
	if err != nil {
		return nil, err
	}
	if version == 0 {
		return nil, blobstore.ErrNotFound
	}
	return s.store.Open(ctx, target)
}

// Put writes the commit name as a new version: the payload lands under a
// versioned key, then the version is committed atomically. Other names
// write directly.
func (s *CommitStore) Put(ctx context.Context, name string, data []byte) error {
	if name != s.commitName {
		return s.store.Put(ctx, name, data)
	}

	version, _, err := s.latest(ctx)
	if err != nil {
		return err
	}
	next := version + 1
	target := fmt.Sprintf("%s.v%d", s.commitName, next)

	if err := s.store.Put(ctx, target, data); err != nil {
		return err
	}
	return s.commit(ctx, next, target)
}

// Delete passes through. Committed versions stay in the log; deleting
// the commit name only removes stray uncommitted objects.
func (s *CommitStore) Delete(ctx context.Context, name string) error {
	return s.store.Delete(ctx, name)
}

// List delegates to the S3 store.
func (s *CommitStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.store.List(ctx, prefix)
}

// latest returns the newest committed version and its target key, or
// version 0 when nothing has been committed yet.
func (s *CommitStore) latest(ctx context.Context) (uint64, string, error) {
	resp, err := s.ddb.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("#scope = :scope"),
		ExpressionAttributeNames: map[string]string{
			"#scope": "scope",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":scope": &types.AttributeValueMemberS{Value: s.scope},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, "", fmt.Errorf("query commit log: %w", err)
	}
	if len(resp.Items) == 0 {
		return 0, "", nil
	}

	item := resp.Items[0]
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("commit log item missing version attribute")
	}
	targetAttr, ok := item["target"].(*types.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("commit log item missing target attribute")
	}

	version, err := strconv.ParseUint(versionAttr.Value, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("parse commit version: %w", err)
	}
	return version, targetAttr.Value, nil
}

// commit records the version with a conditional write that fails if the
// version already exists.
func (s *CommitStore) commit(ctx context.Context, version uint64, target string) error {
	_, err := s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item: map[string]types.AttributeValue{
			"scope":   &types.AttributeValueMemberS{Value: s.scope},
			"version": &types.AttributeValueMemberN{Value: strconv.FormatUint(version, 10)},
			"target":  &types.AttributeValueMemberS{Value: target},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrConcurrentModification
		}
		return fmt.Errorf("commit version %d: %w", version, err)
	}
	return nil
}
