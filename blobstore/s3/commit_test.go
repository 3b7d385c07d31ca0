package s3

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/bloomgo/blobstore"
)

// mockDDBClient is an in-memory DynamoDB mock honoring the conditional
// write the commit store relies on.
type mockDDBClient struct {
	mu    sync.RWMutex
	items map[string]map[string]types.AttributeValue
}

func newMockDDBClient() *mockDDBClient {
	return &mockDDBClient{items: make(map[string]map[string]types.AttributeValue)}
}

func (m *mockDDBClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	scope := params.Item["scope"].(*types.AttributeValueMemberS).Value
	version := params.Item["version"].(*types.AttributeValueMemberN).Value
	key := scope + ":" + version

	if params.ConditionExpression != nil && *params.ConditionExpression == "attribute_not_exists(version)" {
		if _, exists := m.items[key]; exists {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("condition failed")}
		}
	}

	m.items[key] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockDDBClient) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	scope := params.ExpressionAttributeValues[":scope"].(*types.AttributeValueMemberS).Value

	var items []map[string]types.AttributeValue
	for _, item := range m.items {
		if item["scope"].(*types.AttributeValueMemberS).Value == scope {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		vi, _ := strconv.ParseUint(items[i]["version"].(*types.AttributeValueMemberN).Value, 10, 64)
		vj, _ := strconv.ParseUint(items[j]["version"].(*types.AttributeValueMemberN).Value, 10, 64)
		return vi > vj
	})
	if params.Limit != nil && int(*params.Limit) < len(items) {
		items = items[:*params.Limit]
	}
	return &dynamodb.QueryOutput{Items: items}, nil
}

// fakeS3Client is a stateful in-memory S3 stand-in for commit tests.
type fakeS3Client struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func newFakeS3Client() *fakeS3Client {
	return &fakeS3Client{objects: make(map[string][]byte)}
}

func (f *fakeS3Client) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	data, ok := f.objects[*params.Key]
	if !ok {
		return nil, &s3types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
}

func (f *fakeS3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	data, ok := f.objects[*params.Key]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	var from, to int64
	if _, err := fmt.Sscanf(aws.ToString(params.Range), "bytes=%d-%d", &from, &to); err != nil {
		return nil, err
	}
	if to >= int64(len(data)) {
		to = int64(len(data)) - 1
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(strings.NewReader(string(data[from : to+1]))),
	}, nil
}

func (f *fakeS3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.objects[*params.Key] = data
	f.mu.Unlock()
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3Client) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	delete(f.objects, *params.Key)
	f.mu.Unlock()
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3Client) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := &s3.ListObjectsV2Output{}
	for key := range f.objects {
		if strings.HasPrefix(key, aws.ToString(params.Prefix)) {
			out.Contents = append(out.Contents, s3types.Object{Key: aws.String(key)})
		}
	}
	return out, nil
}

func (f *fakeS3Client) UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return nil, fmt.Errorf("multipart not supported in fake")
}

func (f *fakeS3Client) CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return nil, fmt.Errorf("multipart not supported in fake")
}

func (f *fakeS3Client) CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return nil, fmt.Errorf("multipart not supported in fake")
}

func (f *fakeS3Client) AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return nil, fmt.Errorf("multipart not supported in fake")
}

func newTestCommitStore() (*CommitStore, *fakeS3Client, *mockDDBClient) {
	s3c := newFakeS3Client()
	ddb := newMockDDBClient()
	store := NewStore(s3c, "bucket", "db")
	return NewCommitStore(store, ddb, "commits", "s3://bucket/db", "MANIFEST"), s3c, ddb
}

func TestCommitStore_OpenMissing(t *testing.T) {
	cs, _, _ := newTestCommitStore()

	_, err := cs.Open(context.Background(), "MANIFEST")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestCommitStore_CommitAndRead(t *testing.T) {
	ctx := context.Background()
	cs, s3c, _ := newTestCommitStore()

	require.NoError(t, cs.Put(ctx, "MANIFEST", []byte("manifest v1")))

	got, err := blobstore.ReadAll(ctx, cs, "MANIFEST")
	require.NoError(t, err)
	assert.Equal(t, []byte("manifest v1"), got)

	// The payload lives under a versioned key.
	_, ok := s3c.objects["db/MANIFEST.v1"]
	assert.True(t, ok)
}

func TestCommitStore_SequentialCommits(t *testing.T) {
	ctx := context.Background()
	cs, _, _ := newTestCommitStore()

	require.NoError(t, cs.Put(ctx, "MANIFEST", []byte("manifest v1")))
	require.NoError(t, cs.Put(ctx, "MANIFEST", []byte("manifest v2")))

	got, err := blobstore.ReadAll(ctx, cs, "MANIFEST")
	require.NoError(t, err)
	assert.Equal(t, []byte("manifest v2"), got)
}

func TestCommitStore_ConflictDetected(t *testing.T) {
	ctx := context.Background()
	cs, _, _ := newTestCommitStore()

	require.NoError(t, cs.Put(ctx, "MANIFEST", []byte("manifest v1")))

	// A second writer already committed version 1.
	err := cs.commit(ctx, 1, "db/MANIFEST.v1")
	assert.ErrorIs(t, err, ErrConcurrentModification)
}

func TestCommitStore_PassThrough(t *testing.T) {
	ctx := context.Background()
	cs, _, ddb := newTestCommitStore()

	require.NoError(t, cs.Put(ctx, "catalog/web/1.snap", []byte("snapshot")))

	got, err := blobstore.ReadAll(ctx, cs, "catalog/web/1.snap")
	require.NoError(t, err)
	assert.Equal(t, []byte("snapshot"), got)
	assert.Empty(t, ddb.items)
}
