package property

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client), mr
}

func TestRedisStoreDefaultsWhenEmpty(t *testing.T) {
	store, _ := newRedisStore(t)
	cfg, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Greeting, cfg.Greeting)
	assert.Equal(t, DefaultConfirmationTemplate, cfg.ConfirmationTemplate)
}

func TestRedisStoreRoundTripAppliesDefaults(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &Config{PropertyName: "Maple Court", AssistantName: "Ava"}))
	assert.True(t, mr.Exists(configKey))

	cfg, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Maple Court", cfg.PropertyName)
	assert.Equal(t, "Hi! I'm Ava, the virtual assistant for Maple Court. How can I help you today?", cfg.Greeting)
	assert.Equal(t, 3, cfg.MaxSentences)
	assert.False(t, cfg.UpdatedAt.IsZero())
}

func TestSeedDoesNotOverwriteOperatorConfig(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "property.yaml")
	require.NoError(t, os.WriteFile(path, []byte("property_name: Seeded Place\nknowledge: |\n  "+strings.Repeat("x", 120)+"\nmax_sentences: 2\n"), 0o600))

	seeded, err := Seed(ctx, store, path)
	require.NoError(t, err)
	assert.True(t, seeded)

	cfg, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Seeded Place", cfg.PropertyName)
	assert.Equal(t, 2, cfg.MaxSentences)
	assert.True(t, cfg.HasKnowledge())

	require.NoError(t, store.Save(ctx, &Config{PropertyName: "Operator Place"}))
	seeded, err = Seed(ctx, store, path)
	require.NoError(t, err)
	assert.False(t, seeded)

	cfg, err = store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Operator Place", cfg.PropertyName)
}

func TestSeedWithoutPathIsNoop(t *testing.T) {
	seeded, err := Seed(context.Background(), NewMemoryStore(), "")
	require.NoError(t, err)
	assert.False(t, seeded)
}

func TestUpdateApplyLeavesNilFields(t *testing.T) {
	base := DefaultConfig()
	name := "New Name"
	zero := 0
	next := Update{PropertyName: &name, MaxSentences: &zero}.Apply(base)
	assert.Equal(t, "New Name", next.PropertyName)
	assert.Equal(t, base.Greeting, next.Greeting)
	assert.Equal(t, base.MaxSentences, next.MaxSentences)
	assert.Equal(t, "South Oak Apartments", base.PropertyName, "base must not be mutated")
}

func TestHasKnowledgeThreshold(t *testing.T) {
	assert.False(t, (&Config{Knowledge: strings.Repeat("a", MinKnowledgeLength)}).HasKnowledge())
	assert.True(t, (&Config{Knowledge: strings.Repeat("a", MinKnowledgeLength+1)}).HasKnowledge())
}

type fakeS3 struct {
	objects map[string]string
	input   *s3.GetObjectInput
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.input = in
	body, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestSeedFromS3(t *testing.T) {
	client := &fakeS3{objects: map[string]string{
		"leasing-config/south-oak.yaml": "property_name: Bucket Place\nassistant_name: Remy\n",
	}}
	store := NewMemoryStore()

	seeded, err := Seed(context.Background(), store, "s3://leasing-config/south-oak.yaml", WithS3Client(client))
	require.NoError(t, err)
	assert.True(t, seeded)
	assert.Equal(t, "south-oak.yaml", aws.ToString(client.input.Key))

	cfg, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bucket Place", cfg.PropertyName)
	assert.Equal(t, "Remy", cfg.AssistantName)
}

func TestLoadS3Errors(t *testing.T) {
	ctx := context.Background()

	_, err := Load(ctx, "s3://leasing-config/south-oak.yaml")
	assert.Error(t, err, "s3 location without a client")

	_, err = Load(ctx, "s3://leasing-config", WithS3Client(&fakeS3{}))
	assert.Error(t, err, "missing key")

	_, err = Load(ctx, "s3://leasing-config/missing.yaml", WithS3Client(&fakeS3{}))
	assert.Error(t, err)
}
