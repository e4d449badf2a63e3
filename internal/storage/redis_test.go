package storage

import (
	"context"
	"errors"
	"testing"

	"roulette-dozen/internal/dozen"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "resultados_duzia"

func TestRedisStore_Append(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := NewRedisStoreWithClient(db, testKey)
	ctx := context.Background()

	o := obs("2024-01-01T00:00:00Z", 17)
	mock.ExpectHSetNX(testKey, o.Timestamp, `{"number":17,"color":"red","timestamp":"2024-01-01T00:00:00Z"}`).SetVal(true)
	require.NoError(t, s.Append(ctx, o))

	mock.ExpectHSetNX(testKey, o.Timestamp, `{"number":17,"color":"red","timestamp":"2024-01-01T00:00:00Z"}`).SetVal(false)
	err := s.Append(ctx, o)
	assert.True(t, errors.Is(err, ErrDuplicate))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_Load(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := NewRedisStoreWithClient(db, testKey)

	mock.ExpectHGetAll(testKey).SetVal(map[string]string{
		"t2":  `{"number":30,"color":"red","timestamp":"t2"}`,
		"t1":  `{"number":0,"color":"green","timestamp":"t1"}`,
		"bad": `not json`,
	})

	history, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{0, 30}, dozen.Numbers(history))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_LoadError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := NewRedisStoreWithClient(db, testKey)

	mock.ExpectHGetAll(testKey).SetErr(errors.New("connection refused"))
	_, err := s.Load(context.Background())
	assert.Error(t, err)
}

func TestRedisStore_Replace(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := NewRedisStoreWithClient(db, testKey)
	ctx := context.Background()

	mock.ExpectTxPipeline()
	mock.ExpectDel(testKey).SetVal(1)
	mock.ExpectHSet(testKey,
		"t1", `{"number":1,"color":"red","timestamp":"t1"}`,
		"t2", `{"number":2,"color":"red","timestamp":"t2"}`,
	).SetVal(2)
	mock.ExpectTxPipelineExec()
	require.NoError(t, s.Replace(ctx, []dozen.Observation{obs("t1", 1), obs("t2", 2)}))

	mock.ExpectTxPipeline()
	mock.ExpectDel(testKey).SetVal(1)
	mock.ExpectTxPipelineExec()
	require.NoError(t, s.Replace(ctx, nil))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_ReplaceWriteFailureIsTransactional(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := NewRedisStoreWithClient(db, testKey)
	ctx := context.Background()

	mock.ExpectTxPipeline()
	mock.ExpectDel(testKey).SetVal(1)
	mock.ExpectHSet(testKey, "t1", `{"number":1,"color":"red","timestamp":"t1"}`).SetErr(errors.New("conn reset"))
	mock.ExpectTxPipelineExec()

	err := s.Replace(ctx, []dozen.Observation{obs("t1", 1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "replace history")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_Model(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := NewRedisStoreWithClient(db, testKey)
	ctx := context.Background()

	mock.ExpectGet(testKey + ":model").RedisNil()
	_, err := s.LoadModel(ctx)
	assert.True(t, errors.Is(err, ErrNotFound))

	mock.ExpectSet(testKey+":model", `{"v":1}`, 0).SetVal("OK")
	require.NoError(t, s.SaveModel(ctx, []byte(`{"v":1}`)))

	mock.ExpectGet(testKey + ":model").SetVal(`{"v":1}`)
	data, err := s.LoadModel(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"v":1}`, string(data))

	mock.ExpectGet(testKey + ":model").SetErr(redis.TxFailedErr)
	_, err = s.LoadModel(ctx)
	assert.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}
