package tax

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCachedSourceMissLoadsAndStores(t *testing.T) {
	rdb, rmock := redismock.NewClientMock()
	src := &mockSource{}
	rules := []Rule{gst()}
	src.On("ActiveRules", mock.Anything).Return(rules, nil).Once()

	payload, err := json.Marshal(rules)
	require.NoError(t, err)
	rmock.ExpectGet(activeRulesKey).RedisNil()
	rmock.ExpectSet(activeRulesKey, payload, time.Minute).SetVal("OK")

	got, err := NewCachedSource(src, rdb, time.Minute, nil).ActiveRules(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.NoError(t, rmock.ExpectationsWereMet())
	src.AssertExpectations(t)
}

func TestCachedSourceHitSkipsDatabase(t *testing.T) {
	rdb, rmock := redismock.NewClientMock()
	src := &mockSource{}

	payload, err := json.Marshal([]Rule{gst()})
	require.NoError(t, err)
	rmock.ExpectGet(activeRulesKey).SetVal(string(payload))

	got, err := NewCachedSource(src, rdb, time.Minute, nil).ActiveRules(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "GST", got[0].Name)
	assert.True(t, got[0].Percentage.Equal(d("18")))
	src.AssertNotCalled(t, "ActiveRules", mock.Anything)
	assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestCachedSourceRedisErrorFallsThrough(t *testing.T) {
	rdb, rmock := redismock.NewClientMock()
	src := &mockSource{}
	src.On("ActiveRules", mock.Anything).Return([]Rule{}, nil).Once()

	rmock.ExpectGet(activeRulesKey).SetErr(errors.New("redis down"))
	payload, _ := json.Marshal([]Rule{})
	rmock.ExpectSet(activeRulesKey, payload, time.Minute).SetErr(errors.New("redis down"))

	got, err := NewCachedSource(src, rdb, time.Minute, nil).ActiveRules(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCachedSourcePropagatesSourceError(t *testing.T) {
	rdb, rmock := redismock.NewClientMock()
	src := &mockSource{}
	src.On("ActiveRules", mock.Anything).Return(nil, errors.New("db down")).Once()
	rmock.ExpectGet(activeRulesKey).RedisNil()

	_, err := NewCachedSource(src, rdb, time.Minute, nil).ActiveRules(context.Background())
	assert.Error(t, err)
}

func TestCachedSourceWithoutRedis(t *testing.T) {
	src := &mockSource{}
	src.On("ActiveRules", mock.Anything).Return([]Rule{gst()}, nil).Once()

	cs := NewCachedSource(src, nil, time.Minute, nil)
	got, err := cs.ActiveRules(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)
	cs.Invalidate(context.Background())
}

func TestInvalidateDeletesKey(t *testing.T) {
	rdb, rmock := redismock.NewClientMock()
	rmock.ExpectDel(activeRulesKey).SetVal(1)

	NewCachedSource(&mockSource{}, rdb, time.Minute, nil).Invalidate(context.Background())
	assert.NoError(t, rmock.ExpectationsWereMet())
}
