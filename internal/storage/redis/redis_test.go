package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/carsearch/internal/store"
)

func TestStateStoreGetState(t *testing.T) {
	t.Parallel()

	client, mock := redismock.NewClientMock()
	s := NewStateStore(client, "test:", 0)
	want := store.HysteresisState{
		Decision:           store.DecisionIndex,
		ConsecutiveAboveOn: 3,
		LastEvaluatedAt:    time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	raw, err := json.Marshal(want)
	require.NoError(t, err)

	mock.ExpectGet("test:state:/cars/m-toyota/").SetVal(string(raw))
	got, err := s.GetState(context.Background(), "/cars/m-toyota/")
	require.NoError(t, err)
	require.Equal(t, want, got)

	mock.ExpectGet("test:state:/cars/p-tokyo/").RedisNil()
	_, err = s.GetState(context.Background(), "/cars/p-tokyo/")
	require.ErrorIs(t, err, store.ErrNotFound)

	mock.ExpectGet("test:state:/cars/p-tokyo/").SetErr(errors.New("connection refused"))
	_, err = s.GetState(context.Background(), "/cars/p-tokyo/")
	require.Error(t, err)
	require.False(t, errors.Is(err, store.ErrNotFound))

	mock.ExpectGet("test:state:/cars/f-4wd/").SetVal("{not json")
	_, err = s.GetState(context.Background(), "/cars/f-4wd/")
	require.Error(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStateStoreSetStateAppliesTTL(t *testing.T) {
	t.Parallel()

	client, mock := redismock.NewClientMock()
	s := NewStateStore(client, "", 30*24*time.Hour)
	st := store.HysteresisState{Decision: store.DecisionNoindex, ConsecutiveBelowOff: 1}
	raw, err := json.Marshal(st)
	require.NoError(t, err)

	mock.ExpectSet("carsearch:state:/cars/m-honda/", raw, 30*24*time.Hour).SetVal("OK")
	require.NoError(t, s.SetState(context.Background(), "/cars/m-honda/", st))

	mock.ExpectSet("carsearch:state:/cars/m-honda/", raw, 30*24*time.Hour).SetErr(errors.New("READONLY"))
	require.Error(t, s.SetState(context.Background(), "/cars/m-honda/", st))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAllowlistSource(t *testing.T) {
	t.Parallel()

	client, mock := redismock.NewClientMock()
	s := NewAllowlistSource(client, "")
	ctx := context.Background()

	mock.ExpectSMembers("carsearch:allowlist").SetVal([]string{"/cars/p-tokyo/", "/cars/m-toyota/"})
	paths, err := s.ListPaths(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"/cars/m-toyota/", "/cars/p-tokyo/"}, paths)

	mock.ExpectSAdd("carsearch:allowlist", "/cars/f-4wd/").SetVal(1)
	require.NoError(t, s.AddPath(ctx, "/cars/f-4wd/"))

	mock.ExpectSRem("carsearch:allowlist", "/cars/f-4wd/").SetVal(1)
	require.NoError(t, s.RemovePath(ctx, "/cars/f-4wd/"))

	mock.ExpectSRem("carsearch:allowlist", "/cars/f-4wd/").SetVal(0)
	require.ErrorIs(t, s.RemovePath(ctx, "/cars/f-4wd/"), store.ErrNotFound)

	mock.ExpectSMembers("carsearch:allowlist").SetErr(errors.New("timeout"))
	_, err = s.ListPaths(ctx)
	require.Error(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewClientRequiresAddr(t *testing.T) {
	t.Parallel()

	_, err := NewClient(context.Background(), Config{})
	require.Error(t, err)
}

func TestStoresOnOneClientKeepTheirOwnPrefix(t *testing.T) {
	t.Parallel()

	client, mock := redismock.NewClientMock()
	ctx := context.Background()
	blue := NewStateStore(client, "blue:", time.Hour)
	green := NewAllowlistSource(client, "green:")

	mock.ExpectGet("blue:state:/cars/m-toyota/").RedisNil()
	_, err := blue.GetState(ctx, "/cars/m-toyota/")
	require.ErrorIs(t, err, store.ErrNotFound)

	mock.ExpectSMembers("green:allowlist").SetVal(nil)
	_, err = green.ListPaths(ctx)
	require.NoError(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewClientPingFailure(t *testing.T) {
	t.Parallel()

	_, err := NewClient(context.Background(), Config{Addr: "127.0.0.1:1", PoolSize: 1})
	require.ErrorContains(t, err, "redis ping failed")
}
