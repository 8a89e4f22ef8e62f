package activity

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/asdlc-dev/swarmcoord/coordination"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func devopsMsg(msgType coordination.MessageType, ts time.Time, description string) *coordination.Message {
	return &coordination.Message{
		Type:      msgType,
		Timestamp: ts,
		Payload:   coordination.Payload{Subject: "devops", Description: description},
	}
}

func TestBuildActivitiesCompletePromotesPendingSteps(t *testing.T) {
	base := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	messages := []*coordination.Message{
		devopsMsg(coordination.TypeDevOpsStarted, base, `{"activity_id":"a","operation":"deploy","steps":["Build","Push"]}`),
		devopsMsg(coordination.TypeDevOpsStepUpdate, base.Add(time.Second), `{"activity_id":"a","step":"Build","status":"completed"}`),
		devopsMsg(coordination.TypeDevOpsComplete, base.Add(2*time.Second), `{"activity_id":"a"}`),
	}

	folder := &Folder{}
	activities := folder.buildActivities(messages)

	require.Len(t, activities, 1)
	a := activities["a"]
	require.Equal(t, StatusCompleted, a.Status)
	require.NotNil(t, a.CompletedAt)
	require.True(t, a.CompletedAt.Equal(base.Add(2*time.Second)))

	byName := map[string]Step{}
	for _, s := range a.Steps {
		byName[s.Name] = s
	}
	require.Equal(t, StepCompleted, byName["Build"].Status)
	require.True(t, byName["Build"].CompletedAt.Equal(base.Add(time.Second)), "step update timestamp wins over the completion promotion timestamp")
	require.Equal(t, StepCompleted, byName["Push"].Status)
	require.True(t, byName["Push"].CompletedAt.Equal(base.Add(2*time.Second)), "never-updated step is promoted at the completion timestamp")
}

func TestBuildActivitiesInProgressHasPendingSteps(t *testing.T) {
	base := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	messages := []*coordination.Message{
		devopsMsg(coordination.TypeDevOpsStarted, base, `{"activity_id":"b","operation":"migrate","steps":["Plan","Apply"]}`),
	}

	folder := &Folder{}
	activities := folder.buildActivities(messages)

	a := activities["b"]
	require.Equal(t, StatusInProgress, a.Status)
	require.Nil(t, a.CompletedAt)
	for _, s := range a.Steps {
		require.Equal(t, StepPending, s.Status)
	}
}

func TestBuildActivitiesFailedMarksRunningStepFailed(t *testing.T) {
	base := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	messages := []*coordination.Message{
		devopsMsg(coordination.TypeDevOpsStarted, base, `{"activity_id":"c","operation":"rollout","steps":["Deploy","Verify"]}`),
		devopsMsg(coordination.TypeDevOpsStepUpdate, base.Add(time.Second), `{"activity_id":"c","step":"Deploy","status":"running"}`),
		devopsMsg(coordination.TypeDevOpsFailed, base.Add(2*time.Second), `{"activity_id":"c","error":"node unreachable"}`),
	}

	folder := &Folder{}
	activities := folder.buildActivities(messages)

	a := activities["c"]
	require.Equal(t, StatusFailed, a.Status)

	byName := map[string]Step{}
	for _, s := range a.Steps {
		byName[s.Name] = s
	}
	require.Equal(t, StepFailed, byName["Deploy"].Status)
	require.Equal(t, "node unreachable", byName["Deploy"].Error)
	require.Equal(t, StepPending, byName["Verify"].Status, "a step never started is left untouched by a failure")
}

func TestBuildActivitiesSkipsMalformedDescription(t *testing.T) {
	base := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	messages := []*coordination.Message{
		devopsMsg(coordination.TypeDevOpsStarted, base, `not json`),
		devopsMsg(coordination.TypeDevOpsStarted, base.Add(time.Second), `{"activity_id":"d","operation":"ok","steps":[]}`),
	}

	folder := &Folder{}
	activities := folder.buildActivities(messages)

	require.Len(t, activities, 1)
	require.Contains(t, activities, "d")
}

func TestBuildActivitiesOrdersOutOfSequenceMessagesByTimestamp(t *testing.T) {
	base := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	// Supplied out of chronological order; the fold must sort first.
	messages := []*coordination.Message{
		devopsMsg(coordination.TypeDevOpsComplete, base.Add(2*time.Second), `{"activity_id":"e"}`),
		devopsMsg(coordination.TypeDevOpsStarted, base, `{"activity_id":"e","operation":"op","steps":[]}`),
	}

	folder := &Folder{}
	activities := folder.buildActivities(messages)

	require.Equal(t, StatusCompleted, activities["e"].Status)
}

func newActivityTestHarness(t *testing.T) *coordination.Store {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	keys := coordination.NewKeyNamer("coord")
	return coordination.NewStore(client, keys, coordination.DefaultConfig())
}

func TestGetActivityNeverFailsWhenSubstrateHasNoMessages(t *testing.T) {
	store := newActivityTestHarness(t)
	folder := NewFolder(store)

	projection := folder.GetActivity(context.Background(), 10)
	require.Nil(t, projection.Current)
	require.Empty(t, projection.Recent)
}

func TestGetActivityPicksUpPublishedInProgressActivity(t *testing.T) {
	store := newActivityTestHarness(t)
	folder := NewFolder(store)
	ctx := context.Background()

	_, err := store.Publish(ctx, coordination.PublishRequest{
		Type:         coordination.TypeDevOpsStarted,
		FromInstance: "devops-worker",
		ToInstance:   coordination.BroadcastInstance,
		Subject:      "devops",
		Description:  `{"activity_id":"live","operation":"deploy","steps":["Build"]}`,
	})
	require.NoError(t, err)

	projection := folder.GetActivity(ctx, 10)
	require.NotNil(t, projection.Current)
	require.Equal(t, "live", projection.Current.ID)
	require.Empty(t, projection.Recent)
}
