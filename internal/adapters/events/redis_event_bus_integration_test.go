//go:build integration

package events_test

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/dentalplan/internal/adapters/events"
	"github.com/zatekoja/dentalplan/internal/application/services"
	"github.com/zatekoja/dentalplan/internal/domain/entities"
	"github.com/zatekoja/dentalplan/internal/domain/providers"
	"github.com/zatekoja/dentalplan/internal/infrastructure/clients/redis"
	"github.com/zatekoja/dentalplan/internal/staging"
	"github.com/zatekoja/dentalplan/pkg/config"
)

func TestRedisEventBusFanoutIntegration(t *testing.T) {
	if os.Getenv("TEST_REDIS_HOST") == "" {
		t.Skip("Skipping integration test: TEST_REDIS_HOST not set")
	}

	redisClient := newTestRedisClient(t)
	defer redisClient.Close()

	eventBus := events.NewRedisEventBus(redisClient)
	defer eventBus.Close()

	channel := providers.EventChannelPlansStaged
	ctx1, cancel1 := context.WithCancel(context.Background())
	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel1()
	defer cancel2()

	sub1, err := eventBus.Subscribe(ctx1, channel)
	require.NoError(t, err)
	sub2, err := eventBus.Subscribe(ctx2, channel)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	event := entities.NewClinicConfigEvent("downtown-family-dental", entities.PlanEventTypeClinicConfigUpdated)

	err = eventBus.Publish(context.Background(), channel, event)
	require.NoError(t, err)

	received1 := waitForPlanEvent(t, sub1)
	received2 := waitForPlanEvent(t, sub2)

	assert.Equal(t, event.ID, received1.ID)
	assert.Equal(t, event.ID, received2.ID)
	assert.Equal(t, entities.PlanEventTypeClinicConfigUpdated, received1.Type)
}

func TestTreatmentPlanService_StagePlan_PublishesEvent(t *testing.T) {
	if os.Getenv("TEST_REDIS_HOST") == "" {
		t.Skip("Skipping integration test: TEST_REDIS_HOST not set")
	}

	redisClient := newTestRedisClient(t)
	defer redisClient.Close()

	eventBus := events.NewRedisEventBus(redisClient)
	defer eventBus.Close()

	service := services.NewTreatmentPlanService(staging.NewEngine(), nil, eventBus, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventChan, err := eventBus.Subscribe(ctx, providers.GetClinicPlansChannel("lakeside-oral-surgery"))
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	plan, err := service.StagePlan(ctx, &services.StagePlanRequest{
		ClinicID: "lakeside-oral-surgery",
		Treatments: []entities.TreatmentRecord{
			{Tooth: "16", Treatment: "root-canal-treatment", Condition: "periapical-lesion", Price: 1100},
		},
	})
	require.NoError(t, err)

	received := waitForPlanEvent(t, eventChan)
	assert.Equal(t, entities.PlanEventTypeStaged, received.Type)
	assert.Equal(t, "lakeside-oral-surgery", received.ClinicID)
	assert.Equal(t, plan.Meta.PlanID, received.PlanID)
	assert.Equal(t, plan.Meta.TotalVisits, received.TotalVisits)
	assert.Equal(t, 1, received.FutureTasks)
}

func newTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()

	cfg := &config.RedisConfig{
		Host:     getEnv("TEST_REDIS_HOST", "localhost"),
		Port:     getEnvAsInt("TEST_REDIS_PORT", 6379),
		Password: getEnv("TEST_REDIS_PASSWORD", ""),
		DB:       getEnvAsInt("TEST_REDIS_DB", 0),
		Enabled:  true,
	}

	client, err := redis.NewClient(context.Background(), cfg)
	require.NoError(t, err, "Failed to create redis client")
	return client
}

func waitForPlanEvent(t *testing.T, ch <-chan *entities.PlanEvent) *entities.PlanEvent {
	t.Helper()
	select {
	case event := <-ch:
		require.NotNil(t, event)
		return event
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for plan event")
		return nil
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
