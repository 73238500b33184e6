package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type exampleStore struct {
	claimed map[string]bool
}

func (s *exampleStore) Get(context.Context, string) (string, error) {
	return "", nil
}

func (s *exampleStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if s.claimed[key] {
		return false, nil
	}
	s.claimed[key] = true
	return true, nil
}

func (s *exampleStore) IdempotencyKey(scope, id string) string {
	return "lb:idempotency:" + scope + ":" + id
}

func (s *exampleStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.claimed, key)
	}
	return nil
}

func ExampleManager_ClaimChargeDue() {
	ctx := context.Background()
	manager, _ := NewManager(&exampleStore{claimed: map[string]bool{}}, 48*time.Hour)
	bagID := uuid.MustParse("f47ac10b-58cc-4372-a567-0e02b2c3d479")
	lastCharge := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for cycle := 1; cycle <= 2; cycle++ {
		claimed, _ := manager.ClaimChargeDue(ctx, bagID, lastCharge)
		fmt.Printf("cycle %d emit=%v\n", cycle, claimed)
	}
	claimed, _ := manager.ClaimChargeDue(ctx, bagID, lastCharge.Add(30*time.Hour))
	fmt.Printf("after new charge emit=%v\n", claimed)
	// Output:
	// cycle 1 emit=true
	// cycle 2 emit=false
	// after new charge emit=true
}
