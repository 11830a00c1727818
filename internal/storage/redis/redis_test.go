package redis

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/yndnr/canvasmesh-go/internal/storage/storagetest"
)

func TestRedisStore(t *testing.T) {
	// Skip test if Redis is not available
	client := redis.NewClient(&redis.Options{
		Addr: "127.0.0.1:6379",
		DB:   3, // Use separate DB for storage tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	defer client.FlushDB(ctx)

	s, err := New(Config{Client: client, KeyPrefix: "canvasmesh-test:"})
	if err != nil {
		t.Fatalf("Failed to create Redis store: %v", err)
	}
	defer s.Close()

	storagetest.Run(t, s)
}

func TestNew_RequiresClient(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error without client")
	}
}

func TestEscapePattern(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"canvasmesh:rooms/", "canvasmesh:rooms/"},
		{"a*b", `a\*b`},
		{"a?[x]", `a\?\[x\]`},
		{`back\slash`, `back\\slash`},
	}
	for _, tt := range tests {
		if got := escapePattern(tt.in); got != tt.want {
			t.Errorf("escapePattern(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
