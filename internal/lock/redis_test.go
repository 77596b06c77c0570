package lock

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(ctx context.Context, t *testing.T) (addr string, terminate func()) {
	t.Helper()
	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}
	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)
	return fmt.Sprintf("%s:%s", host, port.Port()), func() { _ = c.Terminate(ctx) }
}

func TestRedisLockerIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	ctx := context.Background()
	addr, terminate := startRedis(ctx, t)
	defer terminate()

	l := NewRedisLocker(addr, "", 0, 5*time.Second)
	defer l.Close()
	require.NoError(t, l.Ping(ctx))

	exerciseMutualExclusion(t, l)

	unlock, err := l.Lock(ctx, "enrollment:u1:c1")
	require.NoError(t, err)
	short, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_, err = l.Lock(short, "enrollment:u1:c1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	unlock()

	unlock, err = l.Lock(ctx, "enrollment:u1:c1")
	require.NoError(t, err)
	unlock()
}
