package chat

import (
	"bytes"
	"context"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompensation(t *testing.T) {
	var buf bytes.Buffer
	comp := newCompensation(log.New(&buf, "", 0))

	var order []string
	comp.add("first", func(ctx context.Context) error {
		order = append(order, "first")
		return nil
	})
	comp.add("second", func(ctx context.Context) error {
		order = append(order, "second")
		return errors.New("bucket unavailable")
	})
	comp.add("third", func(ctx context.Context) error {
		order = append(order, "third")
		return nil
	})

	comp.run(context.Background())

	assert.Equal(t, []string{"third", "second", "first"}, order, "steps run in reverse order")
	assert.Contains(t, buf.String(), `compensation "second" failed: bucket unavailable`)
	assert.Empty(t, comp.steps)

	comp.run(context.Background())
	assert.Len(t, order, 3, "steps run once")
}

func TestCompensationIgnoresCancellation(t *testing.T) {
	comp := newCompensation(log.New(&bytes.Buffer{}, "", 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var stepErr error
	comp.add("step", func(ctx context.Context) error {
		stepErr = ctx.Err()
		return nil
	})
	comp.run(ctx)

	assert.NoError(t, stepErr)
}
