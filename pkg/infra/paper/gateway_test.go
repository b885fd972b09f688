package paper

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r-umemoto/rebalance-bot/pkg/domain/market"
)

func TestGateway_SendOrderReturnsUniquePaperIDs(t *testing.T) {
	g := NewGateway()
	intent := market.OrderIntent{Side: market.SIDE_BUY, Qty: 10, RefPrice: 70000}

	a, err := g.SendOrder(context.Background(), "005930", intent)
	require.NoError(t, err)
	b, err := g.SendOrder(context.Background(), "005930", intent)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	require.True(t, strings.HasPrefix(a, "paper-"))
	_, err = uuid.Parse(strings.TrimPrefix(a, "paper-"))
	assert.NoError(t, err)
}
