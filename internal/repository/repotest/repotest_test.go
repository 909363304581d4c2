package repotest

import (
	"context"
	"math"
	"testing"

	"shoppingcart/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartItems_ListByUserID_OutOfRange(t *testing.T) {
	s := NewCartItems()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Create(ctx, &model.CartItem{UserID: 42, Name: "A", Quantity: 1}))
	}

	for _, tc := range []struct{ offset, limit int }{
		{-1, 2},
		{math.MinInt, 2},
		{3, 2},
		{0, 0},
	} {
		got, err := s.ListByUserID(ctx, 42, tc.offset, tc.limit)
		assert.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	}

	// offset+limitがintを超えても末尾までで止まる
	got, err := s.ListByUserID(ctx, 42, 1, math.MaxInt)
	assert.NoError(t, err)
	assert.Len(t, got, 2)
}
