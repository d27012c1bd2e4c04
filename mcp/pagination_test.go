package mcp

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyPaginationDefaultLimit(t *testing.T) {
	items := make([]int, 10)
	for i := range items {
		items[i] = i
	}

	page, next, err := applyPagination(items, "", 0)
	require.NoError(t, err)
	require.Nil(t, next)
	require.Len(t, page, 10)
}

func TestApplyPaginationTenThousandResources(t *testing.T) {
	items := make([]string, 10000)
	for i := range items {
		items[i] = fmt.Sprintf("res://item/%d", i)
	}

	var collected []string
	cursor := ""
	pages := 0
	for {
		page, next, err := applyPagination(items, cursor, 777)
		require.NoError(t, err)
		collected = append(collected, page...)
		pages++
		if next == nil {
			break
		}
		cursor = *next
		require.Less(t, pages, 20, "pagination should terminate well under 20 pages")
	}

	require.Equal(t, items, collected)
}

func TestApplyPaginationLimitClampedToMax(t *testing.T) {
	items := make([]int, 500)
	page, next, err := applyPagination(items, "", 10000)
	require.NoError(t, err)
	require.Len(t, page, listPageSizeCeiling)
	require.NotNil(t, next)
}

func TestApplyPaginationInvalidCursor(t *testing.T) {
	items := []int{1, 2, 3}
	_, _, err := applyPagination(items, "not-a-cursor-this-engine-issued", 0)
	require.ErrorIs(t, err, errCursorMalformed)
}

func TestApplyPaginationCursorOutOfRange(t *testing.T) {
	items := []int{1, 2, 3}
	var codec cursorCodec
	_, _, err := applyPagination(items, codec.encode(100), 0)
	require.ErrorIs(t, err, errCursorExhausted)
}

func TestApplyPaginationEmptyCollection(t *testing.T) {
	var items []int
	page, next, err := applyPagination(items, "", 0)
	require.NoError(t, err)
	require.Nil(t, next)
	require.Empty(t, page)
}
