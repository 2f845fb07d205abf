package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPage(t *testing.T) {
	iPtr := func(i int) *int { return &i }

	tests := []struct {
		name   string
		limit  *int
		offset int
		want   Page
	}{
		{name: "defaults", want: Page{Limit: DefaultPageLimit}},
		{name: "within bounds", limit: iPtr(20), offset: 40, want: Page{Limit: 20, Offset: 40}},
		{name: "zero limit", limit: iPtr(0), want: Page{Limit: 1}},
		{name: "negative limit", limit: iPtr(-5), want: Page{Limit: 1}},
		{name: "limit too big", limit: iPtr(1000), want: Page{Limit: MaxPageLimit}},
		{name: "max limit", limit: iPtr(MaxPageLimit), want: Page{Limit: MaxPageLimit}},
		{name: "negative offset", limit: iPtr(10), offset: -3, want: Page{Limit: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewPage(tt.limit, tt.offset))
		})
	}
}

func TestPage_Bounds(t *testing.T) {
	tests := []struct {
		name      string
		page      Page
		n         int
		wantStart int
		wantEnd   int
	}{
		{name: "unlimited", page: Page{}, n: 7, wantStart: 0, wantEnd: 7},
		{name: "first page", page: Page{Limit: 3}, n: 7, wantStart: 0, wantEnd: 3},
		{name: "last page", page: Page{Limit: 3, Offset: 6}, n: 7, wantStart: 6, wantEnd: 7},
		{name: "past the end", page: Page{Limit: 3, Offset: 10}, n: 7, wantStart: 7, wantEnd: 7},
		{name: "empty", page: Page{Limit: 3}, n: 0, wantStart: 0, wantEnd: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := tt.page.Bounds(tt.n)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantEnd, end)
		})
	}
}

func TestDBOrdering_String(t *testing.T) {
	assert.Equal(t, "created_at DESC", DBOrdering{Field: "created_at"}.String())
	assert.Equal(t, "username ASC", DBOrdering{Field: "username", Ascending: true}.String())
}

func TestCleanString(t *testing.T) {
	assert.Equal(t, "Jane Doe", CleanString("  Jane Doe \n"))
	assert.Equal(t, "jane@alama.io", CleanString(" Jane@Alama.io ", true))
}
