package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectIsIdempotent(t *testing.T) {
	r := NewRegistry()

	r.Select("position", "p-1")
	r.Select("position", "p-1")

	assert.Equal(t, 1, r.Count("position"))
	assert.True(t, r.IsSelected("position", "p-1"))
}

func TestDeselectAbsentIsNoop(t *testing.T) {
	r := NewRegistry()

	r.Deselect("position", "p-1")
	assert.Equal(t, 0, r.Count("position"))
}

func TestToggle(t *testing.T) {
	r := NewRegistry()

	r.Toggle("alert", "a-1")
	assert.True(t, r.IsSelected("alert", "a-1"))

	r.Toggle("alert", "a-1")
	assert.False(t, r.IsSelected("alert", "a-1"))
}

func TestItemTypesAreIndependent(t *testing.T) {
	r := NewRegistry()

	r.Select("position", "x-1")
	r.Select("trade", "x-1")
	r.Deselect("position", "x-1")

	assert.False(t, r.IsSelected("position", "x-1"))
	assert.True(t, r.IsSelected("trade", "x-1"))
}

func TestSelectAllReplaces(t *testing.T) {
	r := NewRegistry()
	r.Select("order", "stale")

	r.SelectAll("order", []string{"o-1", "o-2"})

	assert.False(t, r.IsSelected("order", "stale"))
	assert.Equal(t, []string{"o-1", "o-2"}, r.SelectedIDs("order"))
}

func TestSelectedIDsSorted(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"c", "a", "b"} {
		r.Select("trade", id)
	}
	assert.Equal(t, []string{"a", "b", "c"}, r.SelectedIDs("trade"))
}

func TestClear(t *testing.T) {
	r := NewRegistry()
	r.Select("position", "p-1")
	r.Select("position", "p-2")

	r.Clear("position")
	assert.Equal(t, 0, r.Count("position"))
}

func TestMode(t *testing.T) {
	all := []string{"a", "b", "c"}
	tests := []struct {
		name     string
		selected []string
		allIDs   []string
		want     Mode
	}{
		{name: "none", selected: nil, allIDs: all, want: ModeNone},
		{name: "partial", selected: []string{"a"}, allIDs: all, want: ModePartial},
		{name: "all", selected: []string{"a", "b", "c"}, allIDs: all, want: ModeAll},
		{name: "selection of removed items only", selected: []string{"z"}, allIDs: all, want: ModePartial},
		{name: "empty universe with selection", selected: []string{"a"}, allIDs: nil, want: ModePartial},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			for _, id := range tt.selected {
				r.Select("position", id)
			}
			assert.Equal(t, tt.want, r.Mode("position", tt.allIDs))
		})
	}
}

func TestRetain(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"a", "b", "c"} {
		r.Select("trade", id)
	}

	r.Retain("trade", []string{"b", "missing"})

	assert.Equal(t, []string{"b"}, r.SelectedIDs("trade"))
}
