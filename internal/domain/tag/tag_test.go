package tag

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func ptr(v int64) *int64 { return &v }

func TestValidateParent(t *testing.T) {
	top := &Tag{ID: 1, Name: "Construction"}
	sub := &Tag{ID: 2, Name: "Roads", ParentID: ptr(1)}

	tests := []struct {
		name       string
		selfID     *int64
		parent     *Tag
		childCount int
		want       error
	}{
		{name: "no_parent", parent: nil, want: nil},
		{name: "top_level_parent", parent: top, want: nil},
		{name: "parent_is_subcategory", parent: sub, want: ErrParentNotTopLevel},
		{name: "self_parent", selfID: ptr(1), parent: top, want: ErrSelfParent},
		{name: "tag_with_children_cannot_nest", selfID: ptr(5), parent: top, childCount: 2, want: ErrHasChildren},
		{name: "tag_with_children_can_stay_top_level", selfID: ptr(5), parent: nil, childCount: 2, want: nil},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, ValidateParent(tt.selfID, tt.parent, tt.childCount), tt.want)
		})
	}
}

func TestRefUnmarshal(t *testing.T) {
	tests := []struct {
		in      string
		want    Ref
		wantErr bool
	}{
		{in: `null`, want: Ref{}},
		{in: `""`, want: Ref{}},
		{in: `0`, want: Ref{}},
		{in: `"0"`, want: Ref{}},
		{in: `7`, want: Ref{ID: 7, Valid: true}},
		{in: `"12"`, want: Ref{ID: 12, Valid: true}},
		{in: `" 3 "`, want: Ref{ID: 3, Valid: true}},
		{in: `"abc"`, wantErr: true},
		{in: `-4`, wantErr: true},
		{in: `1.5`, wantErr: true},
	}

	for _, tt := range tests {
		var body struct {
			ParentID Ref `json:"parentId"`
		}
		err := json.Unmarshal([]byte(`{"parentId":`+tt.in+`}`), &body)
		if tt.wantErr {
			require.Error(t, err, "input %s", tt.in)
			continue
		}
		require.NoError(t, err, "input %s", tt.in)
		require.Equal(t, tt.want, body.ParentID, "input %s", tt.in)
	}
}

func TestRefMissingFieldIsUnset(t *testing.T) {
	var body WriteRequest
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Energy"}`), &body))
	require.Nil(t, body.ParentID.Ptr())
}

func TestNormalizeRequiresName(t *testing.T) {
	_, _, err := WriteRequest{Name: "   "}.Normalize()
	require.ErrorIs(t, err, ErrNameRequired)

	name, parent, err := WriteRequest{Name: " Energy ", ParentID: NewRef(3)}.Normalize()
	require.NoError(t, err)
	require.Equal(t, "Energy", name)
	require.Equal(t, int64(3), *parent)
}

func TestBuildTree(t *testing.T) {
	tags := []Tag{
		{ID: 1, Name: "Construction"},
		{ID: 3, Name: "Bridges", ParentID: ptr(1)},
		{ID: 2, Name: "IT"},
		{ID: 4, Name: "Roads", ParentID: ptr(1)},
		{ID: 5, Name: "Orphan", ParentID: ptr(99)},
	}

	tree := BuildTree(tags)

	require.Len(t, tree, 2)
	require.Equal(t, "Construction", tree[0].Name)
	require.Equal(t, []Option{{ID: 3, Name: "Bridges"}, {ID: 4, Name: "Roads"}}, tree[0].Children)
	require.Equal(t, "IT", tree[1].Name)
	require.Empty(t, tree[1].Children)
}
