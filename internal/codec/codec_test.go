package codec

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satchelbase/satchel/pkg/model"
)

// goldenSnapshot is the fixture encoded by the golden tests. Values are
// fixed so the fixture bytes never drift.
func goldenSnapshot() Snapshot {
	return Snapshot{
		Relations: map[model.RelationName][]model.Key{
			model.RelationFollowing:    {"user_7", "user_42"},
			model.RelationLikedPosts:   {"post_2", "post_1"},
			model.RelationCartProducts: {"prod_100"},
		},
		Items: Items{
			Cart: []model.CartItem{
				{
					ID:            "itm_1700000000000000000_a1b2c3",
					ProductID:     "prod_100",
					Name:          "Trail Mix",
					Price:         5.25,
					OriginalPrice: 6.5,
					Quantity:      2,
					CreatedAt:     1700000000000,
				},
			},
			Posts: []model.SocialPost{
				{
					ID:        "pst_1700000000000000001_d4e5f6",
					Author:    "user_7",
					Body:      "first post",
					CreatedAt: 1700000000001,
				},
			},
		},
		Seq: map[model.RelationName]uint64{
			model.RelationFollowing:  3,
			model.RelationLikedPosts: 1,
		},
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	snap := goldenSnapshot()

	data, err := Encode(snap)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)

	// Relation keys come back sorted.
	assert.Equal(t, []model.Key{"user_42", "user_7"}, got.Relations[model.RelationFollowing])
	assert.Equal(t, []model.Key{"post_1", "post_2"}, got.Relations[model.RelationLikedPosts])
	assert.Equal(t, []model.Key{"prod_100"}, got.Relations[model.RelationCartProducts])

	// Entity lists survive verbatim, in order.
	assert.Equal(t, snap.Items, got.Items)
	assert.Equal(t, snap.Seq, got.Seq)
}

func TestEncode_Deterministic(t *testing.T) {
	a := goldenSnapshot()
	b := goldenSnapshot()
	// Same set, different insertion order.
	b.Relations[model.RelationFollowing] = []model.Key{"user_42", "user_7"}
	b.Relations[model.RelationLikedPosts] = []model.Key{"post_1", "post_2"}

	encA, err := Encode(a)
	require.NoError(t, err)
	encB, err := Encode(b)
	require.NoError(t, err)

	assert.Equal(t, encA, encB)
}

func TestEncode_Golden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	data, err := Encode(goldenSnapshot())
	require.NoError(t, err)
	g.Assert(t, "encode_v3", data)

	empty, err := Encode(Snapshot{})
	require.NoError(t, err)
	g.Assert(t, "encode_empty", empty)
}

func TestDecode_GoldenFixture(t *testing.T) {
	data, err := os.ReadFile("testdata/golden/encode_v3.golden")
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, []model.Key{"user_42", "user_7"}, got.Relations[model.RelationFollowing])
	assert.Equal(t, goldenSnapshot().Items, got.Items)
	assert.Equal(t, goldenSnapshot().Seq, got.Seq)
}

func TestDecode_DiscardsDuplicateKeys(t *testing.T) {
	state, err := json.Marshal(Snapshot{
		Relations: map[model.RelationName][]model.Key{
			model.RelationFollowing: {"user_1", "user_2", "user_1", "user_1"},
		},
	})
	require.NoError(t, err)

	data, err := json.Marshal(envelope{
		Version:  Version,
		Checksum: checksum(state),
		State:    state,
	})
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, []model.Key{"user_1", "user_2"}, got.Relations[model.RelationFollowing])
}

func TestDecode_EmptyCollectionsNonNil(t *testing.T) {
	data, err := Encode(Snapshot{})
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)

	assert.NotNil(t, got.Relations)
	assert.NotNil(t, got.Seq)
	assert.Empty(t, got.Relations)
	assert.Empty(t, got.Items.Cart)
	assert.Empty(t, got.Items.Wishlist)
	assert.Empty(t, got.Items.Posts)
}

func TestDecode_Malformed(t *testing.T) {
	stringState := []byte(`"hello"`)
	stringStateEnv, err := json.Marshal(envelope{
		Version:  Version,
		Checksum: checksum(stringState),
		State:    stringState,
	})
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
	}{
		{name: "not json", data: []byte("satchel")},
		{name: "empty", data: []byte{}},
		{name: "null", data: []byte("null")},
		{name: "array", data: []byte("[1,2,3]")},
		{name: "version zero", data: []byte(`{"version":0}`)},
		{name: "missing version", data: []byte(`{"relations":{}}`)},
		{name: "missing state", data: []byte(`{"version":3,"checksum":"abc"}`)},
		{name: "checksum mismatch", data: []byte(`{"version":3,"checksum":"0000000000000000","state":{"items":{}}}`)},
		{name: "state wrong shape", data: stringStateEnv},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			assert.ErrorIs(t, err, model.ErrMalformedBlob)
		})
	}
}

func TestDecode_VersionTooNew(t *testing.T) {
	_, err := Decode([]byte(`{"version":4,"checksum":"abc","state":{"items":{}}}`))
	assert.ErrorIs(t, err, model.ErrVersionTooNew)
	assert.NotErrorIs(t, err, model.ErrMalformedBlob)
}

func TestDecode_TamperedStateFailsChecksum(t *testing.T) {
	data, err := Encode(goldenSnapshot())
	require.NoError(t, err)

	tampered := append([]byte(nil), data...)
	// Flip a byte inside the state payload without breaking JSON syntax
	// (the last '5' sits inside the post identifier string).
	idx := bytes.LastIndexByte(tampered, '5')
	require.Greater(t, idx, 0)
	tampered[idx] = '6'

	_, err = Decode(tampered)
	assert.ErrorIs(t, err, model.ErrMalformedBlob)
}
