package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willi-kappler/crunchgrid/nodeid"
)

type workItem struct {
	Row int
	Col int
}

type workResult struct {
	Value bool
	Label string
}

func testKey() [32]byte {
	var key [32]byte
	copy(key[:], "aaaaaaaabbbbbbbbccccccccdddddddd")
	return key
}

func roundTrip[W, R any](t *testing.T, msg Message[W, R], key [32]byte) Message[W, R] {
	t.Helper()
	frame, err := Encode[W, R](msg, key)
	require.NoError(t, err)

	decoded, err := Decode[W, R](frame, key)
	require.NoError(t, err)
	return decoded
}

func TestRoundTripBareTagVariants(t *testing.T) {
	key := testKey()

	for _, tc := range []Message[workItem, workResult]{
		HeartbeatOK[workItem, workResult](),
		HeartbeatError[workItem, workResult](),
		InitError[workItem, workResult](),
		ResultOK[workItem, workResult](),
		Quit[workItem, workResult](),
	} {
		got := roundTrip(t, tc, key)
		assert.Equal(t, tc.Tag, got.Tag)
	}
}

func TestRoundTripNodeIDVariants(t *testing.T) {
	key := testKey()
	id := nodeid.New()

	for _, tc := range []Message[workItem, workResult]{
		Heartbeat[workItem, workResult](id),
		Init[workItem, workResult](id),
		NeedData[workItem, workResult](id),
	} {
		got := roundTrip(t, tc, key)
		assert.Equal(t, tc.Tag, got.Tag)
		assert.Equal(t, id, got.NodeID)
	}
}

func TestRoundTripResult(t *testing.T) {
	key := testKey()
	id := nodeid.New()
	msg := Result[workItem, workResult](id, workResult{Value: true, Label: "s"})

	got := roundTrip(t, msg, key)
	assert.Equal(t, TagResult, got.Tag)
	assert.Equal(t, id, got.NodeID)
	assert.Equal(t, workResult{Value: true, Label: "s"}, got.Result)
}

func TestRoundTripInitOK(t *testing.T) {
	key := testKey()
	msg := InitOK[workItem, workResult](workItem{Row: 33, Col: 0})

	frame, err := Encode(msg, key)
	require.NoError(t, err)
	got, err := Decode[workItem, workResult](frame, key)
	require.NoError(t, err)

	assert.Equal(t, TagInitOK, got.Tag)
	require.NotNil(t, got.InitData)
}

func TestRoundTripNewDataItem(t *testing.T) {
	key := testKey()
	item := &workItem{Row: 3, Col: 4}
	msg := NewData[workItem, workResult](item)

	got := roundTrip(t, msg, key)
	assert.Equal(t, TagNewData, got.Tag)
	require.NotNil(t, got.Item)
	assert.Equal(t, *item, *got.Item)
}

func TestRoundTripNewDataSentinel(t *testing.T) {
	key := testKey()
	msg := NewData[workItem, workResult](nil)

	got := roundTrip(t, msg, key)
	assert.Equal(t, TagNewData, got.Tag)
	assert.Nil(t, got.Item)
}

func TestDecodeFailsOnBitFlip(t *testing.T) {
	key := testKey()
	id := nodeid.New()
	frame, err := Encode(Heartbeat[workItem, workResult](id), key)
	require.NoError(t, err)

	flipped := append([]byte(nil), frame...)
	flipped[len(flipped)/2] ^= 0x01

	_, err = Decode[workItem, workResult](flipped, key)
	require.Error(t, err)
	var codecErr *CodecError
	assert.ErrorAs(t, err, &codecErr)
}

func TestDecodeFailsOnWrongKey(t *testing.T) {
	key := testKey()
	var otherKey [32]byte
	copy(otherKey[:], "11111111222222223333333344444444")

	frame, err := Encode(Heartbeat[workItem, workResult](nodeid.New()), key)
	require.NoError(t, err)

	_, err = Decode[workItem, workResult](frame, otherKey)
	require.Error(t, err)
	var codecErr *CodecError
	assert.ErrorAs(t, err, &codecErr)
}
