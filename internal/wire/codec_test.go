package wire

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildGet(t *testing.T) {
	assert.Equal(t, "get foo\r\n", string(BuildGet("foo")))
}

func TestBuildSet(t *testing.T) {
	assert.Equal(t, "set foo 0 30 3\r\nbar\r\n", string(BuildSet("foo", []byte("bar"), 30)))
	assert.Equal(t, "set foo 0 0 0\r\n\r\n", string(BuildSet("foo", nil, 0)))
}

func feedAll(t *testing.T, feeder Feeder, chunks ...string) Result {
	t.Helper()
	var acc []byte
	var r Result
	for _, c := range chunks {
		r = feeder(acc, []byte(c))
		if r.Done {
			return r
		}
		acc = r.Acc
	}
	return r
}

func TestFeedGetMiss(t *testing.T) {
	r := feedAll(t, FeedGet, "END\r\n")
	require.True(t, r.Done)
	require.NoError(t, r.Err)
	assert.True(t, r.Absent)
}

func TestFeedGetMissAcrossPackets(t *testing.T) {
	r := feedAll(t, FeedGet, "EN", "D", "\r", "\n")
	require.True(t, r.Done)
	assert.True(t, r.Absent)
}

func TestFeedGetHit(t *testing.T) {
	r := feedAll(t, FeedGet, "VALUE foo 0 3\r\nbar\r\nEND\r\n")
	require.True(t, r.Done)
	require.NoError(t, r.Err)
	assert.False(t, r.Absent)
	assert.Equal(t, "bar", string(r.Value))
}

func TestFeedGetHitAcrossPackets(t *testing.T) {
	whole := "VALUE foo 0 3\r\nbar\r\nEND\r\n"
	for split := 1; split < len(whole); split++ {
		r := feedAll(t, FeedGet, whole[:split], whole[split:])
		require.True(t, r.Done, "split at %d", split)
		require.NoError(t, r.Err, "split at %d", split)
		assert.Equal(t, "bar", string(r.Value), "split at %d", split)
	}
}

// TestFeedGetPayloadContainsEND is the regression test for the
// length-directed fix: a payload that itself contains the literal bytes
// "\r\nEND\r\n" must not be mistaken for the real trailer.
func TestFeedGetPayloadContainsEND(t *testing.T) {
	payload := "abc\r\nEND\r\ndef"
	whole := "VALUE foo 0 " + strconv.Itoa(len(payload)) + "\r\n" + payload + "\r\nEND\r\n"
	r := feedAll(t, FeedGet, whole)
	require.True(t, r.Done)
	require.NoError(t, r.Err)
	assert.Equal(t, payload, string(r.Value))
}

func TestFeedGetEmptyValue(t *testing.T) {
	r := feedAll(t, FeedGet, "VALUE foo 0 0\r\n\r\nEND\r\n")
	require.True(t, r.Done)
	require.NoError(t, r.Err)
	assert.Equal(t, "", string(r.Value))
}

func TestFeedGetErrorFramings(t *testing.T) {
	cases := map[string]string{
		"ERROR\r\n":                     "unknown error from server",
		"CLIENT_ERROR bad data\r\n":     "client error: bad data",
		"SERVER_ERROR out of memory\r\n": "server error: out of memory",
	}
	for input, wantMsg := range cases {
		r := feedAll(t, FeedGet, input)
		require.True(t, r.Done, input)
		require.Error(t, r.Err, input)
		assert.Equal(t, wantMsg, r.Err.Error(), input)
	}
}

func TestFeedSetStored(t *testing.T) {
	r := feedAll(t, FeedSet, "STORED\r\n")
	require.True(t, r.Done)
	require.NoError(t, r.Err)
}

func TestFeedSetStoredAcrossPackets(t *testing.T) {
	whole := "STORED\r\n"
	for split := 1; split < len(whole); split++ {
		r := feedAll(t, FeedSet, whole[:split], whole[split:])
		require.True(t, r.Done, "split at %d", split)
		require.NoError(t, r.Err, "split at %d", split)
	}
}

func TestFeedSetErrorFramings(t *testing.T) {
	r := feedAll(t, FeedSet, "SERVER_ERROR timeout\r\n")
	require.True(t, r.Done)
	require.Error(t, r.Err)
	assert.True(t, strings.HasPrefix(r.Err.Error(), "server error:"))
}

func TestFeedSetIncomplete(t *testing.T) {
	r := FeedSet(nil, []byte("STOR"))
	assert.False(t, r.Done)
	assert.Equal(t, "STOR", string(r.Acc))
}

