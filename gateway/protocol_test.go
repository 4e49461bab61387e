package gateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestHeartbeatPayload(t *testing.T) {
	assert.JSONEq(t, `{"op":1,"d":null}`, mustJSON(t, heartbeatPayload(nil)))
	assert.JSONEq(t, `{"op":1,"d":42}`, mustJSON(t, heartbeatPayload(seqPtr(42))))
}

func TestIdentifyPayload(t *testing.T) {
	id := Identity{
		Token:      "tok",
		Presence:   Presence{Status: "idle", CustomText: "ignored here"},
		Properties: DeviceProperties("android"),
	}
	assert.JSONEq(t, `{
		"op": 2,
		"d": {
			"token": "tok",
			"properties": {"$os": "Android", "$browser": "Discord Android", "$device": "android"},
			"presence": {"status": "idle", "afk": false},
			"compress": false,
			"intents": 0
		}
	}`, mustJSON(t, identifyPayload(id)))
}

func TestResumePayload(t *testing.T) {
	assert.JSONEq(t, `{"op":6,"d":{"token":"tok","session_id":"abc","seq":42}}`,
		mustJSON(t, resumePayload("tok", "abc", 42)))
}

func TestPresencePayload_NoEmoji(t *testing.T) {
	assert.JSONEq(t, `{
		"op": 3,
		"d": {
			"since": 0,
			"activities": [{"type": 4, "state": "", "name": "Custom Status", "id": "custom"}],
			"status": "online",
			"afk": false
		}
	}`, mustJSON(t, presencePayload(Presence{Status: "online"})))
}

func TestPresencePayload_UnicodeEmoji(t *testing.T) {
	p := Presence{Status: "dnd", CustomText: "busy", Emoji: &Emoji{Name: "🔥"}}
	assert.JSONEq(t, `{
		"op": 3,
		"d": {
			"since": 0,
			"activities": [{"type": 4, "state": "busy", "name": "Custom Status", "id": "custom", "emoji": {"name": "🔥"}}],
			"status": "dnd",
			"afk": false
		}
	}`, mustJSON(t, presencePayload(p)))
}

func TestPresencePayload_CustomEmoji(t *testing.T) {
	p := Presence{Status: "online", CustomText: "hi", Emoji: &Emoji{Name: "blob", ID: "123", Animated: false}}
	out := mustJSON(t, presencePayload(p))
	assert.Contains(t, out, `"emoji":{"name":"blob","id":"123","animated":false}`)
}

func TestPresencePayload_EmojiWithoutNameOmitted(t *testing.T) {
	p := Presence{Status: "online", Emoji: &Emoji{ID: "123"}}
	assert.NotContains(t, mustJSON(t, presencePayload(p)), "emoji")
}

func TestParseHello(t *testing.T) {
	f, err := ParseFrame([]byte(`{"op":10,"d":{"heartbeat_interval":41250},"s":null,"t":null}`))
	require.NoError(t, err)
	interval, err := parseHello(f)
	require.NoError(t, err)
	assert.Equal(t, int64(41250), interval)

	_, err = parseHello(Frame{Op: OpHeartbeatAck})
	assert.Error(t, err)

	_, err = parseHello(Frame{Op: OpHello, D: json.RawMessage(`{"heartbeat_interval":0}`)})
	assert.Error(t, err)

	_, err = parseHello(Frame{Op: OpHello})
	assert.Error(t, err)
}

func TestParseInvalidSession(t *testing.T) {
	for raw, want := range map[string]bool{
		`{"op":9,"d":false}`: false,
		`{"op":9,"d":true}`:  true,
		`{"op":9,"d":null}`:  false,
		`{"op":9}`:           false,
	} {
		f, err := ParseFrame([]byte(raw))
		require.NoError(t, err)
		assert.Equal(t, want, parseInvalidSession(f), raw)
	}
}

func TestParseFrame_Dispatch(t *testing.T) {
	f, err := ParseFrame([]byte(`{"op":0,"s":7,"t":"READY","d":{"session_id":"abc"}}`))
	require.NoError(t, err)
	assert.Equal(t, OpDispatch, f.Op)
	require.NotNil(t, f.S)
	assert.Equal(t, int64(7), *f.S)
	assert.Equal(t, EventTypeReady, f.T)

	_, err = ParseFrame([]byte(`not json`))
	assert.Error(t, err)
}

func TestDeviceProperties_Fallback(t *testing.T) {
	assert.Equal(t, DeviceProperties("pc"), DeviceProperties("toaster"))
	assert.Equal(t, "iphone", DeviceProperties(" iOS ").Device)
}

func TestOpString(t *testing.T) {
	assert.Equal(t, "INVALID_SESSION", OpInvalidSession.String())
	assert.Equal(t, "OP(42)", Op(42).String())
}
