package wire

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxmatters/mediactl/internal/engine"
)

func TestCommandJSON(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want string
	}{
		{
			name: "create",
			cmd:  NewCreateSession(engine.SourceRef{ID: "cam0", Kind: engine.SourceCamera, AntiBandingHz: 50}),
			want: `{"cmd":"createSession","source":{"id":"cam0","kind":"camera","antiBandingHz":50}}`,
		},
		{
			name: "zoom",
			cmd:  NewValue(CmdApplyZoom, "s1", 2.5),
			want: `{"cmd":"applyZoom","sessionId":"s1","value":2.5}`,
		},
		{
			name: "destroy",
			cmd:  NewSession(CmdDestroySession, "s1"),
			want: `{"cmd":"destroySession","sessionId":"s1"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.cmd)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestApplyGainsCarriesAllBands(t *testing.T) {
	cmd := NewApplyGains("s1", engine.GainVector{1, 2, 3, 4, 5, 6, -1, -2, -3, -4})
	assert.Len(t, cmd.Gains, engine.Bands)
	assert.Equal(t, -4.0, cmd.Gains[9])
}

func TestResponseErr(t *testing.T) {
	assert.NoError(t, Response{OK: true}.Err(CmdAttach))

	err := Response{Error: "no such target"}.Err(CmdAttach)
	require.Error(t, err)
	assert.Equal(t, engine.KindRejected, engine.KindOf(err))
	assert.Contains(t, err.Error(), "no such target")

	err = Response{Unavailable: true}.Err(CmdCreateSession)
	assert.ErrorIs(t, err, engine.ErrUnavailable)
	assert.Equal(t, engine.KindUnavailable, engine.KindOf(err))
}

func TestEventToEngine(t *testing.T) {
	now := time.Unix(1700000000, 0)

	var ev Event
	require.NoError(t, json.Unmarshal([]byte(`{"event":"level","sessionId":"s1","level":0.42,"clipping":true}`), &ev))
	got, ok := ev.ToEngine(now)
	require.True(t, ok)
	assert.Equal(t, engine.EventLevel, got.Kind)
	assert.Equal(t, 0.42, got.Sample.Level)
	assert.True(t, got.Sample.Clipping)
	assert.Equal(t, now, got.Sample.At)

	require.NoError(t, json.Unmarshal([]byte(`{"event":"telemetry","cpu":12.5}`), &ev))
	got, ok = ev.ToEngine(now)
	require.True(t, ok)
	assert.Equal(t, engine.EventTelemetry, got.Kind)
	assert.Equal(t, 12.5, got.CPUUsage)

	_, ok = Event{Event: "level"}.ToEngine(now)
	assert.False(t, ok, "level without value")
	_, ok = Event{Event: "bogus"}.ToEngine(now)
	assert.False(t, ok)
}

func TestFromEngineRoundTrip(t *testing.T) {
	in := engine.Event{Kind: engine.EventLevel, SessionID: "s1", Sample: engine.LevelSample{Level: 0.9, Silent: true}}
	out, ok := FromEngine(in).ToEngine(time.Time{})
	require.True(t, ok)
	assert.Equal(t, in, out)
}
