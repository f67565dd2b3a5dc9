package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEngine(t *testing.T) {
	tests := []struct {
		in      string
		want    Engine
		wantErr bool
	}{
		{"", EngineGemini, false},
		{"  ", EngineGemini, false},
		{"gemini", EngineGemini, false},
		{"DeepSeek", EngineDeepSeek, false},
		{" google ", EngineGoogle, false},
		{"bing", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseEngine(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSnapshotJSON(t *testing.T) {
	snap := SessionSnapshot{
		State:  StateResults,
		Engine: EngineGoogle,
		Images: []ImageHandle{{Ref: "http://x/a.png", Name: "a.png", Payload: []byte{1}}},
	}
	data, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":"results","engine":"google","images":[{"ref":"http://x/a.png","name":"a.png"}]}`, string(data))
}

func TestImageHandleLocal(t *testing.T) {
	assert.True(t, ImageHandle{Payload: []byte{}}.Local())
	assert.False(t, ImageHandle{Ref: "http://x"}.Local())
	assert.Equal(t, "SessionState(9)", SessionState(9).String())
}
