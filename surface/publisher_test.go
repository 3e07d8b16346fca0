package surface

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connectedMock() *MockClient {
	client := NewMockClient()
	client.SetConnected(true)
	return client
}

func TestNewPublisher_Prefix(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		env    string
		want   string
	}{
		{"explicit prefix", "curbs", "from-env", "curbs"},
		{"env fallback", "", "from-env", "from-env"},
		{"default", "", "", "surfacemesh"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("MQTT_PUBLISH_PREFIX", tt.env)
			p := NewPublisher(nil, tt.prefix)
			if p.publishPrefix != tt.want {
				t.Errorf("publishPrefix = %q, want %q", p.publishPrefix, tt.want)
			}
		})
	}
}

func TestPublisher_NotConnected(t *testing.T) {
	p := NewPublisher(nil, "curbs")
	err := p.PublishResult(sampleFrameResult())
	assert.EqualError(t, err, "MQTT client not connected")

	p = NewPublisher(NewMockClient(), "curbs")
	assert.Error(t, p.PublishResult(sampleFrameResult()))
	_, ok := p.LastSummary()
	assert.False(t, ok)
}

func TestPublisher_PublishResult(t *testing.T) {
	client := connectedMock()
	p := NewPublisher(client, "curbs")

	require.NoError(t, p.PublishResult(sampleFrameResult()))
	require.Len(t, client.Published(), 2)

	planes, ok := client.LastPublished("curbs/planes")
	require.True(t, ok)
	assert.True(t, planes.Retain)
	assert.Equal(t, byte(0), planes.QoS)
	fc, err := geojson.UnmarshalFeatureCollection(planes.Payload)
	require.NoError(t, err)
	assert.Len(t, fc.Features, 3)

	summaryMsg, ok := client.LastPublished("curbs/summary")
	require.True(t, ok)
	var body struct {
		Summary   FrameSummary `json:"summary"`
		Timestamp int64        `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(summaryMsg.Payload, &body))
	assert.Equal(t, "frame-0042", body.Summary.FrameID)
	assert.Equal(t, 2, body.Summary.Planes)
	assert.Equal(t, 1, body.Summary.Obstacles)
	assert.Equal(t, 1, body.Summary.Rejections)
	assert.Positive(t, body.Timestamp)

	last, ok := p.LastSummary()
	require.True(t, ok)
	assert.Equal(t, body.Summary.FrameID, last.FrameID)
}

func TestPublisher_Settings(t *testing.T) {
	client := connectedMock()
	p := NewPublisher(client, "curbs")
	p.SetQoS(1)
	p.SetQoS(7) // ignored
	p.SetRetain(false)
	p.SetProjection(ProjectXY)
	p.SetProjection(nil) // ignored

	require.NoError(t, p.PublishResult(sampleFrameResult()))
	msg, ok := client.LastPublished("curbs/planes")
	require.True(t, ok)
	assert.Equal(t, byte(1), msg.QoS)
	assert.False(t, msg.Retain)

	fc, err := geojson.UnmarshalFeatureCollection(msg.Payload)
	require.NoError(t, err)
	// XY projection keeps the ground plane's constant Y of 1.5.
	b := fc.Features[0].Geometry.Bound()
	assert.Equal(t, 1.5, b.Min[1])
	assert.Equal(t, 1.5, b.Max[1])
}

func TestPublisher_PublishError(t *testing.T) {
	client := connectedMock()
	client.SetPublishError(errors.New("broker full"))
	p := NewPublisher(client, "curbs")

	err := p.PublishResult(sampleFrameResult())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "curbs/planes")
	assert.Empty(t, client.Published())
}
