package surface

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// Publisher publishes frame results to MQTT
type Publisher struct {
	client        mqtt.Client
	publishPrefix string
	qos           byte
	retain        bool
	projection    Projection
	last          *FrameSummary
	log           *zap.SugaredLogger
	mu            sync.RWMutex
}

// NewPublisher creates a new result publisher. An empty prefix falls back to
// MQTT_PUBLISH_PREFIX, then to "surfacemesh".
// If client is nil, publishing is disabled (for testing)
func NewPublisher(client mqtt.Client, prefix string, opts ...Option) *Publisher {
	if prefix == "" {
		prefix = os.Getenv("MQTT_PUBLISH_PREFIX")
	}
	if prefix == "" {
		prefix = "surfacemesh"
	}

	return &Publisher{
		client:        client,
		publishPrefix: prefix,
		qos:           0,    // QoS 0 for per-frame results (fire and forget)
		retain:        true, // Retain for latest frame
		projection:    ProjectTopDown,
		log:           buildOptions(opts).log,
	}
}

// PublishResult publishes a frame's planes and obstacles as GeoJSON to
// {prefix}/planes and its summary to {prefix}/summary
func (p *Publisher) PublishResult(fr *FrameResult) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	summary := Summarize(fr)
	p.mu.Lock()
	p.last = &summary
	p.mu.Unlock()

	fc := ResultToFeatureCollection(fr, p.projection)
	geo, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshaling planes: %w", err)
	}
	if err := p.publish("planes", geo); err != nil {
		p.log.Errorf("[MQTT] Error publishing planes for frame %s: %v", fr.FrameID, err)
		return err
	}

	message := map[string]interface{}{
		"summary":   summary,
		"timestamp": time.Now().Unix(),
	}
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}
	if err := p.publish("summary", payload); err != nil {
		p.log.Errorf("[MQTT] Error publishing summary for frame %s: %v", fr.FrameID, err)
		return err
	}

	p.log.Debugf("[MQTT] Published frame %s: %d planes, %d obstacles",
		fr.FrameID, summary.Planes, summary.Obstacles)
	return nil
}

func (p *Publisher) publish(suffix string, payload []byte) error {
	topic := fmt.Sprintf("%s/%s", p.publishPrefix, suffix)
	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}
	return nil
}

// LastSummary returns the summary of the most recently published frame
func (p *Publisher) LastSummary() (FrameSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.last == nil {
		return FrameSummary{}, false
	}
	return *p.last, true
}

// SetQoS sets the Quality of Service level for publishing (0, 1, or 2)
func (p *Publisher) SetQoS(qos byte) {
	if qos <= 2 {
		p.qos = qos
	}
}

// SetRetain sets whether published messages should be retained by the broker
func (p *Publisher) SetRetain(retain bool) {
	p.retain = retain
}

// SetProjection sets how scene coordinates are flattened for GeoJSON output
func (p *Publisher) SetProjection(proj Projection) {
	if proj != nil {
		p.projection = proj
	}
}
