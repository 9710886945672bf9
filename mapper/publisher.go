package mapper

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/kwv/odomesh/odometry"
)

// PosePayload is published on <prefix>/<robot>/pose.
type PosePayload struct {
	RobotID    string              `json:"robotId"`
	SessionID  string              `json:"sessionId"`
	Pose       odometry.Pose       `json:"pose"` // cm, rad
	X          float64             `json:"x"`    // m
	Y          float64             `json:"y"`    // m
	Velocities odometry.Velocities `json:"velocities"`
	Collision  bool                `json:"collision"`
	Timestamp  int64               `json:"timestamp"` // Unix ms
}

// CollisionPayload is published on <prefix>/<robot>/collision when the
// collision state changes.
type CollisionPayload struct {
	RobotID   string  `json:"robotId"`
	Collision bool    `json:"collision"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Timestamp int64   `json:"timestamp"`
}

// Publisher publishes robot poses and rooms to MQTT
type Publisher struct {
	client        mqtt.Client
	publishPrefix string
	qos           byte
	retain        bool
	poses         map[string]*PosePayload
	mu            sync.RWMutex
}

// NewPublisher creates a publisher. MQTT_PUBLISH_PREFIX overrides prefix;
// an empty prefix selects DefaultPublishPrefix. A nil client disables
// publishing.
func NewPublisher(client mqtt.Client, prefix string) *Publisher {
	return &Publisher{
		client:        client,
		publishPrefix: envOr("MQTT_PUBLISH_PREFIX", orDefault(prefix, DefaultPublishPrefix)),
		qos:           0,
		retain:        true,
		poses:         make(map[string]*PosePayload),
	}
}

// Topic returns <prefix>/<robotID>/<suffix>.
func (p *Publisher) Topic(robotID, suffix string) string {
	return fmt.Sprintf("%s/%s/%s", p.publishPrefix, robotID, suffix)
}

// PublishPose publishes the observation's pose and remembers it as the
// robot's last pose.
func (p *Publisher) PublishPose(robotID string, obs Observation) error {
	pose := &PosePayload{
		RobotID:    robotID,
		SessionID:  obs.SessionID,
		Pose:       obs.Pose,
		X:          obs.Point.X,
		Y:          obs.Point.Y,
		Velocities: obs.Velocities,
		Collision:  obs.Collision,
		Timestamp:  obs.Point.Timestamp,
	}
	if pose.Timestamp == 0 {
		pose.Timestamp = time.Now().UnixMilli()
	}

	p.mu.Lock()
	p.poses[robotID] = pose
	p.mu.Unlock()

	return p.publishJSON(p.Topic(robotID, "pose"), p.retain, pose)
}

// PublishRoom publishes the room description, always retained.
func (p *Publisher) PublishRoom(robotID string, room *odometry.Room) error {
	if room == nil {
		return fmt.Errorf("no room to publish for %s", robotID)
	}
	if err := p.publishJSON(p.Topic(robotID, "room"), true, room); err != nil {
		return err
	}
	log.Printf("[MQTT] published room %q for %s (%d vertices)", room.Name, robotID, len(room.Vertices))
	return nil
}

// PublishGeoJSON publishes an already encoded feature collection, retained.
func (p *Publisher) PublishGeoJSON(robotID string, data []byte) error {
	return p.publish(p.Topic(robotID, "room.geojson"), true, data)
}

// PublishCollision publishes a collision state change.
func (p *Publisher) PublishCollision(robotID string, obs Observation) error {
	payload := CollisionPayload{
		RobotID:   robotID,
		Collision: obs.Collision,
		X:         obs.Point.X,
		Y:         obs.Point.Y,
		Timestamp: time.Now().UnixMilli(),
	}
	return p.publishJSON(p.Topic(robotID, "collision"), p.retain, payload)
}

func (p *Publisher) publishJSON(topic string, retain bool, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling payload for %s: %w", topic, err)
	}
	return p.publish(topic, retain, payload)
}

func (p *Publisher) publish(topic string, retain bool, payload []byte) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}
	token := p.client.Publish(topic, p.qos, retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}
	return nil
}

// GetPose returns the last published pose for a robot
func (p *Publisher) GetPose(robotID string) (PosePayload, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pose, ok := p.poses[robotID]
	if !ok {
		return PosePayload{}, false
	}
	return *pose, true
}

// ClearPose forgets a robot's last pose, e.g. after a reset.
func (p *Publisher) ClearPose(robotID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.poses, robotID)
}

// SetQoS sets the Quality of Service level for publishing (0, 1, or 2)
func (p *Publisher) SetQoS(qos byte) {
	if qos <= 2 {
		p.qos = qos
	}
}

// SetRetain sets whether pose and collision messages are retained
func (p *Publisher) SetRetain(retain bool) {
	p.retain = retain
}
