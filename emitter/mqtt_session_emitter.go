package emitter

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/mj-112358/winkfinal/models"
)

const (
	DEFAULT_TOPIC_FORMAT    = "wink/sessions/%s"
	DEFAULT_PUBLISH_TIMEOUT = 2 * time.Second
	DEFAULT_QUEUE_SIZE      = 1024
	CONNECT_TIMEOUT         = 5 * time.Second
)

var (
	ErrPublishTimeout = errors.New("mqtt publish timeout")
	ErrQueueFull      = errors.New("mqtt session queue full")
	ErrEmitterClosed  = errors.New("mqtt session emitter closed")
)

// SessionMessage is the payload published for every sealed session.
type SessionMessage struct {
	CameraID        string    `json:"camera_id"`
	ZoneID          string    `json:"zone_id"`
	ZoneVersion     int       `json:"zone_version"`
	ObjectID        string    `json:"object_id"`
	EnterTime       time.Time `json:"enter_time"`
	ExitTime        time.Time `json:"exit_time"`
	DurationSeconds float64   `json:"duration_seconds"`
}

// MQTTSessionEmitter publishes sealed dwell sessions, one topic per camera.
// Sessions are queued and published by a single background goroutine so a
// slow broker never blocks the tracker; when the queue is full new sessions
// are rejected.
type MQTTSessionEmitter struct {
	client      mqtt.Client
	topicFormat string
	qos         byte
	timeout     time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan models.DwellSession
	wg     sync.WaitGroup
}

// NewMQTTClient connects to broker with auto-reconnect enabled.
func NewMQTTClient(broker, clientID string) (mqtt.Client, error) {
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		log.Printf("[MQTTSessionEmitter] Connected to %s as %s", broker, clientID)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Printf("[MQTTSessionEmitter] Connection to %s lost, reconnecting: %v", broker, err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(CONNECT_TIMEOUT) {
		return nil, fmt.Errorf("mqtt connection to %s timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection to %s failed: %w", broker, err)
	}
	return client, nil
}

// NewMQTTSessionEmitter publishes through client. topicFormat takes the
// camera id; empty uses DEFAULT_TOPIC_FORMAT.
func NewMQTTSessionEmitter(client mqtt.Client, topicFormat string) *MQTTSessionEmitter {
	return newMQTTSessionEmitter(client, topicFormat, DEFAULT_QUEUE_SIZE)
}

func newMQTTSessionEmitter(client mqtt.Client, topicFormat string, queueSize int) *MQTTSessionEmitter {
	if topicFormat == "" {
		topicFormat = DEFAULT_TOPIC_FORMAT
	}
	if queueSize <= 0 {
		queueSize = DEFAULT_QUEUE_SIZE
	}
	e := &MQTTSessionEmitter{
		client:      client,
		topicFormat: topicFormat,
		qos:         1,
		timeout:     DEFAULT_PUBLISH_TIMEOUT,
		queue:       make(chan models.DwellSession, queueSize),
	}
	e.wg.Add(1)
	go e.drain()
	return e
}

// IngestSession queues one sealed session for publishing. It never blocks.
func (e *MQTTSessionEmitter) IngestSession(session models.DwellSession) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrEmitterClosed
	}
	select {
	case e.queue <- session:
		return nil
	default:
		return fmt.Errorf("%w: dropping %s", ErrQueueFull, session.ToString())
	}
}

// Close stops accepting sessions, publishes what is queued and disconnects,
// waiting up to 250ms for in-flight publishes.
func (e *MQTTSessionEmitter) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.queue)
	e.mu.Unlock()

	e.wg.Wait()
	e.client.Disconnect(250)
}

func (e *MQTTSessionEmitter) drain() {
	defer e.wg.Done()
	for session := range e.queue {
		if err := e.publish(session); err != nil {
			log.Printf("[MQTTSessionEmitter] %v", err)
		}
	}
}

func (e *MQTTSessionEmitter) publish(session models.DwellSession) error {
	topic, payload, err := e.message(session)
	if err != nil {
		return err
	}
	token := e.client.Publish(topic, e.qos, false, payload)
	if !token.WaitTimeout(e.timeout) {
		return fmt.Errorf("%w: topic=%s", ErrPublishTimeout, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish to %s failed: %w", topic, err)
	}
	return nil
}

func (e *MQTTSessionEmitter) message(session models.DwellSession) (string, []byte, error) {
	payload, err := json.Marshal(SessionMessage{
		CameraID:        session.CameraID,
		ZoneID:          session.ZoneID,
		ZoneVersion:     session.ZoneVersion,
		ObjectID:        session.ObjectID,
		EnterTime:       session.EnterTime.UTC(),
		ExitTime:        session.ExitTime().UTC(),
		DurationSeconds: session.Duration.Seconds(),
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal session: %w", err)
	}
	return fmt.Sprintf(e.topicFormat, session.CameraID), payload, nil
}
