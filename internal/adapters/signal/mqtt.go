package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/Consult/internal/domain"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const mqttQoS = 1

// envelope wraps every message published to the broker so a participant
// can drop its own echoes and order the two ready announcements.
type envelope struct {
	From string         `json:"from"`
	At   int64          `json:"at"`
	Msg  domain.Message `json:"msg"`
}

// readyStamp orders ready announcements; ties go to the client id.
type readyStamp struct {
	At   int64
	From string
}

func (s readyStamp) after(o readyStamp) bool {
	if s.At != o.At {
		return s.At > o.At
	}
	return s.From > o.From
}

// MQTTChannel routes one appointment room through an MQTT broker instead
// of the signaling server. Ready announcements are retained on a presence
// topic; the participant that announced first is told to offer, the same
// way the server pairs rooms.
type MQTTChannel struct {
	client   mqtt.Client
	clientID string
	room     domain.AppointmentID
	msgTopic string
	presence string
	log      zerolog.Logger

	subs *fanout

	mu        sync.Mutex
	mine      *readyStamp
	peerReady *readyStamp
}

func DialMQTT(ctx context.Context, broker, prefix string, room domain.AppointmentID) (*MQTTChannel, error) {
	c := &MQTTChannel{
		clientID: "consult-" + uuid.NewString(),
		room:     room,
		msgTopic: fmt.Sprintf("%s/%s/signal", prefix, room),
		presence: fmt.Sprintf("%s/%s/presence", prefix, room),
		subs:     newFanout(),
	}
	c.log = log.With().Str("module", "signal.mqtt").Str("room", string(room)).Str("client", c.clientID).Logger()

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(c.clientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetOrderMatters(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.log.Warn().Err(err).Msg("connection lost")
	})

	c.client = mqtt.NewClient(opts)
	if err := wait(ctx, c.client.Connect()); err != nil {
		return nil, fmt.Errorf("mqtt connect failed: %w", err)
	}
	for _, topic := range []string{c.msgTopic, c.presence} {
		if err := wait(ctx, c.client.Subscribe(topic, mqttQoS, c.onMessage)); err != nil {
			c.client.Disconnect(250)
			return nil, fmt.Errorf("subscribe %s failed: %w", topic, err)
		}
	}
	c.log.Info().Str("broker", broker).Msg("connected")
	return c, nil
}

func wait(ctx context.Context, t mqtt.Token) error {
	select {
	case <-t.Done():
		return t.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *MQTTChannel) onMessage(_ mqtt.Client, m mqtt.Message) {
	if len(m.Payload()) == 0 {
		// cleared presence
		return
	}
	var env envelope
	if err := json.Unmarshal(m.Payload(), &env); err != nil {
		c.log.Warn().Err(err).Str("topic", m.Topic()).Msg("bad payload")
		return
	}
	if env.From == c.clientID {
		return
	}
	if env.Msg.Kind != domain.KindReady {
		c.subs.publish(env.Msg)
		return
	}

	theirs := readyStamp{At: env.At, From: env.From}
	c.mu.Lock()
	c.peerReady = &theirs
	offer := c.mine != nil && theirs.after(*c.mine)
	c.mu.Unlock()
	if offer {
		c.subs.publish(domain.NewRoomEvent(domain.KindRoomJoined, c.room))
	}
}

func (c *MQTTChannel) Send(ctx context.Context, msg domain.Message) error {
	now := time.Now().UnixNano()
	topic, retained := c.msgTopic, false

	switch msg.Kind {
	case domain.KindReady:
		mine := readyStamp{At: now, From: c.clientID}
		c.mu.Lock()
		c.mine = &mine
		c.mu.Unlock()
		topic, retained = c.presence, true
	case domain.KindBye:
		c.clearPresence(ctx)
	}

	payload, err := json.Marshal(envelope{From: c.clientID, At: now, Msg: msg})
	if err != nil {
		return err
	}
	if err := wait(ctx, c.client.Publish(topic, mqttQoS, retained, payload)); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	return nil
}

func (c *MQTTChannel) clearPresence(ctx context.Context) {
	c.mu.Lock()
	had := c.mine != nil
	c.mine = nil
	c.peerReady = nil
	c.mu.Unlock()
	if !had {
		return
	}
	if err := wait(ctx, c.client.Publish(c.presence, mqttQoS, true, []byte{})); err != nil {
		c.log.Warn().Err(err).Msg("clear presence")
	}
}

func (c *MQTTChannel) Subscribe() (<-chan domain.Message, func()) {
	return c.subs.subscribe()
}

// Close clears this participant's presence and disconnects.
func (c *MQTTChannel) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c.clearPresence(ctx)
	c.subs.close()
	c.client.Disconnect(250)
	c.log.Info().Msg("disconnected")
	return nil
}
