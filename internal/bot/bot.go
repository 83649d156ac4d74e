// Package bot answers chat-style commands over MQTT so the enclosure can be
// queried from phones or automations without opening the dashboard.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/gekkolab/vivarium/internal/db"
	"github.com/gekkolab/vivarium/internal/monitoring"
	"github.com/gekkolab/vivarium/internal/sensors"
	"github.com/gekkolab/vivarium/internal/timeutil"
)

const (
	connectTimeout    = 10 * time.Second
	disconnectQuiesce = 250 // milliseconds
)

// ClimateReader serves the most recent enclosure reading.
type ClimateReader interface {
	Latest() (*db.ClimateReading, error)
}

// WeatherReader serves the most recent outdoor observation.
type WeatherReader interface {
	Latest() (*db.WeatherReading, error)
}

// DetectionCounter counts positive classifications since a moment.
type DetectionCounter interface {
	CountDetected(since time.Time) (int64, error)
}

// ResourceReader serves the newest un-aggregated host snapshot.
type ResourceReader interface {
	Latest() *sensors.ResourceSample
}

// Config wires the bot to a broker and the stores it answers from.
type Config struct {
	Broker       string
	ClientID     string
	CommandTopic string
	ReplyTopic   string

	Climate    ClimateReader
	Weather    WeatherReader
	Detections DetectionCounter
	Resources  ResourceReader
	Clock      timeutil.Clock
}

// Bot subscribes to the command topic and publishes one reply per command.
type Bot struct {
	cfg Config
}

// New creates a Bot.
func New(cfg Config) *Bot {
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	return &Bot{cfg: cfg}
}

// Run connects, subscribes and blocks until ctx is cancelled. A broker that
// cannot be reached is logged and tolerated: the dashboard must keep running
// without it.
func (b *Bot) Run(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(b.cfg.Broker).
		SetClientID(b.cfg.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout)
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		monitoring.Logf("bot: connected to %s", b.cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		monitoring.Logf("bot: connection lost: %v", err)
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) || token.Error() != nil {
		monitoring.Logf("bot: broker %s unreachable, bot disabled: %v", b.cfg.Broker, token.Error())
		return nil
	}

	sub := client.Subscribe(b.cfg.CommandTopic, 1, func(c mqtt.Client, m mqtt.Message) {
		reply := b.Dispatch(strings.TrimSpace(string(m.Payload())))
		t := c.Publish(b.cfg.ReplyTopic, 1, false, reply)
		if t.WaitTimeout(connectTimeout) && t.Error() != nil {
			monitoring.Logf("bot: publishing reply: %v", t.Error())
		}
	})
	if !sub.WaitTimeout(connectTimeout) || sub.Error() != nil {
		monitoring.Logf("bot: subscribing to %s failed: %v", b.cfg.CommandTopic, sub.Error())
		client.Disconnect(disconnectQuiesce)
		return nil
	}

	<-ctx.Done()
	client.Disconnect(disconnectQuiesce)
	return nil
}

// Dispatch maps one command to its reply text. Unknown commands get a usage
// hint instead of silence.
func (b *Bot) Dispatch(cmd string) string {
	switch strings.ToLower(cmd) {
	case "temp":
		return b.tempReply()
	case "weather":
		return b.weatherReply()
	case "status":
		return b.statusReply()
	case "gecko":
		return b.geckoReply()
	default:
		return "commands: temp, weather, status, gecko"
	}
}

func (b *Bot) tempReply() string {
	r, err := b.cfg.Climate.Latest()
	if err != nil {
		return "climate store error: " + err.Error()
	}
	if r == nil {
		return "no climate readings yet"
	}
	return fmt.Sprintf("enclosure: %.1fC, %.0f%% humidity, %.0f hPa", r.TemperatureC, r.HumidityPct, r.PressureHPa)
}

func (b *Bot) weatherReply() string {
	r, err := b.cfg.Weather.Latest()
	if err != nil {
		return "weather store error: " + err.Error()
	}
	if r == nil {
		return "no weather readings yet"
	}
	return fmt.Sprintf("outside: %.1fC, %.0f%% humidity", r.TemperatureC, r.HumidityPct)
}

func (b *Bot) statusReply() string {
	s := b.cfg.Resources.Latest()
	if s == nil {
		return "no resource snapshots yet"
	}
	return fmt.Sprintf("host: cpu %.0f%%, mem %.0f%%, disk %.0f%%", s.CPUPct, s.MemPct, s.DiskPct)
}

func (b *Bot) geckoReply() string {
	since := b.cfg.Clock.Now().Add(-24 * time.Hour)
	n, err := b.cfg.Detections.CountDetected(since)
	if err != nil {
		return "detection store error: " + err.Error()
	}
	if n == 0 {
		return "no gecko sightings in the last 24h"
	}
	return fmt.Sprintf("%d gecko sighting(s) in the last 24h", n)
}
