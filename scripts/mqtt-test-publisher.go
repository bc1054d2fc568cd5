package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/flybeeper/track-recorder/internal/models"
	trackmqtt "github.com/flybeeper/track-recorder/internal/mqtt"
)

// Конфигурация симуляции
type TestConfig struct {
	BrokerURL   string
	Topic       string
	ClientID    string
	PublishRate time.Duration
	MaxMessages int
	RandomSeed  int64
	StartLat    float64
	StartLon    float64
	StartAlt    float64
	SpeedKmh    float64
	NoiseMeters float64
	JSON        bool
}

// TestPublisher публикует фиксы прогулки с шумом датчика
type TestPublisher struct {
	client mqtt.Client
	config *TestConfig
	rand   *rand.Rand
	walker *WalkerState
}

// WalkerState истинное положение симулированного пешехода
type WalkerState struct {
	Position models.GeoPoint
	Altitude float64
	Heading  float64
	Time     time.Time
}

func main() {
	var (
		brokerURL = flag.String("broker", "tcp://localhost:1883", "MQTT broker URL")
		topic     = flag.String("topic", "tracker/sim-1/fix", "Topic to publish fixes to")
		clientID  = flag.String("client", "track-test-publisher", "MQTT client ID")
		rate      = flag.Duration("rate", time.Second, "Fix interval")
		maxMsgs   = flag.Int("max", 0, "Max messages (0 = unlimited)")
		seed      = flag.Int64("seed", time.Now().UnixNano(), "Random seed")
		lat       = flag.Float64("lat", 46.0, "Start latitude")
		lon       = flag.Float64("lon", 7.0, "Start longitude")
		alt       = flag.Float64("alt", 1200, "Start altitude (m)")
		speed     = flag.Float64("speed", 5.0, "Walking speed km/h")
		noise     = flag.Float64("noise", 4.0, "Horizontal sensor noise (m)")
		asJSON    = flag.Bool("json", false, "Publish JSON instead of protobuf wire")
	)
	flag.Parse()

	config := &TestConfig{
		BrokerURL:   *brokerURL,
		Topic:       *topic,
		ClientID:    *clientID,
		PublishRate: *rate,
		MaxMessages: *maxMsgs,
		RandomSeed:  *seed,
		StartLat:    *lat,
		StartLon:    *lon,
		StartAlt:    *alt,
		SpeedKmh:    *speed,
		NoiseMeters: *noise,
		JSON:        *asJSON,
	}

	publisher, err := NewTestPublisher(config)
	if err != nil {
		log.Fatalf("Failed to create publisher: %v", err)
	}
	defer publisher.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		publisher.Start()
		close(done)
	}()

	select {
	case <-sigChan:
		fmt.Println("Interrupted")
	case <-done:
	}
}

// NewTestPublisher подключается к брокеру
func NewTestPublisher(config *TestConfig) (*TestPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.BrokerURL)
	opts.SetClientID(config.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	fmt.Println("Connected to MQTT broker")

	rng := rand.New(rand.NewSource(config.RandomSeed))

	return &TestPublisher{
		client: client,
		config: config,
		rand:   rng,
		walker: &WalkerState{
			Position: models.NewGeoPoint(config.StartLon, config.StartLat),
			Altitude: config.StartAlt,
			Heading:  rng.Float64() * 360,
			Time:     time.Now(),
		},
	}, nil
}

// Start публикует фиксы до лимита
func (p *TestPublisher) Start() {
	ticker := time.NewTicker(p.config.PublishRate)
	defer ticker.Stop()

	count := 0
	for range ticker.C {
		fix := p.nextFix()

		payload, err := p.encode(fix)
		if err != nil {
			log.Printf("Failed to encode fix: %v", err)
			continue
		}

		token := p.client.Publish(p.config.Topic, 1, false, payload)
		if token.Wait() && token.Error() != nil {
			log.Printf("Failed to publish fix: %v", token.Error())
			continue
		}

		count++
		if count%10 == 0 {
			fmt.Printf("Published fixes: %d\n", count)
		}
		if p.config.MaxMessages > 0 && count >= p.config.MaxMessages {
			fmt.Printf("Reached message limit: %d\n", count)
			return
		}
	}
}

// Stop отключается от брокера
func (p *TestPublisher) Stop() {
	if p.client.IsConnected() {
		p.client.Disconnect(1000)
		fmt.Println("Disconnected from MQTT broker")
	}
}

// nextFix продвигает пешехода и возвращает зашумленный фикс
func (p *TestPublisher) nextFix() models.RawFix {
	w := p.walker
	now := time.Now()
	dt := now.Sub(w.Time).Seconds()
	w.Time = now

	// Плавное изменение курса и рельефа
	w.Heading += p.rand.NormFloat64() * 10
	w.Position = w.Position.Destination(p.config.SpeedKmh/3.6*dt, w.Heading)
	w.Altitude += p.rand.NormFloat64() * 0.5

	// Шум датчика и редкие выбросы точности
	accuracy := 3 + p.rand.Float64()*p.config.NoiseMeters
	if p.rand.Float64() < 0.05 {
		accuracy = 25 + p.rand.Float64()*50
	}
	noisy := w.Position.Destination(p.rand.NormFloat64()*p.config.NoiseMeters, p.rand.Float64()*360)

	fix := models.RawFix{
		Longitude:         noisy.Longitude,
		Latitude:          noisy.Latitude,
		AccuracyMeters:    accuracy,
		SensorTimestampMs: now.UnixMilli(),
	}
	if p.rand.Float64() > 0.1 {
		fix.Altitude = models.Float(w.Altitude + p.rand.NormFloat64()*2)
	}
	return fix
}

func (p *TestPublisher) encode(fix models.RawFix) ([]byte, error) {
	if p.config.JSON {
		return json.Marshal(fix)
	}
	return trackmqtt.EncodeFix(fix), nil
}
