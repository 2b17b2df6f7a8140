// Command sesame-bridge connects a SESAME smart lock to an MQTT broker and
// lets a 433MHz remote toggle it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
	"tinygo.org/x/bluetooth"

	"github.com/sweeney/sesame-bridge/internal/config"
	"github.com/sweeney/sesame-bridge/internal/dispatch"
	"github.com/sweeney/sesame-bridge/internal/gpio"
	"github.com/sweeney/sesame-bridge/internal/lock"
	"github.com/sweeney/sesame-bridge/internal/logging"
	"github.com/sweeney/sesame-bridge/internal/logic"
	"github.com/sweeney/sesame-bridge/internal/mqtt"
	"github.com/sweeney/sesame-bridge/internal/network"
	"github.com/sweeney/sesame-bridge/internal/sesame"
	"github.com/sweeney/sesame-bridge/internal/status"
	"github.com/sweeney/sesame-bridge/internal/supervisor"
	"github.com/sweeney/sesame-bridge/internal/web"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	configPath := flag.String("config", "/etc/sesame-bridge/config.yaml", "Path to the YAML configuration file")
	logLevel := flag.String("log-level", "", "Override logging.level (debug, info, warn, error)")
	printConfig := flag.Bool("print-config", false, "Print the effective configuration (secrets redacted) and exit")

	flag.Parse()

	boot := logging.NewWithWriter(config.LoggingConfig{Level: "info", Format: "console"}, version, os.Stderr)

	cfg, err := config.Load(*configPath)
	if err != nil {
		boot.Fatal().Err(err).Str("path", *configPath).Msg("loading configuration")
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	if *printConfig {
		out, err := yaml.Marshal(cfg.Redacted())
		if err != nil {
			boot.Fatal().Err(err).Msg("encoding configuration")
		}
		fmt.Print(string(out))
		return
	}

	log := logging.New(cfg.Logging, version)
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	state := &logic.SystemState{}
	debouncer := logic.NewDebouncer(cfg.Radio.MinWidth, cfg.Radio.SignalTimeout)

	// Radio receiver
	if cfg.Radio.Enabled {
		edges, err := gpio.NewRealEdgeSource(cfg.Radio.Chip, cfg.Radio.Pin, func(at time.Duration) {
			debouncer.Capture(at)
		})
		if err != nil {
			return fmt.Errorf("init radio: %w", err)
		}
		defer edges.Close()
		log.Info().Str("chip", cfg.Radio.Chip).Int("pin", edges.Pin()).Msg("radio receiver armed")
	} else {
		log.Info().Msg("radio receiver disabled")
	}

	// Network link
	var link network.Link = network.AlwaysUp{}
	if cfg.Network.Manager == config.ManagerNetworkManager {
		link = network.NewNetworkManager(cfg.Network.Interface, log)
	}

	// Broker session
	session := mqtt.NewRealSession(mqtt.Options{
		Broker:         cfg.MQTT.Broker,
		ClientID:       cfg.MQTT.ClientID,
		Username:       cfg.MQTT.Username,
		Password:       cfg.MQTT.Password,
		ConnectTimeout: cfg.MQTT.ConnectTimeout,
		PublishTimeout: cfg.MQTT.PublishTimeout,
	}, log)
	defer session.Close()

	// Lock session
	model, err := sesame.ParseModel(cfg.Device.Model)
	if err != nil {
		return err
	}
	client := sesame.NewBLEClient(bluetooth.DefaultAdapter, cfg.Device.ConnectTimeout, log)
	defer client.Disconnect()

	tracker := status.NewTracker(time.Now(), status.Config{
		Device:       cfg.Device.Name,
		Address:      cfg.Device.Address,
		Model:        cfg.Device.Model,
		Broker:       cfg.MQTT.Broker,
		CommandTopic: cfg.MQTT.Topics.Command,
		StatusTopic:  cfg.MQTT.Topics.Status,
		RadioTopic:   cfg.MQTT.Topics.Radio,
		RadioEnabled: cfg.Radio.Enabled,
		RadioPin:     cfg.Radio.Pin,
		HTTPAddr:     cfg.HTTP.Addr,
		Version:      version,
	})

	b := newBridge(cfg, state, debouncer, link, session, client, model, tracker, nil, log)

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("http server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("http status server listening")
	}

	log.Info().
		Str("device", cfg.Device.Name).
		Str("address", cfg.Device.Address).
		Str("broker", cfg.MQTT.Broker).
		Dur("tick", cfg.Loop.Tick).
		Msg("started")

	ticker := time.NewTicker(cfg.Loop.Tick)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(b, time.Now, ticker.C, sigCh)
}

// bridge wires the components that run on the main loop.
type bridge struct {
	state      *logic.SystemState
	debouncer  *logic.Debouncer
	session    mqtt.Session
	supervisor *supervisor.Supervisor
	controller *lock.Controller
	dispatcher *dispatch.Dispatcher
	tracker    *status.Tracker
	log        zerolog.Logger
}

// newBridge builds the loop components. sleep replaces time.Sleep for the
// blocking waits (link polling, status grace); nil means time.Sleep.
func newBridge(cfg *config.Config, state *logic.SystemState, debouncer *logic.Debouncer,
	link network.Link, session mqtt.Session, client sesame.Client, model sesame.Model,
	tracker *status.Tracker, sleep func(time.Duration), log zerolog.Logger) *bridge {

	ctrl := lock.NewController(client, state, lock.Options{
		Address:        cfg.Device.Address,
		Model:          model,
		PublicKey:      cfg.PublicKeyBytes(),
		SecretKey:      cfg.SecretKeyBytes(),
		ConnectRetries: cfg.Device.ConnectRetries,
		AutoTest:       cfg.AutoTest.Enabled,
		AutoTestDelay:  cfg.AutoTest.Delay,
	}, log)

	sup := supervisor.New(link, session, ctrl, state, supervisor.Options{
		Credentials:  network.Credentials{SSID: cfg.Network.SSID, Password: cfg.Network.Password},
		AttemptStep:  cfg.Network.AttemptStep,
		MaxAttempts:  cfg.Network.MaxAttempts,
		CommandTopic: cfg.MQTT.Topics.Command,
		LockInterval: cfg.Lock.RetryInterval,
	}, sleep, log)

	pub := status.NewPublisher(session, cfg.MQTT.Topics.Status, cfg.Device.Name, cfg.Device.Address, state, log)

	disp := dispatch.New(ctrl, pub, session, state, dispatch.Options{
		CommandTopic: cfg.MQTT.Topics.Command,
		RadioTopic:   cfg.MQTT.Topics.Radio,
		RadioPin:     cfg.Radio.Pin,
		StatusGrace:  cfg.Lock.StatusGrace,
	}, sleep, log)
	disp.OnSignal = func(ev logic.SignalEvent, action logic.Action, result string) {
		tracker.SetLastSignal(status.SignalInfo{At: ev.Timestamp, Action: action, Result: result})
	}

	return &bridge{
		state:      state,
		debouncer:  debouncer,
		session:    session,
		supervisor: sup,
		controller: ctrl,
		dispatcher: disp,
		tracker:    tracker,
		log:        log,
	}
}

// pass runs one scheduling pass in the fixed order: supervise, lock events,
// broker commands, auto-test, radio signal, status snapshot.
func (b *bridge) pass(now time.Time) {
	b.supervisor.Tick(now)

	b.controller.DrainEvents(now)

	for _, msg := range b.session.Drain() {
		b.dispatcher.HandleMessage(msg)
	}

	if b.controller.AutoTestDue(now) {
		b.dispatcher.AutoTest()
	}

	if ev, ok := b.debouncer.Poll(now); ok {
		b.log.Info().Time("at", ev.Timestamp).Msg("radio signal")
		b.dispatcher.HandleSignal(ev)
	}

	accepted, dropped := b.debouncer.Counts()
	b.state.Counters.SignalsAccepted = accepted
	b.state.Counters.SignalsDropped = dropped
	b.tracker.Update(*b.state)
}

func runLoop(b *bridge, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			b.log.Info().Stringer("signal", s).Msg("shutting down")
			return nil

		case <-tick:
			b.pass(now())
		}
	}
}
