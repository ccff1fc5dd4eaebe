package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"ambientd/internal/api"
	"ambientd/internal/auth"
	"ambientd/internal/config"
	"ambientd/internal/doze"
	"ambientd/internal/events"
	"ambientd/internal/looper"
	"ambientd/internal/mqtt"
	"ambientd/internal/posture"
	"ambientd/internal/proximity"
	"ambientd/internal/sensors"
	"ambientd/internal/settings"
)

const (
	eventLogSize          = 1000
	looperQueueSize       = 256
	statusPublishPeriod   = 30 * time.Second
	shutdownTimeout       = 10 * time.Second
	defaultInitialPosture = posture.Closed
)

func main() {
	configPath := flag.String("config", ".env", "Configuration file path")
	tokenUser := flag.String("token", "", "Print an API token for this operator and exit (when PAM login is unavailable)")
	tokenRole := flag.String("role", string(auth.RoleReadOnly), "Role of the printed token (admin or readonly)")
	listen := flag.Bool("listen", false, "Start listening to doze sensors immediately")
	flag.Parse()

	logger := log.New(os.Stderr, "", log.LstdFlags)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *tokenUser != "" {
		printToken(cfg, *tokenUser, auth.ParseRole(*tokenRole))
		return
	}

	store, err := settings.NewBoltStore(cfg.DBPath(), logger)
	if err != nil {
		log.Fatalf("Failed to open settings: %v", err)
	}
	defer store.Close()

	catalog, err := sensors.LoadProfile(cfg.DeviceProfile())
	if err != nil {
		log.Fatalf("Failed to load device profile: %v", err)
	}
	logger.Printf("[doze] Loaded %d sensors from %s", len(catalog.SensorList(sensors.TypeAll)), cfg.DeviceProfile())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loop := looper.New(looperQueueSize, logger)
	go loop.Run(context.Background())

	eventStore := events.NewStore(eventLogSize)
	postures := posture.NewController(defaultInitialPosture)

	// MQTT is optional; without a broker plugin events only arrive through the API
	var client *mqtt.Client
	var publisher *mqtt.Publisher
	if cfg.MQTTBroker() != "" {
		client, publisher = startMQTT(cfg, store, catalog, logger)
	}

	var messenger mqtt.Messenger
	if client != nil {
		messenger = client
	}
	post := func(fn func()) {
		if err := loop.Post(fn); err != nil {
			logger.Printf("[looper] Dropped task: %v", err)
		}
	}
	plugins := mqtt.NewPluginTransport(messenger, post, logger)

	var engine *doze.DozeSensors
	onPulse := func(reason doze.Reason, x, y float64, values []float64) {
		eventStore.TracePulse(reason, x, y)
		logger.Printf("[doze] Pulse requested: %s (%g, %g)", reason, x, y)
		if publisher != nil {
			pulse := mqtt.NewPulse(reason, x, y, values)
			status := engine.Snapshot()
			go func() {
				publisher.PublishPulse(pulse)
				publisher.PublishStatus(status)
			}()
		}
	}

	deps := doze.Deps{
		SensorManager: catalog,
		PluginManager: plugins,
		Config:        cfg,
		Params:        cfg,
		Settings:      store,
		Posture:       postures,
		Callback:      doze.CallbackFunc(onPulse),
		ProxCallback: func(far bool) {
			logger.Printf("[doze] Proximity far=%v", far)
		},
		Log:    eventStore,
		Logger: logger,
	}
	// Leave Proximity as a nil interface when the device has no sensor
	if prox := catalog.DefaultSensor(sensors.TypeProximity); prox != nil {
		deps.Proximity = proximity.New(catalog, prox, nil, 0, logger)
	}

	if err := loop.Call(ctx, func() {
		engine = doze.New(deps)
		if *listen {
			engine.SetListening(true, true)
		}
	}); err != nil {
		log.Fatalf("Failed to start doze engine: %v", err)
	}

	if publisher != nil {
		go publishStatusLoop(ctx, loop, engine, publisher)
	}

	server := api.NewServer(api.Deps{
		Doze:     engine,
		Looper:   loop,
		Settings: store,
		Posture:  postures,
		Catalog:  catalog,
		Plugins:  plugins,
		Events:   eventStore,
		Config:   cfg,
		Logger:   logger,
	})
	defer server.Close()

	httpServer := &http.Server{
		Addr:    cfg.Addr(),
		Handler: server.Router(),
	}

	fmt.Printf("ambientd starting on %s\n", cfg.Addr())
	if cfg.NoAuth() {
		fmt.Println("WARNING: Authentication is DISABLED!")
	}
	printAccessURLs(strings.TrimPrefix(cfg.Addr(), ":"))

	// SIGHUP re-reads the config file and reconfigures the engine
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go reloadOnHangup(ctx, hup, cfg, loop, engine, eventStore, logger)

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Printf("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("HTTP shutdown: %v", err)
	}

	if err := loop.Call(shutdownCtx, engine.Destroy); err != nil {
		logger.Printf("[doze] Destroy failed: %v", err)
	}
	loop.Stop()
	<-loop.Done()

	if client != nil {
		client.Disconnect()
	}
}

// startMQTT connects to the broker and publishes discovery configs. A failed
// connection is logged and MQTT stays disabled.
func startMQTT(cfg *config.Config, store settings.Store, catalog *sensors.Catalog, logger *log.Logger) (*mqtt.Client, *mqtt.Publisher) {
	client, err := mqtt.New(mqtt.Config{
		Broker:   cfg.MQTTBroker(),
		ClientID: cfg.MQTTClientID(),
		Username: cfg.MQTTUsername(),
		Password: cfg.MQTTPassword(),
		Prefix:   cfg.MQTTPrefix(),
		UseTLS:   cfg.MQTTUseTLS(),
	}, logger)
	if err != nil {
		logger.Printf("[MQTT] Disabled: %v", err)
		return nil, nil
	}
	if err := client.Connect(); err != nil {
		logger.Printf("[MQTT] Disabled: %v", err)
		return nil, nil
	}

	name := catalog.Device
	if name == "" {
		name = "ambientd"
	}
	discovery := mqtt.NewDiscoveryManager(client, logger, store, &mqtt.DeviceInfo{
		Identifiers:  []string{"ambientd_" + cfg.MQTTPrefix()},
		Name:         name,
		Model:        "ambientd",
		Manufacturer: "ambientd",
	})
	if discovery.ShouldPublishDiscovery() {
		discovery.PublishAll()
	}

	return client, mqtt.NewPublisher(client, logger)
}

// publishStatusLoop publishes the engine snapshot periodically
func publishStatusLoop(ctx context.Context, loop *looper.Looper, engine *doze.DozeSensors, publisher *mqtt.Publisher) {
	ticker := time.NewTicker(statusPublishPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var status doze.Status
			if err := loop.Call(ctx, func() { status = engine.Snapshot() }); err != nil {
				return
			}
			publisher.PublishStatus(status)
		}
	}
}

// reloadOnHangup reloads the config on every SIGHUP until ctx is done
func reloadOnHangup(ctx context.Context, hup <-chan os.Signal, cfg *config.Config, loop *looper.Looper, engine *doze.DozeSensors, eventStore *events.Store, logger *log.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := cfg.Reload(); err != nil {
				logger.Printf("[config] Reload failed: %v", err)
				eventStore.Add(events.EventConfig, "", "", false, err.Error())
				continue
			}
			logger.Printf("[config] Reloaded %s", cfg.FilePath())
			eventStore.Add(events.EventConfig, "", "", true, "reloaded")
			if err := loop.Post(engine.OnAmbientConfigChanged); err != nil {
				return
			}
		}
	}
}

// printToken prints a signed API token
func printToken(cfg *config.Config, username string, role auth.Role) {
	jwtManager := auth.NewJWTManager(cfg.JWTSecret(), cfg.JWTExpiration())
	token, err := jwtManager.GenerateToken(&auth.User{Username: username, Role: role})
	if err != nil {
		log.Fatalf("Failed to generate token: %v", err)
	}
	fmt.Println(token)
}

// getLocalIPs returns all local IP addresses
func getLocalIPs() []string {
	var ips []string

	interfaces, err := net.Interfaces()
	if err != nil {
		return ips
	}

	for _, iface := range interfaces {
		// Skip down or loopback interfaces
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}

			// Skip loopback and IPv6
			if ip == nil || ip.IsLoopback() || ip.To4() == nil {
				continue
			}

			ips = append(ips, ip.String())
		}
	}

	return ips
}

// printAccessURLs prints the API base URLs
func printAccessURLs(port string) {
	ips := getLocalIPs()
	if len(ips) == 0 {
		fmt.Printf("\nAPI available at http://localhost:%s/api\n", port)
		return
	}

	fmt.Println("\nAPI URLs:")
	for _, ip := range ips {
		fmt.Printf("  http://%s:%s/api\n", ip, port)
	}
	fmt.Println()
}
