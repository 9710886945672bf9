package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/kwv/odomesh/mapper"
	"github.com/kwv/odomesh/odometry"
)

// App encapsulates the application state and dependencies
type App struct {
	Config     *mapper.Config
	Session    *mapper.Session
	MQTTClient *mapper.MQTTClient
	Publisher  *mapper.Publisher // guarded by mu once the MQTT client is running
	CachedRoom *odometry.Room    // room restored from the cache file, if any

	// CLI Flags (effectively dependencies)
	ConfigFile  string
	ReplayFile  string
	Strategy    string
	OutputFile  string
	GeoJSONFile string
	RoomName    string
	Seed        int64
	HttpPort    int
	MqttMode    bool
	HttpMode    bool

	Out io.Writer

	mu            sync.Mutex
	lastCollision bool
}

// NewApp creates a new App instance
func NewApp() *App {
	return &App{Out: os.Stdout}
}

// ApplyOptions applies CLI options to the App instance
func (a *App) ApplyOptions(opts AppOptions) {
	a.ConfigFile = opts.ConfigFile
	a.ReplayFile = opts.ReplayFile
	a.Strategy = opts.Strategy
	a.OutputFile = opts.OutputFile
	a.GeoJSONFile = opts.GeoJSONFile
	a.RoomName = opts.RoomName
	a.Seed = opts.Seed
	a.HttpPort = opts.HttpPort
	a.MqttMode = opts.MqttMode
	a.HttpMode = opts.HttpMode
}

// loadConfig reads the config file, falling back to defaults when it does
// not exist, and applies the command line overrides.
func (a *App) loadConfig() (*mapper.Config, error) {
	var config *mapper.Config

	_, statErr := os.Stat(a.ConfigFile)
	switch {
	case statErr == nil:
		loaded, err := mapper.LoadConfig(a.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("loading config %s: %w", a.ConfigFile, err)
		}
		config = loaded
		log.Printf("Loaded config from %s", a.ConfigFile)
	case os.IsNotExist(statErr):
		log.Printf("Config %s not found, using defaults", a.ConfigFile)
		config = mapper.DefaultConfig()
	default:
		return nil, fmt.Errorf("checking config file: %w", statErr)
	}

	if a.Strategy != "" {
		config.Mapping.Strategy = a.Strategy
	}
	if a.Seed != 0 {
		config.Mapping.Seed = a.Seed
	}
	if a.RoomName != "" {
		config.Mapping.RoomName = a.RoomName
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// setup loads the configuration and creates the session.
func (a *App) setup() error {
	config, err := a.loadConfig()
	if err != nil {
		return err
	}
	session, err := mapper.NewSession(config)
	if err != nil {
		return err
	}
	a.Config = config
	a.Session = session
	return nil
}

// replayStats summarizes a replayed encoder log.
type replayStats struct {
	Lines    int
	Readings int
	Resets   int
	Skipped  int
}

// RunReplay feeds an encoder log through a session and writes the room.
func (a *App) RunReplay() error {
	if err := a.setup(); err != nil {
		return err
	}

	f, err := os.Open(a.ReplayFile)
	if err != nil {
		return fmt.Errorf("opening replay file: %w", err)
	}
	defer f.Close()

	stats, err := a.replay(f)
	if err != nil {
		return fmt.Errorf("reading %s: %w", a.ReplayFile, err)
	}

	room, fc := a.Session.ExportRoom("")
	if room == nil {
		return fmt.Errorf("replay of %s left %d path points, need at least 2", a.ReplayFile, len(a.Session.Path()))
	}

	if err := writeJSONFile(a.OutputFile, room); err != nil {
		return err
	}

	if a.GeoJSONFile != "" {
		data, err := fc.MarshalJSON()
		if err != nil {
			return fmt.Errorf("encoding GeoJSON: %w", err)
		}
		if err := os.WriteFile(a.GeoJSONFile, data, 0644); err != nil {
			return fmt.Errorf("writing GeoJSON: %w", err)
		}
	}

	drift := a.Session.Error()
	fmt.Fprintf(a.Out, "Replayed %d lines: %d readings, %d resets, %d skipped\n",
		stats.Lines, stats.Readings, stats.Resets, stats.Skipped)
	fmt.Fprintf(a.Out, "Room %q: %d vertices, %.2f m², %d path points\n",
		room.Name, len(room.Vertices), odometry.Area(room.Vertices), len(room.PathHistory))
	if strategy := a.Session.Strategy(); strategy != odometry.ConvexHull {
		if m := a.Session.Map(strategy); m != nil {
			fmt.Fprintf(a.Out, "Map (%s): %d vertices, %.2f m²\n", strategy, len(m.Vertices), odometry.Area(m.Vertices))
		}
	}
	fmt.Fprintf(a.Out, "Distance %.1f cm, estimated drift ±%.1f cm\n", drift.TotalDistance, drift.EstimatedError)
	fmt.Fprintf(a.Out, "Wrote %s\n", a.OutputFile)
	if a.GeoJSONFile != "" {
		fmt.Fprintf(a.Out, "Wrote %s\n", a.GeoJSONFile)
	}
	return nil
}

// replay applies every message in r to the session. Blank lines and lines
// starting with # are ignored; undecodable lines are counted and skipped.
func (a *App) replay(r io.Reader) (replayStats, error) {
	var stats replayStats

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		stats.Lines++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		msg, err := mapper.ParseMessage([]byte(line))
		if err != nil {
			stats.Skipped++
			log.Printf("[REPLAY] line %d: %v", stats.Lines, err)
			continue
		}

		switch msg.Kind {
		case mapper.KindCounts:
			stats.Readings++
		case mapper.KindReset:
			stats.Resets++
		}
		a.Session.Handle(msg)
	}
	return stats, scanner.Err()
}

// RunService maps live from MQTT and/or serves the HTTP endpoints until
// interrupted.
func (a *App) RunService() error {
	fmt.Fprintln(a.Out, "Starting odomesh service...")

	if err := a.setup(); err != nil {
		return err
	}

	if a.Config.RoomCache != "" {
		cached, err := mapper.LoadRoom(a.Config.RoomCache)
		if err != nil {
			log.Printf("Warning: failed to load room cache %s: %v", a.Config.RoomCache, err)
		} else if cached != nil {
			a.CachedRoom = cached
			log.Printf("Loaded room %q from %s", cached.Name, a.Config.RoomCache)
		}
	}

	if a.MqttMode {
		client, err := mapper.InitMQTT(a.Config, a.handleMessage)
		if err != nil {
			return fmt.Errorf("initializing MQTT: %w", err)
		}
		if client == nil {
			return errors.New("MQTT broker not configured (set mqtt.broker or MQTT_BROKER)")
		}
		a.MQTTClient = client
		a.setPublisher(mapper.NewPublisher(client.GetClient(), a.Config.MQTT.PublishPrefix))
		fmt.Fprintln(a.Out, "MQTT publisher initialized")
	}

	var server *http.Server
	if a.HttpMode {
		server = &http.Server{
			Addr:              fmt.Sprintf("0.0.0.0:%d", a.HttpPort),
			Handler:           newHTTPServer(a.Session, a.CachedRoom),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Printf("[HTTP] Starting server on %s", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("[HTTP] Server error: %v", err)
			}
		}()
	}

	a.printServiceInfo()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	a.shutdown(server)
	return nil
}

func (a *App) printServiceInfo() {
	fmt.Fprintln(a.Out, "\nService Running")
	fmt.Fprintln(a.Out, "===============")

	robotID := a.Config.Robot.ID
	if a.MqttMode {
		fmt.Fprintln(a.Out, "\nMQTT:")
		fmt.Fprintf(a.Out, "  Subscribed: %s (%s)\n", a.Config.Robot.TopicOrDefault(), robotID)
		for _, suffix := range []string{"pose", "room", "room.geojson", "collision"} {
			fmt.Fprintf(a.Out, "  Publishing: %s\n", a.publisher().Topic(robotID, suffix))
		}
	}

	if a.HttpMode {
		fmt.Fprintf(a.Out, "\nHTTP endpoints (port %d):\n", a.HttpPort)
		fmt.Fprintln(a.Out, "  GET  /health         - Health check")
		fmt.Fprintln(a.Out, "  GET  /pose           - Current pose and drift estimate")
		fmt.Fprintln(a.Out, "  GET  /path           - Path history")
		fmt.Fprintln(a.Out, "  GET  /map.json       - Polygon from the configured strategy (?strategy=)")
		fmt.Fprintln(a.Out, "  GET  /room.json      - Convex-hull room export (?strategy=&name=)")
		fmt.Fprintln(a.Out, "  GET  /room.svg-path  - Room outline as SVG path data")
		fmt.Fprintln(a.Out, "  GET  /room.geojson   - Room, path and walls as GeoJSON")
		fmt.Fprintln(a.Out, "  GET  /bounds         - Collision bounds")
		fmt.Fprintln(a.Out, "  POST /bounds         - Replace collision bounds")
		fmt.Fprintln(a.Out, "  POST /reset          - Start a new session")
	}

	fmt.Fprintln(a.Out, "\nPress Ctrl+C to stop")
}

// shutdown stops the HTTP server, writes the room cache and closes MQTT.
func (a *App) shutdown(server *http.Server) {
	fmt.Fprintln(a.Out, "\nShutting down service...")

	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("[HTTP] Shutdown error: %v", err)
		}
	}

	if err := a.saveRoomCache(); err != nil {
		log.Printf("Warning: %v", err)
	}

	if a.MQTTClient != nil {
		a.MQTTClient.Disconnect()
	}
	fmt.Fprintln(a.Out, "Service stopped")
}

// saveRoomCache writes the current room to the configured cache file. It
// does nothing without a cache path or without a room.
func (a *App) saveRoomCache() error {
	if a.Config == nil || a.Config.RoomCache == "" || a.Session == nil {
		return nil
	}
	room := a.Session.Room("")
	if room == nil {
		return nil
	}
	if err := mapper.SaveRoom(a.Config.RoomCache, room); err != nil {
		return fmt.Errorf("saving room cache: %w", err)
	}
	log.Printf("Saved room %q to %s", room.Name, a.Config.RoomCache)
	return nil
}

// handleMessage is the MQTT message handler: it feeds the session and
// publishes the results.
func (a *App) handleMessage(robotID string, msg mapper.Message, err error) {
	if err != nil {
		log.Printf("[ROBOT] %s: dropping message: %v", robotID, err)
		return
	}

	// Messages can arrive before RunService has stored the publisher.
	publisher := a.publisher()

	switch msg.Kind {
	case mapper.KindReady:
		log.Printf("[ROBOT] %s ready", robotID)
		return
	case mapper.KindReset:
		a.Session.Reset()
		a.collisionChanged(false)
		if publisher != nil {
			publisher.ClearPose(robotID)
		}
		log.Printf("[ROBOT] %s reset odometry, new session %s", robotID, a.Session.ID())
		return
	}

	obs, ok := a.Session.Handle(msg)
	if !ok || publisher == nil {
		return
	}

	if err := publisher.PublishPose(robotID, obs); err != nil {
		log.Printf("Error publishing pose for %s: %v", robotID, err)
	}

	if a.collisionChanged(obs.Collision) {
		if obs.Collision {
			log.Printf("[ROBOT] %s left the room bounds at (%.2f, %.2f)", robotID, obs.Point.X, obs.Point.Y)
		}
		if err := publisher.PublishCollision(robotID, obs); err != nil {
			log.Printf("Error publishing collision for %s: %v", robotID, err)
		}
	}

	if every := a.Config.Mapping.PublishEvery; every > 0 && obs.Count%every == 0 {
		if err := a.publishRoom(publisher, robotID); err != nil {
			log.Printf("Error publishing room for %s: %v", robotID, err)
		}
	}
}

// collisionChanged records the collision state and reports whether it differs
// from the previous one.
func (a *App) collisionChanged(collision bool) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	changed := a.lastCollision != collision
	a.lastCollision = collision
	return changed
}

func (a *App) setPublisher(p *mapper.Publisher) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Publisher = p
}

func (a *App) publisher() *mapper.Publisher {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Publisher
}

// publishRoom publishes the convex-hull room and its GeoJSON, extracted once.
func (a *App) publishRoom(publisher *mapper.Publisher, robotID string) error {
	room, fc := a.Session.ExportRoom("")
	if room == nil {
		return nil
	}
	if err := publisher.PublishRoom(robotID, room); err != nil {
		return err
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encoding GeoJSON: %w", err)
	}
	return publisher.PublishGeoJSON(robotID, data)
}

func writeJSONFile(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
