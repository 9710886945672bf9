package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
)

// Version is set at build time via -ldflags
var Version = "dev"

// AppOptions holds the parsed command line.
type AppOptions struct {
	ConfigFile  string
	ReplayFile  string
	Strategy    string
	OutputFile  string
	GeoJSONFile string
	RoomName    string
	Seed        int64
	MqttMode    bool
	HttpMode    bool
	HttpPort    int
}

// Runner is what run dispatches to; *App implements it.
type Runner interface {
	ApplyOptions(opts AppOptions)
	RunReplay() error
	RunService() error
}

func main() {
	if err := run(os.Args[1:], os.Stdout, NewApp()); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatal(err)
	}
}

func run(args []string, out io.Writer, app Runner) error {
	fs := flag.NewFlagSet("odomesh", flag.ContinueOnError)
	fs.SetOutput(out)

	var opts AppOptions
	fs.StringVar(&opts.ConfigFile, "config", "config.yaml", "Path to configuration file")
	fs.StringVar(&opts.ReplayFile, "replay", "", "Replay an encoder log (one message per line) and export the room")
	fs.StringVar(&opts.Strategy, "strategy", "", "Map strategy: bounding-box, convex-hull or wall-detection (default: from config)")
	fs.StringVar(&opts.OutputFile, "output", "room.json", "Room JSON output file for --replay")
	fs.StringVar(&opts.GeoJSONFile, "geojson", "", "Also write the room as GeoJSON to this file in --replay mode")
	fs.StringVar(&opts.RoomName, "room-name", "", "Room name (default: from config)")
	fs.Int64Var(&opts.Seed, "seed", 0, "Seed for convex-hull jitter; 0 keeps the config value")
	fs.BoolVar(&opts.MqttMode, "mqtt", false, "Run MQTT service mode for live mapping")
	fs.BoolVar(&opts.HttpMode, "http", false, "Enable HTTP server for pose and room endpoints")
	fs.IntVar(&opts.HttpPort, "http-port", 8080, "HTTP server port")

	if err := fs.Parse(args); err != nil {
		return err
	}

	fmt.Fprintf(out, "odomesh version: %s\n", Version)
	app.ApplyOptions(opts)

	if opts.ReplayFile != "" {
		return app.RunReplay()
	}

	if opts.MqttMode || opts.HttpMode {
		return app.RunService()
	}

	fmt.Fprintln(out, "odomesh: odometry room mapper")
	fmt.Fprintln(out, "Use --replay=FILE to build a room from an encoder log")
	fmt.Fprintln(out, "Use --mqtt to map live from the robot's MQTT topic")
	fmt.Fprintln(out, "Use --http to serve pose and room endpoints")
	fmt.Fprintln(out, "Use --mqtt --http to run both together")
	fmt.Fprintln(out, "\nConfiguration:")
	fmt.Fprintln(out, "  config.yaml - MQTT settings, robot geometry and mapping options")
	return nil
}
