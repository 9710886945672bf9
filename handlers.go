package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/kwv/odomesh/mapper"
	"github.com/kwv/odomesh/odometry"
)

// posePayload is the /pose response.
type posePayload struct {
	SessionID  string                 `json:"sessionId"`
	RobotID    string                 `json:"robotId"`
	Pose       odometry.Pose          `json:"pose"`
	Velocities odometry.Velocities    `json:"velocities"`
	Count      int                    `json:"count"`
	Collision  bool                   `json:"collision"`
	Error      odometry.ErrorEstimate `json:"error"`
}

// boundsPayload is the /bounds request and response body.
type boundsPayload struct {
	Vertices []odometry.Vertex `json:"vertices"`
	Area     float64           `json:"area"`
}

// newHTTPServer creates an HTTP server with all endpoints. cached is served
// by the room endpoints while the live session has no room yet.
func newHTTPServer(session *mapper.Session, cached *odometry.Room) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := struct {
			Status     string    `json:"status"`
			Timestamp  time.Time `json:"timestamp"`
			SessionID  string    `json:"sessionId"`
			PathPoints int       `json:"pathPoints"`
			HasRoom    bool      `json:"hasRoom"`
		}{
			Status:     "ok",
			Timestamp:  time.Now(),
			SessionID:  session.ID(),
			PathPoints: len(session.Path()),
			HasRoom:    len(session.Path()) >= 2 || cached != nil,
		}
		writeJSON(w, status)
	})

	mux.HandleFunc("/pose", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, posePayload{
			SessionID:  session.ID(),
			RobotID:    session.RobotID(),
			Pose:       session.Pose(),
			Velocities: session.Velocities(),
			Count:      session.Count(),
			Collision:  session.Collision(),
			Error:      session.Error(),
		})
	})

	mux.HandleFunc("/path", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, session.Path())
	})

	// Polygon from the configured strategy, wall points included
	mux.HandleFunc("/map.json", func(w http.ResponseWriter, r *http.Request) {
		strategy, ok := strategyFor(w, r, session.Strategy())
		if !ok {
			return
		}
		data := session.Map(strategy)
		if data == nil {
			http.Error(w, "No map available", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, data)
	})

	// Room export is a convex hull; ?strategy= overrides it, ?name= the room name
	mux.HandleFunc("/room.json", func(w http.ResponseWriter, r *http.Request) {
		room, ok := roomFor(w, r, session, cached)
		if !ok {
			return
		}
		writeJSON(w, room)
	})

	mux.HandleFunc("/room.svg-path", func(w http.ResponseWriter, r *http.Request) {
		room, ok := roomFor(w, r, session, cached)
		if !ok {
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = fmt.Fprint(w, room.SVGPath)
	})

	mux.HandleFunc("/room.geojson", func(w http.ResponseWriter, r *http.Request) {
		strategy, ok := strategyFor(w, r, odometry.ConvexHull)
		if !ok {
			return
		}
		_, fc := session.Export(r.URL.Query().Get("name"), strategy)
		if fc == nil {
			http.Error(w, "No room available", http.StatusServiceUnavailable)
			return
		}
		data, err := fc.MarshalJSON()
		if err != nil {
			log.Printf("Error encoding room GeoJSON: %v", err)
			http.Error(w, "Failed to encode GeoJSON", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write(data)
	})

	mux.HandleFunc("/reset", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		session.Reset()
		log.Printf("[HTTP] Session reset, new session %s", session.ID())
		writeJSON(w, struct {
			SessionID string `json:"sessionId"`
		}{session.ID()})
	})

	mux.HandleFunc("/bounds", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			rb := session.RoomBounds()
			if rb == nil {
				http.Error(w, "No room bounds configured", http.StatusNotFound)
				return
			}
			writeJSON(w, boundsPayload{Vertices: rb.Vertices, Area: odometry.Area(rb.Vertices)})
		case http.MethodPost:
			var body boundsPayload
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				http.Error(w, fmt.Sprintf("Invalid bounds: %v", err), http.StatusBadRequest)
				return
			}
			if len(body.Vertices) != 0 && len(body.Vertices) < 3 {
				http.Error(w, "Room bounds need at least 3 vertices", http.StatusBadRequest)
				return
			}
			session.SetRoomBounds(body.Vertices)
			log.Printf("[HTTP] Room bounds set to %d vertices", len(body.Vertices))
			writeJSON(w, boundsPayload{Vertices: body.Vertices, Area: odometry.Area(body.Vertices)})
		default:
			w.Header().Set("Allow", "GET, POST")
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	// Wrap mux with logging middleware
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[HTTP] %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
		mux.ServeHTTP(w, r)
	})
}

// strategyFor resolves the ?strategy= query parameter, falling back to def.
// It writes a 400 when the name is not a known strategy.
func strategyFor(w http.ResponseWriter, r *http.Request, def odometry.Strategy) (odometry.Strategy, bool) {
	name := r.URL.Query().Get("strategy")
	if name == "" {
		return def, true
	}
	strategy, err := odometry.ParseStrategy(name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return 0, false
	}
	return strategy, true
}

// roomFor exports the live room, falling back to the cached room. It writes
// the error response itself when no room is available.
func roomFor(w http.ResponseWriter, r *http.Request, session *mapper.Session, cached *odometry.Room) (*odometry.Room, bool) {
	strategy, ok := strategyFor(w, r, odometry.ConvexHull)
	if !ok {
		return nil, false
	}
	room, _ := session.Export(r.URL.Query().Get("name"), strategy)
	if room == nil {
		room = cached
	}
	if room == nil {
		http.Error(w, "No room available", http.StatusServiceUnavailable)
		return nil, false
	}
	return room, true
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}
