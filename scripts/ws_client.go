// Package main runs a demo WebSocket client that solves a random instance
// and prints progress as it arrives.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type location struct {
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Demand int     `json:"demand,omitempty"`
}

func main() {
	stops := flag.Int("stops", 50, "random stops around the depot")
	vehicles := flag.Int("vehicles", 5, "vehicle count")
	seconds := flag.Float64("time-limit", 3, "search budget in seconds")
	flag.Parse()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	rng := rand.New(rand.NewPCG(7, 11))
	locs := []location{{Lat: 40.75, Lng: -73.98}}
	for range *stops {
		locs = append(locs, location{
			Lat:    40.75 + (rng.Float64()-0.5)*0.2,
			Lng:    -73.98 + (rng.Float64()-0.5)*0.2,
			Demand: 1 + rng.IntN(9),
		})
	}
	req := map[string]any{
		"locations":        locs,
		"num_vehicles":     *vehicles,
		"vehicle_capacity": 10 * (*stops) / *vehicles,
		"options":          map[string]any{"time_limit_seconds": *seconds},
	}
	pl, _ := json.Marshal(req)

	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/solve/ws"}
	hdr := http.Header{}
	hdr.Set("X-Tenant-Id", "t_demo")
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	if err := c.WriteJSON(wsMessage{Type: "solve", ID: "demo", Payload: pl}); err != nil {
		log.Fatal(err)
	}
	for {
		var m wsMessage
		if err := c.ReadJSON(&m); err != nil {
			log.Printf("read: %v", err)
			return
		}
		log.Printf("WS <- %s: %s", m.Type, string(m.Payload))
		if m.Type == "result" || m.Type == "error" {
			return
		}
	}
}
