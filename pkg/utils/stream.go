package utils

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
)

// SetupStreamHeaders prepares the response for the line-delimited chunk
// stream consumed by the chat client.
func SetupStreamHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

// WriteFrame emits one tagged frame: a single-character tag, a colon, one
// JSON object, a newline. The frame is flushed immediately.
func WriteFrame(w http.ResponseWriter, flusher http.Flusher, tag string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal stream frame: %v", err)
		return
	}

	if _, err := fmt.Fprintf(w, "%s:%s\n", tag, data); err != nil {
		log.Printf("failed to write stream frame: %v", err)
		return
	}
	flusher.Flush()
}
