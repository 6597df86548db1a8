// Command transcribeclient drives a running engine over its HTTP API: it
// starts a session, polls the live transcript while audio streams, and prints
// the assembled transcript on exit. Useful for demos against the scripted
// backend (RECOGNIZER_MOCK=true).
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

type transcriptResponse struct {
	FinalText string `json:"finalText"`
	Blocks    []struct {
		Text      string `json:"text"`
		Partial   bool   `json:"partial"`
		SpeakerID string `json:"speakerId"`
	} `json:"blocks"`
}

func main() {
	server := flag.String("server", "http://localhost:8080", "Engine API base URL")
	sessionId := flag.String("session", "demo-"+time.Now().Format("150405"), "Session ID")
	duration := flag.Duration("duration", 30*time.Second, "How long to stream before stopping")
	pollInterval := flag.Duration("poll", 500*time.Millisecond, "Transcript poll interval")
	flag.Parse()

	client := &http.Client{Timeout: 5 * time.Second}

	body, _ := json.Marshal(map[string]string{"sessionId": *sessionId})
	resp, err := client.Post(*server+"/v1/session/start", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("failed to start session: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		log.Fatalf("start rejected (%d): %s", resp.StatusCode, detail)
	}
	resp.Body.Close()
	log.Printf("Session started: %s", *sessionId)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	deadline := time.After(*duration)
	ticker := time.NewTicker(*pollInterval)
	defer ticker.Stop()

	lastShown := ""
poll:
	for {
		select {
		case <-sig:
			log.Println("Interrupted")
			break poll
		case <-deadline:
			break poll
		case <-ticker.C:
			tr, err := fetchTranscript(client, *server)
			if err != nil {
				log.Printf("poll failed: %v", err)
				continue
			}
			for _, b := range tr.Blocks {
				line := b.Text
				if b.SpeakerID != "" {
					line = "[" + b.SpeakerID + "] " + line
				}
				if b.Partial {
					line += " …"
				}
				if line != lastShown {
					fmt.Println(line)
					lastShown = line
				}
			}
		}
	}

	if _, err := client.Post(*server+"/v1/session/stop", "application/json", nil); err != nil {
		log.Fatalf("failed to stop session: %v", err)
	}

	tr, err := fetchTranscript(client, *server)
	if err != nil {
		log.Fatalf("failed to fetch final transcript: %v", err)
	}
	fmt.Println("\n--- Final transcript ---")
	fmt.Println(tr.FinalText)
}

func fetchTranscript(client *http.Client, server string) (*transcriptResponse, error) {
	resp, err := client.Get(server + "/v1/transcript")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var tr transcriptResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, err
	}
	return &tr, nil
}
