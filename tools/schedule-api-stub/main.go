// schedule-api-stub is a local stand-in for the scheduling API. It
// accepts event creation requests, optionally verifies the HMAC
// signature, and keeps the last payloads in memory for inspection.
//
// Run it and point SCHEDULE_API_URL at http://localhost:8081/v1/events.
// Set SECRET to the same value as SCHEDULE_API_SECRET to check signatures,
// and FAIL_EVERY=n to make every n-th request return 500 for retry testing.
package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"
)

type request struct {
	Timestamp string `json:"timestamp"`
	AttemptID string `json:"attempt_id"`
	Signature string `json:"signature_status"`
	Body      string `json:"body"`
}

type stats struct {
	Count        int64     `json:"count"`
	LastRequests []request `json:"last_requests"`
	Since        string    `json:"since"`
}

var (
	mu           sync.Mutex
	count        int64
	lastRequests []request
	since        time.Time
	maxStored    = 50

	secret    string
	failEvery int64
)

func main() {
	since = time.Now().UTC()
	secret = os.Getenv("SECRET")
	if v := os.Getenv("FAIL_EVERY"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			failEvery = n
		}
	}

	addr := ":8081"
	if v := os.Getenv("ADDR"); v != "" {
		addr = v
	}

	http.HandleFunc("/v1/events", createHandler)
	http.HandleFunc("/stats", statsHandler)
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	http.HandleFunc("/reset", func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		count = 0
		lastRequests = nil
		since = time.Now().UTC()
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "reset")
	})

	log.Printf("schedule-api-stub listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, nil))
}

func createHandler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	defer r.Body.Close()

	sigStatus := "unchecked"
	if secret != "" {
		if verifySignature(secret, body, r.Header.Get("X-EventBot-Signature")) {
			sigStatus = "valid"
		} else {
			sigStatus = "INVALID"
		}
	}

	req := request{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		AttemptID: r.Header.Get("X-EventBot-Attempt-ID"),
		Signature: sigStatus,
		Body:      string(body),
	}

	mu.Lock()
	count++
	lastRequests = append(lastRequests, req)
	if len(lastRequests) > maxStored {
		lastRequests = lastRequests[len(lastRequests)-maxStored:]
	}
	current := count
	mu.Unlock()

	log.Printf("create #%d attempt=%s sig=%s: %s", current, req.AttemptID, sigStatus, string(body))

	if sigStatus == "INVALID" {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprintln(w, `{"error":"bad signature"}`)
		return
	}
	if failEvery > 0 && current%failEvery == 0 {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintln(w, `{"error":"injected failure"}`)
		return
	}

	w.WriteHeader(http.StatusCreated)
	fmt.Fprintf(w, `{"created":%d}`, current)
}

func verifySignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func statsHandler(w http.ResponseWriter, _ *http.Request) {
	mu.Lock()
	s := stats{
		Count:        count,
		LastRequests: lastRequests,
		Since:        since.Format(time.RFC3339),
	}
	mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s)
}
