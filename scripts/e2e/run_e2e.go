// Package main runs end-to-end scenarios against a running chat API.
//
// Usage:
//
//	ADMIN_JWT_SECRET=... API_BASE_URL=... go run scripts/e2e/run_e2e.go [scenario-name]
//	ADMIN_JWT_SECRET=... API_BASE_URL=... go run scripts/e2e/run_e2e.go              # runs all
//	ADMIN_JWT_SECRET=... API_BASE_URL=... go run scripts/e2e/run_e2e.go full-capture # runs one
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	apiBase    string
	adminToken string
	client     = &http.Client{Timeout: 45 * time.Second}
)

// ---------------------------------------------------------------------------
// Scenario definition
// ---------------------------------------------------------------------------

type scenario struct {
	Name string
	Fn   func(t *T)
}

// T is a lightweight test context for a single scenario.
type T struct {
	passed int
	failed int
	name   string
}

func (t *T) check(name string, ok bool) {
	if ok {
		fmt.Printf("    PASS: %s\n", name)
		t.passed++
	} else {
		fmt.Printf("    FAIL: %s\n", name)
		t.failed++
	}
}

func (t *T) fatalf(format string, args ...interface{}) {
	fmt.Printf("    FATAL: "+format+"\n", args...)
	t.failed++
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type chatReply struct {
	Status    int
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
	Error     string `json:"error"`
}

func sendChat(sessionID, requestID, text string) (chatReply, error) {
	payload := map[string]string{"message": text}
	if sessionID != "" {
		payload["sessionId"] = sessionID
	}
	if requestID != "" {
		payload["requestId"] = requestID
	}
	body, _ := json.Marshal(payload)
	resp, err := client.Post(apiBase+"/chat", "application/json", bytes.NewReader(body))
	if err != nil {
		return chatReply{}, err
	}
	defer resp.Body.Close()

	var reply chatReply
	raw, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(raw, &reply)
	reply.Status = resp.StatusCode
	return reply, nil
}

func getGreeting() (chatReply, error) {
	resp, err := client.Get(apiBase + "/chat/greeting")
	if err != nil {
		return chatReply{}, err
	}
	defer resp.Body.Close()

	var reply chatReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return chatReply{}, err
	}
	reply.Status = resp.StatusCode
	return reply, nil
}

type adminLead struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	TourDate  string `json:"tour_date"`
	TourTime  string `json:"tour_time"`
	SessionID string `json:"session_id"`
}

func listLeads(token string) (int, []adminLead, error) {
	req, _ := http.NewRequest(http.MethodGet, apiBase+"/admin/leads?limit=100", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	var body struct {
		Leads []adminLead `json:"leads"`
	}
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return resp.StatusCode, nil, err
		}
	}
	return resp.StatusCode, body.Leads, nil
}

func leadForSession(sessionID string) (*adminLead, error) {
	_, all, err := listLeads(adminToken)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].SessionID == sessionID {
			return &all[i], nil
		}
	}
	return nil, nil
}

func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

func generateJWT(secret string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "e2e",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	})
	return token.SignedString([]byte(secret))
}

// ---------------------------------------------------------------------------
// Scenarios
// ---------------------------------------------------------------------------

// 1. Greeting names the property and opens a session
func scenarioGreeting(t *T) {
	reply, err := getGreeting()
	if err != nil {
		t.fatalf("greeting: %v", err)
		return
	}
	t.check("greeting returns 200", reply.Status == http.StatusOK)
	t.check("greeting has a session id", reply.SessionID != "")
	t.check("greeting is not empty", strings.TrimSpace(reply.Message) != "")
}

// 2. Amenity question gets an answer and steers toward a tour
func scenarioAmenityQuestion(t *T) {
	reply, err := sendChat("", "", "Do you have in-unit laundry?")
	if err != nil {
		t.fatalf("send chat: %v", err)
		return
	}
	t.check("reply returns 200", reply.Status == http.StatusOK)
	t.check("reply mentions a tour", containsAny(reply.Message, "tour", "visit", "show you"))
	t.check("reply is short", strings.Count(reply.Message, ". ") <= 3)
}

// 3. Full capture across turns creates one lead with every field
func scenarioFullCapture(t *T) {
	turns := []string{
		"I'd like to tour this Saturday",
		"Around 2pm works",
		"I'm Jordan",
		"My number is (509) 555-0142",
		"jordan.e2e@example.com",
	}
	sessionID := ""
	var last chatReply
	for _, text := range turns {
		reply, err := sendChat(sessionID, uuid.NewString(), text)
		if err != nil {
			t.fatalf("send %q: %v", text, err)
			return
		}
		if reply.Status != http.StatusOK {
			t.fatalf("send %q: status %d (%s)", text, reply.Status, reply.Error)
			return
		}
		sessionID = reply.SessionID
		last = reply
	}
	t.check("session id stays stable", sessionID != "")
	t.check("final reply confirms the tour", containsAny(last.Message, "confirm", "see you", "booked", "all set"))

	lead, err := leadForSession(sessionID)
	if err != nil {
		t.fatalf("list leads: %v", err)
		return
	}
	if lead == nil {
		t.fatalf("no lead recorded for session %s", sessionID)
		return
	}
	t.check("lead has first name", lead.FirstName == "Jordan")
	t.check("lead phone normalized", lead.Phone == "+15095550142")
	t.check("lead email captured", lead.Email == "jordan.e2e@example.com")
	t.check("lead tour date captured", lead.TourDate != "")
	t.check("lead tour time captured", lead.TourTime != "")
}

// 4. Retrying a request id replays the recorded reply
func scenarioReplay(t *T) {
	requestID := uuid.NewString()
	first, err := sendChat("", requestID, "Is parking included?")
	if err != nil {
		t.fatalf("first send: %v", err)
		return
	}
	second, err := sendChat(first.SessionID, requestID, "Is parking included?")
	if err != nil {
		t.fatalf("second send: %v", err)
		return
	}
	t.check("both succeed", first.Status == http.StatusOK && second.Status == http.StatusOK)
	t.check("replayed reply is identical", first.Message == second.Message)
}

// 5. Input validation and admin auth
func scenarioRejections(t *T) {
	reply, err := sendChat("", "", "   ")
	if err != nil {
		t.fatalf("send blank: %v", err)
		return
	}
	t.check("blank message is 400", reply.Status == http.StatusBadRequest)

	status, _, err := listLeads("")
	if err != nil {
		t.fatalf("list leads: %v", err)
		return
	}
	t.check("admin leads require a token", status == http.StatusUnauthorized)
}

func main() {
	apiBase = strings.TrimRight(os.Getenv("API_BASE_URL"), "/")
	secret := os.Getenv("ADMIN_JWT_SECRET")
	if apiBase == "" || secret == "" {
		fmt.Fprintln(os.Stderr, "ERROR: API_BASE_URL and ADMIN_JWT_SECRET required")
		os.Exit(1)
	}
	token, err := generateJWT(secret)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: sign admin token: %v\n", err)
		os.Exit(1)
	}
	adminToken = token

	scenarios := []scenario{
		{"greeting", scenarioGreeting},
		{"amenity-question", scenarioAmenityQuestion},
		{"full-capture", scenarioFullCapture},
		{"replay", scenarioReplay},
		{"rejections", scenarioRejections},
	}

	// Filter by name if argument provided
	filter := ""
	if len(os.Args) > 1 {
		filter = os.Args[1]
	}

	totalPassed := 0
	totalFailed := 0
	scenarioResults := make([]string, 0)

	for _, s := range scenarios {
		if filter != "" && s.Name != filter {
			continue
		}

		fmt.Printf("\n========================================\n")
		fmt.Printf("SCENARIO: %s\n", s.Name)
		fmt.Printf("========================================\n")

		t := &T{name: s.Name}
		s.Fn(t)

		totalPassed += t.passed
		totalFailed += t.failed

		status := "✅"
		if t.failed > 0 {
			status = "❌"
		}
		scenarioResults = append(scenarioResults, fmt.Sprintf("  %s %s (%d passed, %d failed)", status, s.Name, t.passed, t.failed))
	}

	fmt.Printf("\n========================================\n")
	fmt.Println("SUMMARY")
	fmt.Printf("========================================\n")
	for _, r := range scenarioResults {
		fmt.Println(r)
	}
	fmt.Printf("\nTotal: %d passed, %d failed\n", totalPassed, totalFailed)

	if totalFailed > 0 {
		fmt.Println("\n❌ SOME TESTS FAILED")
		os.Exit(1)
	}
	fmt.Println("\n✅ ALL TESTS PASSED")
}
