package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true)
	promptStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chunkEvent struct {
	Content string `json:"content"`
}

type errorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func main() {
	_ = godotenv.Load()

	baseURL := flag.String("url", envOr("RAGCHAT_URL", "http://localhost:8080"), "server base URL")
	apiKey := flag.String("api-key", os.Getenv("RAGCHAT_API_KEY"), "bearer token (optional)")
	sessionID := flag.String("session", "", "session id (default: random)")
	flag.Parse()

	if *sessionID == "" {
		*sessionID = uuid.NewString()
	}

	fmt.Println(headerStyle.Render("ragchat"))
	fmt.Println(dimStyle.Render("session " + *sessionID + " | " + *baseURL + " | ctrl-d to quit"))
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(promptStyle.Render("you> "))
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		message := strings.TrimSpace(scanner.Text())
		if message == "" {
			continue
		}

		if err := streamChat(*baseURL, *apiKey, *sessionID, message); err != nil {
			fmt.Println(errorStyle.Render("error: " + err.Error()))
		}
		fmt.Println()
	}
}

// streamChat posts one message and renders the SSE reply as it arrives.
func streamChat(baseURL, apiKey, sessionID, message string) error {
	body, err := json.Marshal(chatRequest{SessionID: sessionID, Message: message})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/api/chat/stream", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		var errResp errorEvent
		if json.NewDecoder(resp.Body).Decode(&errResp) == nil && errResp.Message != "" {
			return fmt.Errorf("%s (%s)", errResp.Message, errResp.Code)
		}
		return fmt.Errorf("unexpected response status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	event := ""
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data := strings.TrimPrefix(line, "data: ")
			switch event {
			case "chunk":
				var c chunkEvent
				if err := json.Unmarshal([]byte(data), &c); err != nil {
					return fmt.Errorf("decode chunk: %w", err)
				}
				fmt.Print(assistantStyle.Render(c.Content))
			case "error":
				var e errorEvent
				if err := json.Unmarshal([]byte(data), &e); err != nil {
					return fmt.Errorf("decode error event: %w", err)
				}
				fmt.Println()
				return fmt.Errorf("%s (%s)", e.Message, e.Code)
			case "done":
				fmt.Println()
				return nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}

	fmt.Println()
	return fmt.Errorf("stream ended without done event")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
