// Command client is a minimal terminal chat client: it opens a session
// channel against a running server, follows one direct conversation, and
// sends lines typed on stdin.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/Unknownlegend09/Chathub/internal/channel"
	"github.com/Unknownlegend09/Chathub/internal/model"
)

type apiClient struct {
	baseURL string
	userID  int64
	http    *http.Client
}

func (a *apiClient) FetchConversation(ctx context.Context, peerID int64) ([]model.Message, error) {
	url := fmt.Sprintf("%s/api/messages?userId=%d", a.baseURL, peerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-User-ID", strconv.FormatInt(a.userID, 10))

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list messages: status %d", resp.StatusCode)
	}

	var msgs []model.Message
	if err := json.NewDecoder(resp.Body).Decode(&msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (a *apiClient) sendMessage(ctx context.Context, peerID int64, content string) error {
	body, err := json.Marshal(map[string]any{
		"content":    content,
		"receiverId": peerID,
	})
	if err != nil {
		return err
	}

	url := a.baseURL + "/api/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", strconv.FormatInt(a.userID, 10))

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("send message: status %d", resp.StatusCode)
	}
	return nil
}

func main() {
	apiURL := flag.String("api", "http://localhost:8080", "application server base URL")
	wsURL := flag.String("ws", "ws://localhost:8081/ws", "socket endpoint")
	userID := flag.Int64("user", 0, "authenticated user id")
	peerID := flag.Int64("peer", 0, "conversation peer user id")
	flag.Parse()

	if *userID <= 0 || *peerID <= 0 {
		log.Fatal("both -user and -peer are required")
	}

	api := &apiClient{
		baseURL: *apiURL,
		userID:  *userID,
		http:    &http.Client{Timeout: 10 * time.Second},
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	ch, err := channel.New(channel.Config{
		URL:     *wsURL,
		UserID:  *userID,
		Fetcher: api,
		Logger:  logger,
		Handlers: channel.Handlers{
			OnConversation: func(msgs []model.Message) {
				if len(msgs) > 0 {
					last := msgs[len(msgs)-1]
					fmt.Printf("[%d] %s\n", last.SenderID, last.Content)
				}
			},
			OnNotification: func(senderID int64, preview string) {
				fmt.Printf("* new message from %d: %s\n", senderID, preview)
			},
			OnPresence: func(userID int64, online bool, _ *time.Time) {
				fmt.Printf("* user %d online=%v\n", userID, online)
			},
			OnTyping: func(userID int64, typing bool) {
				if typing {
					fmt.Printf("* user %d is typing...\n", userID)
				}
			},
		},
	})
	if err != nil {
		log.Fatalf("failed to start channel: %v", err)
	}
	defer ch.Close()

	ch.SetActiveConversation(*peerID)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		ch.InputChanged(*peerID)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := api.sendMessage(ctx, *peerID, line)
		cancel()
		if err != nil {
			log.Printf("send failed: %v", err)
			continue
		}
		ch.MessageSent(*peerID)
	}
}
