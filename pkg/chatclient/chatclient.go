package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"unicode/utf8"

	contractx "github.com/tanpawarit/chative-gateway/agent/contract"
)

const (
	streamPath        = "/api/v1/chat/stream"
	trailerChatResult = "X-Chat-Result"
	readBufferSize    = 4096
)

// ErrIncomplete means the stream ended without its result trailer, so the
// text received so far must not be trusted.
var ErrIncomplete = errors.New("chat stream ended before completion")

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// Stream posts req and calls onChunk with each piece of text as it arrives.
// Chunks never split a UTF-8 sequence.
func (c *Client) Stream(ctx context.Context, req contractx.ChatRequest, onChunk func(string)) (contractx.ChatResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return contractx.ChatResult{}, fmt.Errorf("encode chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+streamPath, bytes.NewReader(body))
	if err != nil {
		return contractx.ChatResult{}, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return contractx.ChatResult{}, fmt.Errorf("send chat request: %w", err)
	}
	defer resp.Body.Close()

	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain") {
		// Request-level failures come back as a single JSON ChatResponse.
		var out contractx.ChatResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
			return contractx.ChatResult{}, fmt.Errorf("unexpected response status %d: %w", resp.StatusCode, err)
		}
		if out.Response != "" {
			onChunk(out.Response)
		}
		return out.Result(), nil
	}

	if err := readChunks(resp.Body, onChunk); err != nil {
		return contractx.ChatResult{}, fmt.Errorf("%w: %v", ErrIncomplete, err)
	}

	raw := resp.Trailer.Get(trailerChatResult)
	if raw == "" {
		return contractx.ChatResult{}, ErrIncomplete
	}
	var result contractx.ChatResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return contractx.ChatResult{}, fmt.Errorf("%w: bad result trailer: %v", ErrIncomplete, err)
	}
	return result, nil
}

func readChunks(r io.Reader, onChunk func(string)) error {
	buf := make([]byte, readBufferSize)
	var pending []byte
	for {
		n, err := r.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			cut := completePrefix(pending)
			if cut > 0 {
				onChunk(string(pending[:cut]))
				pending = append(pending[:0], pending[cut:]...)
			}
		}
		if errors.Is(err, io.EOF) {
			if len(pending) > 0 {
				onChunk(string(pending))
			}
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// completePrefix returns the length of the longest prefix of b that does not
// end inside a UTF-8 sequence.
func completePrefix(b []byte) int {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if utf8.FullRune(b[i:]) {
				return len(b)
			}
			return i
		}
	}
	return len(b)
}

// Conversation keeps the history of completed exchanges. An aborted reply
// is dropped along with the message that triggered it.
type Conversation struct {
	client *Client
	userID string

	mu      sync.Mutex
	history []contractx.Turn
}

func NewConversation(client *Client, userID string) *Conversation {
	return &Conversation{client: client, userID: userID}
}

func (c *Conversation) Send(ctx context.Context, message string, onChunk func(string)) (string, contractx.ChatResult, error) {
	c.mu.Lock()
	history := append(make([]contractx.Turn, 0, len(c.history)+1), c.history...)
	c.mu.Unlock()
	history = append(history, contractx.Turn{Role: contractx.RoleUser, Content: message})

	var reply strings.Builder
	result, err := c.client.Stream(ctx, contractx.ChatRequest{
		Message:  message,
		UserID:   c.userID,
		Messages: history,
	}, func(chunk string) {
		reply.WriteString(chunk)
		onChunk(chunk)
	})
	if err != nil {
		return "", contractx.ChatResult{}, err
	}

	c.mu.Lock()
	c.history = append(history, contractx.Turn{Role: contractx.RoleAssistant, Content: reply.String()})
	c.mu.Unlock()
	return reply.String(), result, nil
}

func (c *Conversation) History() []contractx.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]contractx.Turn(nil), c.history...)
}
