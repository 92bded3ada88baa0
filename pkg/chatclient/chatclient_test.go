package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	contractx "github.com/tanpawarit/chative-gateway/agent/contract"
)

func streamHandler(chunks []string, withTrailer bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req contractx.ChatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Trailer", trailerChatResult)
		w.WriteHeader(http.StatusOK)
		for _, c := range chunks {
			_, _ = w.Write([]byte(c))
			w.(http.Flusher).Flush()
		}
		if withTrailer {
			raw, _ := json.Marshal(contractx.ChatResult{ActionPerformed: "list_products", Success: true})
			w.Header().Set(trailerChatResult, string(raw))
		}
	}
}

func TestStreamCollectsChunksAndTrailer(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(streamHandler([]string{"Found 6 ", "products."}, true))
	defer srv.Close()

	var got strings.Builder
	result, err := New(srv.URL, srv.Client()).Stream(context.Background(), contractx.ChatRequest{Message: "show all products"}, func(c string) {
		got.WriteString(c)
	})
	require.NoError(t, err)
	assert.Equal(t, "Found 6 products.", got.String())
	assert.True(t, result.Success)
	assert.Equal(t, "list_products", result.ActionPerformed)
}

func TestStreamWithoutTrailerIsIncomplete(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(streamHandler([]string{"Found 6 "}, false))
	defer srv.Close()

	_, err := New(srv.URL, nil).Stream(context.Background(), contractx.ChatRequest{Message: "show all products"}, func(string) {})
	assert.True(t, errors.Is(err, ErrIncomplete), "error = %v", err)
}

func TestStreamJSONFailureIsRendered(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(contractx.ChatResponse{Response: "Please type a message so I can help you."})
	}))
	defer srv.Close()

	var got string
	result, err := New(srv.URL, nil).Stream(context.Background(), contractx.ChatRequest{}, func(c string) { got += c })
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "Please type a message so I can help you.", got)
}

func TestReadChunksKeepsRunesWhole(t *testing.T) {
	t.Parallel()

	text := "สวัสดี héllo"
	var chunks []string
	err := readChunks(iotest.OneByteReader(strings.NewReader(text)), func(c string) {
		chunks = append(chunks, c)
	})
	require.NoError(t, err)
	assert.Equal(t, text, strings.Join(chunks, ""))
	for _, c := range chunks {
		assert.True(t, strings.ToValidUTF8(c, "?") == c, "chunk %q splits a rune", c)
	}
}

func TestConversationDropsAbortedExchange(t *testing.T) {
	t.Parallel()

	ok := httptest.NewServer(streamHandler([]string{"Done."}, true))
	defer ok.Close()
	broken := httptest.NewServer(streamHandler([]string{"Partial"}, false))
	defer broken.Close()

	conv := NewConversation(New(ok.URL, nil), "u1")
	_, _, err := conv.Send(context.Background(), "show all products", func(string) {})
	require.NoError(t, err)
	require.Len(t, conv.History(), 2)

	conv.client = New(broken.URL, nil)
	_, _, err = conv.Send(context.Background(), "show product SLT001", func(string) {})
	require.Error(t, err)
	assert.Len(t, conv.History(), 2)
}

func TestCompletePrefix(t *testing.T) {
	t.Parallel()

	e := []byte("é") // two bytes
	assert.Equal(t, 1, completePrefix(append([]byte("a"), e[0])))
	assert.Equal(t, 3, completePrefix(append([]byte("a"), e...)))
	assert.Equal(t, 2, completePrefix([]byte("ab")))
}
