package ghost

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meal-mailer/internal/config"
)

const adminKey = "abc123:0102030405060708"

func TestFetchPosts(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/ghost/api/v3/content/posts/", r.URL.Path)
			assert.Equal(t, "test_key", r.URL.Query().Get("key"))
			assert.Equal(t, "tags", r.URL.Query().Get("include"))
			assert.Equal(t, "all", r.URL.Query().Get("limit"))

			fmt.Fprintln(w, `{
				"posts": [
					{"id": "1", "title": "Recipe 1", "html": "<h1>Recipe 1</h1>", "updated_at": "2023-10-27T10:00:00Z",
					 "tags": [{"name": "Dinner", "slug": "dinner"}, {"name": " Lunch ", "slug": "lunch"}]},
					{"id": "2", "title": "Recipe 2", "html": "<h1>Recipe 2</h1>", "updated_at": "2023-10-28T10:00:00Z"}
				],
				"meta": {"pagination": {"page": 1, "limit": "all", "pages": 1, "total": 2}}
			}`)
		}))
		defer server.Close()

		client := NewClient(config.GhostConfig{URL: server.URL + "/", ContentKey: "test_key"})
		posts, err := client.FetchPosts(context.Background())
		require.NoError(t, err)
		require.Len(t, posts, 2)
		assert.Equal(t, []string{"dinner", "lunch"}, posts[0].TagNames())
		assert.Empty(t, posts[1].TagNames())
	})

	t.Run("ServerError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		client := NewClient(config.GhostConfig{URL: server.URL, ContentKey: "test_key"})
		_, err := client.FetchPosts(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 500")
	})
}

func TestCreatePost(t *testing.T) {
	var received PostsResponse
	var rawPost map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "html", r.URL.Query().Get("source"))

		auth := r.Header.Get("Authorization")
		require.True(t, strings.HasPrefix(auth, "Ghost "))
		secret, _ := hex.DecodeString("0102030405060708")
		token, err := jwt.Parse(strings.TrimPrefix(auth, "Ghost "), func(tok *jwt.Token) (any, error) {
			assert.Equal(t, "abc123", tok.Header["kid"])
			return secret, nil
		}, jwt.WithAudience("/v3/admin/"))
		require.NoError(t, err)
		assert.True(t, token.Valid)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &received))
		var raw struct {
			Posts []map[string]any `json:"posts"`
		}
		require.NoError(t, json.Unmarshal(body, &raw))
		require.Len(t, raw.Posts, 1)
		rawPost = raw.Posts[0]
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintln(w, `{"posts": [{"id": "p1", "title": "Plan", "status": "draft"}]}`)
	}))
	defer server.Close()

	client := NewClient(config.GhostConfig{URL: server.URL, AdminKey: adminKey})
	post, err := client.CreatePost(context.Background(), "Plan", "<p>hi</p>", false)
	require.NoError(t, err)
	assert.Equal(t, "p1", post.ID)

	require.Len(t, received.Posts, 1)
	assert.Equal(t, "Plan", received.Posts[0].Title)
	assert.Equal(t, "<p>hi</p>", received.Posts[0].HTML)
	assert.Equal(t, "draft", received.Posts[0].Status)
	assert.NotContains(t, rawPost, "id", "new posts must not carry an id")
	assert.NotContains(t, rawPost, "updated_at")
}

func TestCreatePostErrors(t *testing.T) {
	t.Run("bad admin key", func(t *testing.T) {
		for _, key := range []string{"", "no-colon", "id:not-hex"} {
			client := NewClient(config.GhostConfig{URL: "http://unused", AdminKey: key})
			_, err := client.CreatePost(context.Background(), "t", "h", false)
			assert.Error(t, err, key)
		}
	})

	t.Run("api error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprintln(w, `{"errors": [{"message": "nope"}]}`)
		}))
		defer server.Close()

		client := NewClient(config.GhostConfig{URL: server.URL, AdminKey: adminKey})
		_, err := client.CreatePost(context.Background(), "t", "h", false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 401")
	})
}
