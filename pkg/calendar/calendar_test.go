package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savaki/linebot-assistant/pkg/models"
)

func TestIsValidURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"https url", "https://example.com/poster.jpg", true},
		{"http url with query", "http://example.com/a?b=c", true},
		{"surrounding whitespace", "  https://example.com  ", true},
		{"plain text", "hello", false},
		{"relative path", "/poster.jpg", false},
		{"missing host", "https://", false},
		{"other scheme", "ftp://example.com/file", false},
		{"text containing url", "look https://example.com", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidURL(tt.in))
		})
	}
}

func TestNormalizeDates(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"20240501T100000/20240501T120000", "20240501T100000/20240501T120000", true},
		{"2024-05-01T10:00:00/2024-05-01T12:00:00", "20240501T100000/20240501T120000", true},
		{"20240501T100000Z/20240501T120000Z", "20240501T100000Z/20240501T120000Z", true},
		{"20240501T100000", "20240501T100000/20240501T100000", true},
		{"2024-05-01", "20240501/20240502", true},
		{"next friday", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := NormalizeDates(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildURL(t *testing.T) {
	link := BuildURL(models.EventDetails{
		Title:    "社課：Go 入門",
		Time:     "20240501T190000/20240501T210000",
		Location: "Room 101",
		Content:  "Bring a laptop",
	})

	require.True(t, IsValidURL(link))
	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "calendar.google.com", u.Host)
	assert.Equal(t, "/calendar/render", u.Path)

	q := u.Query()
	assert.Equal(t, "TEMPLATE", q.Get("action"))
	assert.Equal(t, "社課：Go 入門", q.Get("text"))
	assert.Equal(t, "20240501T190000/20240501T210000", q.Get("dates"))
	assert.Equal(t, "Room 101", q.Get("location"))
	assert.Equal(t, "Bring a laptop", q.Get("details"))
}

func TestBuildURLOmitsUnknownFields(t *testing.T) {
	u, err := url.Parse(BuildURL(models.EventDetails{Title: "Meetup", Time: "sometime"}))
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "Meetup", q.Get("text"))
	assert.False(t, q.Has("dates"))
	assert.False(t, q.Has("location"))
	assert.False(t, q.Has("details"))
}

func TestBuildURLIsDeterministic(t *testing.T) {
	d := models.EventDetails{Title: "A", Time: "20240101T100000/20240101T110000", Location: "B", Content: "C"}
	assert.Equal(t, BuildURL(d), BuildURL(d))
}

func TestShortenerWithoutKeyReturnsInput(t *testing.T) {
	s := NewShortener("", "", nil)
	got, err := s.Shorten(context.Background(), "https://example.com/long")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/long", got)
}

func TestShortenerRejectsInvalidURL(t *testing.T) {
	s := NewShortener("key", "", nil)
	_, err := s.Shorten(context.Background(), "not a url")
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestShortenerCallsAPI(t *testing.T) {
	var gotKey string
	var gotBody shortenRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("reurl-api-key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"res":"success","short_url":"https://reurl.cc/abc123"}`))
	}))
	defer srv.Close()

	s := NewShortener("secret-key", srv.URL, srv.Client())
	got, err := s.Shorten(context.Background(), "https://calendar.google.com/calendar/render?action=TEMPLATE")
	require.NoError(t, err)

	assert.Equal(t, "https://reurl.cc/abc123", got)
	assert.Equal(t, "secret-key", gotKey)
	assert.Equal(t, "https://calendar.google.com/calendar/render?action=TEMPLATE", gotBody.URL)
}

func TestShortenerAPIFailure(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `oops`},
		{"api error", http.StatusOK, `{"res":"error","msg":"quota exceeded"}`},
		{"bad json", http.StatusOK, `nope`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			s := NewShortener("key", srv.URL, srv.Client())
			_, err := s.Shorten(context.Background(), "https://example.com")
			assert.Error(t, err)
		})
	}
}
