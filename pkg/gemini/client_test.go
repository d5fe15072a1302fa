package gemini

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savaki/linebot-assistant/pkg/models"
)

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient(context.Background(), "  ", "")
	assert.Error(t, err)
}

func TestToHistory(t *testing.T) {
	transcript := models.Transcript{}.
		Append(models.RoleUser, "Hello").
		Append(models.RoleModel, "Hi, how can I help?").
		Append(models.RoleUser, "   ").
		Append(models.RoleUser, "What is Go?")

	history, last, err := toHistory(transcript)
	require.NoError(t, err)

	assert.Equal(t, "What is Go?", last)
	require.Len(t, history, 2, "blank turns are skipped")
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, []genai.Part{genai.Text("Hello")}, history[0].Parts)
	assert.Equal(t, "model", history[1].Role)
	assert.Equal(t, []genai.Part{genai.Text("Hi, how can I help?")}, history[1].Parts)
}

func TestToHistoryErrors(t *testing.T) {
	_, _, err := toHistory(nil)
	assert.Error(t, err)

	_, _, err = toHistory(models.Transcript{}.Append(models.RoleModel, "dangling"))
	assert.Error(t, err)
}

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []genai.Part{genai.Text("Hello "), genai.Text("world\n")}}},
		},
	}
	text, err := responseText(resp)
	require.NoError(t, err)
	assert.Equal(t, "Hello world", text)

	_, err = responseText(&genai.GenerateContentResponse{})
	assert.Error(t, err)

	_, err = responseText(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{}}},
	})
	assert.Error(t, err)

	_, err = responseText(nil)
	assert.Error(t, err)
}

func TestParseEventDetails(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    models.EventDetails
		wantErr bool
	}{
		{
			name: "plain json",
			text: `{"title":"GDSC 社課","time":"20240501T190000/20240501T210000","location":"資工系館 R103","content":"Go 入門"}`,
			want: models.EventDetails{
				Title:    "GDSC 社課",
				Time:     "20240501T190000/20240501T210000",
				Location: "資工系館 R103",
				Content:  "Go 入門",
			},
		},
		{
			name: "fenced",
			text: "```json\n{\"title\":\"Meetup\",\"time\":\"\",\"location\":\"\",\"content\":\"monthly\"}\n```",
			want: models.EventDetails{Title: "Meetup", Content: "monthly"},
		},
		{
			name: "surrounding prose",
			text: "Here it is: {\"title\":\"Talk\"} hope it helps",
			want: models.EventDetails{Title: "Talk"},
		},
		{name: "not json", text: "no event here", wantErr: true},
		{name: "empty object", text: "{}", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseEventDetails(tt.text)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFetch(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n0000")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/poster.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write(png)
		case "/page":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte("<html><body>Workshop</body></html>"))
		case "/big":
			w.Write([]byte(strings.Repeat("x", 2048)))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := &Client{httpClient: srv.Client(), maxFetch: 1024}
	ctx := context.Background()

	res, err := c.fetch(ctx, srv.URL+"/poster.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", res.MIMEType)
	assert.Equal(t, png, res.Data)
	assert.True(t, isBinaryDocument(res.MIMEType))

	res, err = c.fetch(ctx, srv.URL+"/page")
	require.NoError(t, err)
	assert.Equal(t, "text/html", res.MIMEType)
	assert.False(t, isBinaryDocument(res.MIMEType))

	_, err = c.fetch(ctx, srv.URL+"/missing")
	assert.Error(t, err)

	_, err = c.fetch(ctx, srv.URL+"/big")
	assert.Error(t, err)
}

func TestFetchDecodesDeclaredCharset(t *testing.T) {
	// "中文" in Big5
	big5 := []byte("<html><body>\xa4\xa4\xa4\xe5</body></html>")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=big5")
		w.Write(big5)
	}))
	defer srv.Close()

	c := &Client{httpClient: srv.Client(), maxFetch: 1024}
	res, err := c.fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "text/html", res.MIMEType)
	assert.Equal(t, "<html><body>中文</body></html>", string(res.Data))
}

func TestLongCJKPageStaysValidUTF8(t *testing.T) {
	page := "<html><body>" + strings.Repeat("社課講座報名", 5000) + "</body></html>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(page))
	}))
	defer srv.Close()

	c := &Client{httpClient: srv.Client(), maxFetch: 1 << 20}
	res, err := c.fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Greater(t, len(res.Data), maxPageText)

	text := truncateText(string(res.Data), maxPageText)
	assert.True(t, utf8.ValidString(text))
	assert.LessOrEqual(t, len(text), maxPageText)
	assert.Greater(t, len(text), maxPageText-utf8.UTFMax)
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "abc", truncateText("abc", 10))
	assert.Equal(t, "ab", truncateText("abc", 2))
	// 課 is three bytes, a cut inside it backs off to the rune start
	assert.Equal(t, "a", truncateText("a課", 2))
	assert.Equal(t, "a", truncateText("a課", 3))
	assert.Equal(t, "a課", truncateText("a課", 4))
}

func TestNeedsUpload(t *testing.T) {
	assert.False(t, needsUpload(1024))
	assert.False(t, needsUpload(maxInlineBytes))
	assert.True(t, needsUpload(maxInlineBytes+1))
}

func TestAudioMIMEType(t *testing.T) {
	assert.Equal(t, "audio/aac", audioMIMEType("audio/x-m4a"))
	assert.Equal(t, "audio/aac", audioMIMEType(""))
	assert.Equal(t, "audio/mp3", audioMIMEType("audio/mpeg"))
	assert.Equal(t, "audio/wav", audioMIMEType("audio/wav"))
}

func TestImageMIMEType(t *testing.T) {
	assert.Equal(t, "image/png", imageMIMEType(models.Artifact{MIMEType: "image/png"}))
	assert.Equal(t, "application/pdf", imageMIMEType(models.Artifact{MIMEType: "application/pdf"}))
	assert.Equal(t, "image/jpeg", imageMIMEType(models.Artifact{Data: []byte("\xff\xd8\xff\xe0\x00\x10JFIF")}))
}
