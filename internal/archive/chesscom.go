package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

const defaultAvatar = "https://www.chess.com/bundles/web/images/user-image.svg"

type archivesResponse struct {
	Archives []string `json:"archives"`
}

type gamesResponse struct {
	Games []apiGame `json:"games"`
}

type apiPlayer struct {
	Username string `json:"username"`
	Rating   int    `json:"rating"`
	Result   string `json:"result"`
	ID       string `json:"@id"`
}

type apiGame struct {
	URL         string    `json:"url"`
	PGN         string    `json:"pgn"`
	TimeControl string    `json:"time_control"`
	TimeClass   string    `json:"time_class"`
	EndTime     int64     `json:"end_time"`
	White       apiPlayer `json:"white"`
	Black       apiPlayer `json:"black"`
}

type apiProfile struct {
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
	Name     string `json:"name"`
}

// ChessCom reads the public chess.com API.
type ChessCom struct {
	baseURL  string
	user     string
	http     *fasthttp.Client
	logger   *zap.Logger
	timeout  time.Duration
	profiles bool
}

type Option func(*ChessCom)

func WithTimeout(d time.Duration) Option {
	return func(c *ChessCom) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *ChessCom) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithProfiles resolves player avatars with one extra request per player.
func WithProfiles(on bool) Option {
	return func(c *ChessCom) { c.profiles = on }
}

func WithDial(dial func(addr string) (net.Conn, error)) Option {
	return func(c *ChessCom) { c.http.Dial = dial }
}

func NewChessCom(baseURL, user string, opts ...Option) *ChessCom {
	c := &ChessCom{
		baseURL: strings.TrimRight(baseURL, "/"),
		user:    strings.ToLower(strings.TrimSpace(user)),
		http:    &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 8, Name: "chessflix"},
		logger:  zap.NewNop(),
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Archives returns the monthly archive URLs, oldest first.
func (c *ChessCom) Archives(ctx context.Context) ([]string, error) {
	if c.user == "" {
		return nil, fmt.Errorf("%w: no user configured", ErrNotFound)
	}
	var resp archivesResponse
	if err := c.getJSON(ctx, c.baseURL+"/player/"+c.user+"/games/archives", &resp); err != nil {
		return nil, err
	}
	return resp.Archives, nil
}

func (c *ChessCom) Games(ctx context.Context, archiveURL string) ([]Summary, error) {
	var resp gamesResponse
	if err := c.getJSON(ctx, archiveURL, &resp); err != nil {
		return nil, err
	}
	avatars := map[string]string{}
	out := make([]Summary, 0, len(resp.Games))
	for _, g := range resp.Games {
		s := Summary{
			URL:         g.URL,
			PGN:         g.PGN,
			White:       Player{Username: g.White.Username, Rating: g.White.Rating, Result: g.White.Result},
			Black:       Player{Username: g.Black.Username, Rating: g.Black.Rating, Result: g.Black.Result},
			TimeClass:   g.TimeClass,
			TimeControl: formatTimeControl(g.TimeControl),
		}
		if g.EndTime > 0 {
			s.EndTime = time.Unix(g.EndTime, 0).UTC()
		}
		if c.profiles {
			s.White.Avatar = c.avatar(ctx, g.White.ID, avatars)
			s.Black.Avatar = c.avatar(ctx, g.Black.ID, avatars)
		}
		finish(&s, c.user)
		out = append(out, s)
	}
	return out, nil
}

// avatar soft-fails to the default image; results are memoised per listing.
func (c *ChessCom) avatar(ctx context.Context, profileURL string, memo map[string]string) string {
	if profileURL == "" {
		return defaultAvatar
	}
	if a, ok := memo[profileURL]; ok {
		return a
	}
	var p apiProfile
	a := defaultAvatar
	if err := c.getJSON(ctx, profileURL, &p); err != nil {
		c.logger.Warn("archive_profile_failed", zap.String("url", profileURL), zap.Error(err))
	} else if p.Avatar != "" {
		a = p.Avatar
	}
	memo[profileURL] = a
	return a
}

func (c *ChessCom) getJSON(ctx context.Context, url string, out any) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()
	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(url)
	req.Header.Set("Accept", "application/json")

	deadline := time.Now().Add(c.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return fmt.Errorf("archive request failed: %w", err)
	}
	switch status := resp.StatusCode(); {
	case status == fasthttp.StatusNotFound:
		return ErrNotFound
	case status < 200 || status >= 300:
		return fmt.Errorf("archive api error: status=%d", status)
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode archive response: %w", err)
	}
	return nil
}
