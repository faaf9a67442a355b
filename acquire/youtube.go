package acquire

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"blogarize/artifact"
	"blogarize/config"
	"blogarize/types"
)

// Resolver looks up metadata for a video ID. The concrete implementation
// talks to the YouTube Data API; tests substitute their own.
type Resolver interface {
	Title(ctx context.Context, videoID string) (string, error)
}

// LinkAcquirer obtains a source video from a YouTube link: it validates the
// host, resolves the title, and fetches the best audio-only stream into the
// uploads directory.
type LinkAcquirer struct {
	cfg      *config.Config
	store    *artifact.Store
	resolver Resolver

	// The Data API resolver is built on first use so upload-only
	// deployments never need YouTube credentials.
	resolverOnce sync.Once
	resolverErr  error

	// runFetch is swapped out by tests; the default shells out to yt-dlp.
	runFetch func(ctx context.Context, link, dest string) error
}

// NewLinkAcquirer creates a LinkAcquirer backed by the YouTube Data API.
func NewLinkAcquirer(cfg *config.Config, store *artifact.Store) *LinkAcquirer {
	a := &LinkAcquirer{cfg: cfg, store: store}
	a.runFetch = a.fetchWithYtDlp
	return a
}

// NewLinkAcquirerWithResolver wires an explicit resolver (used by tests).
func NewLinkAcquirerWithResolver(cfg *config.Config, store *artifact.Store, resolver Resolver) *LinkAcquirer {
	a := &LinkAcquirer{cfg: cfg, store: store, resolver: resolver}
	a.runFetch = a.fetchWithYtDlp
	return a
}

// Fetch validates the link, resolves the video title and downloads the
// audio-only stream. It returns the title and the base identifier shared by
// every artifact of this job. A source file that is already present and
// non-empty is reused without refetching.
func (a *LinkAcquirer) Fetch(ctx context.Context, link string) (title, base string, err error) {
	videoID, err := a.parseLink(link)
	if err != nil {
		return "", "", err
	}

	resolver, err := a.getResolver(ctx)
	if err != nil {
		return "", "", types.Stagef(types.ErrAcquisition, "could not authenticate with YouTube: %v", err)
	}

	title, err = resolver.Title(ctx, videoID)
	if err != nil {
		return "", "", types.Stagef(types.ErrAcquisition, "could not resolve video metadata for %s: %v", videoID, err)
	}

	base = SanitizeFilename(title)
	if base == "" {
		base = videoID
	}

	dest := a.store.Path(base, artifact.Source)
	if artifact.ExistsNonEmpty(dest) {
		log.Printf("[acquire] source already present, skipping fetch: %s", dest)
		return title, base, nil
	}

	log.Printf("[acquire] fetching audio stream for %q → %s", title, dest)
	if err := a.runFetch(ctx, link, dest); err != nil {
		return "", "", types.Stagef(types.ErrAcquisition, "could not fetch %s: %v", link, err)
	}
	log.Printf("[acquire] ✅ fetched %s", dest)
	return title, base, nil
}

func (a *LinkAcquirer) getResolver(ctx context.Context) (Resolver, error) {
	a.resolverOnce.Do(func() {
		if a.resolver != nil {
			return
		}
		a.resolver, a.resolverErr = newYouTubeResolver(ctx)
	})
	return a.resolver, a.resolverErr
}

// parseLink checks the URL host against the allowed YouTube hosts and
// extracts the video ID.
func (a *LinkAcquirer) parseLink(link string) (string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", types.Stagef(types.ErrInvalidInput, "invalid YouTube URL %q: %v", link, err)
	}

	allowed := false
	for _, host := range a.cfg.Acquire.AllowedHosts {
		if u.Hostname() == host {
			allowed = true
			break
		}
	}
	if !allowed {
		return "", types.Stagef(types.ErrInvalidInput, "invalid YouTube URL: %s", u.Hostname())
	}

	if id := u.Query().Get("v"); id != "" {
		return id, nil
	}
	if rest, ok := strings.CutPrefix(u.Path, "/shorts/"); ok && rest != "" {
		return strings.SplitN(rest, "/", 2)[0], nil
	}
	return "", types.Stagef(types.ErrInvalidInput, "no video ID in URL: %s", link)
}

func (a *LinkAcquirer) fetchWithYtDlp(ctx context.Context, link, dest string) error {
	cmd := exec.CommandContext(ctx, "yt-dlp",
		"--no-playlist",
		"-f", a.cfg.Acquire.StreamFormat,
		"--remux-video", "mp4",
		"-o", dest,
		link,
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("yt-dlp: %w", err)
	}
	if !artifact.ExistsNonEmpty(dest) {
		return fmt.Errorf("yt-dlp produced no output at %s", dest)
	}
	return nil
}

// youtubeResolver resolves titles through the YouTube Data API v3.
type youtubeResolver struct {
	svc *youtube.Service
}

// newYouTubeResolver authenticates with an API key, or with OAuth
// credentials when a refresh token is configured (needed for private and
// unlisted videos).
func newYouTubeResolver(ctx context.Context) (*youtubeResolver, error) {
	if refresh := os.Getenv("YOUTUBE_REFRESH_TOKEN"); refresh != "" {
		client, err := oauthClient(ctx, refresh)
		if err != nil {
			return nil, err
		}
		svc, err := youtube.NewService(ctx, option.WithHTTPClient(client))
		if err != nil {
			return nil, fmt.Errorf("youtube service: %w", err)
		}
		return &youtubeResolver{svc: svc}, nil
	}

	apiKey := os.Getenv("YOUTUBE_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("YOUTUBE_API_KEY not set")
	}
	svc, err := youtube.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("youtube service: %w", err)
	}
	return &youtubeResolver{svc: svc}, nil
}

func oauthClient(ctx context.Context, refreshToken string) (*http.Client, error) {
	clientID := os.Getenv("YOUTUBE_CLIENT_ID")
	clientSecret := os.Getenv("YOUTUBE_CLIENT_SECRET")
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("YOUTUBE_CLIENT_ID or YOUTUBE_CLIENT_SECRET not set")
	}

	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{youtube.YoutubeReadonlyScope},
	}
	token := &oauth2.Token{
		RefreshToken: refreshToken,
		Expiry:       time.Now().Add(-time.Hour), // force refresh
	}
	return oauth2.NewClient(ctx, conf.TokenSource(ctx, token)), nil
}

func (r *youtubeResolver) Title(ctx context.Context, videoID string) (string, error) {
	resp, err := r.svc.Videos.List([]string{"snippet"}).Id(videoID).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	if len(resp.Items) == 0 {
		return "", fmt.Errorf("video %s not found", videoID)
	}
	return resp.Items[0].Snippet.Title, nil
}
