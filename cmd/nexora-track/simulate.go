package main

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nexora/nexora-analytics/analytics"
	"github.com/nexora/nexora-analytics/browser"
	"github.com/nexora/nexora-analytics/internal/cookiejar"
	"github.com/nexora/nexora-analytics/internal/server"
	"github.com/nexora/nexora-analytics/internal/transport"
)

var (
	simVisitors    int
	simConcurrency int
	simEndpoint    string
	simSite        string
	simRedis       string
	simDataDir     string
	simDwell       time.Duration
	simKeepSession bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Drive simulated visitors through a tracked site",
	Long: `Run headless page visits with the tracker attached.

Each visitor keeps a cookie profile between runs (SQLite under the
application data directory, or Redis with --redis), so running the command
twice shows returning visitors. Without an absolute --endpoint an in-process
collector receives the payloads and a summary is printed.

Examples:
  nexora-track simulate --visitors 20
  nexora-track simulate --endpoint http://127.0.0.1:8123/api/v1/tracking/collect
  nexora-track simulate --redis localhost:6379 --keep-session`,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().IntVarP(&simVisitors, "visitors", "n", 0, "Number of visitors (default from config, 5)")
	simulateCmd.Flags().IntVar(&simConcurrency, "concurrency", 4, "Visitors running at once")
	simulateCmd.Flags().StringVar(&simEndpoint, "endpoint", "", "Collection endpoint URL")
	simulateCmd.Flags().StringVar(&simSite, "site", "", "Landing page URL of the simulated site")
	simulateCmd.Flags().StringVar(&simRedis, "redis", "", "Redis address for cookie profiles")
	simulateCmd.Flags().StringVar(&simDataDir, "data-dir", "", "Directory for the SQLite cookie store")
	simulateCmd.Flags().DurationVar(&simDwell, "dwell", 50*time.Millisecond, "Pause between visitor actions")
	simulateCmd.Flags().BoolVar(&simKeepSession, "keep-session", false, "Keep session cookies between runs")

	rootCmd.AddCommand(simulateCmd)
}

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
}

type jarSource func(profile string) browser.CookieJar

func runSimulate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	visitors := cfg.Simulate.Visitors
	if simVisitors > 0 {
		visitors = simVisitors
	}
	site := cfg.Simulate.SiteURL
	if simSite != "" {
		site = simSite
	}
	endpoint := cfg.Tracker.APIEndpoint
	if simEndpoint != "" {
		endpoint = simEndpoint
	}

	jars, closeJars, err := openJars()
	if err != nil {
		return err
	}
	defer closeJars()

	var recorder *server.Recorder
	if u, err := url.Parse(endpoint); err != nil || !u.IsAbs() {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to start in-process collector: %w", err)
		}
		recorder = &server.Recorder{}
		srv := server.NewServer(server.Sinks{recorder, server.LogSink{Logger: logger}}, listener.Addr().String(), logger)

		collectorCtx, cancelCollector := context.WithCancel(context.Background())
		serveDone := make(chan error, 1)
		go func() { serveDone <- srv.Serve(collectorCtx, listener) }()
		defer func() {
			cancelCollector()
			if err := <-serveDone; err != nil {
				logger.Error("collector shutdown failed", "error", err)
			}
		}()
		endpoint = transport.ResolveEndpoint("http://"+listener.Addr().String()+"/", endpoint)
	}

	var mu sync.Mutex
	results := make(map[string]string, visitors)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(simConcurrency, 1))
	for i := range visitors {
		g.Go(func() error {
			profile := fmt.Sprintf("visitor-%03d", i)
			visitorID, err := simulateVisit(gctx, i, profile, site, endpoint, jars(profile))
			if err != nil {
				return fmt.Errorf("%s: %w", profile, err)
			}
			mu.Lock()
			results[profile] = visitorID
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	profiles := make([]string, 0, len(results))
	for p := range results {
		profiles = append(profiles, p)
	}
	sort.Strings(profiles)
	for _, p := range profiles {
		fmt.Fprintf(out, "%s\t%s\n", p, results[p])
	}
	if recorder != nil {
		counts := recorder.Counts()
		types := make([]string, 0, len(counts))
		for typ := range counts {
			types = append(types, string(typ))
		}
		sort.Strings(types)
		fmt.Fprintf(out, "\n%d payloads from %d visitors\n", len(recorder.Deliveries()), len(recorder.Visitors()))
		for _, typ := range types {
			fmt.Fprintf(out, "  %-14s %d\n", typ, counts[analytics.EventType(typ)])
		}
	}
	return nil
}

// openJars opens the cookie profile backend: Redis when configured,
// otherwise SQLite.
func openJars() (jarSource, func(), error) {
	redisAddr := cfg.Simulate.RedisAddr
	if simRedis != "" {
		redisAddr = simRedis
	}
	if redisAddr != "" {
		client, err := cookiejar.DialRedis(cookiejar.RedisConfig{Address: redisAddr})
		if err != nil {
			return nil, nil, err
		}
		source := func(profile string) browser.CookieJar {
			return cookiejar.NewRedisJar(client, profile, cookiejar.RedisConfig{}, nil)
		}
		return source, func() { client.Close() }, nil
	}

	dir := cfg.Simulate.DataDir
	if simDataDir != "" {
		dir = simDataDir
	}
	if dir == "" {
		var err error
		if dir, err = applicationDirectory(); err != nil {
			return nil, nil, err
		}
	}
	store, err := cookiejar.Open(filepath.Join(dir, "cookies.db"), nil)
	if err != nil {
		return nil, nil, err
	}
	if n, err := store.PurgeExpired(); err != nil {
		logger.Warn("failed to purge expired cookies", "error", err)
	} else if n > 0 {
		logger.Debug("purged expired cookies", "count", n)
	}
	source := func(profile string) browser.CookieJar {
		return store.Profile(profile)
	}
	return source, func() { store.Close() }, nil
}

// simulateVisit walks one visitor through landing, scrolling, navigating,
// signing up and leaving.
func simulateVisit(ctx context.Context, i int, profile, site, endpoint string, jar browser.CookieJar) (string, error) {
	landing, err := url.Parse(site)
	if err != nil {
		return "", fmt.Errorf("invalid site URL: %w", err)
	}
	q := landing.Query()
	q.Set("utm_source", "nexora-track")
	q.Set("utm_medium", "simulation")
	landing.RawQuery = q.Encode()

	page := browser.NewPage(browser.PageConfig{
		URL:            landing.String(),
		Title:          "Home",
		Referrer:       "https://www.google.com/",
		Navigator:      browser.Navigator{UserAgent: userAgents[i%len(userAgents)], Language: "en-US", TimeZone: "UTC"},
		Screen:         browser.Size{Width: 1920, Height: 1080},
		Viewport:       browser.Size{Width: 1280, Height: 720},
		DocumentHeight: 3000,
		Jar:            jar,
		NavigationAPI:  i%2 == 0,
	})

	trackerCfg := cfg.Tracker
	trackerCfg.APIEndpoint = endpoint
	trackerCfg.TrackClicks = true
	trackerCfg.TrackScroll = true
	tracker := analytics.New(page, analytics.WithLogger(logger), analytics.WithScrollDebounce(simDwell/2))
	tracker.Init(cfg.APIKey, trackerCfg)

	steps := []func(){
		func() { page.ScrollTo(1500) },
		func() { page.Click(&browser.Element{TagName: "A", Href: "/pricing", Text: "Pricing"}) },
		func() { page.PushState("/pricing") },
		func() { tracker.Track("plan_viewed", map[string]any{"plan": "pro"}) },
		func() {
			page.Submit(&browser.Form{
				ID:     "signup",
				Action: "/signup",
				Fields: []browser.Field{
					{Name: "email", Type: "email", Value: profile + "@example.com"},
					{Name: "password", Type: "password", Value: "secret"},
					{Name: "newsletter", Type: "checkbox", Checked: i%3 == 0},
				},
			})
		},
		func() { tracker.Identify(analytics.Traits{Email: profile + "@example.com", UserID: profile}) },
	}
	for _, step := range steps {
		select {
		case <-ctx.Done():
			tracker.Close()
			return "", ctx.Err()
		case <-time.After(simDwell):
		}
		step()
	}

	page.Unload()
	tracker.Close()
	page.WaitBeacons()

	if !simKeepSession {
		if ender, ok := jar.(browser.SessionEnder); ok {
			if err := ender.EndSession(); err != nil {
				logger.Warn("failed to end browser session", "profile", profile, "error", err)
			}
		}
	}
	return tracker.VisitorID(), nil
}
