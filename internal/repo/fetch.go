package repo

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cenk/backoff"
	circuit "github.com/rubyist/circuitbreaker"
)

var (
	ErrSourceUnavailable = errors.New("repository source unavailable")
	ErrHashMismatch      = errors.New("hash mismatch")
)

// IndexFile is the document name every repository source serves
const IndexFile = "packages.json"

// Fetcher downloads source indexes and package archives over HTTP with
// retry and per-source circuit breaking.
type Fetcher struct {
	client    *http.Client
	userAgent string
	breakers  map[string]*circuit.Breaker
	mu        sync.Mutex
}

// NewFetcher creates a Fetcher with sensible timeouts
func NewFetcher() *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: 5 * time.Minute, // archives can be large
		},
		userAgent: "pmt/1.0",
		breakers:  make(map[string]*circuit.Breaker),
	}
}

// breakerFor returns or creates the circuit breaker for a source host.
// Trips after 5 consecutive failures and backs off exponentially.
func (f *Fetcher) breakerFor(host string) *circuit.Breaker {
	f.mu.Lock()
	defer f.mu.Unlock()

	if breaker, ok := f.breakers[host]; ok {
		return breaker
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 30 * time.Second
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.Reset()

	breaker := circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ThresholdTripFunc(5),
	})
	f.breakers[host] = breaker
	return breaker
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}

// get performs one HTTP GET guarded by the source's circuit breaker and
// retried with exponential backoff on transient failures.
func (f *Fetcher) get(ctx context.Context, rawURL string, handle func(io.Reader) error) error {
	breaker := f.breakerFor(hostOf(rawURL))
	if !breaker.Ready() {
		return fmt.Errorf("%w: circuit open for %s", ErrSourceUnavailable, hostOf(rawURL))
	}

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = 500 * time.Millisecond
	retry.MaxElapsedTime = 30 * time.Second

	return breaker.Call(func() error {
		return backoff.Retry(func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
			if err != nil {
				return backoff.Permanent(err)
			}
			req.Header.Set("User-Agent", f.userAgent)

			resp, err := f.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			switch {
			case resp.StatusCode == http.StatusOK:
				return handle(resp.Body)
			case resp.StatusCode == http.StatusNotFound:
				return backoff.Permanent(fmt.Errorf("%s: HTTP 404", rawURL))
			case resp.StatusCode >= 500:
				return fmt.Errorf("%s: HTTP %d", rawURL, resp.StatusCode)
			default:
				return backoff.Permanent(fmt.Errorf("%s: HTTP %d", rawURL, resp.StatusCode))
			}
		}, backoff.WithContext(retry, ctx))
	}, 0)
}

// FetchIndex downloads and parses one source's packages.json
func (f *Fetcher) FetchIndex(ctx context.Context, source string) (Index, error) {
	indexURL := strings.TrimSuffix(source, "/") + "/" + IndexFile

	var idx Index
	err := f.get(ctx, indexURL, func(body io.Reader) error {
		return json.NewDecoder(body).Decode(&idx)
	})
	if err != nil {
		return nil, fmt.Errorf("fetching index from %s: %w", source, err)
	}

	return idx, nil
}

// FetchArchive downloads a package archive to dest and verifies its sha256
// against expectedHash. A mismatched file is removed before the error is
// returned.
func (f *Fetcher) FetchArchive(ctx context.Context, archiveURL, dest, expectedHash string) error {
	err := f.get(ctx, archiveURL, func(body io.Reader) error {
		out, err := os.Create(dest)
		if err != nil {
			return backoff.Permanent(err)
		}
		defer out.Close()

		hasher := sha256.New()
		if _, err := io.Copy(io.MultiWriter(out, hasher), body); err != nil {
			return err
		}

		if expectedHash != "" {
			got := fmt.Sprintf("%x", hasher.Sum(nil))
			if got != expectedHash {
				os.Remove(dest)
				return backoff.Permanent(fmt.Errorf("%w: got %s, want %s", ErrHashMismatch, got, expectedHash))
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("downloading %s: %w", archiveURL, err)
	}

	return nil
}

// Sync produces the merged repository index. When a local cache exists and
// regenerate is false it is loaded as-is; otherwise every source's index is
// fetched, stamped with its source URL, merged in order, and cached.
func Sync(ctx context.Context, f *Fetcher, sources []string, cachePath string, regenerate bool, logf func(string, ...any)) (Index, error) {
	if !regenerate {
		if _, err := os.Stat(cachePath); err == nil {
			return Load(cachePath)
		}
	}

	merged := make(Index)
	for _, source := range sources {
		logf("Downloading package index from %s", source)

		idx, err := f.FetchIndex(ctx, source)
		if err != nil {
			return nil, err
		}

		for _, versions := range idx {
			for ver, entry := range versions {
				entry.Metadata.URL = source
				versions[ver] = entry
			}
		}

		merged.Merge(idx)
	}

	logf("Writing package list in %s", cachePath)
	if err := merged.Save(cachePath); err != nil {
		return nil, err
	}

	return merged, nil
}
