package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/CZERTAINLY/devserver/internal/model"
)

// URLFileName is created by OSRootAnnouncer inside the configured directory.
const URLFileName = "devserver.url"

// Announcers builds the announcers from the configuration, the stdout
// writer is used when nothing is configured.
func Announcers(_ context.Context, cfg *model.Announce) ([]model.Announcer, error) {
	if cfg == nil || (cfg.Dir == "" && cfg.URL == "") {
		return []model.Announcer{NewWriteAnnouncer(os.Stdout)}, nil
	}
	var announcers []model.Announcer
	if cfg.Dir != "" {
		a, err := NewOSRootAnnouncer(cfg.Dir)
		if err != nil {
			return nil, err
		}
		announcers = append(announcers, a)
	}
	if cfg.URL != "" {
		a, err := NewHTTPAnnouncer(cfg.URL)
		if err != nil {
			CloseAnnouncers(context.Background(), announcers)
			return nil, err
		}
		announcers = append(announcers, a)
	}
	return announcers, nil
}

// Announce publishes u to all announcers concurrently and joins the errors.
func Announce(ctx context.Context, announcers []model.Announcer, u model.URL) error {
	errs := make([]error, len(announcers))
	var g errgroup.Group
	for idx, a := range announcers {
		g.Go(func() error {
			errs[idx] = a.Announce(ctx, u)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func CloseAnnouncers(ctx context.Context, announcers []model.Announcer) {
	for _, a := range announcers {
		if closer, ok := a.(model.AnnounceCloser); ok {
			err := closer.Close()
			if err != nil {
				slog.ErrorContext(ctx, "closing announcer have failed", "error", err)
			}
		}
	}
}

type WriteAnnouncer struct {
	w io.Writer
}

func NewWriteAnnouncer(w io.Writer) WriteAnnouncer {
	return WriteAnnouncer{w: w}
}

func (a WriteAnnouncer) Announce(_ context.Context, u model.URL) error {
	if a.w == nil {
		a.w = os.Stdout
	}
	_, err := io.WriteString(a.w, u.String()+"\n")
	return err
}

// OSRootAnnouncer stores the URL in URLFileName, so other tools can pick it up.
type OSRootAnnouncer struct {
	root *os.Root
}

func NewOSRootAnnouncer(path string) (*OSRootAnnouncer, error) {
	root, err := os.OpenRoot(path)
	if err != nil {
		return nil, err
	}
	return &OSRootAnnouncer{root: root}, nil
}

func (a *OSRootAnnouncer) Announce(ctx context.Context, u model.URL) error {
	if a.root == nil {
		return errors.New("root already closed")
	}

	f, err := a.root.Create(URLFileName)
	if err != nil {
		return fmt.Errorf("creating %s: %w", URLFileName, err)
	}
	_, err = f.WriteString(u.String() + "\n")
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("saving %s: %w", URLFileName, err)
	}
	err = f.Close()
	if err != nil {
		return fmt.Errorf("closing %s: %w", URLFileName, err)
	}
	slog.InfoContext(ctx, "url saved", "path", URLFileName)
	return nil
}

func (a *OSRootAnnouncer) Close() error {
	if a.root == nil {
		return errors.New("announcer already closed")
	}
	err := a.root.Close()
	a.root = nil
	return err
}

// HTTPAnnouncer notifies the hosting application with a JSON POST request.
type HTTPAnnouncer struct {
	requestURL *url.URL
	client     *http.Client
}

type announceRequest struct {
	URL string `json:"url"`
}

func NewHTTPAnnouncer(endpoint string) (*HTTPAnnouncer, error) {
	parsedURL, err := url.Parse(endpoint)
	if err != nil {
		return nil, err
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, errors.New("please define the announce url with a scheme and a host, e.g. `http://127.0.0.1:9000/devserver`")
	}
	return &HTTPAnnouncer{
		requestURL: parsedURL,
		client:     &http.Client{},
	}, nil
}

func (a *HTTPAnnouncer) Announce(ctx context.Context, u model.URL) error {
	body, err := json.Marshal(announceRequest{URL: u.String()})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.requestURL.String(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		slog.DebugContext(ctx, "url announced", "endpoint", a.requestURL.String(), "status", resp.StatusCode)
		return nil
	}
	return decodeProblem(resp)
}

func decodeProblem(resp *http.Response) error {
	contentType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if contentType == "application/problem+json" {
		var problemDetail struct {
			Detail string `json:"detail"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&problemDetail); err != nil {
			return fmt.Errorf("decoding json response failed: %w", err)
		}
		return fmt.Errorf("status code: %d, detail: %s", resp.StatusCode, problemDetail.Detail)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return fmt.Errorf("unknown error, status: %d, body: %s", resp.StatusCode, string(respBody))
}
