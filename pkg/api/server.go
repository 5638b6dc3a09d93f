// Package api exposes the scan pipeline over HTTP.
package api

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"ultrascan/pkg/config"
	"ultrascan/pkg/httputil"
	"ultrascan/pkg/media"
	"ultrascan/pkg/scan"
	"ultrascan/pkg/store"
	"ultrascan/pkg/telemetry"
)

// VerdictStore is the persistence surface the API needs; nil disables
// persistence.
type VerdictStore interface {
	Save(ctx context.Context, v *scan.Verdict) error
	Get(ctx context.Context, scanID string) (*scan.Verdict, error)
}

// Server hosts the scan API.
type Server struct {
	app   *fiber.App
	cfg   *config.Config
	orch  *scan.Orchestrator
	cache *scan.Cache
	store VerdictStore
	sem   *httputil.Semaphore
	tel   *telemetry.Client
}

// NewServer wires the HTTP surface. cache is required; store may be nil.
func NewServer(cfg *config.Config, orch *scan.Orchestrator, cache *scan.Cache, store VerdictStore, tel *telemetry.Client) *Server {
	s := &Server{
		cfg:   cfg,
		orch:  orch,
		cache: cache,
		store: store,
		sem:   httputil.NewSemaphore(cfg.MaxConcurrentScans),
		tel:   tel,
	}

	app := fiber.New(fiber.Config{
		AppName:   "UltraScan",
		BodyLimit: 256 * 1024 * 1024, // video uploads
	})

	app.Get("/health", s.handleHealth)
	app.Get("/v1/stats", s.handleStats)
	app.Post("/v1/scan", s.handleScan)
	app.Get("/v1/results/:id", s.handleResult)

	s.app = app
	return s
}

// Listen serves until the listener fails.
func (s *Server) Listen() error {
	log.Printf("[API] Listening on %s", s.cfg.ListenAddr)
	return s.app.Listen(s.cfg.ListenAddr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown() error { return s.app.Shutdown() }

func (s *Server) handleHealth(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "scans_in_flight": s.sem.InUse()})
}

func (s *Server) handleStats(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"events":          s.tel.Snapshot(),
		"scans_in_flight": s.sem.InUse(),
		"scans_rejected":  s.sem.Rejected(),
	})
}

// handleScan accepts either a multipart upload (field "file", optional
// "media_type" hint) or a JSON body {"text": "..."} for text-only scans.
func (s *Server) handleScan(c fiber.Ctx) error {
	if !s.sem.TryAcquire() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "scanner at capacity, retry later",
		})
	}
	defer s.sem.Release()

	content, filename, hint, err := readScanRequest(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if len(content) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "empty media content"})
	}

	scanID := newScanID()
	key := scan.ContentKey(content)

	verdict, cached, err := s.cache.GetOrCompute(c.Context(), key, func() (*scan.Verdict, error) {
		in, err := media.Preprocess(content, filename, hint)
		if err != nil {
			return nil, err
		}
		return s.orch.Scan(c.Context(), scanID, in, nil)
	})
	if err != nil {
		return s.scanError(c, scanID, err)
	}

	if !cached && s.store != nil {
		if err := s.store.Save(c.Context(), verdict); err != nil {
			log.Printf("[API] Verdict persist failed for %s: %v", verdict.ScanID, err)
		}
	}

	return c.JSON(fiber.Map{
		"cached":  cached,
		"verdict": verdict,
	})
}

func (s *Server) handleResult(c fiber.Ctx) error {
	if s.store == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{
			"error": "persistence not configured",
		})
	}
	id := c.Params("id")
	verdict, err := s.store.Get(c.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown scan id"})
		}
		log.Printf("[API] Verdict load failed for %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "lookup failed"})
	}
	return c.JSON(verdict)
}

func (s *Server) scanError(c fiber.Ctx, scanID string, err error) error {
	switch {
	case errors.Is(err, scan.ErrInsufficientInput):
		s.tel.TrackWithContext("api_insufficient_input", nil, scanID)
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "no detector could analyze this input",
		})
	case errors.Is(err, scan.ErrDeadlineExceeded):
		return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{
			"error": "scan deadline exceeded",
		})
	default:
		log.Printf("[API] Scan %s failed: %v", scanID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "scan failed",
		})
	}
}

// readScanRequest extracts (content, filename, media type hint) from the
// request, preferring a multipart upload over a JSON text body.
func readScanRequest(c fiber.Ctx) (content []byte, filename, hint string, err error) {
	if fh, ferr := c.FormFile("file"); ferr == nil {
		f, oerr := fh.Open()
		if oerr != nil {
			return nil, "", "", errors.New("unreadable upload")
		}
		defer f.Close()
		content, err = io.ReadAll(f)
		if err != nil {
			return nil, "", "", errors.New("unreadable upload")
		}
		return content, fh.Filename, c.FormValue("media_type"), nil
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := c.Bind().Body(&req); err != nil || req.Text == "" {
		return nil, "", "", errors.New("expected multipart file upload or JSON text body")
	}
	return []byte(req.Text), "input.txt", string(media.MediaTypeText), nil
}

// newScanID mints a scn_-prefixed identifier.
func newScanID() string {
	return "scn_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
