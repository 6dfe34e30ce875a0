package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"k8s.io/utils/clock"

	"github.com/roverops/missionctl/internal/report/storage"
	"github.com/roverops/missionctl/pkg/log"
)

// FileName returns "mission-report-<first 8 chars of id>-<unix seconds>.<format>".
func FileName(missionID string, f Format, at time.Time) string {
	short := missionID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("mission-report-%s-%d.%s", short, at.Unix(), f)
}

// Artifact is one exported file.
type Artifact struct {
	Format Format
	Path   string
	// URL is a presigned download link, set when the artifact was uploaded.
	URL string
}

// Exporter writes rendered documents to a directory and optionally uploads
// them to object storage.
type Exporter struct {
	dir    string
	store  storage.Provider
	expiry time.Duration
	clock  clock.PassiveClock
}

// ExporterOption customizes an Exporter.
type ExporterOption func(*Exporter)

// WithStorage uploads every artifact to p and presigns it for expiry.
func WithStorage(p storage.Provider, expiry time.Duration) ExporterOption {
	return func(e *Exporter) {
		e.store = p
		e.expiry = expiry
	}
}

// WithExportClock sets the clock used to name files.
func WithExportClock(clk clock.PassiveClock) ExporterOption {
	return func(e *Exporter) { e.clock = clk }
}

// NewExporter creates an Exporter writing to dir.
func NewExporter(dir string, opts ...ExporterOption) *Exporter {
	e := &Exporter{dir: dir, clock: clock.RealClock{}}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Export renders doc once per format. Local files are written before any
// upload; the first error stops the export.
func (e *Exporter) Export(ctx context.Context, doc *Document, formats []Format) ([]Artifact, error) {
	if len(formats) == 0 {
		formats = []Format{FormatMarkdown}
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}

	now := e.clock.Now()
	out := make([]Artifact, 0, len(formats))
	payloads := make([][]byte, 0, len(formats))
	for _, f := range formats {
		data, err := Render(doc, f)
		if err != nil {
			return out, err
		}
		path := filepath.Join(e.dir, FileName(doc.MissionID, f, now))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return out, fmt.Errorf("failed to write report: %w", err)
		}
		log.Info("Report written", "missionID", doc.MissionID, "path", path)
		out = append(out, Artifact{Format: f, Path: path})
		payloads = append(payloads, data)
	}

	if e.store == nil {
		return out, nil
	}

	if err := e.store.CheckBucket(ctx); err != nil {
		return out, fmt.Errorf("failed to connect to object storage: %w", err)
	}
	for i := range out {
		key := filepath.Base(out[i].Path)
		if err := e.store.Upload(ctx, key, out[i].Format.ContentType(), payloads[i]); err != nil {
			return out, err
		}
		u, err := e.store.GeneratePresignedURL(ctx, key, e.expiry)
		if err != nil {
			return out, err
		}
		out[i].URL = u
		log.Info("Report uploaded", "missionID", doc.MissionID, "object", key)
	}
	return out, nil
}
