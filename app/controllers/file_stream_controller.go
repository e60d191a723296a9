package controllers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"slices"
	"strconv"

	"github.com/shashiranjanraj/filemanager/app/services"
	"github.com/shashiranjanraj/filemanager/pkg/filemanager"
	"github.com/shashiranjanraj/filemanager/pkg/logger"
	"github.com/shashiranjanraj/filemanager/pkg/metrics"
	"github.com/shashiranjanraj/filemanager/pkg/rbac"
	"github.com/shashiranjanraj/filemanager/pkg/response"
	"github.com/shashiranjanraj/filemanager/pkg/signedurl"
	"github.com/shashiranjanraj/filemanager/pkg/storage"
)

const (
	streamChunkSize = 8 << 10

	dispositionInline     = "inline"
	dispositionAttachment = "attachment"
)

// GatewayOptions wires a FileStreamController.
type GatewayOptions struct {
	Signer  *signedurl.Signer
	Disks   *storage.Manager
	Adapter filemanager.Adapter
	Gate    *rbac.Gate

	// AuthDisks reject anonymous callers. PublicDisks skip authorization.
	AuthDisks   []string
	PublicDisks []string
}

// FileStreamController serves file bytes behind signed, expiring links.
// Every request ends with an explicit status; nothing is buffered whole.
type FileStreamController struct {
	opts GatewayOptions
}

func NewFileStreamController(opts GatewayOptions) *FileStreamController {
	return &FileStreamController{opts: opts}
}

// Stream serves the file inline for previews.
func (fc *FileStreamController) Stream(w http.ResponseWriter, r *http.Request) {
	fc.serve(w, r, dispositionInline)
}

// Download serves the file as an attachment.
func (fc *FileStreamController) Download(w http.ResponseWriter, r *http.Request) {
	fc.serve(w, r, dispositionAttachment)
}

type streamRequest struct {
	disk       string
	path       string
	mode       string
	identifier string
	filename   string
}

func parseStreamRequest(q url.Values) (streamRequest, string) {
	req := streamRequest{
		disk:       q.Get(services.ParamDisk),
		path:       storage.Clean(q.Get(services.ParamPath)),
		mode:       q.Get(services.ParamMode),
		identifier: q.Get(services.ParamIdentifier),
		filename:   q.Get(services.ParamFilename),
	}
	if req.mode == "" {
		req.mode = filemanager.ModeStorage
	}

	switch {
	case req.disk == "" || req.path == "":
		return req, "The disk and path parameters are required"
	case req.mode != filemanager.ModeStorage && req.mode != filemanager.ModeDatabase:
		return req, "Unknown mode " + strconv.Quote(req.mode)
	case req.mode == filemanager.ModeDatabase && req.identifier == "":
		return req, "The identifier parameter is required in database mode"
	}
	return req, ""
}

func (fc *FileStreamController) serve(w http.ResponseWriter, r *http.Request, disposition string) {
	status := fc.handle(w, r, disposition)
	metrics.StreamResponses.WithLabelValues(disposition, strconv.Itoa(status)).Inc()
}

func fail(w http.ResponseWriter, status int, message string) int {
	response.Error(w, status, message)
	return status
}

func (fc *FileStreamController) handle(w http.ResponseWriter, r *http.Request, disposition string) int {
	log := logger.WithCtx(r.Context())

	if err := fc.opts.Signer.VerifyRequest(r); err != nil {
		return fail(w, http.StatusForbidden, "Invalid or expired link")
	}

	req, problem := parseStreamRequest(r.URL.Query())
	if problem != "" {
		return fail(w, http.StatusBadRequest, problem)
	}

	item, status := fc.authorize(r, req, disposition)
	if status != 0 {
		return fail(w, status, http.StatusText(status))
	}

	disk, err := fc.opts.Disks.Disk(req.disk)
	if err != nil {
		return fail(w, http.StatusNotFound, "Disk not found")
	}
	if !disk.Exists(req.path) {
		return fail(w, http.StatusNotFound, "File not found")
	}

	size, err := disk.Size(req.path)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fail(w, http.StatusNotFound, "File not found")
		}
		log.Error("gateway: size lookup failed", "disk", req.disk, "path", req.path, "error", err)
		return fail(w, http.StatusInternalServerError, "Could not read file")
	}

	br, partial, err := parseRange(r.Header.Get("Range"), size)
	if err != nil {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		return fail(w, http.StatusRequestedRangeNotSatisfiable, "Requested range not satisfiable")
	}
	if !partial {
		br = byteRange{start: 0, length: size}
	}

	body, err := openRange(disk, req.path, br, partial)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fail(w, http.StatusNotFound, "File not found")
		}
		log.Error("gateway: open failed", "disk", req.disk, "path", req.path, "error", err)
		return fail(w, http.StatusInternalServerError, "Could not read file")
	}
	defer body.Close()

	h := w.Header()
	h.Set("Content-Type", contentType(disk, req.path, item))
	h.Set("Content-Length", strconv.FormatInt(br.length, 10))
	h.Set("Cache-Control", "private, max-age=3600")
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Disposition", fmt.Sprintf(`%s; filename="%s"`, disposition, filemanager.SanitizeFilename(downloadName(req, item))))
	if disposition == dispositionInline {
		h.Set("X-Content-Type-Options", "nosniff")
	}

	status = http.StatusOK
	if partial {
		status = http.StatusPartialContent
		h.Set("Content-Range", br.contentRange(size))
	}
	w.WriteHeader(status)

	n, err := copyChunks(r.Context(), w, body)
	metrics.StreamBytes.WithLabelValues(req.disk).Add(float64(n))
	switch {
	case err == nil:
	case errors.Is(err, errClientGone):
		log.Debug("gateway: client went away", "path", req.path, "written", n)
	default:
		log.Error("gateway: stream aborted", "disk", req.disk, "path", req.path, "written", n, "error", err)
	}
	return status
}

// authorize returns the resolved database item, if any, and a non-zero
// status when the request must stop.
func (fc *FileStreamController) authorize(r *http.Request, req streamRequest, disposition string) (*filemanager.Item, int) {
	if slices.Contains(fc.opts.PublicDisks, req.disk) {
		return nil, 0
	}

	subject := rbac.SubjectFrom(r.Context())
	if subject == nil && slices.Contains(fc.opts.AuthDisks, req.disk) {
		return nil, http.StatusForbidden
	}
	gate := fc.opts.Gate
	download := disposition == dispositionAttachment

	if req.mode == filemanager.ModeStorage {
		if !gate.CanViewAny(subject) || (download && !gate.CanDownload(subject, nil)) {
			return nil, http.StatusForbidden
		}
		return nil, 0
	}

	a := fc.opts.Adapter
	if a == nil || a.ModeName() != filemanager.ModeDatabase {
		return nil, http.StatusNotFound
	}
	item, err := a.Item(r.Context(), req.identifier)
	if err != nil {
		logger.WithCtx(r.Context()).Error("gateway: item lookup failed", "identifier", req.identifier, "error", err)
		return nil, http.StatusInternalServerError
	}
	if item == nil || item.IsFolder || item.StoragePath != req.path || item.Disk != req.disk {
		return nil, http.StatusNotFound
	}
	if !gate.CanView(subject, item) || (download && !gate.CanDownload(subject, item)) {
		return nil, http.StatusForbidden
	}
	return item, 0
}

func contentType(disk storage.Reader, key string, item *filemanager.Item) string {
	if mime, err := disk.MimeType(key); err == nil && mime != "" {
		return mime
	}
	if item != nil && item.MimeType != "" {
		return item.MimeType
	}
	return "application/octet-stream"
}

func downloadName(req streamRequest, item *filemanager.Item) string {
	switch {
	case req.filename != "":
		return req.filename
	case item != nil:
		return item.Name
	}
	return path.Base(req.path)
}

type readCloser struct {
	io.Reader
	io.Closer
}

// openRange prefers a native ranged read and otherwise skips ahead on a full
// stream.
func openRange(disk storage.Reader, key string, br byteRange, partial bool) (io.ReadCloser, error) {
	if !partial {
		return disk.GetStream(key)
	}
	if rr, ok := disk.(storage.RangeReader); ok {
		return rr.GetRange(key, br.start, br.length)
	}

	rc, err := disk.GetStream(key)
	if err != nil {
		return nil, err
	}
	if _, err := io.CopyN(io.Discard, rc, br.start); err != nil {
		rc.Close()
		return nil, fmt.Errorf("controllers: seek %s: %w", key, err)
	}
	return readCloser{Reader: io.LimitReader(rc, br.length), Closer: rc}, nil
}

var errClientGone = errors.New("controllers: client disconnected")

// copyChunks writes src to w in streamChunkSize pieces until EOF, a backend
// error, a failed write or cancellation of ctx.
func copyChunks(ctx context.Context, w io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, streamChunkSize)
	var written int64
	for {
		if ctx.Err() != nil {
			return written, errClientGone
		}
		n, rerr := src.Read(buf)
		if n > 0 {
			m, werr := w.Write(buf[:n])
			written += int64(m)
			if werr != nil {
				return written, fmt.Errorf("%w: %v", errClientGone, werr)
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, fmt.Errorf("controllers: read: %w", rerr)
		}
	}
}
