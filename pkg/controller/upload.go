package controller

import (
	"io"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/go-faster/errors"
	"github.com/tgdrive/paperlink/pkg/httputil"
	"github.com/tgdrive/paperlink/pkg/services"
	"github.com/tgdrive/paperlink/ui"
)

const uploadField = "file"

// framingAllowance is the room left for multipart headers and boundaries on
// top of upload.max-size, which limits the file part itself.
const framingAllowance = 64 << 10

func (c *Controller) UploadForm(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := ui.RenderUpload(w, ui.UploadPage{MaxSize: humanize.IBytes(uint64(c.cnf.Upload.MaxSize))}); err != nil {
		httputil.NewError(w, r, http.StatusInternalServerError, "render failed", err)
	}
}

// partReader caps the file part at limit bytes and remembers the first read
// error, the HTTP client sending the document upstream does not always hand
// it back.
type partReader struct {
	r     io.Reader
	limit int64
	n     int64
	err   error
}

func (p *partReader) Read(b []byte) (int, error) {
	if p.err != nil {
		return 0, p.err
	}
	// read one byte past the limit to tell "exactly limit" from "too large"
	if room := p.limit - p.n + 1; int64(len(b)) > room {
		b = b[:room]
	}
	n, err := p.r.Read(b)
	p.n += int64(n)
	if p.n > p.limit {
		p.err = &http.MaxBytesError{Limit: p.limit}
		return n - int(p.n-p.limit), p.err
	}
	if err != nil && err != io.EOF {
		p.err = err
	}
	return n, err
}

// Upload streams the "file" part of a multipart body to the storage chat
// without buffering it.
func (c *Controller) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, c.cnf.Upload.MaxSize+framingAllowance)

	mr, err := r.MultipartReader()
	if err != nil {
		httputil.NewError(w, r, http.StatusBadRequest, "No file uploaded", err)
		return
	}

	var part *partReader
	var fileName, mimeType string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			httputil.NewError(w, r, http.StatusBadRequest, "No file uploaded", services.ErrNoFile)
			return
		}
		if err != nil {
			c.uploadError(w, r, http.StatusBadRequest, err)
			return
		}
		if p.FormName() == uploadField && p.FileName() != "" {
			part = &partReader{r: p, limit: c.cnf.Upload.MaxSize}
			fileName = p.FileName()
			mimeType = p.Header.Get("Content-Type")
			break
		}
		p.Close()
	}

	link, err := c.uploads.Upload(r.Context(), fileName, mimeType, part)
	if part.err != nil {
		c.uploadError(w, r, http.StatusBadRequest, part.err)
		return
	}
	if err != nil {
		c.uploadError(w, r, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err = ui.RenderUploaded(w, ui.UploadedPage{
		Link:     services.LinkURL(c.baseURL(r), link.ID),
		FileName: link.FileName,
		Size:     humanize.IBytes(uint64(link.FileSize)),
	})
	if err != nil {
		httputil.NewError(w, r, http.StatusInternalServerError, "render failed", err)
	}
}

// uploadError reports an oversized body as 413 and anything else with status.
func (c *Controller) uploadError(w http.ResponseWriter, r *http.Request, status int, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		httputil.NewError(w, r, http.StatusRequestEntityTooLarge, "File too large", err)
		return
	}
	if status == http.StatusBadRequest {
		httputil.NewError(w, r, status, "Bad upload body", err)
		return
	}
	httputil.NewError(w, r, status, "Upload failed", err)
}
