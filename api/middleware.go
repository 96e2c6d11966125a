package api

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// GzipRequestMiddleware transparently decompresses gzip request bodies on the
// mutation routes. Inflation is capped at the mutation body limit so an
// oversized or corrupt payload fails with a 400 before reaching the decoder.
func GzipRequestMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			encoding := req.Header.Get(echo.HeaderContentEncoding)
			if encoding == "" || !hasGzipEncoding(encoding) {
				return next(c)
			}
			if err := inflateRequest(req); err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid gzip body")
			}
			return next(c)
		}
	}
}

func hasGzipEncoding(header string) bool {
	for _, enc := range strings.Split(header, ",") {
		if strings.EqualFold(strings.TrimSpace(enc), "gzip") {
			return true
		}
	}
	return false
}

// inflateRequest swaps the request body for its decompressed form and strips
// the encoding headers so downstream decoding sees plain JSON.
func inflateRequest(req *http.Request) error {
	raw := req.Body
	gz, err := gzip.NewReader(raw)
	if err != nil {
		_ = raw.Close()
		return err
	}
	req.Body = &inflatedBody{r: io.LimitReader(gz, moveRequestMaxSize+1), gz: gz, raw: raw}
	req.ContentLength = -1
	req.Header.Del(echo.HeaderContentEncoding)
	req.Header.Del(echo.HeaderContentLength)
	return nil
}

type inflatedBody struct {
	r   io.Reader
	gz  *gzip.Reader
	raw io.Closer
}

func (b *inflatedBody) Read(p []byte) (int, error) {
	return b.r.Read(p)
}

func (b *inflatedBody) Close() error {
	err := b.gz.Close()
	if cerr := b.raw.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
