package fetchers

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
)

// StatusTimeout is the status line recorded for a request that timed out.
const StatusTimeout = "TIMEOUT"

type ClassifyOptions struct {
	// FetchBody issues a GET after a successful HEAD on an HTML resource.
	FetchBody bool
	// HeadFallback classifies with GET when HEAD answers 405.
	HeadFallback bool
}

// Result is the classification of one URL.
type Result struct {
	URL         string
	Status      string
	StatusCode  int
	ContentType string
	Success     bool
	HTML        bool
	Body        []byte
	// BodyErr is set when the follow-up GET failed. The classification stands.
	BodyErr error
}

// Classify issues HEAD (and GET where needed) for url and reports the outcome. Transport
// failures become failed results, so the returned error is only ever the context's.
func Classify(ctx context.Context, f Fetcher, url string, opts ClassifyOptions) (Result, error) {
	res := Result{URL: url}

	resp, err := f.Head(ctx, url)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		res.Status = errorStatus(err)
		return res, nil
	}

	if opts.HeadFallback && resp.StatusCode == http.StatusMethodNotAllowed {
		get, err := f.Get(ctx, url)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, ctxErr
			}
			res.Status = errorStatus(err)
			return res, nil
		}
		fill(&res, get)
		if res.Success && res.HTML && opts.FetchBody {
			res.Body = get.Body
		}
		return res, nil
	}

	fill(&res, resp)
	if !res.Success || !res.HTML || !opts.FetchBody {
		return res, nil
	}

	get, err := f.Get(ctx, url)
	switch {
	case err != nil:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		res.BodyErr = err
	case get.StatusCode != http.StatusOK:
		res.BodyErr = fmt.Errorf("body request answered %s", get.StatusLine())
	default:
		res.Body = get.Body
	}
	return res, nil
}

func fill(res *Result, resp *Response) {
	res.Status = resp.StatusLine()
	res.StatusCode = resp.StatusCode
	res.ContentType = resp.Header.Get("Content-Type")
	res.Success = res.Status == resp.Proto+" 200 OK"
	res.HTML = IsHTML(res.ContentType)
}

// IsHTML reports whether a Content-Type header names an HTML document.
func IsHTML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

func errorStatus(err error) string {
	if errors.Is(err, ErrTimeout) {
		return StatusTimeout
	}
	return "ERROR " + err.Error()
}
