package adapters

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"korebuild-tools/internal/ports"
	"korebuild-tools/internal/shared"
)

const (
	defaultFeedTimeout = 100 * time.Second
	defaultFeedRetries = 3
)

// FeedClient talks to a NuGet v3 feed: downloads from the flat container and
// pushes through the package publish endpoint. Every attempt has its own
// deadline; transient failures retry immediately.
type FeedClient struct {
	FlatContainer string
	PushEndpoint  string
	APIKey        string
	Timeout       time.Duration
	Retries       int
	HTTPClient    *http.Client
}

func NewFeedClient(flatContainer string, pushEndpoint string, apiKey string, timeout time.Duration, retries int) FeedClient {
	if timeout <= 0 {
		timeout = defaultFeedTimeout
	}
	if retries <= 0 {
		retries = defaultFeedRetries
	}
	return FeedClient{
		FlatContainer: strings.TrimRight(strings.TrimSpace(flatContainer), "/"),
		PushEndpoint:  strings.TrimSpace(pushEndpoint),
		APIKey:        apiKey,
		Timeout:       timeout,
		Retries:       retries,
		HTTPClient:    &http.Client{},
	}
}

// PackageURL is the flat-container address of a package archive.
func (c FeedClient) PackageURL(id string, version string) string {
	lowerID := shared.NormalizePackageID(id)
	lowerVersion := strings.ToLower(strings.TrimSpace(version))
	return fmt.Sprintf("%s/%s/%s/%s.%s.nupkg", c.FlatContainer, lowerID, lowerVersion, lowerID, lowerVersion)
}

func (c FeedClient) Download(ctx context.Context, id string, version string) ([]byte, error) {
	if c.FlatContainer == "" {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("feed url is empty")
	}
	url := c.PackageURL(id, version)
	var payload []byte
	err := c.withRetries(ctx, "download "+url, func(attemptCtx context.Context) (bool, error) {
		req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
		if err != nil {
			return false, err
		}
		resp, err := c.client().Do(req)
		if err != nil {
			return true, err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return true, err
		}
		if resp.StatusCode == http.StatusNotFound {
			return false, errbuilder.New().
				WithCode(errbuilder.CodeNotFound).
				WithMsg(fmt.Sprintf("package %s %s not found on feed", id, version)).
				WithCause(shared.HTTPStatusError(resp.StatusCode, url))
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return retryableStatus(resp.StatusCode), shared.HTTPStatusErrorWithBody(resp.StatusCode, url, string(body))
		}
		payload = body
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// Push uploads a package archive. A 409 means the version already exists and
// is reported as success.
func (c FeedClient) Push(ctx context.Context, packagePath string) error {
	if c.PushEndpoint == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("push endpoint is empty")
	}
	data, err := os.ReadFile(packagePath)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("%s: package not found", packagePath)).
			WithCause(err)
	}
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("package", filepath.Base(packagePath))
	if err == nil {
		_, err = part.Write(data)
	}
	if err == nil {
		err = form.Close()
	}
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to encode package upload").
			WithCause(err)
	}

	return c.withRetries(ctx, "push "+filepath.Base(packagePath), func(attemptCtx context.Context) (bool, error) {
		req, err := http.NewRequestWithContext(attemptCtx, http.MethodPut, c.PushEndpoint, bytes.NewReader(body.Bytes()))
		if err != nil {
			return false, err
		}
		req.Header.Set("Content-Type", form.FormDataContentType())
		if strings.TrimSpace(c.APIKey) != "" {
			req.Header.Set("X-NuGet-ApiKey", c.APIKey)
		}
		resp, err := c.client().Do(req)
		if err != nil {
			return true, err
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusConflict {
			log.Ctx(ctx).Info().Str("package", packagePath).Msg("package already exists on feed")
			return false, nil
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			message, _ := io.ReadAll(resp.Body)
			return retryableStatus(resp.StatusCode), shared.HTTPStatusErrorWithBody(resp.StatusCode, c.PushEndpoint, string(message))
		}
		return false, nil
	})
}

func (c FeedClient) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func retryableStatus(status int) bool {
	return status >= http.StatusInternalServerError || status == http.StatusTooManyRequests
}

// withRetries runs attempt up to Retries times, each under its own timeout.
// A caller cancellation stops immediately and is reported as canceled; an
// expired attempt deadline is reported as a timeout.
func (c FeedClient) withRetries(ctx context.Context, operation string, attempt func(context.Context) (bool, error)) error {
	var lastErr error
	timedOut := false
	for i := 0; i < c.Retries; i++ {
		if err := ctx.Err(); err != nil {
			return canceledError(operation, err)
		}
		attemptCtx, cancel := context.WithTimeout(ctx, c.Timeout)
		retry, err := attempt(attemptCtx)
		expired := errors.Is(attemptCtx.Err(), context.DeadlineExceeded)
		cancel()
		if err == nil {
			return nil
		}
		var built *errbuilder.ErrBuilder
		if errors.As(err, &built) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return canceledError(operation, ctxErr)
		}
		lastErr = err
		timedOut = expired
		if !retry && !expired {
			break
		}
		log.Ctx(ctx).Debug().Err(err).Int("attempt", i+1).Str("operation", operation).Msg("feed request failed, retrying")
	}
	if timedOut {
		return errbuilder.New().
			WithCode(errbuilder.CodeDeadlineExceeded).
			WithMsg(fmt.Sprintf("%s timed out after %s", operation, c.Timeout)).
			WithCause(lastErr)
	}
	return errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg(fmt.Sprintf("%s failed", operation)).
		WithCause(lastErr)
}

func canceledError(operation string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errbuilder.New().
			WithCode(errbuilder.CodeDeadlineExceeded).
			WithMsg(fmt.Sprintf("%s timed out", operation)).
			WithCause(err)
	}
	return errbuilder.New().
		WithCode(errbuilder.CodeCanceled).
		WithMsg(fmt.Sprintf("%s canceled", operation)).
		WithCause(err)
}

var _ ports.FeedPort = FeedClient{}
