package invoker

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"dag-trigger-gateway/internal/auth"
)

// ForbiddenError means IAP rejected the caller's identity: the service
// account lacks permission on the protected application. Retrying with the
// same identity cannot succeed, so the invoker never retries it.
type ForbiddenError struct {
	URL string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("service account does not have permission to access the IAP-protected application at %s", e.URL)
}

// BadResponseError is any non-200, non-403 answer from the application,
// kept verbatim for diagnostics.
type BadResponseError struct {
	Status  int
	Headers http.Header
	Body    string
}

func (e *BadResponseError) Error() string {
	return fmt.Sprintf("bad response from application: %d / %v / %q", e.Status, e.Headers, e.Body)
}

// TransientError is a network-level failure (timeout, connection refused)
// before any status code was seen.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient error calling application: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Invoker posts authenticated requests to an IAP-protected endpoint. It
// performs no retries of its own; redelivery of the notification is the
// transport's job and the dedup ledger absorbs it upstream.
type Invoker struct {
	tokens auth.TokenProvider
	client *resty.Client
}

// New creates an invoker with the given identity token provider and
// per-request timeout.
func New(tokens auth.TokenProvider, timeout time.Duration) *Invoker {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0)
	return &Invoker{tokens: tokens, client: client}
}

// Post sends payload to url with a fresh identity token scoped to audience
// and returns the response body on 200.
func (i *Invoker) Post(ctx context.Context, url, audience string, payload any) (string, error) {
	token, err := i.tokens.FetchIdentityToken(ctx, audience)
	if err != nil {
		return "", fmt.Errorf("identity token exchange failed: %w", err)
	}

	logrus.Infof("Posting to IAP-protected endpoint %s", url)
	resp, err := i.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(url)
	if err != nil {
		return "", &TransientError{Err: err}
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		return resp.String(), nil
	case http.StatusForbidden:
		return "", &ForbiddenError{URL: url}
	default:
		return "", &BadResponseError{
			Status:  resp.StatusCode(),
			Headers: resp.Header(),
			Body:    resp.String(),
		}
	}
}
