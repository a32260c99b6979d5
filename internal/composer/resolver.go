package composer

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	composer "google.golang.org/api/composer/v1beta1"
	"google.golang.org/api/option"

	"dag-trigger-gateway/internal/config"
)

// Endpoint holds the downstream coordinates the invoker needs: where the
// Airflow webserver lives and which OAuth client id IAP expects as the
// token audience.
type Endpoint struct {
	AirflowURI  string
	WebserverID string
	ClientID    string
}

// DagRunURL returns the DAG run API URL for the given version and DAG name.
func (e *Endpoint) DagRunURL(apiVersion, dagName string) string {
	return fmt.Sprintf("https://%s.appspot.com/api/%s/dags/%s/dag_runs", e.WebserverID, apiVersion, dagName)
}

// Resolver derives the Airflow endpoint coordinates from the Composer
// environment's public configuration. The environment response does not
// include the IAP client id, so a second, unauthenticated request to the
// webserver extracts it from the OAuth redirect.
type Resolver struct {
	cfg         config.ComposerConfig
	service     *composer.Service
	probeClient *http.Client
}

// NewResolver creates a resolver authenticating with ambient credentials.
func NewResolver(ctx context.Context, cfg config.ComposerConfig, opts ...option.ClientOption) (*Resolver, error) {
	service, err := composer.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create composer service: %w", err)
	}
	return &Resolver{
		cfg:     cfg,
		service: service,
		// The probe must see the 302 itself, not the page it points at.
		probeClient: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}, nil
}

// ResolveEndpoint looks up the Airflow URI and IAP client id for the
// configured environment.
func (r *Resolver) ResolveEndpoint(ctx context.Context) (*Endpoint, error) {
	airflowURI, err := r.getAirflowURI(ctx)
	if err != nil {
		return nil, err
	}

	webserverID := strings.TrimSuffix(strings.TrimPrefix(airflowURI, "https://"), ".appspot.com")

	clientID, err := r.getClientID(ctx, airflowURI)
	if err != nil {
		return nil, err
	}

	logrus.Infof("Resolved Airflow endpoint: webserver_id=%s", webserverID)
	return &Endpoint{
		AirflowURI:  airflowURI,
		WebserverID: webserverID,
		ClientID:    clientID,
	}, nil
}

func (r *Resolver) getAirflowURI(ctx context.Context) (string, error) {
	name := fmt.Sprintf("projects/%s/locations/%s/environments/%s",
		r.cfg.Project, r.cfg.Location, r.cfg.Environment)

	env, err := r.service.Projects.Locations.Environments.Get(name).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to get composer environment %s: %w", name, err)
	}
	if env.Config == nil || env.Config.AirflowUri == "" {
		return "", fmt.Errorf("composer environment %s has no airflow URI", name)
	}
	return env.Config.AirflowUri, nil
}

// getClientID probes the webserver without credentials and pulls the
// client_id query parameter out of the OAuth redirect Location.
func (r *Resolver) getClientID(ctx context.Context, airflowURI string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, airflowURI, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build redirect probe request: %w", err)
	}

	resp, err := r.probeClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("redirect probe failed: %w", err)
	}
	defer resp.Body.Close()

	location := resp.Header.Get("Location")
	if location == "" {
		return "", fmt.Errorf("redirect probe returned no Location header (status %d)", resp.StatusCode)
	}

	parsed, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("failed to parse redirect location: %w", err)
	}
	clientID := parsed.Query().Get("client_id")
	if clientID == "" {
		return "", fmt.Errorf("redirect location carries no client_id: %s", location)
	}
	return clientID, nil
}
