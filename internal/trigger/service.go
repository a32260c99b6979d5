package trigger

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"dag-trigger-gateway/internal/composer"
	"dag-trigger-gateway/internal/config"
	"dag-trigger-gateway/internal/metrics"
	"dag-trigger-gateway/internal/models"
	"dag-trigger-gateway/internal/repository"
)

// Outcome is the terminal state of one notification.
type Outcome int

const (
	// OutcomeTriggered means this delivery claimed the identifier and the
	// DAG run request succeeded.
	OutcomeTriggered Outcome = iota
	// OutcomeAlreadyProcessed means the identifier was claimed earlier;
	// the delivery is an absorbed redelivery, not an error.
	OutcomeAlreadyProcessed
	// OutcomeFiltered means this delivery claimed the identifier but its
	// attributes did not pass the filter; no DAG run was requested.
	OutcomeFiltered
)

// AttributeFilter decides whether a newly claimed notification should
// trigger a DAG run. It sees the attributes exactly once per identifier,
// at first claim: a later redelivery with different attributes for the
// same identifier is already absorbed by the ledger.
type AttributeFilter func(attributes map[string]string) bool

// MatchAllFilter returns a filter that requires every key in required to
// be present with an equal value.
func MatchAllFilter(required map[string]string) AttributeFilter {
	return func(attributes map[string]string) bool {
		for key, want := range required {
			if attributes[key] != want {
				return false
			}
		}
		return true
	}
}

// DedupStore is the subset of the repository the coordinator needs.
type DedupStore interface {
	HasProcessed(ctx context.Context, messageID string) (bool, error)
	Claim(ctx context.Context, messageID string) (repository.ClaimResult, error)
	LogTriggerAttempt(ctx context.Context, messageID, dagName, status, errorMsg string) error
}

// EndpointResolver supplies the downstream coordinates.
type EndpointResolver interface {
	ResolveEndpoint(ctx context.Context) (*composer.Endpoint, error)
}

// DownstreamInvoker posts the DAG run request.
type DownstreamInvoker interface {
	Post(ctx context.Context, url, audience string, payload any) (string, error)
}

// Service coordinates one notification from claim to DAG run. It keeps no
// state of its own; all cross-invocation coordination lives in the ledger.
type Service struct {
	store    DedupStore
	resolver EndpointResolver
	invoker  DownstreamInvoker
	filter   AttributeFilter
	cfg      config.ComposerConfig
	metrics  *metrics.Metrics
}

// NewService creates a trigger coordinator
func NewService(
	store DedupStore,
	resolver EndpointResolver,
	invoker DownstreamInvoker,
	filter AttributeFilter,
	cfg config.ComposerConfig,
	m *metrics.Metrics,
) *Service {
	return &Service{
		store:    store,
		resolver: resolver,
		invoker:  invoker,
		filter:   filter,
		cfg:      cfg,
		metrics:  m,
	}
}

// Process handles one notification. Once Claim commits, the identifier
// stays claimed whatever happens after it: a failed DAG run request is
// surfaced as an error but never re-admitted on redelivery. That is the
// at-most-once contract of this gateway.
func (s *Service) Process(ctx context.Context, messageID string, attributes map[string]string) (Outcome, error) {
	timer := prometheus.NewTimer(s.metrics.ProcessingTime)
	defer timer.ObserveDuration()

	// Cheap pre-check so the common redelivery case skips the insert.
	processed, err := s.store.HasProcessed(ctx, messageID)
	if err != nil {
		return OutcomeAlreadyProcessed, err
	}
	if processed {
		logrus.Infof("Message %s has already been processed", messageID)
		s.metrics.DuplicateCount.Inc()
		return OutcomeAlreadyProcessed, nil
	}

	result, err := s.store.Claim(ctx, messageID)
	if err != nil {
		return OutcomeAlreadyProcessed, err
	}
	if result == repository.AlreadyClaimed {
		logrus.Infof("Message %s was claimed by a concurrent delivery", messageID)
		s.metrics.DuplicateCount.Inc()
		return OutcomeAlreadyProcessed, nil
	}

	logrus.Infof("Claimed message %s, attributes: %v", messageID, attributes)

	if !s.filter(attributes) {
		logrus.Infof("Message %s did not match the attribute filter, skipping trigger", messageID)
		s.metrics.FilteredCount.Inc()
		s.logAttempt(ctx, messageID, models.TriggerStatusFiltered, "")
		return OutcomeFiltered, nil
	}

	endpoint, err := s.resolver.ResolveEndpoint(ctx)
	if err != nil {
		s.metrics.TriggerFailures.Inc()
		s.logAttempt(ctx, messageID, models.TriggerStatusFailure, err.Error())
		return OutcomeTriggered, err
	}

	url := endpoint.DagRunURL(s.cfg.APIVersion, s.cfg.DagName)
	payload := map[string]string{"conf": messageID}

	if _, err := s.invoker.Post(ctx, url, endpoint.ClientID, payload); err != nil {
		s.metrics.TriggerFailures.Inc()
		s.logAttempt(ctx, messageID, models.TriggerStatusFailure, err.Error())
		return OutcomeTriggered, err
	}

	logrus.Infof("Triggered DAG %s for message %s", s.cfg.DagName, messageID)
	s.metrics.TriggerSuccesses.Inc()
	s.logAttempt(ctx, messageID, models.TriggerStatusSuccess, "")
	return OutcomeTriggered, nil
}

// logAttempt writes the audit row. A failed audit write must not change
// the invocation outcome; the claim row already holds the dedup truth.
func (s *Service) logAttempt(ctx context.Context, messageID, status, errorMsg string) {
	if err := s.store.LogTriggerAttempt(ctx, messageID, s.cfg.DagName, status, errorMsg); err != nil {
		logrus.Warnf("Failed to record trigger attempt for %s: %v", messageID, err)
	}
}
