package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/foodway/foodway-backend/pkg/config"
	"github.com/foodway/foodway-backend/pkg/logger"
)

// Client owns the Pub/Sub connection used by order intake.
type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
}

var (
	errProjectIDRequired    = errors.New("gcp project id is required")
	errSubscriptionRequired = errors.New("pubsub orders subscription is required")
	errNotInitialized       = errors.New("pubsub client not initialized")
)

// NewClient connects to Pub/Sub and checks the orders subscription. Subscription settings
// that would make intake misbehave are logged as warnings, not refused.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(gcp.ProjectID) == "" {
		return nil, errProjectIDRequired
	}
	if strings.TrimSpace(cfg.OrdersSubscription) == "" {
		return nil, errSubscriptionRequired
	}

	psClient, err := pubsub.NewClient(ctx, gcp.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{client: psClient, projectID: gcp.ProjectID, cfg: cfg}

	sub, err := c.describe(ctx)
	if err != nil {
		_ = psClient.Close()
		return nil, err
	}

	if logg != nil {
		subCtx := logg.WithFields(ctx, map[string]any{
			"subscription":    sub.GetName(),
			"topic":           sub.GetTopic(),
			"ack_deadline_s":  sub.GetAckDeadlineSeconds(),
			"max_outstanding": cfg.MaxOutstanding,
		})
		for _, warning := range subscriptionWarnings(sub, cfg.HandlerTimeout) {
			logg.Warn(logg.WithField(subCtx, "issue", warning), "pubsub.subscription_misconfigured")
		}
		logg.Info(subCtx, "pubsub client initialized")
	}
	return c, nil
}

func (c *Client) describe(ctx context.Context) (*pubsubpb.Subscription, error) {
	fullName := SubscriptionResourceName(c.projectID, c.cfg.OrdersSubscription)
	if fullName == "" {
		return nil, errSubscriptionRequired
	}
	sub, err := c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: fullName})
	switch {
	case status.Code(err) == codes.NotFound:
		return nil, fmt.Errorf("subscription %q does not exist", fullName)
	case err != nil:
		return nil, fmt.Errorf("checking subscription %q: %w", fullName, err)
	}
	return sub, nil
}

// subscriptionWarnings lists settings that cause duplicate or stuck order deliveries.
func subscriptionWarnings(sub *pubsubpb.Subscription, handlerTimeout time.Duration) []string {
	var warnings []string
	if sub.GetDeadLetterPolicy() == nil {
		warnings = append(warnings, "no dead-letter policy: an order that keeps failing is redelivered forever")
	}
	deadline := time.Duration(sub.GetAckDeadlineSeconds()) * time.Second
	if handlerTimeout > 0 && deadline > 0 && deadline < handlerTimeout {
		warnings = append(warnings, fmt.Sprintf("ack deadline %s is shorter than the handler timeout %s", deadline, handlerTimeout))
	}
	if sub.GetFilter() != "" && !strings.Contains(sub.GetFilter(), "order.placed") {
		warnings = append(warnings, fmt.Sprintf("filter %q may drop order.placed events", sub.GetFilter()))
	}
	return warnings
}

// OrdersSubscription returns the subscriber for order.placed envelopes.
func (c *Client) OrdersSubscription() *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	fullName := SubscriptionResourceName(c.projectID, c.cfg.OrdersSubscription)
	if fullName == "" {
		return nil
	}
	sub := c.client.Subscriber(fullName)
	applyReceiveSettings(&sub.ReceiveSettings, c.cfg)
	return sub
}

func applyReceiveSettings(rs *pubsub.ReceiveSettings, cfg config.PubSubConfig) {
	if cfg.MaxOutstanding > 0 {
		rs.MaxOutstandingMessages = cfg.MaxOutstanding
	}
	if cfg.NumGoroutines > 0 {
		rs.NumGoroutines = cfg.NumGoroutines
	}
	if cfg.MaxExtension > 0 {
		rs.MaxExtension = cfg.MaxExtension
	}
}

// Ping checks that the orders subscription is still reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	_, err := c.describe(ctx)
	return err
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// SubscriptionResourceName expands a subscription id into its full resource name.
func SubscriptionResourceName(projectID, name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/subscriptions/") {
		return n
	}
	p := strings.TrimSpace(projectID)
	if p == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/subscriptions/%s", p, n)
}
