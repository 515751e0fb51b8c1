package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/smartshop-backend/pkg/config"
	"github.com/angelmondragon/smartshop-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errTopicRequired     = errors.New("pubsub orders topic is required")
	errNotInitialized    = errors.New("pubsub client not initialized")

	// ErrTopicNotFound is returned when the orders topic has not been provisioned.
	ErrTopicNotFound = errors.New("pubsub topic not found")
)

// Client publishes order events. One ordered publisher is kept per topic
// and flushed on Close.
type Client struct {
	ps          *pubsub.Client
	projectID   string
	ordersTopic string

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

// NewClient dials Pub/Sub, or the emulator when one is configured, and
// fails fast when the orders topic is missing.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	var opts []option.ClientOption
	if host := strings.TrimSpace(cfg.EmulatorHost); host != "" {
		opts = emulatorOptions(host)
	}
	c, err := newClient(ctx, gcp.ProjectID, cfg.OrdersTopic, opts...)
	if err != nil {
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"topic":    c.ordersTopic,
			"emulator": len(opts) > 0,
		}), "pubsub client initialized")
	}
	return c, nil
}

func emulatorOptions(host string) []option.ClientOption {
	return []option.ClientOption{
		option.WithEndpoint(host),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	}
}

func newClient(ctx context.Context, projectID, ordersTopic string, opts ...option.ClientOption) (*Client, error) {
	projectID = strings.TrimSpace(projectID)
	ordersTopic = strings.TrimSpace(ordersTopic)
	switch {
	case projectID == "":
		return nil, errProjectIDRequired
	case ordersTopic == "":
		return nil, errTopicRequired
	}

	ps, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{
		ps:          ps,
		projectID:   projectID,
		ordersTopic: ordersTopic,
		publishers:  map[string]*pubsub.Publisher{},
	}
	if err := c.lookupTopic(ctx, ordersTopic); err != nil {
		return nil, errors.Join(err, ps.Close())
	}
	return c, nil
}

func (c *Client) lookupTopic(ctx context.Context, name string) error {
	_, err := c.ps.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{
		Topic: TopicResourceName(c.projectID, name),
	})
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%w: %s", ErrTopicNotFound, name)
	default:
		return fmt.Errorf("checking topic %q: %w", name, err)
	}
}

// Publisher returns the ordered publisher for a topic id or resource name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.ps == nil {
		return nil
	}
	topic := TopicResourceName(c.projectID, name)
	if topic == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.publishers[topic]
	if !ok {
		p = c.ps.Publisher(topic)
		p.EnableMessageOrdering = true
		c.publishers[topic] = p
	}
	return p
}

// OrdersPublisher is Publisher for the configured orders topic.
func (c *Client) OrdersPublisher() *pubsub.Publisher {
	if c == nil {
		return nil
	}
	return c.Publisher(c.ordersTopic)
}

// Ping checks that the orders topic is still reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.ps == nil {
		return errNotInitialized
	}
	return c.lookupTopic(ctx, c.ordersTopic)
}

// Close stops every cached publisher, flushing pending messages, then closes
// the underlying connection.
func (c *Client) Close() error {
	if c == nil || c.ps == nil {
		return nil
	}
	c.mu.Lock()
	for topic, p := range c.publishers {
		p.Stop()
		delete(c.publishers, topic)
	}
	c.mu.Unlock()
	return c.ps.Close()
}

// TopicResourceName expands a bare topic id into projects/<p>/topics/<id>.
// Full resource names pass through unchanged.
func TopicResourceName(projectID, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if strings.HasPrefix(name, "projects/") && strings.Contains(name, "/topics/") {
		return name
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return ""
	}
	return "projects/" + projectID + "/topics/" + name
}
