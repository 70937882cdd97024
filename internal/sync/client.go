package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/reliefhub/reliefhub/internal/serializer"
	"github.com/reliefhub/reliefhub/models"
)

// RepositoryHeader carries the sender's repository uuid on every sync call,
// in both directions.
const RepositoryHeader = "X-ReliefHub-Repository"

// PeerClient is the outbound surface the engine uses to talk to one peer.
// It is an interface so engine tests can substitute an in-memory peer.
type PeerClient interface {
	// Handshake exchanges repository identities and returns the peer's.
	Handshake(ctx context.Context) (uuid string, name string, err error)
	// Pull fetches the peer's rows of the named resource modified strictly
	// after msince.
	Pull(ctx context.Context, resource string, msince time.Time) (*models.Document, error)
	// Push delivers a canonical document to the peer.
	Push(ctx context.Context, doc *models.Document) (*models.ImportReport, error)
}

// httpPeerClient talks to a native peer over its HTTP sync endpoints.
type httpPeerClient struct {
	client    *resty.Client
	localUUID string
}

// NewPeerClient builds the HTTP client for one registered peer.
func NewPeerClient(repo models.SyncRepository, localUUID string, timeout time.Duration) PeerClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	cli := resty.New().
		SetBaseURL(strings.TrimRight(repo.URL, "/")).
		SetTimeout(timeout)
	if repo.Username != "" {
		cli.SetBasicAuth(repo.Username, repo.Password)
	}

	return &httpPeerClient{client: cli, localUUID: localUUID}
}

type handshakeResponse struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

func (c *httpPeerClient) Handshake(ctx context.Context) (string, string, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader(RepositoryHeader, c.localUUID).
		Get("/sync/register")
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrPeerUnavailable, err)
	}
	if err = classifyResponse(resp); err != nil {
		return "", "", err
	}

	var peer handshakeResponse
	if err = json.Unmarshal(resp.Body(), &peer); err != nil {
		return "", "", fmt.Errorf("%w: handshake body: %w", ErrPeerRejected, err)
	}
	if peer.UUID == "" {
		return "", "", fmt.Errorf("%w: handshake without repository uuid", ErrPeerRejected)
	}
	return peer.UUID, peer.Name, nil
}

func (c *httpPeerClient) Pull(ctx context.Context, resource string, msince time.Time) (*models.Document, error) {
	req := c.client.R().
		SetContext(ctx).
		SetHeader(RepositoryHeader, c.localUUID).
		SetQueryParam("resource", resource)
	if !msince.IsZero() {
		req.SetQueryParam("msince", msince.UTC().Format(models.MetaTimeFormat))
	}

	resp, err := req.Get("/sync/pull")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPeerUnavailable, err)
	}
	if err = classifyResponse(resp); err != nil {
		return nil, err
	}

	doc, err := serializer.Parse(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPeerRejected, err)
	}
	return doc, nil
}

func (c *httpPeerClient) Push(ctx context.Context, doc *models.Document) (*models.ImportReport, error) {
	payload, err := serializer.Marshal(doc)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader(RepositoryHeader, c.localUUID).
		SetHeader("Content-Type", "application/xml").
		SetBody(payload).
		Post("/sync/push")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPeerUnavailable, err)
	}
	if err = classifyResponse(resp); err != nil {
		return nil, err
	}

	var report models.ImportReport
	if len(resp.Body()) > 0 {
		if err = json.Unmarshal(resp.Body(), &report); err != nil {
			return nil, fmt.Errorf("%w: push response body: %w", ErrPeerRejected, err)
		}
	}
	return &report, nil
}

// classifyResponse sorts peer responses into the two failure classes:
// 5xx is transient and retried, 4xx is permanent.
func classifyResponse(resp *resty.Response) error {
	switch {
	case resp.StatusCode() >= http.StatusInternalServerError:
		return fmt.Errorf("%w: peer returned %d", ErrPeerUnavailable, resp.StatusCode())
	case resp.StatusCode() >= http.StatusBadRequest:
		return fmt.Errorf("%w: peer returned %d", ErrPeerRejected, resp.StatusCode())
	}
	return nil
}
