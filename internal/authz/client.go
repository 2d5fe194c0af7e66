// Package authz answers relationship-based authorization checks. Checks go
// to a remote FGA endpoint when one is configured (deny on any failure),
// otherwise to the local relationship store with a role-subject fallback.
package authz

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/privara/docsearch/internal/metrics"
)

// RelationshipStore is the local tuple store contract.
type RelationshipStore interface {
	HasRelationship(ctx context.Context, subject, relation, object string) (bool, error)
	AddRelationship(ctx context.Context, subject, relation, object string) error
	RemoveRelationship(ctx context.Context, subject, relation, object string) (bool, error)
}

// RoleResolver maps a username to its role for the local role fallback.
type RoleResolver func(username string) string

// Client performs FGA checks.
type Client struct {
	remoteURL   string
	remoteToken string
	httpClient  *http.Client
	store       RelationshipStore
	roleFor     RoleResolver
	logger      *zap.Logger
}

// New creates an FGA client. remoteURL may be empty to use only the local
// store.
func New(remoteURL, remoteToken string, store RelationshipStore, roleFor RoleResolver, logger *zap.Logger) *Client {
	return &Client{
		remoteURL:   remoteURL,
		remoteToken: remoteToken,
		httpClient:  &http.Client{Timeout: 5 * time.Second},
		store:       store,
		roleFor:     roleFor,
		logger:      logger,
	}
}

// Check reports whether subject has relation on object. Remote failures
// deny rather than fail open.
func (c *Client) Check(ctx context.Context, subject, relation, object string) bool {
	allowed := c.check(ctx, subject, relation, object)
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	metrics.FGADecisionsTotal.WithLabelValues(decision).Inc()
	return allowed
}

func (c *Client) check(ctx context.Context, subject, relation, object string) bool {
	if c.remoteURL != "" {
		return c.checkRemote(ctx, subject, relation, object)
	}
	return c.checkLocal(ctx, subject, relation, object)
}

func (c *Client) checkRemote(ctx context.Context, subject, relation, object string) bool {
	body, err := json.Marshal(map[string]string{
		"subject":  subject,
		"relation": relation,
		"object":   object,
	})
	if err != nil {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.remoteURL, bytes.NewReader(body))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	if c.remoteToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.remoteToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("remote fga check failed, denying", zap.Error(err))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("remote fga check non-200, denying", zap.Int("status", resp.StatusCode))
		return false
	}

	var parsed struct {
		Allowed bool `json:"allowed"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return false
	}
	return parsed.Allowed
}

func (c *Client) checkLocal(ctx context.Context, subject, relation, object string) bool {
	ok, err := c.store.HasRelationship(ctx, subject, relation, object)
	if err != nil {
		c.logger.Warn("relationship lookup failed, denying", zap.Error(err))
		return false
	}
	if ok {
		return true
	}

	// Expand user subjects into their role subject.
	if username, found := strings.CutPrefix(subject, "user:"); found {
		roleSubject := "role:" + c.roleFor(username)
		ok, err = c.store.HasRelationship(ctx, roleSubject, relation, object)
		if err != nil {
			c.logger.Warn("role relationship lookup failed, denying", zap.Error(err))
			return false
		}
		return ok
	}
	return false
}

// CheckLocal consults only the local relationship store, regardless of the
// remote configuration. It backs the mock check endpoint that a remote FGA
// URL can point at during local testing.
func (c *Client) CheckLocal(ctx context.Context, subject, relation, object string) bool {
	return c.checkLocal(ctx, subject, relation, object)
}

// Add stores a relationship tuple in the local store.
func (c *Client) Add(ctx context.Context, subject, relation, object string) error {
	if err := c.store.AddRelationship(ctx, subject, relation, object); err != nil {
		return fmt.Errorf("add relationship: %w", err)
	}
	return nil
}

// Remove deletes a relationship tuple from the local store. Returns false
// when no tuple matched.
func (c *Client) Remove(ctx context.Context, subject, relation, object string) (bool, error) {
	removed, err := c.store.RemoveRelationship(ctx, subject, relation, object)
	if err != nil {
		return false, fmt.Errorf("remove relationship: %w", err)
	}
	return removed, nil
}
