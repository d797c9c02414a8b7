package ghost

import (
	"context"
	"fmt"
	"log"

	"meal-mailer/internal/notify"
)

// DraftDeliverer saves each plan as a draft post on the Ghost blog.
type DraftDeliverer struct {
	client  Client
	enabled bool
}

// NewDraftDeliverer creates a DraftDeliverer. enabled reports whether admin
// credentials were configured.
func NewDraftDeliverer(client Client, enabled bool) *DraftDeliverer {
	return &DraftDeliverer{client: client, enabled: enabled}
}

// Name implements notify.Deliverer.
func (d *DraftDeliverer) Name() string { return "ghost" }

// Validate implements notify.Deliverer.
func (d *DraftDeliverer) Validate() error {
	if !d.enabled {
		return fmt.Errorf("ghost admin credentials are not set")
	}
	return nil
}

// Deliver implements notify.Deliverer.
func (d *DraftDeliverer) Deliver(ctx context.Context, s notify.Summary) error {
	post, err := d.client.CreatePost(ctx, s.Subject, s.HTML, false)
	if err != nil {
		return fmt.Errorf("failed to create ghost draft: %w", err)
	}
	log.Printf("[DEBUG] ghost draft %s created for %s", post.ID, s.DateLabel)
	return nil
}
