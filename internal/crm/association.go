package crm

import (
	"context"
	"fmt"
	"net/http"

	"crm-bridge/internal/audit"
	"crm-bridge/internal/auth"
	"crm-bridge/internal/hubspot"
	"crm-bridge/internal/queue"
)

// AssociationJob links a logged call to its contact in the background.
type AssociationJob struct {
	CallID    string `json:"callId"`
	ContactID string `json:"contactId"`

	// accessToken is the caller's bearer token, if any; jobs run outside the request.
	accessToken string
}

// AssociationHandler runs association jobs. Client errors other than 429 are not retried.
func AssociationHandler(client Client) queue.Handler {
	return func(ctx context.Context, job queue.Job) error {
		p, ok := job.Payload.(AssociationJob)
		if !ok {
			return queue.Permanent(fmt.Errorf("crm: unexpected association payload %T", job.Payload))
		}
		if p.accessToken != "" {
			ctx = auth.WithAccessToken(ctx, p.accessToken, "")
		}
		err := client.Associate(ctx, hubspot.ObjectCalls, p.CallID, hubspot.ObjectContacts, p.ContactID, hubspot.AssociationCallToContact)
		if err == nil {
			return nil
		}
		if st := hubspot.StatusCode(err); st >= 400 && st < 500 && st != http.StatusTooManyRequests {
			return queue.Permanent(err)
		}
		return err
	}
}

// AssociationDone records the final outcome of an association job.
func (s *Service) AssociationDone(job queue.Job) {
	p, _ := job.Payload.(AssociationJob)
	e := audit.Event{
		ObjectType: hubspot.ObjectCalls,
		ObjectID:   p.CallID,
		Metadata: metadata(map[string]any{
			"contact_id": p.ContactID,
			"job_id":     job.ID,
			"attempts":   job.Attempts,
		}),
	}
	if job.Status == queue.StatusCompleted {
		e.Type = audit.EventTypeAssociationApplied
	} else {
		e.Type = audit.EventTypeAssociationFailed
		e.Message = job.Error
	}
	s.record(context.Background(), e)
}
