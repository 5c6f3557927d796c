// Package crm forwards gateway operations to the CRM and maps the answers back.
package crm

import (
	"context"
	"encoding/json"
	"time"

	"crm-bridge/internal/apperr"
	"crm-bridge/internal/audit"
	"crm-bridge/internal/auth"
	"crm-bridge/internal/config"
	"crm-bridge/internal/hubspot"
	"crm-bridge/internal/queue"
	"crm-bridge/pkg/logger"
)

// TimestampLayout is ISO-8601 UTC with milliseconds.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

func FormatTimestamp(t time.Time) string { return t.UTC().Format(TimestampLayout) }

// Client is the subset of the CRM API the forwarder uses.
type Client interface {
	ListObjects(ctx context.Context, objectType string, limit int) (hubspot.Page, error)
	SearchObjects(ctx context.Context, objectType string, req hubspot.SearchRequest) (hubspot.Page, error)
	CreateObject(ctx context.Context, objectType string, in hubspot.ObjectInput) (hubspot.Object, error)
	UpdateObject(ctx context.Context, objectType, id string, in hubspot.ObjectInput) (hubspot.Object, error)
	DeleteObject(ctx context.Context, objectType, id string) error
	Associate(ctx context.Context, fromType, fromID, toType, toID, label string) error
}

// Recorder receives audit events. Failures are logged and otherwise ignored.
type Recorder interface {
	Append(ctx context.Context, e audit.Event) error
}

// Enqueuer accepts background association jobs.
type Enqueuer interface {
	Enqueue(payload any) (queue.Job, error)
}

type Options struct {
	Region string
	Policy config.AssociationPolicy
	Audit  Recorder
}

type Service struct {
	client Client
	region string
	policy config.AssociationPolicy
	audit  Recorder
	queue  Enqueuer
	clock  func() time.Time
}

func NewService(client Client, opts Options) *Service {
	if opts.Policy == "" {
		opts.Policy = config.AssociationFail
	}
	return &Service{
		client: client,
		region: opts.Region,
		policy: opts.Policy,
		audit:  opts.Audit,
		clock:  time.Now,
	}
}

// UseQueue sets the queue used by the async association policy.
func (s *Service) UseQueue(q Enqueuer) { s.queue = q }

func (s *Service) Region() string { return s.region }

type ConnectionResult struct {
	Connected bool   `json:"connected"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Region    string `json:"region"`
}

// TestConnection reads a single contact to prove the credential works.
func (s *Service) TestConnection(ctx context.Context) (ConnectionResult, error) {
	if _, err := s.client.ListObjects(ctx, hubspot.ObjectContacts, 1); err != nil {
		logger.From(ctx).Error("connection failed", "status", hubspot.StatusCode(err), "err", err)
		return ConnectionResult{}, apperr.Upstream("Failed to connect to HubSpot", hubspot.StatusCode(err), err)
	}
	return ConnectionResult{
		Connected: true,
		Message:   "Successfully connected to HubSpot",
		Timestamp: FormatTimestamp(s.clock()),
		Region:    s.region,
	}, nil
}

const (
	ActionCreated = "created"
	ActionUpdated = "updated"
)

type UpsertResult struct {
	Contact hubspot.Object `json:"contact"`
	Action  string         `json:"action"`
}

// UpsertContact updates the first record matching the contact's email (or phone when
// there is no email) and creates one otherwise.
func (s *Service) UpsertContact(ctx context.Context, in ContactInput) (UpsertResult, error) {
	in, err := in.Normalize()
	if err != nil {
		return UpsertResult{}, err
	}
	log := logger.From(ctx)
	fail := func(err error) (UpsertResult, error) {
		log.Error("contact operation failed", "status", hubspot.StatusCode(err), "err", err)
		return UpsertResult{}, apperr.Upstream("Failed to create/update contact", hubspot.StatusCode(err), err)
	}

	prop, value := in.searchKey()
	page, err := s.client.SearchObjects(ctx, hubspot.ObjectContacts, hubspot.EqualTo(prop, value))
	if err != nil {
		return fail(err)
	}

	var res UpsertResult
	if page.Total > 0 && len(page.Results) > 0 {
		id := page.Results[0].ID
		props := nonEmpty(map[string]string{
			"firstname": in.FirstName,
			"lastname":  in.LastName,
			"phone":     in.Phone,
		})
		obj, err := s.client.UpdateObject(ctx, hubspot.ObjectContacts, id, hubspot.ObjectInput{Properties: props})
		if err != nil {
			return fail(err)
		}
		res = UpsertResult{Contact: obj, Action: ActionUpdated}
		log.Info("updated contact", "contact_id", obj.ID)
	} else {
		props := nonEmpty(map[string]string{
			"email":     in.Email,
			"firstname": in.FirstName,
			"lastname":  in.LastName,
			"phone":     in.Phone,
		})
		obj, err := s.client.CreateObject(ctx, hubspot.ObjectContacts, hubspot.ObjectInput{Properties: props})
		if err != nil {
			return fail(err)
		}
		res = UpsertResult{Contact: obj, Action: ActionCreated}
		log.Info("created contact", "contact_id", obj.ID)
	}

	s.record(ctx, audit.Event{
		Type:       audit.EventTypeContactUpserted,
		ObjectType: hubspot.ObjectContacts,
		ObjectID:   res.Contact.ID,
		Action:     res.Action,
	})
	return res, nil
}

// Association outcomes reported on a logged call.
const (
	AssociationAssociated = "associated"
	AssociationSkipped    = "skipped"
	AssociationQueued     = "queued"
)

type CallResult struct {
	Activity hubspot.Object `json:"activity"`
	// Association is empty when no contact was given.
	Association string `json:"association,omitempty"`
}

// LogCall creates a call activity and links it to the contact, if any, according to
// the configured association policy.
func (s *Service) LogCall(ctx context.Context, in CallInput) (CallResult, error) {
	call, err := in.Normalize()
	if err != nil {
		return CallResult{}, err
	}
	return s.logCall(ctx, call)
}

func (s *Service) logCall(ctx context.Context, call Call) (CallResult, error) {
	log := logger.From(ctx)

	props := map[string]any{
		"hs_timestamp":        s.clock().UnixMilli(),
		"hs_call_duration":    call.DurationMs,
		"hs_call_body":        call.Notes,
		"hs_call_direction":   call.Direction,
		"hs_call_disposition": call.Outcome,
		"hs_call_status":      "COMPLETED",
	}
	activity, err := s.client.CreateObject(ctx, hubspot.ObjectCalls, hubspot.ObjectInput{Properties: props})
	if err != nil {
		log.Error("call logging failed", "status", hubspot.StatusCode(err), "err", err)
		return CallResult{}, apperr.Upstream("Failed to log call activity", hubspot.StatusCode(err), err)
	}

	res := CallResult{Activity: activity}
	if call.ContactID != "" {
		res.Association, err = s.associate(ctx, activity.ID, call.ContactID)
		if err != nil {
			return CallResult{}, err
		}
	}

	log.Info("logged call activity", "call_id", activity.ID, "association", res.Association)
	s.record(ctx, audit.Event{
		Type:       audit.EventTypeCallLogged,
		ObjectType: hubspot.ObjectCalls,
		ObjectID:   activity.ID,
		Action:     res.Association,
		Metadata:   metadata(map[string]any{"contact_id": call.ContactID, "direction": call.Direction}),
	})
	return res, nil
}

func (s *Service) associate(ctx context.Context, callID, contactID string) (string, error) {
	log := logger.From(ctx).With("call_id", callID, "contact_id", contactID)

	if s.policy == config.AssociationAsync && s.queue != nil {
		payload := AssociationJob{CallID: callID, ContactID: contactID}
		payload.accessToken, _ = auth.AccessToken(ctx)
		job, err := s.queue.Enqueue(payload)
		if err == nil {
			s.record(ctx, audit.Event{
				Type:       audit.EventTypeAssociationQueued,
				ObjectType: hubspot.ObjectCalls,
				ObjectID:   callID,
				Metadata:   metadata(map[string]any{"contact_id": contactID, "job_id": job.ID}),
			})
			return AssociationQueued, nil
		}
		log.Warn("association queue unavailable; associating inline", "err", err)
	}

	err := s.client.Associate(ctx, hubspot.ObjectCalls, callID, hubspot.ObjectContacts, contactID, hubspot.AssociationCallToContact)
	if err == nil {
		return AssociationAssociated, nil
	}

	status := hubspot.StatusCode(err)
	s.record(ctx, audit.Event{
		Type:       audit.EventTypeAssociationFailed,
		ObjectType: hubspot.ObjectCalls,
		ObjectID:   callID,
		Message:    err.Error(),
		Metadata:   metadata(map[string]any{"contact_id": contactID, "policy": string(s.policy)}),
	})

	switch s.policy {
	case config.AssociationIgnore, config.AssociationAsync:
		log.Warn("call logged without contact association", "status", status, "err", err)
		return AssociationSkipped, nil
	case config.AssociationRollback:
		if derr := s.client.DeleteObject(ctx, hubspot.ObjectCalls, callID); derr != nil {
			log.Error("rollback of call activity failed", "err", derr)
		} else {
			s.record(ctx, audit.Event{
				Type:       audit.EventTypeCallRolledBack,
				ObjectType: hubspot.ObjectCalls,
				ObjectID:   callID,
			})
		}
	}
	log.Error("call logging failed", "status", status, "err", err)
	return "", apperr.Upstream("Failed to log call activity", status, err)
}

type StatsResult struct {
	TotalContacts int    `json:"totalContacts"`
	TotalCalls    int    `json:"totalCalls"`
	Timestamp     string `json:"timestamp"`
	Region        string `json:"region"`
}

// Stats reports record counts. Each count that cannot be read is reported as zero.
func (s *Service) Stats(ctx context.Context) (StatsResult, error) {
	log := logger.From(ctx)
	res := StatsResult{Region: s.region}

	if page, err := s.client.ListObjects(ctx, hubspot.ObjectContacts, 1); err != nil {
		log.Warn("could not fetch contacts count", "status", hubspot.StatusCode(err), "err", err)
	} else {
		res.TotalContacts = page.Total
	}

	// Calls may not be enabled on every account.
	if page, err := s.client.ListObjects(ctx, hubspot.ObjectCalls, 1); err != nil {
		log.Warn("could not fetch calls count", "status", hubspot.StatusCode(err), "err", err)
	} else {
		res.TotalCalls = page.Total
	}

	res.Timestamp = FormatTimestamp(s.clock())
	return res, nil
}

func (s *Service) record(ctx context.Context, e audit.Event) {
	if s.audit == nil {
		return
	}
	if e.Region == "" {
		e.Region = s.region
	}
	if e.RequestID == "" {
		e.RequestID = logger.RequestID(ctx)
	}
	// Audit must outlive a client disconnect.
	if err := s.audit.Append(context.WithoutCancel(ctx), e); err != nil {
		logger.From(ctx).Warn("audit append failed", "type", e.Type, "err", err)
	}
}

func nonEmpty(in map[string]string) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

func metadata(m map[string]any) string {
	b, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(b)
}
