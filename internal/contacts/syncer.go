package contacts

import (
	"context"
	"fmt"
	"time"

	"github.com/blueragesoftware/backend/pkg/pool"
)

// The audience API throttles aggressively; keep at least this much space
// between calls.
const rateLimitInterval = 2 * time.Second

type Operation string

const (
	CreateOp Operation = "create"
	UpdateOp Operation = "update"
	DeleteOp Operation = "delete"
)

// Job is one pending audience mutation.
type Job struct {
	Op      Operation
	Contact Contact
}

// Syncer enqueues audience mutations onto a dedicated single-worker pool with
// a retry budget, so transient audience-API failures retry with backoff while
// the caller returns immediately.
type Syncer struct {
	client Client
	pool   *pool.Pool[Job]
	logger pool.Logger
}

// NewSyncer builds the syncer and its pool. Call Start before enqueueing and
// Stop on shutdown.
func NewSyncer(ctx context.Context, client Client, logger pool.Logger) *Syncer {
	s := &Syncer{client: client, logger: logger}
	s.pool = pool.New(ctx, pool.Config{
		Name:           "contacts",
		MaxParallelism: 1,
		MaxAttempts:    3,
		InitialBackoff: rateLimitInterval,
		BackoffBase:    2,
		MinInterval:    rateLimitInterval,
	}, s.handle, logger)
	return s
}

func (s *Syncer) Start() { s.pool.Start() }
func (s *Syncer) Stop()  { s.pool.Stop() }

// CreateUser registers a new audience contact.
func (s *Syncer) CreateUser(contact Contact) {
	s.pool.Enqueue(Job{Op: CreateOp, Contact: contact})
}

// UpdateUser propagates profile changes to the audience.
func (s *Syncer) UpdateUser(contact Contact) {
	s.pool.Enqueue(Job{Op: UpdateOp, Contact: contact})
}

// DeleteUser removes the contact when the account is deleted.
func (s *Syncer) DeleteUser(email string) {
	s.pool.Enqueue(Job{Op: DeleteOp, Contact: Contact{Email: email}})
}

func (s *Syncer) handle(ctx context.Context, job Job) error {
	if job.Contact.Email == "" {
		// Nothing to address the contact by; retrying cannot help.
		s.logger.Errorf("Skipping contact %s job with empty email", job.Op)
		return nil
	}

	switch job.Op {
	case CreateOp:
		return s.client.CreateContact(ctx, job.Contact)
	case UpdateOp:
		// Preserve the remote unsubscribed flag; profile sync must not
		// resubscribe anyone.
		existing, err := s.client.GetContact(ctx, job.Contact.Email)
		if err != nil {
			return err
		}
		updated := job.Contact
		updated.Unsubscribed = existing.Unsubscribed
		return s.client.UpdateContact(ctx, updated)
	case DeleteOp:
		return s.client.RemoveContact(ctx, job.Contact.Email)
	default:
		return fmt.Errorf("unknown contact operation %q", job.Op)
	}
}
