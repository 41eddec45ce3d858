// Package service implements the tenant-scoped operations behind the HTTP
// API. Every method takes the verified caller and resolves tenant scope
// from it; nothing here trusts a tenant id supplied by the client.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/aryan0dhankhar/tasktracker/internal/domain"
	"github.com/aryan0dhankhar/tasktracker/internal/events"
	"github.com/aryan0dhankhar/tasktracker/internal/security"
)

// Invalidator drops cached read models of a tenant after a write
type Invalidator interface {
	Invalidate(ctx context.Context, tenantID string)
}

type noopInvalidator struct{}

func (noopInvalidator) Invalidate(context.Context, string) {}

// EventSink accepts task lifecycle events for asynchronous delivery.
// Enqueue must not block.
type EventSink interface {
	Enqueue(event events.TaskEvent) bool
}

// Sinks delivers each event to every sink in order
type Sinks []EventSink

// Enqueue reports false if any sink dropped the event
func (s Sinks) Enqueue(event events.TaskEvent) bool {
	ok := true
	for _, sink := range s {
		if !sink.Enqueue(event) {
			ok = false
		}
	}
	return ok
}

// Cache stores opaque payloads with a TTL. Implemented by the in-process
// cache and the Redis client.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	DeletePrefix(ctx context.Context, prefix string)
}

// resolveSubject attaches the caller's employee record, if any, to the
// principal. An employee that has not been onboarded yet gets an empty
// EmployeeID rather than an error.
func resolveSubject(ctx context.Context, employees domain.EmployeeRepository, p domain.Principal) (security.Subject, error) {
	sub := security.Subject{Principal: p}
	if p.IsAdmin() {
		return sub, nil
	}
	emp, err := employees.GetByUser(ctx, p.TenantID, p.UserID)
	switch {
	case err == nil:
		sub.EmployeeID = emp.ID
	case !errors.Is(err, domain.ErrNotFound):
		return sub, err
	}
	return sub, nil
}

func invalidatorOrNoop(inv Invalidator) Invalidator {
	if inv == nil {
		return noopInvalidator{}
	}
	return inv
}
