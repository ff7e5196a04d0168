package audit

import (
	"context"
	"sync"
	"time"

	"tenant-platform/internal/rbac"
	"tenant-platform/pkg/logger"
)

// DenialRecorder is an rbac.Observer that writes Deny decisions to the audit trail.
//
// Decisions are queued and written by Run so that authorization never waits on the audit store.
// When the queue is full the event is dropped and logged.
type DenialRecorder struct {
	svc   *Service
	queue chan rbac.Result

	once sync.Once
	done chan struct{}
}

func NewDenialRecorder(svc *Service, buffer int) *DenialRecorder {
	if buffer <= 0 {
		buffer = 256
	}
	return &DenialRecorder{svc: svc, queue: make(chan rbac.Result, buffer), done: make(chan struct{})}
}

func (d *DenialRecorder) ObserveDecision(ctx context.Context, r rbac.Result, err error) {
	// Store failures are reported elsewhere; malformed ids have no organization to file under.
	if err != nil || r.Decision.Allowed() || r.OrganizationID == "" {
		return
	}
	select {
	case d.queue <- r:
	default:
		logger.From(ctx).Warn("audit queue full; dropping denial", "organization_id", r.OrganizationID)
	}
}

func (d *DenialRecorder) ObserveCacheLookup(bool) {}

// Run drains the queue until ctx is cancelled, then flushes what is already queued.
func (d *DenialRecorder) Run(ctx context.Context) {
	defer d.once.Do(func() { close(d.done) })
	for {
		select {
		case r := <-d.queue:
			d.write(ctx, r)
		case <-ctx.Done():
			for {
				select {
				case r := <-d.queue:
					d.write(context.WithoutCancel(ctx), r)
				default:
					return
				}
			}
		}
	}
}

// Done is closed once Run has returned.
func (d *DenialRecorder) Done() <-chan struct{} { return d.done }

func (d *DenialRecorder) write(ctx context.Context, r rbac.Result) {
	writeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	err := d.svc.LogAccessDenied(writeCtx, r.OrganizationID, r.PrincipalID, r.Role.String(), r.Action.String())
	if err != nil {
		logger.From(ctx).Warn("audit append failed", "type", string(EventTypeAccessDenied), "organization_id", r.OrganizationID, "err", err)
	}
}
