package state

import (
	"sync"
	"time"
)

// Runtime is the process-lifetime state shared between background tasks.
// Not persisted: it resets on restart by design. Its main job is the
// maintenance-summary mailbox between the nightly job and the heartbeat.
type Runtime struct {
	mu sync.Mutex

	maintenanceSummary string
	userStatus         string
	userStatusUpdated  time.Time
	ownerID            int64
	custom             map[string]any
}

func NewRuntime(ownerID int64) *Runtime {
	return &Runtime{
		userStatus: "unknown",
		ownerID:    ownerID,
		custom:     make(map[string]any),
	}
}

func (r *Runtime) MaintenanceSummary() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maintenanceSummary
}

func (r *Runtime) SetMaintenanceSummary(summary string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.maintenanceSummary = summary
}

func (r *Runtime) ClearMaintenanceSummary() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.maintenanceSummary = ""
}

func (r *Runtime) UserStatus() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.userStatus
}

func (r *Runtime) SetUserStatus(status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.userStatus = status
	r.userStatusUpdated = time.Now()
}

// OwnerID returns the bound owner, or 0 when not yet detected.
func (r *Runtime) OwnerID() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ownerID
}

// ClaimOwner binds the owner once. Returns false if already bound to
// someone else.
func (r *Runtime) ClaimOwner(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ownerID != 0 && r.ownerID != id {
		return false
	}
	r.ownerID = id
	return true
}

func (r *Runtime) Custom(key string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.custom[key]
	return v, ok
}

func (r *Runtime) SetCustom(key string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.custom[key] = value
}
