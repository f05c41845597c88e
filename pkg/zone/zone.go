// Package zone provisions and tracks the named proxy zones jobs run through.
//
// A Manager remembers which zone names it has confirmed to exist so repeated
// ensure calls cost nothing. Listing always asks the remote account, so zones
// created by other clients are visible immediately.
package zone

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/JakeFAU/brightdata-go/internal/metrics"
	"github.com/JakeFAU/brightdata-go/pkg/sdkerr"
)

// Role is the purpose a zone serves.
type Role string

// Zone roles.
const (
	RoleWebUnlocker Role = "web_unlocker"
	RoleSERP        Role = "serp"
	RoleBrowser     Role = "browser"
)

// Type is the remote zone product type.
type Type string

// Zone types.
const (
	TypeUnblocker Type = "unblocker"
	TypeSERP      Type = "serp"
	TypeBrowser   Type = "browser"
)

// TypeFor returns the zone type provisioned for role.
func TypeFor(role Role) (Type, bool) {
	switch role {
	case RoleWebUnlocker:
		return TypeUnblocker, true
	case RoleSERP:
		return TypeSERP, true
	case RoleBrowser:
		return TypeBrowser, true
	default:
		return "", false
	}
}

// Zone is one entry of the account's active zone list.
type Zone struct {
	Name   string `json:"name"`
	Type   string `json:"type,omitempty"`
	Status string `json:"status,omitempty"`
}

// CreateOutcome classifies a create call that reached the remote API.
type CreateOutcome string

// Create outcomes.
const (
	Created CreateOutcome = "created"
	Exists  CreateOutcome = "exists"
	Denied  CreateOutcome = "denied"
)

// DeleteOutcome classifies a delete call that reached the remote API.
type DeleteOutcome string

// Delete outcomes.
const (
	Deleted      DeleteOutcome = "deleted"
	NotFound     DeleteOutcome = "not_found"
	DeleteDenied DeleteOutcome = "denied"
)

// API is the remote zone surface. Errors are reserved for failures that do
// not map onto an outcome.
type API interface {
	List(ctx context.Context) ([]Zone, error)
	Create(ctx context.Context, name string, typ Type) (CreateOutcome, error)
	Delete(ctx context.Context, name string) (DeleteOutcome, error)
}

// Config names the zone used for each role.
type Config struct {
	Names      map[Role]string
	AutoCreate bool
}

// DefaultNames are the zone names used when none are configured.
func DefaultNames() map[Role]string {
	return map[Role]string{
		RoleWebUnlocker: "sdk_unlocker",
		RoleSERP:        "sdk_serp",
		RoleBrowser:     "sdk_browser",
	}
}

// Manager ensures zones exist and caches the names it has confirmed.
type Manager struct {
	api        API
	names      map[Role]string
	autoCreate bool
	logger     *zap.Logger

	mu      sync.RWMutex
	ensured map[string]struct{}
	flight  singleflight.Group
}

// NewManager builds a Manager over api.
func NewManager(api API, cfg Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	names := DefaultNames()
	for role, name := range cfg.Names {
		if name != "" {
			names[role] = name
		}
	}
	return &Manager{
		api:        api,
		names:      names,
		autoCreate: cfg.AutoCreate,
		logger:     logger,
		ensured:    make(map[string]struct{}),
	}
}

// Name returns the configured zone name for role.
func (m *Manager) Name(role Role) string {
	return m.names[role]
}

// AutoCreate reports whether Resolve provisions zones on demand.
func (m *Manager) AutoCreate() bool {
	return m.autoCreate
}

// ListZones returns the account's active zones from the remote API. With
// refresh set, cached names absent from the listing are forgotten.
func (m *Manager) ListZones(ctx context.Context, refresh bool) ([]Zone, error) {
	zones, err := m.api.List(ctx)
	if err != nil {
		metrics.ObserveZoneOperation("list", "error")
		m.logger.Warn("zone list failed", zap.Error(err))
		return nil, classify("", "list zones", err)
	}
	metrics.ObserveZoneOperation("list", "ok")
	m.logger.Debug("listed zones", zap.Int("count", len(zones)))

	if refresh {
		present := make(map[string]struct{}, len(zones))
		for _, z := range zones {
			present[z.Name] = struct{}{}
		}
		m.mu.Lock()
		for name := range m.ensured {
			if _, ok := present[name]; !ok {
				delete(m.ensured, name)
			}
		}
		m.mu.Unlock()
	}
	return zones, nil
}

// EnsureRequiredZones makes every named zone exist, creating missing ones with
// the type of their role. It is idempotent and safe for concurrent use.
func (m *Manager) EnsureRequiredZones(ctx context.Context, specs map[Role]string) error {
	roles := make([]Role, 0, len(specs))
	for role := range specs {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })

	for _, role := range roles {
		name := specs[role]
		if name == "" {
			continue
		}
		typ, ok := TypeFor(role)
		if !ok {
			return &sdkerr.ZoneError{Zone: name, Message: fmt.Sprintf("unknown zone role %q", role)}
		}
		if err := m.ensure(ctx, name, typ); err != nil {
			return err
		}
	}
	return nil
}

// EnsureConfigured ensures every configured role's zone.
func (m *Manager) EnsureConfigured(ctx context.Context) error {
	return m.EnsureRequiredZones(ctx, m.names)
}

// Resolve returns the zone name for role, provisioning it first when
// auto-create is enabled.
func (m *Manager) Resolve(ctx context.Context, role Role) (string, error) {
	name := m.names[role]
	if name == "" {
		return "", &sdkerr.ZoneError{Message: fmt.Sprintf("no zone configured for role %q", role)}
	}
	if !m.autoCreate {
		return name, nil
	}
	if err := m.EnsureRequiredZones(ctx, map[Role]string{role: name}); err != nil {
		return "", err
	}
	return name, nil
}

// DeleteZone removes name from the account and from the cache.
func (m *Manager) DeleteZone(ctx context.Context, name string) error {
	if name == "" {
		return &sdkerr.ZoneError{Message: "zone name must be a non-empty string"}
	}
	outcome, err := m.api.Delete(ctx, name)
	if err != nil {
		metrics.ObserveZoneOperation("delete", "error")
		m.logger.Warn("zone delete failed", zap.String("zone", name), zap.Error(err))
		return classify(name, "delete zone", err)
	}
	metrics.ObserveZoneOperation("delete", string(outcome))

	switch outcome {
	case Deleted:
		m.forget(name)
		m.logger.Info("zone deleted", zap.String("zone", name))
		return nil
	case NotFound:
		m.forget(name)
		return &sdkerr.ZoneError{Zone: name, Message: "zone does not exist or has already been deleted"}
	case DeleteDenied:
		return &sdkerr.AuthenticationError{
			Message:     fmt.Sprintf("token lacks permission to delete zone %q", name),
			Remediation: sdkerr.TokenSettingsURL,
		}
	default:
		return &sdkerr.ZoneError{Zone: name, Message: fmt.Sprintf("unexpected delete outcome %q", outcome)}
	}
}

// Known reports whether name has been confirmed to exist.
func (m *Manager) Known(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.ensured[name]
	return ok
}

// Invalidate forgets every confirmed name.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.ensured = make(map[string]struct{})
	m.mu.Unlock()
}

func (m *Manager) ensure(ctx context.Context, name string, typ Type) error {
	if m.Known(name) {
		return nil
	}
	// The shared flight must not inherit one caller's cancellation; each
	// caller still stops waiting when its own ctx ends.
	flightCtx := context.WithoutCancel(ctx)
	ch := m.flight.DoChan(name, func() (any, error) {
		if m.Known(name) {
			return nil, nil
		}
		return nil, m.provision(flightCtx, name, typ)
	})
	select {
	case <-ctx.Done():
		return &sdkerr.ZoneError{Zone: name, Message: "waiting for zone provisioning", Cause: ctx.Err()}
	case res := <-ch:
		return res.Err
	}
}

func (m *Manager) provision(ctx context.Context, name string, typ Type) error {
	logger := m.logger.With(zap.String("zone", name), zap.String("type", string(typ)))

	zones, err := m.api.List(ctx)
	if err != nil {
		metrics.ObserveZoneOperation("list", "error")
		logger.Warn("zone list failed", zap.Error(err))
		return classify(name, "list zones", err)
	}
	metrics.ObserveZoneOperation("list", "ok")
	for _, z := range zones {
		if z.Name == name {
			m.remember(name)
			logger.Debug("zone already present")
			return nil
		}
	}

	logger.Info("creating zone")
	outcome, err := m.api.Create(ctx, name, typ)
	if err != nil {
		metrics.ObserveZoneOperation("create", "error")
		logger.Error("zone create failed", zap.Error(err))
		return classify(name, "create zone", err)
	}
	metrics.ObserveZoneOperation("create", string(outcome))

	switch outcome {
	case Created, Exists:
		m.remember(name)
		logger.Info("zone ready", zap.String("outcome", string(outcome)))
		if outcome == Created {
			m.verifyCreated(ctx, logger, name)
		}
		return nil
	case Denied:
		logger.Error("zone creation blocked by token permissions",
			zap.String("remediation", sdkerr.TokenSettingsURL))
		return &sdkerr.AuthenticationError{
			Message: fmt.Sprintf("token lacks permission to create zone %q; enable zone management for the token",
				name),
			Remediation: sdkerr.TokenSettingsURL,
		}
	default:
		return &sdkerr.ZoneError{Zone: name, Message: fmt.Sprintf("unexpected create outcome %q", outcome)}
	}
}

// verifyCreated re-lists the account after a create. A zone that is not yet
// visible only earns a warning since creation can take a moment to propagate.
func (m *Manager) verifyCreated(ctx context.Context, logger *zap.Logger, name string) {
	zones, err := m.api.List(ctx)
	if err != nil {
		metrics.ObserveZoneOperation("list", "error")
		logger.Warn("zone verification list failed", zap.Error(err))
		return
	}
	metrics.ObserveZoneOperation("list", "ok")
	for _, z := range zones {
		if z.Name == name {
			return
		}
	}
	logger.Warn("created zone not yet visible in account listing")
}

func (m *Manager) remember(name string) {
	m.mu.Lock()
	m.ensured[name] = struct{}{}
	m.mu.Unlock()
}

func (m *Manager) forget(name string) {
	m.mu.Lock()
	delete(m.ensured, name)
	m.mu.Unlock()
}

// classify keeps authentication errors as they are and wraps everything else
// as a ZoneError.
func classify(name, action string, err error) error {
	var auth *sdkerr.AuthenticationError
	if errors.As(err, &auth) {
		return err
	}
	var zerr *sdkerr.ZoneError
	if errors.As(err, &zerr) {
		return err
	}
	return &sdkerr.ZoneError{Zone: name, Message: action + " failed", Cause: err}
}
