// Package app contains the persistence engine's request orchestration:
// authorize, validate, translate, store. One Dispatcher call serves one
// logical request; the engine keeps no state between requests beyond
// the immutable registry it was constructed with.
package app

import (
	"context"
	"math"

	"github.com/rs/zerolog"

	"github.com/planora/planora/adapters/metrics"
	"github.com/planora/planora/core/input"
	"github.com/planora/planora/core/naming"
	"github.com/planora/planora/core/registry"
	"github.com/planora/planora/core/schema"
	"github.com/planora/planora/domain/principal"
	"github.com/planora/planora/ports"
)

// Dispatcher routes verb + entity + id to the store through validation
// and the naming translator.
type Dispatcher struct {
	registry *registry.Registry
	store    ports.RecordStore
	ids      ports.IDGenerator
	logger   zerolog.Logger
	metrics  *metrics.Collector // optional
}

// NewDispatcher creates a dispatcher. metrics may be nil.
func NewDispatcher(reg *registry.Registry, store ports.RecordStore, ids ports.IDGenerator, logger zerolog.Logger, collector *metrics.Collector) *Dispatcher {
	return &Dispatcher{
		registry: reg,
		store:    store,
		ids:      ids,
		logger:   logger,
		metrics:  collector,
	}
}

// resolve looks up the entity or fails before any query is issued.
// The registry is the identifier whitelist: an unknown entity never
// reaches the store.
func (d *Dispatcher) resolve(entity string) (registry.Descriptor, error) {
	desc, ok := d.registry.Resolve(entity)
	if !ok {
		return registry.Descriptor{}, &NotFoundError{Kind: "entity", Name: entity}
	}
	return desc, nil
}

func (d *Dispatcher) authorizeWrite(role principal.Role, verb, entity string) error {
	if !role.CanWrite() {
		d.countAuthFailure("role")
		return &AuthorizationError{Role: string(role), Verb: verb, Entity: entity}
	}
	return nil
}

func (d *Dispatcher) authorizeRead(role principal.Role, desc registry.Descriptor) error {
	if !role.CanRead(desc.Restricted) {
		d.countAuthFailure("restricted")
		return &AuthorizationError{Role: string(role), Verb: "read", Entity: desc.Name}
	}
	return nil
}

// List returns all records of an entity in external form.
func (d *Dispatcher) List(ctx context.Context, role principal.Role, entity string) ([]map[string]any, error) {
	desc, err := d.resolve(entity)
	if err != nil {
		return nil, err
	}
	if err := d.authorizeRead(role, desc); err != nil {
		return nil, err
	}

	rows, err := d.store.List(ctx, desc)
	if err != nil {
		return nil, d.storeError(entity, err)
	}

	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		out[i] = externalizeRow(desc, row)
	}
	return out, nil
}

// Read returns a single record by id in external form.
func (d *Dispatcher) Read(ctx context.Context, role principal.Role, entity, id string) (map[string]any, error) {
	desc, err := d.resolve(entity)
	if err != nil {
		return nil, err
	}
	if err := d.authorizeRead(role, desc); err != nil {
		return nil, err
	}
	if !desc.HasSurrogateID() {
		return nil, &NotFoundError{Kind: "record", Name: id}
	}

	row, err := d.store.Get(ctx, desc, id)
	if err == ports.ErrNotFound {
		return nil, &NotFoundError{Kind: "record", Name: id}
	}
	if err != nil {
		return nil, d.storeError(entity, err)
	}
	return externalizeRow(desc, row), nil
}

// Create validates the body and stores a new record. For surrogate-id
// entities a fresh id is generated and version initialized to 1; for
// conflict-key entities the insert is keyed on the conflict tuple and a
// duplicate is success, not an error.
func (d *Dispatcher) Create(ctx context.Context, role principal.Role, entity string, body input.Value) (map[string]any, error) {
	if err := d.authorizeWrite(role, "create", entity); err != nil {
		return nil, err
	}
	desc, err := d.resolve(entity)
	if err != nil {
		return nil, err
	}

	fields, verr := d.validateBody(desc, body)
	if verr != nil {
		return nil, verr
	}
	stored := storedFields(fields)

	if !desc.HasSurrogateID() {
		if err := d.store.InsertIgnore(ctx, desc, stored); err != nil {
			return nil, d.storeError(entity, err)
		}
		d.logger.Debug().Str("entity", entity).Msg("conflict-key record created")
		return fields, nil
	}

	id := d.ids.New()
	if err := d.store.Insert(ctx, desc, id, stored); err != nil {
		return nil, d.storeError(entity, err)
	}
	d.logger.Debug().Str("entity", entity).Str("id", id).Msg("record created")

	out := fields
	out["id"] = id
	out["version"] = int64(1)
	return out, nil
}

// Update validates the body, strips the client-observed version and
// applies a single conditional UPDATE. The loser of a concurrent race
// gets a ConflictError and must re-read and resubmit; the engine never
// retries and never holds a lock.
func (d *Dispatcher) Update(ctx context.Context, role principal.Role, entity, id string, body input.Value) (map[string]any, error) {
	if err := d.authorizeWrite(role, "update", entity); err != nil {
		return nil, err
	}
	desc, err := d.resolve(entity)
	if err != nil {
		return nil, err
	}
	if !desc.HasSurrogateID() {
		return nil, issueAt(nil, "entity has no id; records are replaced by delete and create")
	}

	version, verr := extractVersion(body)
	if verr != nil {
		return nil, verr
	}

	// The version key is not declared in any schema, so validating the
	// full body is equivalent to validating the stripped body: unknown
	// fields are silently ignored.
	fields, verr := d.validateBody(desc, body)
	if verr != nil {
		return nil, verr
	}
	stored := storedFields(fields)

	err = d.store.UpdateVersioned(ctx, desc, id, version, stored)
	switch err {
	case nil:
	case ports.ErrNotFound:
		return nil, &NotFoundError{Kind: "record", Name: id}
	case ports.ErrConflict:
		d.countConflict(entity)
		d.logger.Info().Str("entity", entity).Str("id", id).Int64("version", version).Msg("version conflict")
		return nil, &ConflictError{Entity: entity, ID: id, Version: version}
	default:
		return nil, d.storeError(entity, err)
	}

	d.logger.Debug().Str("entity", entity).Str("id", id).Int64("version", version+1).Msg("record updated")

	out := fields
	out["id"] = id
	out["version"] = version + 1
	return out, nil
}

// Delete removes a surrogate-id record by id. No version check is
// applied; a delete can race an update undetected.
func (d *Dispatcher) Delete(ctx context.Context, role principal.Role, entity, id string) error {
	if err := d.authorizeWrite(role, "delete", entity); err != nil {
		return err
	}
	desc, err := d.resolve(entity)
	if err != nil {
		return err
	}
	if !desc.HasSurrogateID() {
		return &NotFoundError{Kind: "record", Name: id}
	}

	err = d.store.DeleteByID(ctx, desc, id)
	if err == ports.ErrNotFound {
		return &NotFoundError{Kind: "record", Name: id}
	}
	if err != nil {
		return d.storeError(entity, err)
	}
	d.logger.Debug().Str("entity", entity).Str("id", id).Msg("record deleted")
	return nil
}

// DeleteByKey removes a conflict-key record by its full key tuple,
// supplied with external key names.
func (d *Dispatcher) DeleteByKey(ctx context.Context, role principal.Role, entity string, key map[string]string) error {
	if err := d.authorizeWrite(role, "delete", entity); err != nil {
		return err
	}
	desc, err := d.resolve(entity)
	if err != nil {
		return err
	}
	if desc.HasSurrogateID() {
		return issueAt(nil, "entity is deleted by id, not by key")
	}

	stored := make(map[string]any, len(key))
	for k, v := range key {
		stored[naming.ToStored(k)] = v
	}

	var issues schema.Issues
	for _, k := range desc.ConflictKeys {
		if _, ok := stored[k]; !ok {
			issues.Add(schema.Path{naming.ToExternal(k)}, "required value missing")
		}
	}
	if !issues.Empty() {
		return &ValidationError{Issues: issues.Items()}
	}

	err = d.store.DeleteByKey(ctx, desc, stored)
	if err == ports.ErrNotFound {
		return &NotFoundError{Kind: "record", Name: entity}
	}
	if err != nil {
		return d.storeError(entity, err)
	}
	d.logger.Debug().Str("entity", entity).Msg("conflict-key record deleted")
	return nil
}

// validateBody parses the body against the entity schema, returning
// the parsed external field map or a ValidationError carrying every
// issue found.
func (d *Dispatcher) validateBody(desc registry.Descriptor, body input.Value) (map[string]any, *ValidationError) {
	res := schema.SafeParse(desc.Schema, body)
	if !res.OK() {
		d.countValidationFailure(desc.Name)
		return nil, &ValidationError{Issues: res.Issues}
	}
	return res.Value.(map[string]any), nil
}

// extractVersion pulls the concurrency token out of an update body.
// It is never persisted as content.
func extractVersion(body input.Value) (int64, *ValidationError) {
	raw := body.Field("version")
	if raw.IsUndefined() {
		return 0, issueAt(schema.Path{"version"}, "version is required for updates")
	}
	f, ok := raw.Number()
	if !ok || f != math.Trunc(f) || f < 1 {
		return 0, issueAt(schema.Path{"version"}, "version must be a positive integer")
	}
	return int64(f), nil
}

// storedFields translates a parsed external field map to stored column
// keys.
func storedFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[naming.ToStored(k)] = v
	}
	return out
}

// externalizeRow translates a stored row to external form: camelCase
// keys, date columns rendered as "YYYY-MM-DD".
func externalizeRow(desc registry.Descriptor, row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for stored, v := range row {
		col, ok := desc.Column(stored)
		if !ok {
			// Engine-managed id/version pass through unchanged.
			out[stored] = v
			continue
		}
		if col.Date && v != nil {
			if s, ok := naming.NormalizeDate(v); ok {
				v = s
			}
		}
		out[col.External] = v
	}
	return out
}

func (d *Dispatcher) storeError(entity string, err error) error {
	if d.metrics != nil {
		d.metrics.StoreErrors.WithLabelValues(entity).Inc()
	}
	d.logger.Error().Err(err).Str("entity", entity).Msg("store failure")
	return &StoreError{Err: err}
}

func (d *Dispatcher) countValidationFailure(entity string) {
	if d.metrics != nil {
		d.metrics.ValidationFailures.WithLabelValues(entity).Inc()
	}
}

func (d *Dispatcher) countConflict(entity string) {
	if d.metrics != nil {
		d.metrics.VersionConflicts.WithLabelValues(entity).Inc()
	}
}

func (d *Dispatcher) countAuthFailure(reason string) {
	if d.metrics != nil {
		d.metrics.AuthFailures.WithLabelValues(reason).Inc()
	}
}
