package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/backend-liquidacion/internal/batch"
	"github.com/noah-isme/backend-liquidacion/internal/catalog"
	"github.com/noah-isme/backend-liquidacion/internal/export"
	"github.com/noah-isme/backend-liquidacion/internal/ledger"
	"github.com/noah-isme/backend-liquidacion/internal/liquidation"
	"github.com/noah-isme/backend-liquidacion/internal/obs"
	"github.com/noah-isme/backend-liquidacion/internal/outbox"
	"github.com/noah-isme/backend-liquidacion/internal/payload"
	"github.com/noah-isme/backend-liquidacion/internal/totals"
	"github.com/noah-isme/backend-liquidacion/internal/upstream"
)

var (
	// ErrReadOnly is returned for general info edits in batch mode.
	ErrReadOnly = errors.New("editor: general info is read-only in batch mode")
	// ErrSaving is returned for calls that would change a session while its save runs.
	ErrSaving = errors.New("editor: save in progress")
)

// Mode selects single-shipment or batch editing.
type Mode string

const (
	ModeSingle   Mode = "single"
	ModeMultiple Mode = "multiple"
)

// Config is the typed configuration an editor is embedded with.
type Config struct {
	Shipments       []liquidation.Shipment                         `json:"shipments"`
	Mode            Mode                                           `json:"mode"`
	AWB             string                                         `json:"awb,omitempty"`
	ExporterOptions []catalog.ExporterOption                       `json:"exporterOptions,omitempty"`
	RubroOptions    map[liquidation.ItemType][]catalog.RubroOption `json:"rubroOptions,omitempty"`
	DisableAutoLoad bool                                           `json:"disableAutoLoad"`

	OnSave   func(ctx context.Context, env payload.Envelope) error `json:"-"`
	OnCancel func()                                                `json:"-"`
}

// Deps are the collaborators shared by every editor.
type Deps struct {
	Provider upstream.Provider
	Outbox   Enqueuer
	Catalog  catalog.Catalog
	Logger   zerolog.Logger
}

// Snapshot is a consistent read of an editor.
type Snapshot struct {
	ID              string                                         `json:"id"`
	Mode            Mode                                           `json:"mode"`
	Closed          bool                                           `json:"closed"`
	Navigation      batch.Position                                 `json:"navigation"`
	Single          *FinancialsSnapshot                            `json:"single,omitempty"`
	Rows            []batch.Row                                    `json:"rows,omitempty"`
	Consolidated    liquidation.ConsolidatedTotals                 `json:"consolidated"`
	ExporterOptions []catalog.ExporterOption                       `json:"exporterOptions"`
	RubroOptions    map[liquidation.ItemType][]catalog.RubroOption `json:"rubroOptions"`
}

// Editor is one embedded liquidation session.
type Editor struct {
	id      string
	mode    Mode
	catalog catalog.Catalog
	logger  zerolog.Logger
	outbox  Enqueuer

	onSave   func(context.Context, payload.Envelope) error
	onCancel func()

	mu       sync.Mutex
	closed   bool
	saving   bool
	nav      *batch.Navigator
	single   *Financials
	rule     *liquidation.PolicyRule
	shipment liquidation.Shipment
	batch    *batch.Batch
	lastUsed time.Time
}

// New builds an editor from cfg. In single mode without initial shipments
// the data of cfg.AWB is loaded from deps.Provider unless auto-load is
// disabled.
func New(ctx context.Context, cfg Config, deps Deps) (*Editor, error) {
	mode := cfg.Mode
	if mode == "" {
		mode = ModeMultiple
	}
	if mode != ModeSingle && mode != ModeMultiple {
		return nil, &liquidation.ValidationError{Field: "mode", Message: fmt.Sprintf("unknown mode %q", cfg.Mode)}
	}
	queue := deps.Outbox
	if queue == nil {
		queue = discardQueue{}
	}
	e := &Editor{
		id:       uuid.NewString(),
		mode:     mode,
		catalog:  mergeCatalog(deps.Catalog, cfg),
		outbox:   queue,
		onSave:   cfg.OnSave,
		onCancel: cfg.OnCancel,
		lastUsed: time.Now(),
	}
	e.logger = deps.Logger.With().Str("session_id", e.id).Str("mode", string(mode)).Logger()

	if mode == ModeMultiple {
		e.batch = batch.New(cfg.Shipments)
		e.nav = batch.NewNavigator(e.batch.IDs(), false)
		e.logger.Info().Int("shipments", e.batch.Len()).Msg("batch editor opened")
		return e, nil
	}

	fc := FinancialsConfig{
		SessionID: e.id,
		Provider:  deps.Provider,
		Outbox:    queue,
		Catalog:   e.catalog,
		Logger:    e.logger,
	}
	if len(cfg.Shipments) > 0 {
		s := cfg.Shipments[0].Clone()
		e.shipment = s
		rule := s.PolicyRule
		e.rule = &rule
		fc.ShipmentID, fc.AWB = s.ID, s.AWB
		fc.GeneralInfo = s.GeneralInfo
		fc.Items = ledger.State{CompraVenta: s.CompraVentaItems, Deductions: s.DeductionItems, Commissions: s.CommissionItems}
	}
	if len(cfg.Shipments) == 0 {
		fc.AWB = cfg.AWB
	}
	e.single = NewFinancials(fc)
	e.nav = batch.NewNavigator([]string{e.shipment.ID}, true)
	if len(cfg.Shipments) == 0 && !cfg.DisableAutoLoad {
		e.single.LoadAsync(context.WithoutCancel(ctx))
	}
	e.logger.Info().Str("awb", e.shipment.AWB).Msg("single editor opened")
	return e, nil
}

func mergeCatalog(base catalog.Catalog, cfg Config) catalog.Catalog {
	if len(base.Rubros) == 0 && len(base.Exporters) == 0 {
		base = catalog.Default()
	}
	out := catalog.Catalog{
		Rubros:    make(map[liquidation.ItemType][]catalog.RubroOption, len(liquidation.ItemTypes)),
		Exporters: base.Exporters,
	}
	for tab, opts := range base.Rubros {
		out.Rubros[tab] = opts
	}
	for tab, opts := range cfg.RubroOptions {
		if tab.Valid() && len(opts) > 0 {
			out.Rubros[tab] = opts
		}
	}
	if len(cfg.ExporterOptions) > 0 {
		out.Exporters = cfg.ExporterOptions
	}
	return out
}

// ID returns the session id.
func (e *Editor) ID() string { return e.id }

// Mode returns the editing mode.
func (e *Editor) Mode() Mode { return e.mode }

// Catalog returns the option lists the editor was configured with.
func (e *Editor) Catalog() catalog.Catalog { return e.catalog }

// Financials returns the single-mode state, or nil in batch mode.
func (e *Editor) Financials() *Financials { return e.single }

// Closed reports whether the session ended.
func (e *Editor) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// LastUsed is the time of the most recent call.
func (e *Editor) LastUsed() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastUsed
}

func (e *Editor) begin() error {
	e.lastUsed = time.Now()
	if e.closed {
		return ErrClosed
	}
	if e.saving {
		return ErrSaving
	}
	return nil
}

// expired reports whether a sweep may drop the session. A session whose
// save is running is never idle.
func (e *Editor) expired(now time.Time, idleTTL time.Duration) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return true
	}
	return !e.saving && idleTTL > 0 && now.Sub(e.lastUsed) > idleTTL
}

// Snapshot returns the current state of the session.
func (e *Editor) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	snap := Snapshot{
		ID:              e.id,
		Mode:            e.mode,
		Closed:          e.closed,
		Navigation:      e.nav.Position(),
		ExporterOptions: e.catalog.Exporters,
		RubroOptions:    e.catalog.Rubros,
	}
	if e.single != nil {
		fs := e.single.Snapshot()
		snap.Single = &fs
		snap.Consolidated = totals.Consolidate([]totals.Entry{{Status: e.shipment.Status, Totals: fs.Totals}})
		return snap
	}
	snap.Rows = e.batch.Rows()
	snap.Consolidated = e.batch.Consolidated()
	return snap
}

// UpdateGeneralInfo edits one general info field in single mode.
func (e *Editor) UpdateGeneralInfo(key liquidation.Key, value liquidation.Scalar) (liquidation.GeneralInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.begin(); err != nil {
		return liquidation.GeneralInfo{}, err
	}
	if e.single == nil {
		return liquidation.GeneralInfo{}, ErrReadOnly
	}
	return e.single.UpdateGeneralInfo(key, value)
}

// AddItem adds an item. shipmentID selects the batch shipment and is
// ignored in single mode.
func (e *Editor) AddItem(shipmentID string, item liquidation.Item) (liquidation.Item, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.begin(); err != nil {
		return nil, err
	}
	if e.single != nil {
		return e.single.AddItem(item)
	}
	prepared, err := PrepareItem(e.catalog, item)
	if err != nil {
		return nil, err
	}
	state, err := e.batch.Apply(shipmentID, ledger.AddItem{Item: prepared})
	if err != nil {
		return nil, err
	}
	if hasConflict(state, prepared) && obs.MergeConflicts != nil {
		obs.MergeConflicts.Inc()
	}
	stored := storedItem(state, prepared)
	cmd, err := outbox.AddItem(prepared)
	if err != nil {
		e.logger.Error().Err(err).Str("item_id", prepared.ItemID()).Msg("encode add command")
		return stored, nil
	}
	e.enqueue(cmd.From(e.id, shipmentID))
	return stored, nil
}

// DeleteItem removes an item. shipmentID is ignored in single mode.
func (e *Editor) DeleteItem(shipmentID, id string, typ liquidation.ItemType) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.begin(); err != nil {
		return err
	}
	if e.single != nil {
		return e.single.DeleteItem(id, typ)
	}
	if !typ.Valid() {
		return &liquidation.ValidationError{Field: "type", Message: "unknown item type"}
	}
	if _, err := e.batch.Apply(shipmentID, ledger.DeleteItem{ID: id, Type: typ}); err != nil {
		return err
	}
	e.enqueue(outbox.DeleteItem(id, typ).From(e.id, shipmentID))
	return nil
}

// Items returns the effective items of a shipment.
func (e *Editor) Items(shipmentID string) (ledger.State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.single != nil {
		return e.single.Snapshot().Items, nil
	}
	return e.batch.Items(shipmentID)
}

// Totals returns the recomputed totals of a shipment.
func (e *Editor) Totals(shipmentID string) (liquidation.Totals, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.single != nil {
		return e.single.Totals(), nil
	}
	return e.batch.Totals(shipmentID)
}

// Consolidated returns the batch rollup. A single editor rolls up itself.
func (e *Editor) Consolidated() liquidation.ConsolidatedTotals {
	return e.Snapshot().Consolidated
}

// Rows returns the summary rows, one per shipment.
func (e *Editor) Rows() []batch.Row {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.batch != nil {
		return e.batch.Rows()
	}
	fs := e.single.Snapshot()
	s := e.shipment.Clone()
	s.GeneralInfo = fs.GeneralInfo
	s.CompraVentaItems = fs.Items.CompraVenta
	s.DeductionItems = fs.Items.Deductions
	s.CommissionItems = fs.Items.Commissions
	return []batch.Row{{
		Shipment:   s,
		BaseValues: fs.BaseValues,
		Totals:     fs.Totals,
		Edited:     true,
		Conflicts:  fs.Conflicts,
	}}
}

// Navigate runs a view transition.
func (e *Editor) Navigate(cmd batch.Command) (batch.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.begin(); err != nil {
		return batch.Position{}, err
	}
	if err := e.nav.Do(cmd); err != nil {
		return e.nav.Position(), err
	}
	return e.nav.Position(), nil
}

// Payload builds the save envelope without closing the session.
func (e *Editor) Payload() (payload.Envelope, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.payloadLocked()
}

func (e *Editor) payloadLocked() (payload.Envelope, error) {
	if e.single != nil {
		if e.single.Loading() {
			return payload.Envelope{}, ErrLoading
		}
		single := e.single.Payload(e.rule)
		return payload.Envelope{Mode: payload.ModeSingle, Single: &single}, nil
	}
	entries, err := payload.BuildBatch(e.batch)
	if err != nil {
		return payload.Envelope{}, err
	}
	return payload.Envelope{Mode: payload.ModeMultiple, Batch: entries}, nil
}

// Report gathers the rows, rollup and enriched payloads for an export.
func (e *Editor) Report() (export.Report, error) {
	e.mu.Lock()
	env, err := e.payloadLocked()
	e.mu.Unlock()
	if err != nil {
		return export.Report{}, err
	}
	rows := e.Rows()
	r := export.Report{Rows: rows, Consolidated: e.Consolidated(), Payloads: env.Batch}
	if env.Single != nil {
		awb := e.shipment.AWB
		if awb == "" {
			awb = env.Single.GeneralInfo.ImportadorAWB.String()
		}
		r.Payloads = []payload.BatchEntry{{AWB: awb, Payload: *env.Single}}
	}
	return r, nil
}

// Save builds the payload and hands it to OnSave. A failing OnSave keeps
// the session open; a successful one closes it. OnSave runs without the
// session lock held; other writes fail with ErrSaving until it returns.
func (e *Editor) Save(ctx context.Context) (payload.Envelope, error) {
	ctx, span := obs.StartSpan(ctx, "editor.save", obs.AttrSession.String(e.id), obs.AttrMode.String(string(e.mode)))
	defer span.End()

	e.mu.Lock()
	if err := e.begin(); err != nil {
		e.mu.Unlock()
		return payload.Envelope{}, err
	}
	env, err := e.payloadLocked()
	if err != nil {
		e.mu.Unlock()
		return payload.Envelope{}, err
	}
	e.saving = true
	onSave := e.onSave
	e.mu.Unlock()

	var saveErr error
	if onSave != nil {
		saveErr = onSave(ctx, env)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.saving = false
	e.lastUsed = time.Now()
	if saveErr != nil {
		span.RecordError(saveErr)
		span.SetStatus(codes.Error, saveErr.Error())
		e.countSave("error")
		e.logger.Error().Err(saveErr).Msg("save rejected")
		return env, saveErr
	}
	e.countSave("success")
	e.closeLocked()
	e.logger.Info().Msg("liquidation saved")
	return env, nil
}

// Cancel discards the session and notifies OnCancel.
func (e *Editor) Cancel() error {
	e.mu.Lock()
	if err := e.begin(); err != nil {
		e.mu.Unlock()
		return err
	}
	e.closeLocked()
	onCancel := e.onCancel
	e.mu.Unlock()

	if onCancel != nil {
		onCancel()
	}
	e.logger.Info().Msg("liquidation cancelled")
	return nil
}

// Escape is the escape gesture; it cancels the session.
func (e *Editor) Escape() error {
	return e.Cancel()
}

// Close ends the session without callbacks. Pending edits are discarded.
func (e *Editor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closeLocked()
}

func (e *Editor) closeLocked() {
	if e.closed {
		return
	}
	e.closed = true
	if e.single != nil {
		e.single.close()
	}
	if e.batch != nil {
		e.batch.Overlay().Discard()
	}
}

func (e *Editor) countSave(result string) {
	if obs.SavesTotal != nil {
		obs.SavesTotal.WithLabelValues(string(e.mode), result).Inc()
	}
}

func (e *Editor) enqueue(cmd outbox.Command) {
	if !e.outbox.Enqueue(cmd) {
		e.logger.Warn().Str("command_id", cmd.ID).Str("kind", string(cmd.Kind)).Msg("persistence command not queued")
	}
}
