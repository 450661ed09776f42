// Package editor hosts liquidation editing sessions: a single-shipment
// financials state, the multi-shipment batch session and the factory that
// embeds either behind one API.
package editor

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/backend-liquidacion/internal/catalog"
	"github.com/noah-isme/backend-liquidacion/internal/ledger"
	"github.com/noah-isme/backend-liquidacion/internal/liquidation"
	"github.com/noah-isme/backend-liquidacion/internal/obs"
	"github.com/noah-isme/backend-liquidacion/internal/outbox"
	"github.com/noah-isme/backend-liquidacion/internal/payload"
	"github.com/noah-isme/backend-liquidacion/internal/rubro"
	"github.com/noah-isme/backend-liquidacion/internal/totals"
	"github.com/noah-isme/backend-liquidacion/internal/upstream"
)

var (
	// ErrLoading is returned for mutations attempted while the initial load runs.
	ErrLoading = errors.New("editor: initial load in progress")
	// ErrClosed is returned once a session was saved, cancelled or expired.
	ErrClosed = errors.New("editor: session closed")
)

// Enqueuer accepts persistence commands without blocking.
type Enqueuer interface {
	Enqueue(cmd outbox.Command) bool
}

type discardQueue struct{}

func (discardQueue) Enqueue(outbox.Command) bool { return false }

// FinancialsConfig seeds a single-shipment state.
type FinancialsConfig struct {
	SessionID   string
	ShipmentID  string
	AWB         string
	GeneralInfo liquidation.GeneralInfo
	Items       ledger.State
	Provider    upstream.Provider
	Outbox      Enqueuer
	Catalog     catalog.Catalog
	Logger      zerolog.Logger
}

// FinancialsSnapshot is a consistent read of a Financials state.
type FinancialsSnapshot struct {
	GeneralInfo liquidation.GeneralInfo `json:"generalInfo"`
	BaseValues  liquidation.BaseValues  `json:"baseValues"`
	Items       ledger.State            `json:"items"`
	Totals      liquidation.Totals      `json:"totals"`
	Conflicts   int                     `json:"conflicts"`
	Loading     bool                    `json:"loading"`
}

// Financials is the editable financial state of one shipment. Mutations
// apply locally first and are then mirrored upstream through the outbox.
type Financials struct {
	mu         sync.Mutex
	sessionID  string
	shipmentID string
	awb        string
	info       liquidation.GeneralInfo
	items      ledger.State
	rev        uint64
	loading    bool
	closed     bool

	resolver liquidation.BasisResolver
	memo     totals.Memo

	provider upstream.Provider
	outbox   Enqueuer
	catalog  catalog.Catalog
	logger   zerolog.Logger
}

// NewFinancials builds a state from cfg. Items are reconciled on entry.
func NewFinancials(cfg FinancialsConfig) *Financials {
	queue := cfg.Outbox
	if queue == nil {
		queue = discardQueue{}
	}
	return &Financials{
		sessionID:  cfg.SessionID,
		shipmentID: cfg.ShipmentID,
		awb:        cfg.AWB,
		info:       cfg.GeneralInfo,
		items:      ledger.New(cfg.Items.CompraVenta, cfg.Items.Deductions, cfg.Items.Commissions),
		provider:   cfg.Provider,
		outbox:     queue,
		catalog:    cfg.Catalog,
		logger:     cfg.Logger,
	}
}

// LoadAsync marks the state as loading and fetches general info and the
// three collections in the background. The channel yields the load error,
// if any, and is closed afterwards.
func (f *Financials) LoadAsync(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	f.mu.Lock()
	if f.loading {
		f.mu.Unlock()
		done <- ErrLoading
		close(done)
		return done
	}
	f.loading = true
	f.mu.Unlock()

	go func() {
		defer close(done)
		done <- f.load(ctx)
	}()
	return done
}

// Load fetches the initial data and waits for it.
func (f *Financials) Load(ctx context.Context) error {
	return <-f.LoadAsync(ctx)
}

func (f *Financials) load(ctx context.Context) error {
	if f.provider == nil {
		f.finishLoad(nil, nil)
		return errors.New("editor: no upstream provider configured")
	}
	var (
		info liquidation.GeneralInfo
		cv   []liquidation.CompraVentaItem
		ded  []liquidation.DeductionItem
		com  []liquidation.CommissionItem
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		info, err = f.provider.GetGeneralInfo(gctx, f.awb)
		return err
	})
	g.Go(func() (err error) {
		cv, err = f.provider.GetCompraVentaItems(gctx, f.awb)
		return err
	})
	g.Go(func() (err error) {
		ded, err = f.provider.GetDeductionItems(gctx, f.awb)
		return err
	})
	g.Go(func() (err error) {
		com, err = f.provider.GetCommissionItems(gctx, f.awb)
		return err
	})
	if err := g.Wait(); err != nil {
		f.logger.Error().Err(err).Str("session_id", f.sessionID).Str("awb", f.awb).Msg("initial load failed")
		f.finishLoad(nil, nil)
		return err
	}
	state := ledger.New(cv, ded, com)
	f.finishLoad(&info, &state)
	f.logger.Info().
		Str("session_id", f.sessionID).
		Str("awb", f.awb).
		Int("items", state.Len()).
		Msg("initial load complete")
	return nil
}

func (f *Financials) finishLoad(info *liquidation.GeneralInfo, state *ledger.State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loading = false
	if f.closed {
		return
	}
	if info != nil {
		f.info = *info
	}
	if state != nil {
		f.items = *state
		f.rev++
	}
}

// Loading reports whether the initial load is still running.
func (f *Financials) Loading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loading
}

func (f *Financials) writable() error {
	if f.closed {
		return ErrClosed
	}
	if f.loading {
		return ErrLoading
	}
	return nil
}

// UpdateGeneralInfo sets one field and mirrors the whole record upstream.
func (f *Financials) UpdateGeneralInfo(key liquidation.Key, value liquidation.Scalar) (liquidation.GeneralInfo, error) {
	if err := liquidation.ValidateField(key, value); err != nil {
		return liquidation.GeneralInfo{}, err
	}
	f.mu.Lock()
	if err := f.writable(); err != nil {
		f.mu.Unlock()
		return liquidation.GeneralInfo{}, err
	}
	next, err := f.info.With(key, value)
	if err != nil {
		f.mu.Unlock()
		return liquidation.GeneralInfo{}, err
	}
	f.info = next
	f.mu.Unlock()

	f.enqueue(outbox.UpdateGeneralInfo(next))
	return next, nil
}

// AddItem validates item, fills catalog metadata and an id when missing,
// then adds it. The returned item is what was sent upstream.
func (f *Financials) AddItem(item liquidation.Item) (liquidation.Item, error) {
	prepared, err := PrepareItem(f.catalog, item)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	if err := f.writable(); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	f.items = ledger.Apply(f.items, ledger.AddItem{Item: prepared})
	f.rev++
	conflicted := hasConflict(f.items, prepared)
	stored := storedItem(f.items, prepared)
	f.mu.Unlock()

	if conflicted && obs.MergeConflicts != nil {
		obs.MergeConflicts.Inc()
	}
	cmd, err := outbox.AddItem(prepared)
	if err != nil {
		f.logger.Error().Err(err).Str("item_id", prepared.ItemID()).Msg("encode add command")
		return stored, nil
	}
	f.enqueue(cmd)
	return stored, nil
}

// DeleteItem removes an item. Unknown ids are a no-op locally but are still
// mirrored upstream.
func (f *Financials) DeleteItem(id string, typ liquidation.ItemType) error {
	if !typ.Valid() {
		return &liquidation.ValidationError{Field: "type", Message: "unknown item type"}
	}
	f.mu.Lock()
	if err := f.writable(); err != nil {
		f.mu.Unlock()
		return err
	}
	f.items = ledger.Apply(f.items, ledger.DeleteItem{ID: id, Type: typ})
	f.rev++
	f.mu.Unlock()

	f.enqueue(outbox.DeleteItem(id, typ))
	return nil
}

// Snapshot returns a consistent read of the state with derived totals.
func (f *Financials) Snapshot() FinancialsSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	values := f.resolver.Resolve(f.info)
	return FinancialsSnapshot{
		GeneralInfo: f.info,
		BaseValues:  values,
		Items:       f.items,
		Totals:      f.memo.Get(f.rev, f.items, values),
		Conflicts:   len(rubro.Conflicts(f.items.CompraVenta)),
		Loading:     f.loading,
	}
}

// Totals returns the derived totals.
func (f *Financials) Totals() liquidation.Totals {
	return f.Snapshot().Totals
}

// Payload builds the enriched save payload.
func (f *Financials) Payload(rule *liquidation.PolicyRule) payload.Single {
	f.mu.Lock()
	info, items := f.info, f.items
	f.mu.Unlock()
	return payload.BuildSingle(info, items, rule)
}

func (f *Financials) close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *Financials) enqueue(cmd outbox.Command) {
	cmd = cmd.From(f.sessionID, f.shipmentID)
	if !f.outbox.Enqueue(cmd) {
		f.logger.Warn().Str("command_id", cmd.ID).Str("kind", string(cmd.Kind)).Msg("persistence command not queued")
	}
}

// PrepareItem applies catalog metadata, assigns an id when missing and
// validates the result.
func PrepareItem(cat catalog.Catalog, item liquidation.Item) (liquidation.Item, error) {
	if item == nil {
		return nil, &liquidation.ValidationError{Field: "type", Message: "item is required"}
	}
	item = cat.Apply(item)
	id := item.ItemID()
	if id == "" {
		id = newItemID(item.ItemType())
	}
	item = liquidation.WithID(item, id)
	if err := liquidation.ValidateItem(item); err != nil {
		return nil, err
	}
	return item, nil
}

func newItemID(typ liquidation.ItemType) string {
	prefix := "cv"
	switch typ {
	case liquidation.TypeDeductions:
		prefix = "ded"
	case liquidation.TypeCommissions:
		prefix = "com"
	}
	return prefix + "-" + uuid.NewString()
}

// storedItem is the row added landed in, so callers get an id they can delete by.
func storedItem(s ledger.State, added liquidation.Item) liquidation.Item {
	if row, ok := s.Holder(added); ok {
		return row
	}
	return added
}

func hasConflict(s ledger.State, item liquidation.Item) bool {
	cv, ok := item.(liquidation.CompraVentaItem)
	if !ok {
		return false
	}
	for _, row := range s.CompraVenta {
		if row.HasConflict && rubro.SameRubro(row.Rubro, cv.Rubro) {
			return true
		}
	}
	return false
}
