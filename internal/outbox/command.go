// Package outbox delivers persistence commands to the system of record
// without blocking the editor that issued them.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-liquidacion/internal/liquidation"
	"github.com/noah-isme/backend-liquidacion/internal/upstream"
)

// Kind names a persistence operation.
type Kind string

const (
	KindUpdateGeneralInfo Kind = "update_general_info"
	KindAddItem           Kind = "add_item"
	KindDeleteItem        Kind = "delete_item"
)

// Command is a self-contained persistence request. It carries everything the
// sink needs so it can cross a process boundary.
type Command struct {
	ID          string                   `json:"id"`
	Kind        Kind                     `json:"kind"`
	SessionID   string                   `json:"sessionId,omitempty"`
	ShipmentID  string                   `json:"shipmentId,omitempty"`
	GeneralInfo *liquidation.GeneralInfo `json:"generalInfo,omitempty"`
	Item        json.RawMessage          `json:"item,omitempty"`
	ItemID      string                   `json:"itemId,omitempty"`
	ItemType    liquidation.ItemType     `json:"itemType,omitempty"`
	IssuedAt    time.Time                `json:"issuedAt"`
}

func newCommand(kind Kind) Command {
	return Command{ID: uuid.NewString(), Kind: kind, IssuedAt: time.Now().UTC()}
}

// UpdateGeneralInfo builds a command mirroring the whole general info record.
func UpdateGeneralInfo(info liquidation.GeneralInfo) Command {
	cmd := newCommand(KindUpdateGeneralInfo)
	cmd.GeneralInfo = &info
	return cmd
}

// AddItem builds a command mirroring an added item.
func AddItem(item liquidation.Item) (Command, error) {
	raw, err := json.Marshal(item)
	if err != nil {
		return Command{}, fmt.Errorf("encode item: %w", err)
	}
	cmd := newCommand(KindAddItem)
	cmd.Item = raw
	cmd.ItemID = item.ItemID()
	cmd.ItemType = item.ItemType()
	return cmd, nil
}

// DeleteItem builds a command mirroring a deleted item.
func DeleteItem(id string, typ liquidation.ItemType) Command {
	cmd := newCommand(KindDeleteItem)
	cmd.ItemID = id
	cmd.ItemType = typ
	return cmd
}

// From tags the command with the session and shipment that issued it.
func (c Command) From(sessionID, shipmentID string) Command {
	c.SessionID = sessionID
	c.ShipmentID = shipmentID
	return c
}

// Execute runs the command against sink.
func Execute(ctx context.Context, sink upstream.Sink, cmd Command) (upstream.Result, error) {
	switch cmd.Kind {
	case KindUpdateGeneralInfo:
		if cmd.GeneralInfo == nil {
			return upstream.Result{}, fmt.Errorf("outbox: %s command %s has no general info", cmd.Kind, cmd.ID)
		}
		return sink.UpdateGeneralInfo(ctx, *cmd.GeneralInfo)
	case KindAddItem:
		item, err := liquidation.DecodeItem(cmd.Item)
		if err != nil {
			return upstream.Result{}, fmt.Errorf("outbox: decode item of %s: %w", cmd.ID, err)
		}
		return sink.AddItem(ctx, item)
	case KindDeleteItem:
		return sink.DeleteItem(ctx, cmd.ItemID, cmd.ItemType)
	default:
		return upstream.Result{}, fmt.Errorf("outbox: unknown command kind %q", cmd.Kind)
	}
}
