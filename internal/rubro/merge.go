package rubro

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/noah-isme/backend-liquidacion/internal/liquidation"
)

// Normalize returns the matching form of a rubro name: NFC, case-folded,
// trimmed, with internal whitespace runs collapsed to a single space.
func Normalize(name string) string {
	folded := cases.Fold().String(norm.NFC.String(name))
	return strings.Join(strings.Fields(folded), " ")
}

// SameRubro reports whether two display names refer to the same charge.
func SameRubro(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

type rowKey struct {
	name  string
	basis liquidation.Basis
}

// MergeAll reconciles a raw purchase/sale list. Rows sharing name and basis
// collapse into the first-seen row; rows sharing only the name are kept and
// flagged as conflicting. The input slice is not modified.
func MergeAll(items []liquidation.CompraVentaItem) []liquidation.CompraVentaItem {
	out := make([]liquidation.CompraVentaItem, 0, len(items))
	index := make(map[rowKey]int, len(items))
	for _, item := range items {
		key := rowKey{name: Normalize(item.Rubro), basis: item.BaseKey}
		if pos, ok := index[key]; ok {
			out[pos] = merge(out[pos], item)
			continue
		}
		index[key] = len(out)
		out = append(out, item)
	}
	flagAll(out)
	return out
}

// MergeInto applies a single incoming item to an already reconciled list.
// Only rows sharing the incoming item's name are touched.
func MergeInto(items []liquidation.CompraVentaItem, incoming liquidation.CompraVentaItem) []liquidation.CompraVentaItem {
	name := Normalize(incoming.Rubro)
	out := make([]liquidation.CompraVentaItem, len(items), len(items)+1)
	copy(out, items)
	merged := false
	for i := range out {
		if out[i].BaseKey == incoming.BaseKey && Normalize(out[i].Rubro) == name {
			out[i] = merge(out[i], incoming)
			merged = true
			break
		}
	}
	if !merged {
		out = append(out, incoming)
	}
	flagGroup(out, name)
	return out
}

// Reconcile recomputes the conflict flags of every row named like name,
// typically after one of them was removed.
func Reconcile(items []liquidation.CompraVentaItem, name string) []liquidation.CompraVentaItem {
	out := append([]liquidation.CompraVentaItem(nil), items...)
	flagGroup(out, Normalize(name))
	return out
}

// Conflicts returns the rows currently flagged as conflicting.
func Conflicts(items []liquidation.CompraVentaItem) []liquidation.CompraVentaItem {
	var out []liquidation.CompraVentaItem
	for _, item := range items {
		if item.HasConflict {
			out = append(out, item)
		}
	}
	return out
}

// merge folds incoming into existing. A positive incoming value replaces the
// stored one so zero placeholders can be filled in without erasing entries.
func merge(existing, incoming liquidation.CompraVentaItem) liquidation.CompraVentaItem {
	if incoming.ValorCompra > 0 {
		existing.ValorCompra = incoming.ValorCompra
	}
	if incoming.ValorVenta > 0 {
		existing.ValorVenta = incoming.ValorVenta
	}
	if incoming.ChargeID != "" {
		existing.ChargeID = incoming.ChargeID
	}
	if incoming.IATACode != "" {
		existing.IATACode = incoming.IATACode
	}
	return existing
}

func flagAll(items []liquidation.CompraVentaItem) {
	groups := make(map[string][]liquidation.Basis)
	names := make([]string, len(items))
	for i, item := range items {
		names[i] = Normalize(item.Rubro)
		groups[names[i]] = appendUnique(groups[names[i]], item.BaseKey)
	}
	for i := range items {
		setFlag(&items[i], groups[names[i]])
	}
}

func flagGroup(items []liquidation.CompraVentaItem, name string) {
	var bases []liquidation.Basis
	var members []int
	for i, item := range items {
		if Normalize(item.Rubro) == name {
			bases = appendUnique(bases, item.BaseKey)
			members = append(members, i)
		}
	}
	for _, i := range members {
		setFlag(&items[i], bases)
	}
}

func setFlag(item *liquidation.CompraVentaItem, bases []liquidation.Basis) {
	if len(bases) < 2 {
		item.HasConflict = false
		item.ConflictReason = ""
		return
	}
	others := make([]string, 0, len(bases)-1)
	for _, b := range bases {
		if b != item.BaseKey {
			others = append(others, fmt.Sprintf("%q", string(b)))
		}
	}
	item.HasConflict = true
	if len(others) == 1 {
		item.ConflictReason = fmt.Sprintf("base mismatch: this uses %q, other uses %s", string(item.BaseKey), others[0])
		return
	}
	item.ConflictReason = fmt.Sprintf("base mismatch: this uses %q, others use %s", string(item.BaseKey), strings.Join(others, ", "))
}

func appendUnique(bases []liquidation.Basis, b liquidation.Basis) []liquidation.Basis {
	for _, existing := range bases {
		if existing == b {
			return bases
		}
	}
	return append(bases, b)
}
