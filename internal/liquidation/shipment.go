package liquidation

// Status is the upstream validation status of a shipment.
type Status string

const (
	StatusValid   Status = "valid"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

// Totals are the derived financial figures of one shipment.
type Totals struct {
	TotalCobros      float64 `json:"totalCobros"`
	TotalPagos       float64 `json:"totalPagos"`
	TotalDeducciones float64 `json:"totalDeducciones"`
	TotalComisiones  float64 `json:"totalComisiones"`
	Utilidad         float64 `json:"utilidad"`
	UtilidadPorc     float64 `json:"utilidadPorc"`
}

// ConsolidatedTotals roll up a batch of shipments.
type ConsolidatedTotals struct {
	TotalShipments    int     `json:"totalShipments"`
	TotalCobros       float64 `json:"totalCobros"`
	TotalPagos        float64 `json:"totalPagos"`
	TotalUtilidad     float64 `json:"totalUtilidad"`
	TotalUtilidadPorc float64 `json:"totalUtilidadPorc"`
	ValidCount        int     `json:"validCount"`
	WarningCount      int     `json:"warningCount"`
	ErrorCount        int     `json:"errorCount"`
}

// PolicyItem is one line of a pricing rule; upstream sends "-" for blank cells.
type PolicyItem struct {
	Name    string `json:"name"`
	Charge  Scalar `json:"charge"`
	Payable Scalar `json:"payable"`
	Diff    Scalar `json:"diff"`
}

// PolicyTotal sums a pricing rule's lines.
type PolicyTotal struct {
	Charge  float64 `json:"charge"`
	Payable float64 `json:"payable"`
	Diff    float64 `json:"diff"`
}

// PolicyRule is the read-only pricing rule attached to a shipment.
type PolicyRule struct {
	RuleNumber  string       `json:"ruleNumber"`
	Consignee   string       `json:"consignee"`
	Carrier     string       `json:"carrier"`
	RuleType    string       `json:"ruleType"`
	Season      string       `json:"season"`
	SalesRep    string       `json:"salesRep"`
	DaysOfWeek  []string     `json:"daysOfWeek"`
	WeightRange string       `json:"weightRange"`
	RatePerKg   string       `json:"ratePerKg"`
	Items       []PolicyItem `json:"items"`
	Total       PolicyTotal  `json:"total"`
}

// Clone returns a deep copy of the rule.
func (p PolicyRule) Clone() PolicyRule {
	p.DaysOfWeek = append([]string(nil), p.DaysOfWeek...)
	p.Items = append([]PolicyItem(nil), p.Items...)
	return p
}

// Shipment is an AWB-identified shipment as delivered by upstream.
type Shipment struct {
	ID               string            `json:"id"`
	AWB              string            `json:"awb"`
	Consignee        string            `json:"consignee"`
	Weight           float64           `json:"weight"`
	RuleNumber       string            `json:"ruleNumber"`
	TotalCobros      float64           `json:"totalCobros"`
	TotalPagos       float64           `json:"totalPagos"`
	Utilidad         float64           `json:"utilidad"`
	UtilidadPorc     *float64          `json:"utilidadPorc,omitempty"`
	Status           Status            `json:"status"`
	StatusMessage    string            `json:"statusMessage,omitempty"`
	GeneralInfo      GeneralInfo       `json:"generalInfo"`
	CompraVentaItems []CompraVentaItem `json:"compraVentaItems"`
	DeductionItems   []DeductionItem   `json:"deductionItems"`
	CommissionItems  []CommissionItem  `json:"commissionItems"`
	PolicyRule       PolicyRule        `json:"policyRule"`
}

// Clone returns a deep copy so callers cannot alias upstream slices.
func (s Shipment) Clone() Shipment {
	if s.UtilidadPorc != nil {
		v := *s.UtilidadPorc
		s.UtilidadPorc = &v
	}
	s.CompraVentaItems = append([]CompraVentaItem(nil), s.CompraVentaItems...)
	s.DeductionItems = append([]DeductionItem(nil), s.DeductionItems...)
	s.CommissionItems = append([]CommissionItem(nil), s.CommissionItems...)
	s.PolicyRule = s.PolicyRule.Clone()
	return s
}
