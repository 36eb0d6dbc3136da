package domain

import "time"

type Product struct {
	Name            string     `json:"name"`
	SKU             string     `json:"sku,omitempty"`
	Category        string     `json:"category,omitempty"`
	UnitCost        float64    `json:"unit_cost"`
	OnHand          int        `json:"on_hand"`
	SafetyStock     int        `json:"safety_stock"`
	FirstListedAt   time.Time  `json:"first_listed_at"`
	LastRestockedAt *time.Time `json:"last_restocked_at,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Notes           string     `json:"notes,omitempty"`
}

type ProductCreateRequest struct {
	Name        string `json:"name"`
	SKU         string `json:"sku"`
	Category    string `json:"category"`
	SafetyStock int    `json:"safety_stock"`
	Notes       string `json:"notes"`
}

type ProductUpdateRequest struct {
	SKU         *string `json:"sku,omitempty"`
	Category    *string `json:"category,omitempty"`
	SafetyStock *int    `json:"safety_stock,omitempty"`
	Notes       *string `json:"notes,omitempty"`
}

type StockCorrectionRequest struct {
	Product    string `json:"product"`
	CountedQty int    `json:"counted_qty"`
	Note       string `json:"note"`
}

type StockCorrectionResponse struct {
	Product    string `json:"product"`
	SystemQty  int    `json:"system_qty"`
	CountedQty int    `json:"counted_qty"`
	DeltaQty   int    `json:"delta_qty"`
}

// OrderLine is the physical storage row of a sales order. Header fields
// (Date through PickupRegion) are populated on exactly one line per order;
// a line holds the order header iff its Date is non-empty.
type OrderLine struct {
	OrderID       string  `json:"order_id"`
	Date          string  `json:"date,omitempty"`
	Channel       string  `json:"channel,omitempty"`
	Buyer         string  `json:"buyer,omitempty"`
	ShipMethod    string  `json:"ship_method,omitempty"`
	PickupRegion  string  `json:"pickup_region,omitempty"`
	Product       string  `json:"product"`
	Qty           int     `json:"qty"`
	UnitPrice     float64 `json:"unit_price"`
	UnitCost      float64 `json:"unit_cost"`
	GrossAmount   float64 `json:"gross_amount"`
	CostAmount    float64 `json:"cost_amount"`
	AllocatedFee  float64 `json:"allocated_fee"`
	AllocatedTax  float64 `json:"allocated_tax"`
	NetProfit     float64 `json:"net_profit"`
	MarginPercent float64 `json:"margin_percent"`
	DeductionNote string  `json:"deduction_note,omitempty"`
	ReturnReason  string  `json:"return_reason,omitempty"`
}

func (l OrderLine) HoldsHeader() bool {
	return l.Date != ""
}

type OrderHeader struct {
	Date         string `json:"date"`
	Channel      string `json:"channel"`
	Buyer        string `json:"buyer"`
	ShipMethod   string `json:"ship_method"`
	PickupRegion string `json:"pickup_region"`
}

// SalesOrder is the assembled read view over the lines of one order id.
type SalesOrder struct {
	OrderID string      `json:"order_id"`
	State   string      `json:"state"`
	Header  OrderHeader `json:"header"`
	Lines   []OrderLine `json:"lines"`
}

type CartLine struct {
	Product   string  `json:"product"`
	Qty       int     `json:"qty"`
	UnitPrice float64 `json:"unit_price"`
}

type SubmitOrderRequest struct {
	Buyer         string     `json:"buyer"`
	Channel       string     `json:"channel"`
	ShipMethod    string     `json:"ship_method"`
	PickupRegion  string     `json:"pickup_region"`
	FeeProfile    string     `json:"fee_profile"`
	ManualFeeRate *float64   `json:"manual_fee_rate,omitempty"`
	TaxTotal      float64    `json:"tax_total"`
	Lines         []CartLine `json:"lines"`
}

type SubmitOrderResponse struct {
	OrderID  string      `json:"order_id"`
	Lines    []OrderLine `json:"lines"`
	Warnings []string    `json:"warnings,omitempty"`
}

type ModifyLineRequest struct {
	OrderID   string  `json:"order_id"`
	Product   string  `json:"product"`
	Qty       int     `json:"qty"`
	UnitPrice float64 `json:"unit_price"`
}

type RemoveLineRequest struct {
	OrderID string `json:"order_id"`
	Product string `json:"product"`
}

type ReturnLineRequest struct {
	OrderID string `json:"order_id"`
	Product string `json:"product"`
	Reason  string `json:"reason"`
}

type ReturnOrderRequest struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

type AmendFinalizedLineRequest struct {
	OrderID   string   `json:"order_id"`
	Product   string   `json:"product"`
	Qty       int      `json:"qty"`
	UnitPrice float64  `json:"unit_price"`
	UnitCost  *float64 `json:"unit_cost,omitempty"`
	Fee       *float64 `json:"fee,omitempty"`
}

type PostSaleAdjustmentRequest struct {
	OrderID   string  `json:"order_id"`
	Product   string  `json:"product"`
	Type      string  `json:"type"`
	ExtraCost float64 `json:"extra_cost"`
	Remark    string  `json:"remark"`
}

type PurchaseLine struct {
	PurchaseID        string  `json:"purchase_id"`
	Supplier          string  `json:"supplier,omitempty"`
	Date              string  `json:"date"`
	Product           string  `json:"product"`
	Qty               int     `json:"qty"`
	UnitPrice         float64 `json:"unit_price"`
	AllocatedShipping float64 `json:"allocated_shipping"`
	AllocatedTax      float64 `json:"allocated_tax"`
	Note              string  `json:"note,omitempty"`
	ReceivedAt        string  `json:"received_at,omitempty"`
}

type PurchaseCartLine struct {
	Product   string  `json:"product"`
	Qty       int     `json:"qty"`
	UnitPrice float64 `json:"unit_price"`
}

type SubmitPurchaseRequest struct {
	Supplier      string             `json:"supplier"`
	ShippingTotal float64            `json:"shipping_total"`
	TaxTotal      float64            `json:"tax_total"`
	Lines         []PurchaseCartLine `json:"lines"`
}

type SubmitPurchaseResponse struct {
	PurchaseID string         `json:"purchase_id"`
	Lines      []PurchaseLine `json:"lines"`
}

type FeeProfile struct {
	Name        string  `json:"name"`
	RatePercent float64 `json:"rate_percent"`
	FixedFee    float64 `json:"fixed_fee"`
}

type ProcurementParams struct {
	DaysToCover       int     `json:"days_to_cover"`
	SafetyMultiplier  float64 `json:"safety_multiplier"`
	VelocityThreshold float64 `json:"velocity_threshold"`
}

type ProcurementItem struct {
	Product       string  `json:"product"`
	SKU           string  `json:"sku,omitempty"`
	Category      string  `json:"category,omitempty"`
	OnHand        int     `json:"on_hand"`
	SafetyStock   int     `json:"safety_stock"`
	Velocity      float64 `json:"velocity"`
	TargetLevel   float64 `json:"target_level"`
	SuggestedQty  int     `json:"suggested_qty"`
	Status        string  `json:"status"`
	UnitCost      float64 `json:"unit_cost"`
	EstimatedCost float64 `json:"estimated_cost"`
}

type ProcurementReport struct {
	GeneratedAt string            `json:"generated_at"`
	Params      ProcurementParams `json:"params"`
	Items       []ProcurementItem `json:"items"`
}

// Snapshot is the full-state blob exchanged with the backup collaborator.
type Snapshot struct {
	ExportedAt     time.Time      `json:"exported_at"`
	Products       []Product      `json:"products"`
	OpenLines      []OrderLine    `json:"open_lines"`
	FinalizedLines []OrderLine    `json:"finalized_lines"`
	ReturnedLines  []OrderLine    `json:"returned_lines"`
	TransitLines   []PurchaseLine `json:"transit_lines"`
	HistoryLines   []PurchaseLine `json:"history_lines"`
	FeeProfiles    []FeeProfile   `json:"fee_profiles"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

// OperatorAccount is an internal persistence model for auth credentials.
type OperatorAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

const (
	OrderStateOpen      = "open"
	OrderStateFinalized = "finalized"
	OrderStateReturned  = "returned"
)

const (
	PurchaseStateInTransit = "in_transit"
	PurchaseStateReceived  = "received"
)

const (
	AdjustmentReplacement = "replacement"
	AdjustmentWarranty    = "warranty"
	AdjustmentGoodwill    = "goodwill"
)

const (
	ProcurementOversold = "oversold"
	ProcurementUrgent   = "urgent"
	ProcurementLow      = "low"
)

const (
	FeeProfileManual   = "manual"
	FeeProfileStandard = "platform-standard"
	FeeProfileCampaign = "platform-campaign"
)

const (
	UnspecifiedBuyer   = "walk-in"
	UnspecifiedChannel = "retail"
	UnspecifiedField   = "n/a"
)
