package polymarket

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

var jsonNull = []byte("null")

// Opt is an optional payload field that distinguishes a key that was absent,
// a key that was present with JSON null, and a key carrying a value.
type Opt[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Some returns an Opt holding v.
func Some[T any](v T) Opt[T] { return Opt[T]{Set: true, Value: v} }

func (o *Opt[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), jsonNull) {
		o.Null = true
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

func (o Opt[T]) MarshalJSON() ([]byte, error) {
	if !o.Set || o.Null {
		return jsonNull, nil
	}
	return json.Marshal(o.Value)
}

// Present reports whether the field carried a non-null value.
func (o Opt[T]) Present() bool { return o.Set && !o.Null }

// Or returns the value when present and def otherwise.
func (o Opt[T]) Or(def T) T {
	if o.Present() {
		return o.Value
	}
	return def
}

// firstSet returns the first option whose key appeared in the payload.
func firstSet[T any](opts ...Opt[T]) Opt[T] {
	for _, o := range opts {
		if o.Set {
			return o
		}
	}
	return Opt[T]{}
}

// FlexBool unmarshals from JSON bool or string ("true"/"false") so responses
// work whether flags are sent as bool or string.
type FlexBool bool

func (f *FlexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = FlexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = FlexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// FlexFloat accepts a JSON number or a numeric string. Empty or
// non-numeric strings decode as zero.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	n, _ = strconv.ParseFloat(strings.TrimSpace(s), 64)
	*f = FlexFloat(n)
	return nil
}

// FlexInt accepts a JSON integer, float or numeric string.
type FlexInt int64

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	var ff FlexFloat
	if err := ff.UnmarshalJSON(data); err != nil {
		return err
	}
	*f = FlexInt(int64(ff))
	return nil
}

// FlexTime accepts RFC 3339 timestamps, bare dates and unix seconds or
// milliseconds. Unparseable values decode as the zero time.
type FlexTime struct{ time.Time }

var flexTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (f *FlexTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n FlexInt
		if err := n.UnmarshalJSON(data); err != nil {
			return err
		}
		f.Time = unixAuto(int64(n))
		return nil
	}
	s = strings.TrimSpace(s)
	for _, layout := range flexTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			f.Time = t.UTC()
			return nil
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		f.Time = unixAuto(n)
		return nil
	}
	f.Time = time.Time{}
	return nil
}

func unixAuto(n int64) time.Time {
	if n > 1_000_000_000_000 {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}

// JSONText holds a serialized JSON value. Upstream sends outcome lists both
// as JSON-encoded strings and as native arrays; both decode to the same text.
type JSONText string

func (j *JSONText) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*j = JSONText(s)
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return err
	}
	*j = JSONText(buf.String())
	return nil
}

// --------------------------------------------------------------------------
// Gamma API payloads
// --------------------------------------------------------------------------

// MarketPayload is a market record from the Gamma API. Both camelCase and
// snake_case spellings of each key are accepted.
type MarketPayload struct {
	ID             Opt[string]    `json:"id"`
	ConditionID    Opt[string]    `json:"conditionId"`
	Question       Opt[string]    `json:"question"`
	Description    Opt[string]    `json:"description"`
	Category       Opt[string]    `json:"category"`
	Slug           Opt[string]    `json:"slug"`
	Active         Opt[FlexBool]  `json:"active"`
	Closed         Opt[FlexBool]  `json:"closed"`
	Resolved       Opt[FlexBool]  `json:"resolved"`
	Volume         Opt[FlexFloat] `json:"volume"`
	Liquidity      Opt[FlexFloat] `json:"liquidity"`
	Outcomes       Opt[JSONText]  `json:"outcomes"`
	OutcomePrices  Opt[JSONText]  `json:"outcomePrices"`
	WinningOutcome Opt[string]    `json:"winningOutcome"`
	StartDate      Opt[FlexTime]  `json:"startDate"`
	EndDate        Opt[FlexTime]  `json:"endDate"`
	ResolutionDate Opt[FlexTime]  `json:"resolutionDate"`

	Raw json.RawMessage `json:"-"`
}

type marketPayloadAlias MarketPayload

func (p *MarketPayload) UnmarshalJSON(data []byte) error {
	var w struct {
		marketPayloadAlias
		MarketID            Opt[string]   `json:"market_id"`
		ConditionIDSnake    Opt[string]   `json:"condition_id"`
		OutcomePricesSnake  Opt[JSONText] `json:"outcome_prices"`
		WinningOutcomeSnake Opt[string]   `json:"winning_outcome"`
		StartDateSnake      Opt[FlexTime] `json:"start_date"`
		EndDateSnake        Opt[FlexTime] `json:"end_date"`
		ResolutionDateSnake Opt[FlexTime] `json:"resolution_date"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*p = MarketPayload(w.marketPayloadAlias)
	p.ID = firstSet(p.ID, w.MarketID)
	p.ConditionID = firstSet(p.ConditionID, w.ConditionIDSnake)
	p.OutcomePrices = firstSet(p.OutcomePrices, w.OutcomePricesSnake)
	p.WinningOutcome = firstSet(p.WinningOutcome, w.WinningOutcomeSnake)
	p.StartDate = firstSet(p.StartDate, w.StartDateSnake)
	p.EndDate = firstSet(p.EndDate, w.EndDateSnake)
	p.ResolutionDate = firstSet(p.ResolutionDate, w.ResolutionDateSnake)
	p.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// --------------------------------------------------------------------------
// Data API payloads
// --------------------------------------------------------------------------

// PositionPayload is one entry of the /positions response.
type PositionPayload struct {
	ProxyWallet  Opt[string]    `json:"proxyWallet"`
	Asset        Opt[string]    `json:"asset"`
	ConditionID  Opt[string]    `json:"conditionId"`
	Size         Opt[FlexFloat] `json:"size"`
	AvgPrice     Opt[FlexFloat] `json:"avgPrice"`
	InitialValue Opt[FlexFloat] `json:"initialValue"`
	CurrentValue Opt[FlexFloat] `json:"currentValue"`
	CashPnL      Opt[FlexFloat] `json:"cashPnl"`
	RealizedPnL  Opt[FlexFloat] `json:"realizedPnl"`
	CurPrice     Opt[FlexFloat] `json:"curPrice"`
	Outcome      Opt[string]    `json:"outcome"`
	Title        Opt[string]    `json:"title"`
	Slug         Opt[string]    `json:"slug"`

	Raw json.RawMessage `json:"-"`
}

type positionPayloadAlias PositionPayload

func (p *PositionPayload) UnmarshalJSON(data []byte) error {
	var w struct {
		positionPayloadAlias
		ConditionIDSnake Opt[string] `json:"condition_id"`
		Market           Opt[string] `json:"market"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*p = PositionPayload(w.positionPayloadAlias)
	p.ConditionID = firstSet(p.ConditionID, w.ConditionIDSnake, w.Market)
	p.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// TradePayload is one entry of the /trades response.
type TradePayload struct {
	ProxyWallet     Opt[string]    `json:"proxyWallet"`
	Side            Opt[string]    `json:"side"`
	Asset           Opt[string]    `json:"asset"`
	ConditionID     Opt[string]    `json:"conditionId"`
	Size            Opt[FlexFloat] `json:"size"`
	Price           Opt[FlexFloat] `json:"price"`
	USDCSize        Opt[FlexFloat] `json:"usdcSize"`
	Timestamp       Opt[FlexInt]   `json:"timestamp"`
	Outcome         Opt[string]    `json:"outcome"`
	TransactionHash Opt[string]    `json:"transactionHash"`

	Raw json.RawMessage `json:"-"`
}

type tradePayloadAlias TradePayload

func (p *TradePayload) UnmarshalJSON(data []byte) error {
	var w struct {
		tradePayloadAlias
		TransactionHashSnake Opt[string] `json:"transaction_hash"`
		ConditionIDSnake     Opt[string] `json:"condition_id"`
		Market               Opt[string] `json:"market"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*p = TradePayload(w.tradePayloadAlias)
	p.TransactionHash = firstSet(p.TransactionHash, w.TransactionHashSnake)
	p.ConditionID = firstSet(p.ConditionID, w.ConditionIDSnake, w.Market)
	p.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// ActivityPayload is one entry of the /activity response. Raw keeps the
// original bytes for the ledger's metadata column.
type ActivityPayload struct {
	ProxyWallet     Opt[string]    `json:"proxyWallet"`
	Timestamp       Opt[FlexInt]   `json:"timestamp"`
	ConditionID     Opt[string]    `json:"conditionId"`
	Type            Opt[string]    `json:"type"`
	Size            Opt[FlexFloat] `json:"size"`
	USDCSize        Opt[FlexFloat] `json:"usdcSize"`
	Price           Opt[FlexFloat] `json:"price"`
	Fee             Opt[FlexFloat] `json:"fee"`
	Asset           Opt[string]    `json:"asset"`
	FromAsset       Opt[string]    `json:"fromAsset"`
	ToAsset         Opt[string]    `json:"toAsset"`
	Side            Opt[string]    `json:"side"`
	Outcome         Opt[string]    `json:"outcome"`
	RealizedPnL     Opt[FlexFloat] `json:"realizedPnl"`
	TransactionHash Opt[string]    `json:"transactionHash"`

	Raw json.RawMessage `json:"-"`
}

type activityPayloadAlias ActivityPayload

func (p *ActivityPayload) UnmarshalJSON(data []byte) error {
	var w struct {
		activityPayloadAlias
		TransactionHashSnake Opt[string] `json:"transaction_hash"`
		ConditionIDSnake     Opt[string] `json:"condition_id"`
		FromAssetID          Opt[string] `json:"from_asset_id"`
		ToAssetID            Opt[string] `json:"to_asset_id"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*p = ActivityPayload(w.activityPayloadAlias)
	p.TransactionHash = firstSet(p.TransactionHash, w.TransactionHashSnake)
	p.ConditionID = firstSet(p.ConditionID, w.ConditionIDSnake)
	p.FromAsset = firstSet(p.FromAsset, w.FromAssetID)
	p.ToAsset = firstSet(p.ToAsset, w.ToAssetID)
	p.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// Hash returns the transaction hash under either key spelling, or "".
func (p ActivityPayload) Hash() string {
	return strings.TrimSpace(p.TransactionHash.Or(""))
}
