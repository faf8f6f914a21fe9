package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Signal is a directional trade decision.
type Signal int

const (
	Hold Signal = iota
	Buy
	Sell
)

func (s Signal) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "HOLD"
	}
}

// Direction maps BUY to +1, SELL to -1 and HOLD to 0.
func (s Signal) Direction() float64 {
	switch s {
	case Buy:
		return 1
	case Sell:
		return -1
	default:
		return 0
	}
}

func (s Signal) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Signal) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	parsed, err := ParseSignal(str)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSignal converts "BUY", "SELL" or "HOLD" (any case) into a Signal.
func ParseSignal(s string) (Signal, error) {
	switch strings.ToUpper(s) {
	case "BUY":
		return Buy, nil
	case "SELL":
		return Sell, nil
	case "HOLD":
		return Hold, nil
	}
	return Hold, fmt.Errorf("unknown signal %q", s)
}

// IndicatorOutput is the result of one indicator evaluation.
// Strength is the indicator's confidence in its own signal, 0..100.
type IndicatorOutput struct {
	Name     string  `json:"name"`
	Value    any     `json:"value"`
	Signal   Signal  `json:"signal"`
	Strength float64 `json:"strength"`
	Reason   string  `json:"reason"`
}

// TradeSignal is the scored decision for one coin at one point in time.
type TradeSignal struct {
	Coin       string            `json:"coin"`
	Signal     Signal            `json:"signal"`
	Score      int               `json:"score"`
	Reasons    []string          `json:"reasons"`
	Indicators []IndicatorOutput `json:"indicators"`
	Timestamp  time.Time         `json:"timestamp"`
	Price      float64           `json:"price"`
}

// Rationale concatenates every contributing reason.
func (ts TradeSignal) Rationale() string {
	return strings.Join(ts.Reasons, " | ")
}

// IndicatorNames lists the names of the indicators that were computed.
func (ts TradeSignal) IndicatorNames() []string {
	names := make([]string, len(ts.Indicators))
	for i, o := range ts.Indicators {
		names[i] = o.Name
	}
	return names
}
