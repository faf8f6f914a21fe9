package indicators

import (
	"errors"
	"fmt"
	"strings"

	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/models"
)

// ErrUnknownIndicator is returned by ParseKind for names outside the fixed table.
var ErrUnknownIndicator = errors.New("unknown indicator")

// Indicator names as they appear in outputs and configuration.
const (
	NameRSI       = "rsi"
	NameMACD      = "macd"
	NameBollinger = "bollinger"
	NameVolume    = "volume"
	NameTrend     = "ma_trend"
)

// Kind identifies one indicator of the library.
type Kind int

const (
	KindRSI Kind = iota
	KindMACD
	KindBollinger
	KindVolume
	KindTrend
)

type definition struct {
	name       string
	minSamples int
	compute    func([]models.Candle) (models.IndicatorOutput, error)
}

var definitions = [...]definition{
	KindRSI: {
		name:       NameRSI,
		minSamples: RSIPeriod + 1,
		compute: func(c []models.Candle) (models.IndicatorOutput, error) {
			return RSI(models.Closes(c), RSIPeriod)
		},
	},
	KindMACD: {
		name:       NameMACD,
		minSamples: MACDMinSamples,
		compute: func(c []models.Candle) (models.IndicatorOutput, error) {
			return MACD(models.Closes(c))
		},
	},
	KindBollinger: {
		name:       NameBollinger,
		minSamples: BollingerPeriod + 1,
		compute: func(c []models.Candle) (models.IndicatorOutput, error) {
			return Bollinger(models.Closes(c))
		},
	},
	KindVolume: {
		name:       NameVolume,
		minSamples: volumeWindow + 1,
		compute: func(c []models.Candle) (models.IndicatorOutput, error) {
			return Volume(models.Closes(c), models.Volumes(c))
		},
	},
	KindTrend: {
		name:       NameTrend,
		minSamples: trendShort + 1,
		compute:    Trend,
	},
}

// Kinds lists every indicator in table order.
func Kinds() []Kind {
	return []Kind{KindRSI, KindMACD, KindBollinger, KindVolume, KindTrend}
}

func (k Kind) valid() bool { return k >= 0 && int(k) < len(definitions) }

func (k Kind) String() string {
	if !k.valid() {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return definitions[k].name
}

// MinSamples is the number of candles the indicator needs.
func (k Kind) MinSamples() int {
	if !k.valid() {
		return 0
	}
	return definitions[k].minSamples
}

// Compute evaluates the indicator over candles.
func (k Kind) Compute(candles []models.Candle) (models.IndicatorOutput, error) {
	if !k.valid() {
		return models.IndicatorOutput{}, fmt.Errorf("%w: %s", ErrUnknownIndicator, k)
	}
	return definitions[k].compute(candles)
}

// ParseKind resolves an indicator name such as "rsi" or "ma_trend".
func ParseKind(name string) (Kind, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, k := range Kinds() {
		if definitions[k].name == n {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownIndicator, name)
}

func (k Kind) MarshalText() ([]byte, error) {
	if !k.valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownIndicator, int(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
