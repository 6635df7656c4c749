package binning

import (
	"fmt"
	"strings"

	"evbin/internal/errs"
)

// Mode selects which aggregates a run produces.
type Mode uint8

const (
	ModeHistogram Mode = 1 << iota
	ModeHeatmap

	ModeBoth = ModeHistogram | ModeHeatmap
)

// ParseMode accepts "histogram", "heatmap" or "both" (case insensitive).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "histogram", "histograms", "hg":
		return ModeHistogram, nil
	case "heatmap", "heatmaps", "hm":
		return ModeHeatmap, nil
	case "both", "all":
		return ModeBoth, nil
	default:
		return 0, fmt.Errorf("%w: unknown mode %q", errs.ErrInvalidArgument, s)
	}
}

func (m Mode) String() string {
	switch m {
	case ModeHistogram:
		return "histogram"
	case ModeHeatmap:
		return "heatmap"
	case ModeBoth:
		return "both"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// Has reports whether m includes other.
func (m Mode) Has(other Mode) bool {
	return m&other == other
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Binners returns the strategies mode needs, histogram first.
func Binners(mode Mode, buckets int) ([]Binner, error) {
	var bs []Binner
	if mode.Has(ModeHistogram) {
		if buckets <= 0 {
			return nil, fmt.Errorf("%w: bucket count must be positive, got %d", errs.ErrInvalidArgument, buckets)
		}
		bs = append(bs, Histogram{Buckets: buckets})
	}
	if mode.Has(ModeHeatmap) {
		bs = append(bs, Heatmap{})
	}
	if len(bs) == 0 {
		return nil, fmt.Errorf("%w: empty mode %s", errs.ErrInvalidArgument, mode)
	}
	return bs, nil
}
