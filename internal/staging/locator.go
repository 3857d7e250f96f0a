package staging

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/zatekoja/dentalplan/internal/domain/entities"
)

// ToothLocator derives the anesthesia zone of a tooth identifier.
// Implementations must be safe for concurrent use.
type ToothLocator interface {
	Locate(tooth string) entities.ToothLocation
}

// FallbackLocation is the policy default for identifiers a locator cannot place.
// It is a scheduling convention, not a clinical finding.
var FallbackLocation = entities.ToothLocation{
	Side:     entities.SideRight,
	Arch:     entities.ArchUpper,
	Quadrant: entities.QuadrantUpperRight,
}

// UniversalLocator places teeth numbered 1-32: 1-8 upper right, 9-16 upper left,
// 17-24 lower right, 25-32 lower left.
type UniversalLocator struct{}

// Locate implements ToothLocator
func (UniversalLocator) Locate(tooth string) entities.ToothLocation {
	n, ok := parseToothNumber(tooth)
	if !ok {
		return FallbackLocation
	}

	switch {
	case n >= 1 && n <= 8:
		return entities.ToothLocation{Side: entities.SideRight, Arch: entities.ArchUpper, Quadrant: entities.QuadrantUpperRight}
	case n >= 9 && n <= 16:
		return entities.ToothLocation{Side: entities.SideLeft, Arch: entities.ArchUpper, Quadrant: entities.QuadrantUpperLeft}
	case n >= 17 && n <= 24:
		return entities.ToothLocation{Side: entities.SideRight, Arch: entities.ArchLower, Quadrant: entities.QuadrantLowerRight}
	case n >= 25 && n <= 32:
		return entities.ToothLocation{Side: entities.SideLeft, Arch: entities.ArchLower, Quadrant: entities.QuadrantLowerLeft}
	default:
		return FallbackLocation
	}
}

// FDILocator places two-digit ISO 3950 identifiers. The first digit is the
// quadrant (1-4 permanent, 5-8 primary), the second the position from the midline.
type FDILocator struct{}

// Locate implements ToothLocator
func (FDILocator) Locate(tooth string) entities.ToothLocation {
	n, ok := parseToothNumber(tooth)
	if !ok || n < 11 || n > 85 {
		return FallbackLocation
	}

	quadrant, position := n/10, n%10
	maxPosition := 8
	if quadrant >= 5 {
		quadrant -= 4
		maxPosition = 5
	}
	if position < 1 || position > maxPosition {
		return FallbackLocation
	}

	switch quadrant {
	case 1:
		return entities.ToothLocation{Side: entities.SideRight, Arch: entities.ArchUpper, Quadrant: entities.QuadrantUpperRight}
	case 2:
		return entities.ToothLocation{Side: entities.SideLeft, Arch: entities.ArchUpper, Quadrant: entities.QuadrantUpperLeft}
	case 3:
		return entities.ToothLocation{Side: entities.SideLeft, Arch: entities.ArchLower, Quadrant: entities.QuadrantLowerLeft}
	case 4:
		return entities.ToothLocation{Side: entities.SideRight, Arch: entities.ArchLower, Quadrant: entities.QuadrantLowerRight}
	default:
		return FallbackLocation
	}
}

// LocatorFor returns the locator for a configured numbering scheme
func LocatorFor(scheme string) (ToothLocator, error) {
	switch strings.ToLower(strings.TrimSpace(scheme)) {
	case "", entities.ToothNumberingUniversal:
		return UniversalLocator{}, nil
	case entities.ToothNumberingFDI:
		return FDILocator{}, nil
	default:
		return nil, fmt.Errorf("unknown tooth numbering scheme %q", scheme)
	}
}

func parseToothNumber(tooth string) (int, bool) {
	tooth = strings.TrimSpace(tooth)
	if tooth == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(tooth); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(tooth, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > 1e6 {
		return 0, false
	}
	return int(f), true
}
