package canbus

import (
	"fmt"
	"strconv"
	"strings"
)

// Filter is a kernel acceptance filter in SocketCAN wire encoding. A frame
// is accepted when received_id & Mask == ID & Mask.
type Filter struct {
	ID   uint32
	Mask uint32
}

// ParseFilter parses a command-line filter expression of the form
// "ID", "ID/MASK" or "ID:MASK", all hex. Identifiers wider than 3 hex
// digits are treated as extended-format. Without a mask suffix the filter
// is an exact match on the identifier. The produced mask always includes
// the frame-format and RTR flag bits so a filter never matches across
// identifier widths.
func ParseFilter(s string) (Filter, error) {
	idPart := s
	maskPart := ""
	if i := strings.IndexAny(s, "/:"); i >= 0 {
		idPart, maskPart = s[:i], s[i+1:]
	}
	if idPart == "" {
		return Filter{}, fmt.Errorf("empty identifier in filter %q", s)
	}

	v, err := strconv.ParseUint(idPart, 16, 32)
	if err != nil {
		return Filter{}, fmt.Errorf("invalid identifier %q: %w", idPart, err)
	}

	var f Filter
	if len(idPart) > 3 {
		if v > MaskExtended {
			return Filter{}, fmt.Errorf("extended identifier %#x out of range (max %#x)", v, uint32(MaskExtended))
		}
		f.ID = uint32(v) | flagExtended
		f.Mask = MaskExtended
	} else {
		if v > MaskStandard {
			return Filter{}, fmt.Errorf("standard identifier %#x out of range (max %#x)", v, uint32(MaskStandard))
		}
		f.ID = uint32(v)
		f.Mask = MaskStandard
	}

	if maskPart != "" {
		m, err := strconv.ParseUint(maskPart, 16, 32)
		if err != nil {
			return Filter{}, fmt.Errorf("invalid mask %q: %w", maskPart, err)
		}
		f.Mask = uint32(m)
	}
	f.Mask |= flagExtended | flagRTR

	return f, nil
}

// ParseFilters parses a list of filter expressions, reporting the first
// failure with its argument.
func ParseFilters(args []string) ([]Filter, error) {
	filters := make([]Filter, 0, len(args))
	for _, arg := range args {
		f, err := ParseFilter(arg)
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", arg, err)
		}
		filters = append(filters, f)
	}
	return filters, nil
}
