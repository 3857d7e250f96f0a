package entities

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Side is the patient's half of the mouth used for anesthesia planning
type Side string

const (
	SideRight Side = "Right"
	SideLeft  Side = "Left"
)

// Arch is the upper (maxillary) or lower (mandibular) arch
type Arch string

const (
	ArchUpper Arch = "Upper"
	ArchLower Arch = "Lower"
)

// Quadrant is one of the four anesthesia zones of the mouth
type Quadrant string

const (
	QuadrantUpperRight Quadrant = "UpperRight"
	QuadrantUpperLeft  Quadrant = "UpperLeft"
	QuadrantLowerRight Quadrant = "LowerRight"
	QuadrantLowerLeft  Quadrant = "LowerLeft"
)

// ToothLocation is the anatomical position derived from a tooth identifier
type ToothLocation struct {
	Side     Side     `json:"side"`
	Arch     Arch     `json:"arch"`
	Quadrant Quadrant `json:"quadrant"`
}

// TreatmentRecord is one raw treatment as supplied by the caller
// (X-ray analysis output, treatment catalog lookup, or a clinician).
type TreatmentRecord struct {
	Tooth         ToothRef     `json:"tooth"`
	Treatment     string       `json:"treatment"`
	Procedure     string       `json:"procedure,omitempty"` // accepted alias of Treatment
	StageCategory LenientInt   `json:"stage_category"`
	Price         LenientFloat `json:"price"`
	Condition     string       `json:"condition"`
	Replacement   string       `json:"replacement,omitempty"`
}

// ProcedureName returns the procedure name, preferring Treatment over its alias
func (r TreatmentRecord) ProcedureName() string {
	if strings.TrimSpace(r.Treatment) != "" {
		return r.Treatment
	}
	return r.Procedure
}

// TreatmentItem is a normalized clinical procedure inside one staging computation
type TreatmentItem struct {
	Tooth               string   `json:"tooth"`
	Procedure           string   `json:"procedure"`
	StageCategory       int      `json:"stage_category"`
	Price               float64  `json:"price"`
	Condition           string   `json:"condition"`
	TimeEstimateMinutes int      `json:"time_estimate_minutes"`
	Side                Side     `json:"side"`
	Arch                Arch     `json:"arch"`
	Quadrant            Quadrant `json:"quadrant"`
	Dependencies        []string `json:"dependencies,omitempty"`
}

// Location returns the item's anatomical location
func (t TreatmentItem) Location() ToothLocation {
	return ToothLocation{Side: t.Side, Arch: t.Arch, Quadrant: t.Quadrant}
}

// ToothRef is a tooth identifier that may arrive as a JSON string or number
type ToothRef string

// UnmarshalJSON accepts strings, numbers and null. Other shapes become an empty
// identifier instead of failing the whole request.
func (t *ToothRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = ToothRef(strings.TrimSpace(s))
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		if f == math.Trunc(f) {
			*t = ToothRef(strconv.FormatInt(int64(f), 10))
		} else {
			*t = ToothRef(strconv.FormatFloat(f, 'f', -1, 64))
		}
		return nil
	}

	*t = ""
	return nil
}

// String returns the identifier
func (t ToothRef) String() string {
	return string(t)
}

// LenientFloat decodes numbers and numeric strings; anything else decodes to 0
type LenientFloat float64

// UnmarshalJSON implements json.Unmarshaler
func (f *LenientFloat) UnmarshalJSON(data []byte) error {
	*f = LenientFloat(parseLenientNumber(data))
	return nil
}

// LenientInt decodes integers, floats (truncated) and numeric strings; anything else decodes to 0
type LenientInt int

// UnmarshalJSON implements json.Unmarshaler
func (i *LenientInt) UnmarshalJSON(data []byte) error {
	*i = LenientInt(int(parseLenientNumber(data)))
	return nil
}

func parseLenientNumber(data []byte) float64 {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return 0
	}

	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		return sanitize(f)
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return sanitize(parsed)
		}
	}

	return 0
}

func sanitize(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
