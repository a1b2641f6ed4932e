package alerts

import (
	"strconv"
	"strings"

	"github.com/formcheck/formcheck/pkg/types"
)

// evalCondition evaluates a rule condition string against an AnalysisRecord.
//
// Supported expressions (field operator value):
//
//	form_score < 60
//	jitter > 0.05
//	violations > 0
//	low_visibility >= 2
//	penalty.symmetry > 10
//	angle.leftKnee > 170
//	valid == false
//
// A joint whose angle could not be measured never fires. Returns
// (fires bool, triggering value float64), or (false, 0) if the expression
// cannot be parsed or the field is unknown.
func evalCondition(cond string, rec *types.AnalysisRecord) (bool, float64) {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return false, 0
	}
	field, op, rhs := parts[0], parts[1], parts[2]

	if field == "valid" {
		want, err := strconv.ParseBool(rhs)
		if err != nil {
			return false, 0
		}
		v := 0.0
		if rec.Valid {
			v = 1
		}
		switch op {
		case "==":
			return rec.Valid == want, v
		case "!=":
			return rec.Valid != want, v
		}
		return false, 0
	}

	v, ok := numericField(field, rec)
	if !ok {
		return false, 0
	}
	threshold, err := strconv.ParseFloat(rhs, 64)
	if err != nil {
		return false, 0
	}
	return compareFloat(v, op, threshold), v
}

// numericField maps a field name to its value in the record. ok is false for
// unknown fields and unmeasured angles.
func numericField(field string, rec *types.AnalysisRecord) (float64, bool) {
	if joint, found := strings.CutPrefix(field, "angle."); found {
		return rec.Angle(joint)
	}
	switch field {
	case "form_score":
		return float64(rec.FormScore), true
	case "jitter":
		return rec.Jitter, true
	case "violations":
		return float64(len(rec.Violations)), true
	case "low_visibility":
		return float64(len(rec.LowVisibility)), true
	case "penalty.visibility":
		return rec.Penalties.Visibility, true
	case "penalty.symmetry":
		return rec.Penalties.Symmetry, true
	case "penalty.stability":
		return rec.Penalties.Stability, true
	default:
		return 0, false
	}
}

// validField reports whether field names something evalCondition can read.
// Joint names after "angle." are not checked here.
func validField(field string) bool {
	if strings.HasPrefix(field, "angle.") {
		return len(field) > len("angle.")
	}
	switch field {
	case "valid", "form_score", "jitter", "violations", "low_visibility",
		"penalty.visibility", "penalty.symmetry", "penalty.stability":
		return true
	}
	return false
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	case "!=":
		return v != threshold
	default:
		return false
	}
}
