package api

import (
	"net/http"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/formcheck/formcheck/server/internal/alerts"
	"github.com/formcheck/formcheck/server/internal/store"
)

// metrics returns GET /metrics: live session state in the Prometheus text
// exposition format.
func (h *Handler) metrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	w.Header().Set("Content-Type", string(format))
	w.WriteHeader(http.StatusOK)

	enc := expfmt.NewEncoder(w, format)
	for _, mf := range h.metricFamilies() {
		if err := enc.Encode(mf); err != nil {
			return
		}
	}
}

// metricFamilies renders the store and alert state as metric families.
// Families without samples are omitted, except the two top-level gauges.
func (h *Handler) metricFamilies() []*dto.MetricFamily {
	entries := h.store.List()

	firing := 0
	if h.alerts != nil {
		for _, a := range h.alerts.Active() {
			if a.State == alerts.StateFiring {
				firing++
			}
		}
	}

	score := family("formcheck_session_form_score", "Form score of the latest analyzed frame.", dto.MetricType_GAUGE)
	valid := family("formcheck_session_valid_pose", "1 if the latest analyzed frame is a valid pose.", dto.MetricType_GAUGE)
	jitter := family("formcheck_session_jitter", "Mean landmark displacement between the last two frames.", dto.MetricType_GAUGE)
	violations := family("formcheck_session_zone_violations", "Body parts inside an exclusion zone in the latest frame.", dto.MetricType_GAUGE)
	angles := family("formcheck_session_joint_angle_degrees", "Latest measured joint angle.", dto.MetricType_GAUGE)
	frames := family("formcheck_session_frames_total", "Analyzed frames received.", dto.MetricType_COUNTER)
	validFrames := family("formcheck_session_valid_frames_total", "Analyzed frames classified as a valid pose.", dto.MetricType_COUNTER)
	errs := family("formcheck_session_errors_total", "Error records received.", dto.MetricType_COUNTER)

	for _, e := range entries {
		labels := sessionLabels(e)
		frames.Metric = append(frames.Metric, counter(float64(e.Frames), labels...))
		validFrames.Metric = append(validFrames.Metric, counter(float64(e.ValidFrames), labels...))
		errs.Metric = append(errs.Metric, counter(float64(e.Errors), labels...))

		rec := e.Record
		if rec == nil {
			continue
		}
		v := 0.0
		if rec.Valid {
			v = 1
		}
		score.Metric = append(score.Metric, gauge(float64(rec.FormScore), labels...))
		valid.Metric = append(valid.Metric, gauge(v, labels...))
		jitter.Metric = append(jitter.Metric, gauge(rec.Jitter, labels...))
		violations.Metric = append(violations.Metric, gauge(float64(len(rec.Violations)), labels...))
		for _, joint := range rec.Joints() {
			if deg, ok := rec.Angle(joint); ok {
				angles.Metric = append(angles.Metric, gauge(deg, append(labels, label("joint", joint))...))
			}
		}
	}

	sessions := family("formcheck_sessions", "Live sessions.", dto.MetricType_GAUGE)
	sessions.Metric = []*dto.Metric{gauge(float64(len(entries)))}
	alertsFiring := family("formcheck_alerts_firing", "Alerts currently firing.", dto.MetricType_GAUGE)
	alertsFiring.Metric = []*dto.Metric{gauge(float64(firing))}

	out := []*dto.MetricFamily{sessions, alertsFiring}
	for _, mf := range []*dto.MetricFamily{score, valid, jitter, violations, angles, frames, validFrames, errs} {
		if len(mf.Metric) > 0 {
			out = append(out, mf)
		}
	}
	return out
}

func sessionLabels(e *store.Entry) []*dto.LabelPair {
	exercise := ""
	if e.Record != nil {
		exercise = e.Record.Exercise
	}
	return []*dto.LabelPair{label("exercise", exercise), label("session", e.SessionID)}
}

func family(name, help string, t dto.MetricType) *dto.MetricFamily {
	return &dto.MetricFamily{Name: proto.String(name), Help: proto.String(help), Type: t.Enum()}
}

func label(name, value string) *dto.LabelPair {
	return &dto.LabelPair{Name: proto.String(name), Value: proto.String(value)}
}

func gauge(v float64, labels ...*dto.LabelPair) *dto.Metric {
	return &dto.Metric{Label: labels, Gauge: &dto.Gauge{Value: proto.Float64(v)}}
}

func counter(v float64, labels ...*dto.LabelPair) *dto.Metric {
	return &dto.Metric{Label: labels, Counter: &dto.Counter{Value: proto.Float64(v)}}
}
