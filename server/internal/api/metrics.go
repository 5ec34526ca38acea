package api

import (
	"net/http"
	"sync/atomic"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/goldensig/goldensig/pkg/types"
)

// metrics holds process counters exposed on /metrics.
type metrics struct {
	evaluations     [3]atomic.Int64 // indexed by verdictIndex
	approvals       atomic.Int64
	rejections      atomic.Int64
	exports         atomic.Int64
	sessionsCreated atomic.Int64
}

var verdictOrder = [3]types.Verdict{
	types.VerdictOutperforms,
	types.VerdictHighEnergyWarning,
	types.VerdictNearOptimal,
}

func verdictIndex(v types.Verdict) int {
	for i, o := range verdictOrder {
		if o == v {
			return i
		}
	}
	return len(verdictOrder) - 1
}

// gaugeValues are sampled at scrape time.
type gaugeValues struct {
	sessions      int
	streamClients int
	datasetRows   int
	goldenScore   float64
}

func counter(v float64, labels ...*dto.LabelPair) *dto.Metric {
	return &dto.Metric{Label: labels, Counter: &dto.Counter{Value: proto.Float64(v)}}
}

func label(name, value string) *dto.LabelPair {
	return &dto.LabelPair{Name: proto.String(name), Value: proto.String(value)}
}

func family(name, help string, typ dto.MetricType, ms ...*dto.Metric) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   proto.String(name),
		Help:   proto.String(help),
		Type:   typ.Enum(),
		Metric: ms,
	}
}

func gauge(v float64) *dto.Metric {
	return &dto.Metric{Gauge: &dto.Gauge{Value: proto.Float64(v)}}
}

// families renders the current counters and gauges.
func (m *metrics) families(g gaugeValues) []*dto.MetricFamily {
	evals := make([]*dto.Metric, len(verdictOrder))
	for i, v := range verdictOrder {
		evals[i] = counter(float64(m.evaluations[i].Load()), label("verdict", string(v)))
	}

	return []*dto.MetricFamily{
		family("goldensig_evaluations_total", "Batch evaluations against a session golden, by verdict.",
			dto.MetricType_COUNTER, evals...),
		family("goldensig_approvals_total", "Golden Signature approvals, by outcome.",
			dto.MetricType_COUNTER,
			counter(float64(m.approvals.Load()), label("outcome", "accepted")),
			counter(float64(m.rejections.Load()), label("outcome", "rejected")),
		),
		family("goldensig_sessions_created_total", "Sessions created since start.",
			dto.MetricType_COUNTER, counter(float64(m.sessionsCreated.Load()))),
		family("goldensig_exports_total", "Dataset exports served.",
			dto.MetricType_COUNTER, counter(float64(m.exports.Load()))),
		family("goldensig_sessions", "Live sessions.",
			dto.MetricType_GAUGE, gauge(float64(g.sessions))),
		family("goldensig_stream_clients", "Connected WebSocket clients.",
			dto.MetricType_GAUGE, gauge(float64(g.streamClients))),
		family("goldensig_dataset_rows", "Rows in the dataset used for new sessions.",
			dto.MetricType_GAUGE, gauge(float64(g.datasetRows))),
		family("goldensig_initial_golden_score", "Optimization score of the initial Golden Signature.",
			dto.MetricType_GAUGE, gauge(g.goldenScore)),
	}
}

// serveMetrics writes the families in the Prometheus text format.
func serveMetrics(w http.ResponseWriter, mfs []*dto.MetricFamily) {
	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	w.Header().Set("Content-Type", string(format))
	enc := expfmt.NewEncoder(w, format)
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			return
		}
	}
}
