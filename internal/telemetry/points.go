package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// Point is one collected data point.
type Point struct {
	Metric     string
	Unit       string
	Attributes map[string]string
	// Value is the counter total, or the sum of observations for a
	// histogram.
	Value float64
	// Count is the number of histogram observations; zero for counters.
	Count uint64
}

// Points flattens the counter and histogram data points of rm in
// collection order. Other aggregations are skipped.
func Points(rm metricdata.ResourceMetrics) []Point {
	var points []Point
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					points = append(points, Point{
						Metric:     m.Name,
						Unit:       m.Unit,
						Attributes: attributeMap(dp.Attributes.ToSlice()),
						Value:      float64(dp.Value),
					})
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					points = append(points, Point{
						Metric:     m.Name,
						Unit:       m.Unit,
						Attributes: attributeMap(dp.Attributes.ToSlice()),
						Value:      dp.Sum,
						Count:      dp.Count,
					})
				}
			}
		}
	}
	return points
}

func attributeMap(kvs []attribute.KeyValue) map[string]string {
	m := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		m[string(kv.Key)] = kv.Value.Emit()
	}
	return m
}
