package metrics_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/gin-gonic/gin"
	"github.com/juju/clock/testclock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/bakery-orderflow/internal/metrics"
)

type fakeCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
	err    error
}

func (f *fakeCloudWatch) PutMetricData(_ context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.inputs = append(f.inputs, in)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

// sent flattens the datums of the last call into "name[dim=value]" keys.
func (f *fakeCloudWatch) sent() map[string]float64 {
	out := map[string]float64{}
	if len(f.inputs) == 0 {
		return out
	}
	for _, d := range f.inputs[len(f.inputs)-1].MetricData {
		key := *d.MetricName
		for _, dim := range d.Dimensions {
			key += "[" + *dim.Name + "=" + *dim.Value + "]"
		}
		out[key] = *d.Value
	}
	return out
}

func counter(t *testing.T, g prometheus.Gatherer, name, label, value string) float64 {
	t.Helper()
	families, err := g.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if label == "" {
				return m.GetCounter().GetValue()
			}
			for _, l := range m.GetLabel() {
				if l.GetName() == label && l.GetValue() == value {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func newRegistry(t *testing.T) (*metrics.Collector, *prometheus.Registry) {
	t.Helper()
	c := metrics.NewCollector()
	reg, err := metrics.NewRegistry(c)
	require.NoError(t, err)
	return c, reg
}

func TestCollectorCounts(t *testing.T) {
	c, reg := newRegistry(t)

	c.OrderPlaced()
	c.OrderPlaced()
	c.StatusChanged("delivered")
	c.NotificationResult("failed")
	c.NotificationResult("sent")
	c.NotificationResult("sent")

	assert.Equal(t, 2.0, counter(t, reg, "bakery_orders_placed_total", "", ""))
	assert.Equal(t, 1.0, counter(t, reg, "bakery_order_status_changes_total", "status", "delivered"))
	assert.Equal(t, 2.0, counter(t, reg, "bakery_notifications_total", "outcome", "sent"))
	assert.Equal(t, 1.0, counter(t, reg, "bakery_notifications_total", "outcome", "failed"))
}

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, reg := newRegistry(t)

	r := gin.New()
	r.Use(c.Middleware())
	r.GET("/api/cart/:sessionId", func(ctx *gin.Context) { ctx.Status(http.StatusOK) })

	for _, path := range []string{"/api/cart/session-one", "/api/cart/session-two", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	families, err := reg.Gather()
	require.NoError(t, err)
	routes := map[string]uint64{}
	for _, mf := range families {
		if mf.GetName() != "bakery_http_request_duration_seconds" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "route" {
					routes[l.GetValue()] += m.GetHistogram().GetSampleCount()
				}
			}
		}
	}
	assert.Equal(t, map[string]uint64{"/api/cart/:sessionId": 2, "unmatched": 1}, routes)
}

func TestFlusherSendsDeltas(t *testing.T) {
	c, reg := newRegistry(t)
	cw := &fakeCloudWatch{}
	f := metrics.NewFlusher(cw, "Bakery", reg, testclock.NewClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))
	ctx := context.Background()

	c.OrderPlaced()
	c.OrderPlaced()
	c.StatusChanged("confirmed")
	require.NoError(t, f.Flush(ctx))
	require.Len(t, cw.inputs, 1)
	assert.Equal(t, "Bakery", *cw.inputs[0].Namespace)
	assert.Equal(t, map[string]float64{
		"orders_placed_total":                          2,
		"order_status_changes_total[status=confirmed]": 1,
	}, cw.sent())

	// Nothing moved: no call.
	require.NoError(t, f.Flush(ctx))
	assert.Len(t, cw.inputs, 1)

	c.OrderPlaced()
	require.NoError(t, f.Flush(ctx))
	require.Len(t, cw.inputs, 2)
	assert.Equal(t, map[string]float64{"orders_placed_total": 1}, cw.sent())
}

func TestFlusherRetainsIncrementsOnFailure(t *testing.T) {
	c, reg := newRegistry(t)
	cw := &fakeCloudWatch{err: errors.New("throttled")}
	f := metrics.NewFlusher(cw, "Bakery", reg, nil)
	ctx := context.Background()

	c.OrderPlaced()
	require.Error(t, f.Flush(ctx))

	cw.err = nil
	c.OrderPlaced()
	require.NoError(t, f.Flush(ctx))
	assert.Equal(t, map[string]float64{"orders_placed_total": 2}, cw.sent())
}
