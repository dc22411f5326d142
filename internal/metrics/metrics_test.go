package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gbproject/normgraph/internal/entities"
	"github.com/gbproject/normgraph/internal/schema"
	tu "github.com/gbproject/normgraph/internal/testutil"
)

func TestRecorder_CountsSuccessfulCalls(t *testing.T) {
	rec := New()
	e := entities.New(nil, entities.WithObserver(rec), entities.WithClock(tu.NewStepClock(time.Millisecond)))

	n, err := e.Normalize(tu.SampleProject())
	require.NoError(t, err)
	_, err = e.Denormalize(n.Entities, n.Result)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(rec.calls.WithLabelValues("normalize", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.calls.WithLabelValues("denormalize", "ok")))
	assert.Equal(t, 7.0, testutil.ToFloat64(rec.entities.WithLabelValues("normalize", string(schema.Events))))
	assert.Equal(t, 2.0, testutil.ToFloat64(rec.entities.WithLabelValues("normalize", string(schema.Scenes))))
}

func TestRecorder_LabelsFailuresByCode(t *testing.T) {
	rec := New()
	e := entities.New(nil, entities.WithObserver(rec))

	_, err := e.Normalize(tu.Project(tu.Scene("", "One", nil, nil, nil)))
	require.Error(t, err)

	rec.Observe(entities.OpDenormalize, nil, fmt.Errorf("boom"), time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(rec.calls.WithLabelValues("normalize", "MISSING_IDENTIFIER")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.calls.WithLabelValues("denormalize", "error")))
}

func TestRecorder_Snapshot(t *testing.T) {
	rec := New()
	e := entities.New(nil, entities.WithObserver(rec))

	_, err := e.Normalize(tu.SampleProject())
	require.NoError(t, err)

	samples, err := rec.Snapshot()
	require.NoError(t, err)
	require.NotEmpty(t, samples)

	byKey := map[string]float64{}
	for _, s := range samples {
		byKey[s.Name+"/"+s.Labels["op"]+"/"+s.Labels["outcome"]+s.Labels["type"]] = s.Value
	}
	assert.Equal(t, 1.0, byKey["normgraph_calls_total/normalize/ok"])
	assert.Equal(t, 1.0, byKey["normgraph_call_duration_seconds_count/normalize/"])
	assert.Equal(t, 2.0, byKey["normgraph_entities_total/normalize/actors"])

	// Sorted by name.
	for i := 1; i < len(samples); i++ {
		assert.LessOrEqual(t, samples[i-1].Name, samples[i].Name)
	}
}

func TestRecorder_IndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New()
		New()
	})
	assert.NotNil(t, New().Registry())
}
