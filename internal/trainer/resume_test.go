package trainer

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/born-train/internal/checkpoint"
	"github.com/born-ml/born-train/internal/nn"
	"github.com/born-ml/born-train/internal/optim"
)

type regBatch struct {
	x, y *nn.Tensor
}

func newRegressor(seed uint64) (*nn.Sequential, *optim.SGD) {
	rng := rand.New(rand.NewPCG(seed, seed))
	model := nn.NewSequential(nn.NewLinear(2, 4, rng), nn.NewReLU(), nn.NewLinear(4, 1, rng))
	return model, optim.NewSGD(model.Parameters(), optim.SGDConfig{LR: 0.05, Momentum: 0.9})
}

func regressionCallbacks(model *nn.Sequential) CallbackFuncs[regBatch] {
	loss := nn.NewMSELoss()
	return CallbackFuncs[regBatch]{
		Train: func(_ context.Context, b regBatch) (StepResult, error) {
			pred := model.Forward(b.x)
			l, err := loss.Forward(pred, b.y)
			if err != nil {
				return StepResult{}, err
			}
			grad, err := loss.Backward(pred, b.y)
			if err != nil {
				return StepResult{}, err
			}
			if _, err := model.Backward(grad); err != nil {
				return StepResult{}, err
			}
			return StepResult{Loss: float64(l), Size: b.x.Rows()}, nil
		},
		Eval: func(_ context.Context, b regBatch) (StepResult, error) {
			l, err := loss.Forward(model.Forward(b.x), b.y)
			return StepResult{Loss: float64(l), Size: b.x.Rows()}, err
		},
	}
}

func regressionBatches(n int) Slice[regBatch] {
	out := make(Slice[regBatch], n)
	for i := range out {
		a, b := float32(i)/float32(n), float32(n-i)/float32(n)
		out[i] = regBatch{
			x: nn.FromRows([][]float32{{a, b}, {b, a}}),
			y: nn.FromRows([][]float32{{a - b}, {b - a}}),
		}
	}
	return out
}

func TestResume_ContinuesFromLatestCheckpoint(t *testing.T) {
	ctx := context.Background()
	store, err := checkpoint.NewFileStore(t.TempDir())
	require.NoError(t, err)
	data := regressionBatches(5)

	model1, opt1 := newRegressor(1)
	s1 := NewSession(model1, opt1)
	final1, err := New[regBatch](regressionCallbacks(model1), WithCheckpointer(store)).
		Run(ctx, s1, data, data[:2], testConfig(2, 2))
	require.NoError(t, err)
	require.Equal(t, int64(6), s1.Step)

	model2, opt2 := newRegressor(99)
	s2 := NewSession(model2, opt2)
	path, err := Resume(ctx, s2, store)
	require.NoError(t, err)

	assert.Equal(t, final1.LastCheckpoint, path)
	assert.Equal(t, s1.RunID, s2.RunID)
	assert.Equal(t, 2, s2.Epoch)
	assert.Equal(t, s1.Step, s2.Step)
	assert.Equal(t, AccumulationState{Threshold: 2}, s2.Accum)
	if diff := cmp.Diff(model1.StateDict(), model2.StateDict()); diff != "" {
		t.Errorf("model state mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(opt1.StateDict(), opt2.StateDict()); diff != "" {
		t.Errorf("optimizer state mismatch (-want +got):\n%s", diff)
	}

	final2, err := New[regBatch](regressionCallbacks(model2), WithCheckpointer(store)).
		Run(ctx, s2, data, data[:2], testConfig(2, 3))
	require.NoError(t, err)
	assert.Equal(t, 3, final2.Epoch)
	assert.Equal(t, int64(9), final2.Step)

	snap, _, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Epoch)
	assert.Equal(t, int64(9), snap.Step)
}

func TestResume_ChangedThresholdFails(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	s1 := NewSession(newFakeModel(), &fakeOptimizer{})
	_, err := New[int](constCallbacks(1), WithCheckpointer(store)).
		Run(ctx, s1, batches(4), nil, testConfig(2, 1))
	require.NoError(t, err)

	s2 := NewSession(newFakeModel(), &fakeOptimizer{})
	_, err = Resume(ctx, s2, store)
	require.NoError(t, err)

	_, err = New[int](constCallbacks(1)).Run(ctx, s2, batches(4), nil, testConfig(3, 2))
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "accumulate_grad_batches", cfgErr.Field)
}

func TestResume_NoCheckpoint(t *testing.T) {
	s := NewSession(newFakeModel(), &fakeOptimizer{})
	before := s.Snapshot()

	path, err := Resume(context.Background(), s, &memStore{})
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, before, s.Snapshot())
}

func TestResume_RequiresStateDict(t *testing.T) {
	store := &memStore{snaps: []checkpoint.Snapshot{{Epoch: 0, Step: 1}}}
	s := NewSession(newFakeModel(), &bareOptimizer{})

	_, err := Resume(context.Background(), s, store)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Zero(t, s.Epoch)
}
