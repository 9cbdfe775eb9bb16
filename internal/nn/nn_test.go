package nn

import (
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func newRNG() *rand.Rand { return rand.New(rand.NewPCG(11, 13)) }

func TestEmbedding_PaddingRowZero(t *testing.T) {
	e := NewEmbedding("emb", 6, 4, 0, newRNG())

	for _, v := range e.Weight.Value.RawRowView(0) {
		if v != 0 {
			t.Fatalf("padding row = %v; want zeros", e.Weight.Value.RawRowView(0))
		}
	}

	out, err := e.Forward([]int{0, 3})
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}

	if got, want := out.At(1, 2), e.Weight.Value.At(3, 2); got != want {
		t.Errorf("Forward row 1 col 2 = %v; want %v", got, want)
	}

	e.Backward([]int{0, 3}, mat.NewDense(2, 4, []float64{1, 1, 1, 1, 2, 2, 2, 2}))

	if e.Weight.Grad.At(0, 0) != 0 {
		t.Error("padding row received gradient")
	}

	if e.Weight.Grad.At(3, 1) != 2 {
		t.Errorf("Grad[3][1] = %v; want 2", e.Weight.Grad.At(3, 1))
	}
}

func TestEmbedding_OutOfRange(t *testing.T) {
	e := NewEmbedding("emb", 3, 2, 0, newRNG())

	if _, err := e.Forward([]int{3}); err == nil {
		t.Error("Forward(3) on 3-row table: want error")
	}

	if _, err := e.Forward(nil); err == nil {
		t.Error("Forward(nil): want error")
	}
}

func TestCrossEntropy_IgnoresPad(t *testing.T) {
	logits := mat.NewDense(3, 3, []float64{
		0, 0, 0,
		1, 2, 3,
		5, 0, 0,
	})

	st, grad, err := CrossEntropy(logits, []int{1, 0, 0}, 0, 1, true)
	if err != nil {
		t.Fatalf("CrossEntropy: %v", err)
	}

	if st.Count != 1 {
		t.Fatalf("Count = %d; want 1", st.Count)
	}

	if want := math.Log(3); math.Abs(st.Sum-want) > 1e-12 {
		t.Errorf("Sum = %v; want %v", st.Sum, want)
	}

	for _, r := range []int{1, 2} {
		for j := range 3 {
			if grad.At(r, j) != 0 {
				t.Errorf("grad[%d][%d] = %v; want 0 for ignored row", r, j, grad.At(r, j))
			}
		}
	}

	if want := 1.0/3 - 1; math.Abs(grad.At(0, 1)-want) > 1e-12 {
		t.Errorf("grad[0][1] = %v; want %v", grad.At(0, 1), want)
	}
}

func TestCrossEntropy_Accuracy(t *testing.T) {
	logits := mat.NewDense(2, 3, []float64{
		0, 9, 1,
		0, 1, 9,
	})

	st, _, err := CrossEntropy(logits, []int{1, 1}, 0, 1, false)
	if err != nil {
		t.Fatal(err)
	}

	if st.Correct != 1 || st.Accuracy() != 0.5 {
		t.Errorf("Correct=%d Accuracy=%v; want 1 and 0.5", st.Correct, st.Accuracy())
	}
}

func TestCrossEntropy_Errors(t *testing.T) {
	logits := mat.NewDense(1, 2, nil)

	if _, _, err := CrossEntropy(logits, []int{1, 1}, 0, 1, false); err == nil {
		t.Error("target count mismatch: want error")
	}

	if _, _, err := CrossEntropy(logits, []int{2}, 0, 1, false); err == nil {
		t.Error("target out of range: want error")
	}
}

func TestLossStats_EmptyMask(t *testing.T) {
	var st LossStats
	if st.Mean() != 0 || st.Accuracy() != 0 {
		t.Errorf("empty stats Mean=%v Accuracy=%v; want 0, 0", st.Mean(), st.Accuracy())
	}
}

func TestAdam_FirstStepMovesByLearningRate(t *testing.T) {
	p := newParam("w", 1, 2)
	p.Value.Set(0, 0, 1)
	p.Value.Set(0, 1, -1)
	p.Grad.Set(0, 0, 0.5)
	p.Grad.Set(0, 1, -3)

	opt := NewAdam(0.1)
	opt.Step([]*Param{p})

	// With bias correction the first step is lr·sign(g).
	if got := p.Value.At(0, 0); math.Abs(got-0.9) > 1e-6 {
		t.Errorf("w[0] = %v; want 0.9", got)
	}

	if got := p.Value.At(0, 1); math.Abs(got+0.9) > 1e-6 {
		t.Errorf("w[1] = %v; want -0.9", got)
	}

	if opt.Steps() != 1 {
		t.Errorf("Steps() = %d; want 1", opt.Steps())
	}
}

func TestAdam_ZeroGradLeavesValue(t *testing.T) {
	p := newParam("w", 2, 2)
	p.Value.Set(1, 1, 4)

	NewAdam(0.01).Step([]*Param{p})

	if p.Value.At(1, 1) != 4 {
		t.Errorf("value moved to %v with zero gradient", p.Value.At(1, 1))
	}
}

func TestParam_Float32RoundTrip(t *testing.T) {
	p := newBias("b", 3)
	if !p.SetFloat32([]float32{1, 2, 3}) {
		t.Fatal("SetFloat32 rejected matching length")
	}

	if got := p.Float32(); got[2] != 3 {
		t.Errorf("Float32() = %v", got)
	}

	if s := p.Shape(); len(s) != 1 || s[0] != 3 {
		t.Errorf("bias Shape() = %v; want [3]", s)
	}

	if p.SetFloat32([]float32{1}) {
		t.Error("SetFloat32 accepted wrong length")
	}
}

// tinyNet is embedding → LSTM → linear, enough to check every backward path.
type tinyNet struct {
	emb  *Embedding
	lstm *LSTM
	fc   *Linear
	init State
}

func newTinyNet(rng *rand.Rand) *tinyNet {
	n := &tinyNet{
		emb:  NewEmbedding("emb", 5, 3, 0, rng),
		lstm: NewLSTM("lstm", 3, 4, rng),
		fc:   NewLinear("fc", 4, 5, rng),
		init: ZeroState(2, 4),
	}

	fillUniform(n.init.H, 0.5, rng)
	fillUniform(n.init.C, 0.5, rng)

	return n
}

func (n *tinyNet) params() []*Param {
	ps := n.emb.Params()
	ps = append(ps, n.lstm.Params()...)

	return append(ps, n.fc.Params()...)
}

// loss runs inputs [T][B] and targets [T][B]; with grad it back-propagates
// and returns the gradient of the initial state.
func (n *tinyNet) loss(t *testing.T, inputs, targets [][]int, grad bool) (float64, State) {
	t.Helper()

	xs := make([]*mat.Dense, len(inputs))
	for i, ids := range inputs {
		x, err := n.emb.Forward(ids)
		if err != nil {
			t.Fatal(err)
		}

		xs[i] = x
	}

	var tr *Trace
	if grad {
		tr = &Trace{}
	}

	outs, _ := n.lstm.Forward(xs, n.init, tr)

	count := 0
	for _, row := range targets {
		for _, id := range row {
			if id != 0 {
				count++
			}
		}
	}

	scale := 1 / float64(count)

	var total LossStats

	dOuts := make([]*mat.Dense, len(outs))
	for i, h := range outs {
		logits := n.fc.Forward(h)

		st, dl, err := CrossEntropy(logits, targets[i], 0, scale, grad)
		if err != nil {
			t.Fatal(err)
		}

		total.Add(st)

		if grad {
			dOuts[i] = n.fc.Backward(h, dl)
		}
	}

	if !grad {
		return total.Mean(), State{}
	}

	dXs, dInit := n.lstm.Backward(tr, dOuts, State{})
	for i, ids := range inputs {
		n.emb.Backward(ids, dXs[i])
	}

	return total.Mean(), dInit
}

func TestGradientCheck(t *testing.T) {
	n := newTinyNet(newRNG())
	inputs := [][]int{{1, 2}, {3, 0}, {4, 0}}
	targets := [][]int{{2, 3}, {4, 0}, {1, 0}}

	_, dInit := n.loss(t, inputs, targets, true)

	const eps = 1e-6

	check := func(name string, m, g *mat.Dense, skipRow int) {
		r, c := m.Dims()
		for i := range r {
			if i == skipRow {
				continue
			}

			for j := range c {
				orig := m.At(i, j)

				m.Set(i, j, orig+eps)
				plus, _ := n.loss(t, inputs, targets, false)
				m.Set(i, j, orig-eps)
				minus, _ := n.loss(t, inputs, targets, false)
				m.Set(i, j, orig)

				num := (plus - minus) / (2 * eps)
				ana := g.At(i, j)

				if math.Abs(num-ana) > 1e-6+1e-4*math.Max(math.Abs(num), math.Abs(ana)) {
					t.Errorf("%s[%d][%d]: analytic %.8g numeric %.8g", name, i, j, ana, num)
				}
			}
		}
	}

	for _, p := range n.params() {
		skip := -1
		if p == n.emb.Weight {
			skip = 0 // padding row is frozen
		}

		check(p.Name, p.Value, p.Grad, skip)
	}

	check("init.h", n.init.H, dInit.H, -1)
	check("init.c", n.init.C, dInit.C, -1)
}
