package forest

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

// separable builds three classes keyed on which of the first three
// features is set, plus a noise column.
func separable(perClass int) ([][]float64, []int) {
	var x [][]float64
	var y []int
	for c := 0; c < 3; c++ {
		for i := 0; i < perClass; i++ {
			row := []float64{0, 0, 0, float64(i % 7)}
			row[c] = 1
			x = append(x, row)
			y = append(y, c)
		}
	}
	return x, y
}

func TestFit(t *testing.T) {
	Convey("Given a separable three-class dataset", t, func() {
		x, y := separable(20)

		f, err := Fit(context.Background(), x, y, 3, WithTrees(25), WithMaxFeatures(4), WithWorkers(4))
		So(err, ShouldBeNil)
		So(f.Validate(), ShouldBeNil)
		So(len(f.Trees), ShouldEqual, 25)

		Convey("Then every class is recovered with probabilities summing to 1", func() {
			for c := 0; c < 3; c++ {
				row := []float64{0, 0, 0, 3}
				row[c] = 1
				p, err := f.PredictProba(row)
				So(err, ShouldBeNil)
				So(len(p), ShouldEqual, 3)

				sum, best := 0.0, 0
				for i, v := range p {
					sum += v
					if v > p[best] {
						best = i
					}
				}
				So(sum, ShouldAlmostEqual, 1.0, 1e-9)
				So(best, ShouldEqual, c)
			}
		})

		Convey("Then the same seed reproduces the same forest", func() {
			again, err := Fit(context.Background(), x, y, 3, WithTrees(25), WithMaxFeatures(4), WithWorkers(1))
			So(err, ShouldBeNil)
			a, _ := json.Marshal(f)
			b, _ := json.Marshal(again)
			So(string(a), ShouldEqual, string(b))
		})

		Convey("When it round-trips through JSON", func() {
			data, err := json.Marshal(f)
			So(err, ShouldBeNil)
			var back Forest
			So(json.Unmarshal(data, &back), ShouldBeNil)
			So(back.Validate(), ShouldBeNil)

			p1, _ := f.PredictProba([]float64{0, 1, 0, 2})
			p2, _ := back.PredictProba([]float64{0, 1, 0, 2})
			So(p2, ShouldResemble, p1)
		})

		Convey("When the vector has the wrong width", func() {
			_, err := f.PredictProba([]float64{1})
			So(errors.Is(err, ErrFeatureCount), ShouldBeTrue)
		})
	})

	Convey("Given a depth limit of one", t, func() {
		x, y := separable(10)
		f, err := Fit(context.Background(), x, y, 3, WithTrees(3), WithMaxDepth(1))
		So(err, ShouldBeNil)
		for _, tree := range f.Trees {
			So(len(tree.Nodes), ShouldBeLessThanOrEqualTo, 3)
		}
	})

	Convey("Given invalid inputs", t, func() {
		_, err := Fit(context.Background(), nil, nil, 2)
		So(errors.Is(err, ErrEmptyTrainingSet), ShouldBeTrue)

		_, err = Fit(context.Background(), [][]float64{{1}, {1, 2}}, []int{0, 1}, 2)
		So(errors.Is(err, ErrShapeMismatch), ShouldBeTrue)

		_, err = Fit(context.Background(), [][]float64{{1}}, []int{5}, 2)
		So(errors.Is(err, ErrShapeMismatch), ShouldBeTrue)
	})

	Convey("Given a cancelled context", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		x, y := separable(10)

		_, err := Fit(ctx, x, y, 3, WithTrees(10))
		So(errors.Is(err, context.Canceled), ShouldBeTrue)
	})
}

func TestBalancedWeights(t *testing.T) {
	Convey("Given an imbalanced label set", t, func() {
		w := balancedWeights([]int{0, 0, 0, 1}, 3)

		Convey("Then weights are n / (classes * count) and absent classes get 0", func() {
			So(w[0], ShouldAlmostEqual, 4.0/6.0, 1e-12)
			So(w[1], ShouldAlmostEqual, 2.0, 1e-12)
			So(w[2], ShouldEqual, 0)
		})
	})
}

func TestValidate(t *testing.T) {
	Convey("Given structurally broken forests", t, func() {
		So(errors.Is((&Forest{}).Validate(), ErrCorruptModel), ShouldBeTrue)

		cyclic := &Forest{NumClasses: 2, NumFeatures: 1, Trees: []Tree{{Nodes: []Node{
			{Feature: 0, Left: 0, Right: 0},
		}}}}
		So(errors.Is(cyclic.Validate(), ErrCorruptModel), ShouldBeTrue)
		_, err := cyclic.PredictProba([]float64{math.Pi})
		So(errors.Is(err, ErrCorruptModel), ShouldBeTrue)

		badClass := &Forest{NumClasses: 2, NumFeatures: 1, Trees: []Tree{{Nodes: []Node{
			{Feature: leaf, Classes: []int{3}, Probs: []float64{1}},
		}}}}
		So(errors.Is(badClass.Validate(), ErrCorruptModel), ShouldBeTrue)
	})
}
