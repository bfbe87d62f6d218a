package booster

import (
	"encoding/json"
	"math"
	"os"
	"strconv"
	"sync"

	"github.com/xh3b4sd/tracer"
)

type artefact struct {
	Learner struct {
		GradientBooster struct {
			Model struct {
				GbtreeModelParam struct {
					NumTrees string `json:"num_trees"`
				} `json:"gbtree_model_param"`
				Trees []tree `json:"trees"`
			} `json:"model"`
			Name string `json:"name"`
		} `json:"gradient_booster"`
		LearnerModelParam struct {
			BaseScore  string `json:"base_score"`
			NumFeature string `json:"num_feature"`
		} `json:"learner_model_param"`
		Objective struct {
			Name string `json:"name"`
		} `json:"objective"`
	} `json:"learner"`
}

type tree struct {
	DefaultLeft     []int     `json:"default_left"`
	LeftChildren    []int     `json:"left_children"`
	RightChildren   []int     `json:"right_children"`
	SplitConditions []float32 `json:"split_conditions"`
	SplitIndices    []int     `json:"split_indices"`
}

type Booster struct {
	// Pat is the file path of the model artefact to restore. Restore accepts
	// an explicit path which takes precedence over Pat.
	Pat string

	mut sync.RWMutex
	bas float32
	num int
	obj string
	tre []tree
}

func (b *Booster) Restore(pat string) error {
	if pat == "" {
		pat = b.Pat
	}

	if pat == "" {
		panic("Booster.Pat must not be empty")
	}

	var err error

	var byt []byte
	{
		byt, err = os.ReadFile(pat)
		if err != nil {
			return tracer.Mask(err)
		}
	}

	var art artefact
	{
		err = json.Unmarshal(byt, &art)
		if err != nil {
			return tracer.Mask(err)
		}
	}

	{
		if art.Learner.GradientBooster.Name != "" && art.Learner.GradientBooster.Name != "gbtree" {
			return tracer.Maskf(invalidModelError, "booster %#q not supported", art.Learner.GradientBooster.Name)
		}

		if len(art.Learner.GradientBooster.Model.Trees) == 0 {
			return tracer.Maskf(invalidModelError, "no trees found in %#q", pat)
		}

		for _, t := range art.Learner.GradientBooster.Model.Trees {
			n := len(t.LeftChildren)
			if len(t.RightChildren) != n || len(t.SplitConditions) != n || len(t.SplitIndices) != n {
				return tracer.Maskf(invalidModelError, "inconsistent tree layout in %#q", pat)
			}
		}
	}

	var bas float64
	if art.Learner.LearnerModelParam.BaseScore != "" {
		bas, err = strconv.ParseFloat(art.Learner.LearnerModelParam.BaseScore, 32)
		if err != nil {
			return tracer.Mask(err)
		}
	}

	var num int
	if art.Learner.LearnerModelParam.NumFeature != "" {
		num, err = strconv.Atoi(art.Learner.LearnerModelParam.NumFeature)
		if err != nil {
			return tracer.Mask(err)
		}
	}

	{
		b.mut.Lock()
		b.bas = float32(bas)
		b.num = num
		b.obj = art.Learner.Objective.Name
		b.tre = art.Learner.GradientBooster.Model.Trees
		b.mut.Unlock()
	}

	return nil
}

func (b *Booster) Predict(inp [][]float32) ([]float32, error) {
	b.mut.RLock()
	defer b.mut.RUnlock()

	if b.tre == nil {
		return nil, tracer.Mask(notRestoredError)
	}

	out := make([]float32, len(inp))

	for i, row := range inp {
		if b.num != 0 && len(row) != b.num {
			return nil, tracer.Maskf(invalidInputError, "row %d has %d features, expected %d", i, len(row), b.num)
		}

		sum := b.bas
		for _, t := range b.tre {
			sum += t.leaf(row)
		}

		out[i] = b.transform(sum)
	}

	return out, nil
}

// leaf walks the tree from the root to a leaf for the given feature vector.
// Internal nodes route left when the feature value is below the split
// condition. Missing values, encoded as NaN, follow the default direction
// learned during training. Leaf nodes carry their output value in the split
// condition slot.
func (t *tree) leaf(row []float32) float32 {
	n := 0
	for t.LeftChildren[n] != -1 {
		f := t.SplitIndices[n]

		var v float32
		if f < len(row) {
			v = row[f]
		} else {
			v = float32(math.NaN())
		}

		if math.IsNaN(float64(v)) {
			if len(t.DefaultLeft) > n && t.DefaultLeft[n] == 1 {
				n = t.LeftChildren[n]
			} else {
				n = t.RightChildren[n]
			}
		} else if v < t.SplitConditions[n] {
			n = t.LeftChildren[n]
		} else {
			n = t.RightChildren[n]
		}
	}

	return t.SplitConditions[n]
}

// transform applies the objective link function to the raw margin. Regression
// objectives are identity, logistic objectives squash into (0, 1).
func (b *Booster) transform(mar float32) float32 {
	switch b.obj {
	case "reg:logistic", "binary:logistic":
		return float32(1 / (1 + math.Exp(-float64(mar))))
	default:
		return mar
	}
}

// NumFeature returns the number of features the restored model expects, or
// zero if the artefact did not declare it.
func (b *Booster) NumFeature() int {
	b.mut.RLock()
	defer b.mut.RUnlock()
	return b.num
}

// NumTrees returns the number of boosted trees held by the restored model.
func (b *Booster) NumTrees() int {
	b.mut.RLock()
	defer b.mut.RUnlock()
	return len(b.tre)
}
